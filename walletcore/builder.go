package walletcore

import (
	"fmt"
	"math/rand"

	"github.com/dan/liquid-wallet-core/coinselect"
	"github.com/dan/liquid-wallet-core/network"
	"github.com/dan/liquid-wallet-core/txmodel"
	"github.com/dan/liquid-wallet-core/wallet"
	"github.com/dan/liquid-wallet-core/walleterr"
)

// Recipient is one requested payment: an address (already validated
// against the wallet's network), an amount, and the asset to pay in.
type Recipient struct {
	Address *wallet.Address
	Amount  uint64
	Asset   [32]byte
}

// BuildResult is the tentative, unsigned, unblinded transaction returned
// by CreateTransaction, along with the bookkeeping the caller needs to
// inspect before deciding to blind and sign it.
type BuildResult struct {
	Tx          *txmodel.Transaction
	Fee         uint64
	Selected    []coinselect.UTXO
	ChangeAddrs []*wallet.Address
}

// CreateTransaction implements the standard builder (spec §4.5): validate
// recipients, source UTXOs, select inputs, place changes, scramble, and
// append the final explicit fee output. Blinding and signing are separate
// steps so the caller may inspect the unsigned transaction first.
func (c *Ctx) CreateTransaction(recipients []Recipient, feeRateSatPerKB float64, rnd *rand.Rand) (*BuildResult, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w", walleterr.ErrEmptyAddressees)
	}
	policy, err := c.Config.PolicyAssetID()
	if err != nil {
		return nil, err
	}
	for _, r := range recipients {
		if r.Amount == 0 {
			return nil, fmt.Errorf("%w: recipient amount is zero", walleterr.ErrInvalidAmount)
		}
		if r.Asset == policy && r.Amount <= network.DustValue {
			return nil, fmt.Errorf("%w: policy-asset amount below dust limit", walleterr.ErrInvalidAmount)
		}
		if r.Address.Params != network.Params(c.Net) {
			return nil, fmt.Errorf("%w: recipient address is for a different network", walleterr.ErrInvalidAddress)
		}
	}

	feeRate := feeRateSatPerKB / 1000.0

	utxos, err := c.UTXOs()
	if err != nil {
		return nil, err
	}
	pool := make([]coinselect.UTXO, 0, len(utxos))
	for _, u := range utxos {
		pool = append(pool, coinselect.UTXO{Asset: coinselect.AssetID(u.Asset), Value: u.Value, ScriptPubKey: u.ScriptPubKey})
	}

	tx := txmodel.NewTransaction()
	outputValues := make(map[coinselect.AssetID]uint64)
	for _, r := range recipients {
		nonce := [33]byte{}
		copy(nonce[:], r.Address.BlindingPubKey.SerializeCompressed())
		tx.AddExplicitOutput(r.Asset, r.Amount, r.Address.ScriptPubKey, nonce)
		outputValues[coinselect.AssetID(r.Asset)] += r.Amount
	}

	policyID := coinselect.AssetID(policy)
	selection, err := coinselect.Select(pool, outputValues, policyID, func(nInputs int) uint64 {
		return coinselect.EstimatedFee(nInputs, len(tx.Outputs), 0, feeRate)
	})
	if err != nil {
		return nil, err
	}
	for _, u := range selection.Selected {
		var op txmodel.OutPoint
		// The selection pool carries no outpoint; re-associate by asset,
		// value, and scriptPubKey against the original UTXO set, since
		// coinselect.UTXO (§4.4's pure bookkeeping-over-amounts type)
		// doesn't carry one either.
		op = findOutpoint(utxos, u)
		tx.AddInput(op, [33]byte{}, [33]byte{})
	}

	estFee := coinselect.EstimatedFee(len(tx.Inputs), len(tx.Outputs), 0, feeRate)
	changesMap := coinselect.Changes(selection.InputValues, outputValues, policyID, estFee)

	internalIdx, err := c.peekInternalIndex()
	if err != nil {
		return nil, err
	}
	var changeAddrs []*wallet.Address
	k := uint32(0)
	for asset, value := range changesMap {
		addr, err := wallet.DeriveAddress(c.Account.Xpub, wallet.DerivationPath{Chain: 1, Index: internalIdx + k + 1}, c.Master, c.Net)
		if err != nil {
			return nil, err
		}
		var nonce [33]byte
		copy(nonce[:], addr.BlindingPubKey.SerializeCompressed())
		tx.AddExplicitOutput([32]byte(asset), value, addr.ScriptPubKey, nonce)
		changeAddrs = append(changeAddrs, addr)
		k++
	}
	if k > 0 {
		if _, err := c.bumpInternalIndexBy(k); err != nil {
			return nil, err
		}
	}

	tx.Scramble(rnd)

	finalOutputs := make(map[coinselect.AssetID]uint64)
	for _, out := range tx.Outputs {
		v, _ := out.ExplicitValue()
		finalOutputs[coinselect.AssetID(out.AssetTag())] += v
	}
	exactFee := coinselect.ExactFee(selection.InputValues, finalOutputs, policyID)
	tx.AddFeeOutput(policy, exactFee)

	return &BuildResult{Tx: tx, Fee: exactFee, Selected: selection.Selected, ChangeAddrs: changeAddrs}, nil
}

func findOutpoint(utxos []Unblinded, u coinselect.UTXO) txmodel.OutPoint {
	for _, candidate := range utxos {
		if candidate.Value == u.Value && candidate.Asset == [32]byte(u.Asset) && string(candidate.ScriptPubKey) == string(u.ScriptPubKey) {
			return candidate.Outpoint
		}
	}
	return txmodel.OutPoint{}
}

// bumpInternalIndexBy reserves k consecutive internal indices at once,
// used after change placement has determined exactly how many change
// outputs were created.
func (c *Ctx) bumpInternalIndexBy(k uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.Store.IndexInternal()
	if err != nil {
		return 0, err
	}
	if err := c.Store.SetIndexInternal(idx + k); err != nil {
		return 0, err
	}
	return idx, nil
}
