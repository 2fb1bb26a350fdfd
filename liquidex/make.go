package liquidex

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/dan/liquid-wallet-core/txmodel"
	"github.com/dan/liquid-wallet-core/wallet"
	"github.com/dan/liquid-wallet-core/walleterr"
	"github.com/dan/liquid-wallet-core/walletcore"
	"github.com/dan/liquid-wallet-core/zkp"
)

// MakeInput is the wallet-owned UTXO a maker offers into the swap, with
// the secrets already known from the store's Unblinded record.
type MakeInput struct {
	Outpoint             txmodel.OutPoint
	Asset                [32]byte
	Value                uint64
	AssetBlinder         [32]byte
	ValueBlinder         [32]byte
	ScriptPubKey         []byte
	PrevValueCommitment  [33]byte
}

// Make builds a one-input/one-output proposal offering in.Value of
// in.Asset in exchange for floor(rate * in.Value) of wantedAsset, signed
// with SIGHASH_SINGLE|ANYONECANPAY so a taker can freely append inputs
// and outputs around it (spec §4.8).
func Make(c *walletcore.Ctx, zc *zkp.Context, in MakeInput, wantedAsset [32]byte, rate float64, receiveAddr *wallet.Address) (*Proposal, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: rate must be positive", walleterr.ErrInvalidAmount)
	}
	receiveValue := uint64(math.Floor(rate * float64(in.Value)))
	if receiveValue == 0 {
		return nil, fmt.Errorf("%w: rate too low for this input value", walleterr.ErrInvalidAmount)
	}

	tx := txmodel.NewTransaction()
	tx.AddInput(in.Outpoint, [33]byte{}, [33]byte{})
	var nonce [33]byte
	copy(nonce[:], receiveAddr.BlindingPubKey.SerializeCompressed())
	out := tx.AddExplicitOutput(wantedAsset, receiveValue, receiveAddr.ScriptPubKey, nonce)

	assetBlinder, valueBlinder := DeriveMakerBlinders(c.Master, in.Outpoint)

	gen, err := zc.GenerateBlindedGenerator(zkp.AssetTag(wantedAsset), assetBlinder)
	if err != nil {
		return nil, err
	}
	commit, err := zc.Commit(valueBlinder, receiveValue, gen)
	if err != nil {
		return nil, err
	}
	genBytes := gen.Bytes()
	commitBytes := commit.Bytes()
	out.SetBlindedAsset(genBytes)
	out.SetBlindedValue(commitBytes)

	smuggled, err := blindNonce(c.Master, in.Outpoint, genBytes, commitBytes, receiveAddr.ScriptPubKey, receiveValue)
	if err != nil {
		return nil, err
	}
	copy(out.Nonce[:], smuggled[:])

	if err := c.SignInput(tx, 0, in.ScriptPubKey, in.PrevValueCommitment, txmodel.SigHashSingleAnyoneCanPay); err != nil {
		return nil, err
	}

	raw, err := tx.Serialize()
	if err != nil {
		return nil, err
	}

	proposal := &Proposal{
		Version: 0,
		TxHex:   hex.EncodeToString(raw),
		Inputs: []TxOutSecrets{{
			Asset:         in.Asset,
			Amount:        in.Value,
			AssetBlinder:  in.AssetBlinder,
			AmountBlinder: in.ValueBlinder,
		}},
		Outputs: []TxOutSecrets{{
			Asset:         wantedAsset,
			Amount:        receiveValue,
			AssetBlinder:  assetBlinder,
			AmountBlinder: valueBlinder,
		}},
	}
	return proposal, nil
}
