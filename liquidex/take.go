package liquidex

import (
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/dan/liquid-wallet-core/coinselect"
	"github.com/dan/liquid-wallet-core/txmodel"
	"github.com/dan/liquid-wallet-core/wallet"
	"github.com/dan/liquid-wallet-core/walleterr"
	"github.com/dan/liquid-wallet-core/walletcore"
	"github.com/dan/liquid-wallet-core/zkp"
)

// liquidexFeeRate is the fixed 0.1 sat/vbyte rate the original hardcodes
// for taking a proposal, independent of whatever rate the standard
// builder would otherwise estimate.
const liquidexFeeRate = 0.1

// TakeResult is the balanced, signed transaction completing a proposal.
type TakeResult struct {
	Tx       *txmodel.Transaction
	Fee      uint64
	Selected []coinselect.UTXO
}

// Take implements the taker side of a swap (spec §4.9): verify the
// proposal's output commitment, append a receive output for what the
// maker offered, run coin selection treating input 0/output 0 as already
// committed, add changes and the fee output, deterministically blind
// every output the taker controls, and sign inputs 1..n (index 0 carries
// the maker's SIGHASH_SINGLE|ANYONECANPAY signature already). The maker's
// input and output must keep index 0: SIGHASH_SINGLE ties an input to the
// output at the same position, so this never scrambles.
func Take(c *walletcore.Ctx, zc *zkp.Context, proposal *Proposal) (*TakeResult, error) {
	if err := proposal.Validate(); err != nil {
		return nil, err
	}
	tx, err := proposal.Transaction()
	if err != nil {
		return nil, err
	}
	if len(tx.Inputs) != 1 || len(tx.Outputs) != 1 {
		return nil, fmt.Errorf("%w: v0 proposal transaction must carry exactly one input and one output before completion", walleterr.ErrMalformed)
	}
	if err := verifyMakerSigHashType(tx); err != nil {
		return nil, err
	}

	makerOutputSecrets := proposal.Outputs[0]
	if err := VerifyOutputCommitment(zc, tx, makerOutputSecrets); err != nil {
		return nil, err
	}
	makerInputSecrets := proposal.GetInput()

	policy, err := c.Config.PolicyAssetID()
	if err != nil {
		return nil, err
	}
	policyID := coinselect.AssetID(policy)
	makerInputAsset := coinselect.AssetID(makerInputSecrets.Asset)
	makerOutputAsset := coinselect.AssetID(makerOutputSecrets.Asset)

	receiveAddr, err := c.GetAddress()
	if err != nil {
		return nil, err
	}
	var receiveNonce [33]byte
	copy(receiveNonce[:], receiveAddr.BlindingPubKey.SerializeCompressed())
	tx.AddExplicitOutput(makerInputSecrets.Asset, makerInputSecrets.Amount, receiveAddr.ScriptPubKey, receiveNonce)
	otherOutputs := map[coinselect.AssetID]uint64{makerInputAsset: makerInputSecrets.Amount}

	utxos, err := c.UTXOs()
	if err != nil {
		return nil, err
	}
	makerOutpoint := tx.Inputs[0].PreviousOutPoint
	pool := make([]coinselect.UTXO, 0, len(utxos))
	for _, u := range utxos {
		if u.Outpoint == makerOutpoint {
			// Self-trade exclusion: the maker's input already belongs to
			// this wallet, so it must not also be offered as a taker input.
			continue
		}
		pool = append(pool, coinselect.UTXO{Asset: coinselect.AssetID(u.Asset), Value: u.Value, ScriptPubKey: u.ScriptPubKey})
	}

	selection, err := coinselect.LiquidexSelect(pool, makerInputAsset, makerInputSecrets.Amount, makerOutputAsset, makerOutputSecrets.Amount, otherOutputs, policyID,
		func(nTakerInputsSelected int) uint64 {
			return coinselect.EstimatedFee(nTakerInputsSelected+1, len(tx.Outputs), 0, liquidexFeeRate)
		})
	if err != nil {
		return nil, err
	}
	for _, u := range selection.Selected {
		op := findOutpointIn(utxos, u)
		tx.AddInput(op, [33]byte{}, [33]byte{})
	}

	pendingChanges := coinselect.LiquidexEstimatedChanges(makerInputAsset, selection.InputValues)
	estFee := coinselect.EstimatedFee(len(tx.Inputs), len(tx.Outputs), pendingChanges, liquidexFeeRate)
	changesMap := coinselect.LiquidexChanges(makerInputAsset, makerInputSecrets.Amount, makerOutputAsset, makerOutputSecrets.Amount, selection.InputValues, otherOutputs, policyID, estFee)

	internalIdx, err := c.PeekInternalIndex()
	if err != nil {
		return nil, err
	}
	k := uint32(0)
	for asset, value := range changesMap {
		addr, err := wallet.DeriveAddress(c.Account.Xpub, wallet.DerivationPath{Chain: 1, Index: internalIdx + k + 1}, c.Master, c.Net)
		if err != nil {
			return nil, err
		}
		var nonce [33]byte
		copy(nonce[:], addr.BlindingPubKey.SerializeCompressed())
		tx.AddExplicitOutput([32]byte(asset), value, addr.ScriptPubKey, nonce)
		k++
	}
	if k > 0 {
		if _, err := c.BumpInternalIndexBy(k); err != nil {
			return nil, err
		}
	}

	finalOutputs := make(map[coinselect.AssetID]uint64, len(otherOutputs)+len(changesMap))
	for asset, value := range otherOutputs {
		finalOutputs[asset] += value
	}
	for asset, value := range changesMap {
		finalOutputs[coinselect.AssetID(asset)] += value
	}
	realFee := coinselect.LiquidexFee(makerInputAsset, makerInputSecrets.Amount, makerOutputAsset, makerOutputSecrets.Amount, selection.InputValues, finalOutputs, policyID)
	tx.AddFeeOutput(policy, realFee)

	inputSecrets := []walletcore.InputSecret{{
		Asset:        zkp.AssetTag(makerInputSecrets.Asset),
		AssetBlinder: makerInputSecrets.AssetBlinder,
		ValueBlinder: makerInputSecrets.AmountBlinder,
		Value:        makerInputSecrets.Amount,
	}}
	for _, u := range selection.Selected {
		secret, err := c.InputSecretFor(findOutpointIn(utxos, u))
		if err != nil {
			return nil, err
		}
		inputSecrets = append(inputSecrets, secret)
	}

	if err := blindTakerOutputs(c, zc, tx, makerOutputSecrets, inputSecrets); err != nil {
		return nil, err
	}

	for i := 1; i < len(tx.Inputs); i++ {
		u := selection.Selected[i-1]
		if err := c.SignInput(tx, i, u.ScriptPubKey, inputSecrets[i].ValueCommitment, txmodel.SigHashAll); err != nil {
			return nil, err
		}
	}

	return &TakeResult{Tx: tx, Fee: realFee, Selected: selection.Selected}, nil
}

// verifyMakerSigHashType rejects a proposal whose input 0 was not signed
// with SIGHASH_SINGLE|ANYONECANPAY: any other type either fails to commit
// the maker's output to its position (breaking the swap's atomicity) or
// grants the maker more binding power than the protocol intends.
func verifyMakerSigHashType(tx *txmodel.Transaction) error {
	wit := tx.Inputs[0].Witness
	if len(wit) == 0 || len(wit[0]) == 0 {
		return fmt.Errorf("%w: proposal input 0 carries no signature", walleterr.ErrMalformed)
	}
	sig := wit[0]
	got := txmodel.SigHashType(sig[len(sig)-1])
	if got != txmodel.SigHashSingleAnyoneCanPay {
		return fmt.Errorf("%w: maker input must be signed with SIGHASH_SINGLE|ANYONECANPAY, got %#x", walleterr.ErrMalformed, got)
	}
	return nil
}

func findOutpointIn(utxos []walletcore.Unblinded, u coinselect.UTXO) txmodel.OutPoint {
	for _, candidate := range utxos {
		if candidate.Value == u.Value && candidate.Asset == [32]byte(u.Asset) && string(candidate.ScriptPubKey) == string(u.ScriptPubKey) {
			return candidate.Outpoint
		}
	}
	return txmodel.OutPoint{}
}

// blindTakerOutputs blinds every output but index 0 (already blinded by
// the maker): asset and value blinders for all but the last non-fee
// output are deterministically derived from the master blinding key and
// BIP-143's prevouts hash at that output's own index, matching the
// standard builder's ECDH/range-proof/surjection-proof sequence exactly
// except for where the blinders themselves come from; the last non-fee
// output's value blinder is the balancing blinder so input and output
// commitments sum to zero.
func blindTakerOutputs(c *walletcore.Ctx, zc *zkp.Context, tx *txmodel.Transaction, makerOutputSecrets TxOutSecrets, inputSecrets []walletcore.InputSecret) error {
	hashPrevouts := tx.HashPrevouts()

	var nonMakerNonFee []int
	for i := 1; i < len(tx.Outputs); i++ {
		if !tx.Outputs[i].IsFee() {
			nonMakerNonFee = append(nonMakerNonFee, i)
		}
	}
	if len(nonMakerNonFee) == 0 {
		return nil
	}

	inputAssetBlinders := make([][32]byte, len(inputSecrets))
	inputTags := make([]zkp.AssetTag, len(inputSecrets))
	inputBalanceSecrets := make([]zkp.BlindingSecret, len(inputSecrets))
	for i, s := range inputSecrets {
		inputAssetBlinders[i] = s.AssetBlinder
		inputTags[i] = s.Asset
		inputBalanceSecrets[i] = zkp.BlindingSecret{Value: s.Value, AssetBlinder: s.AssetBlinder, ValueBlinder: s.ValueBlinder}
	}

	outputValues := make(map[int]uint64, len(nonMakerNonFee))
	for _, idx := range nonMakerNonFee {
		v, _ := tx.Outputs[idx].ExplicitValue()
		outputValues[idx] = v
	}

	otherOutputBalanceSecrets := []zkp.BlindingSecret{{
		Value:        makerOutputSecrets.Amount,
		AssetBlinder: makerOutputSecrets.AssetBlinder,
		ValueBlinder: makerOutputSecrets.AmountBlinder,
	}}
	assetBlinders := make(map[int][32]byte, len(nonMakerNonFee))
	valueBlinders := make(map[int][32]byte, len(nonMakerNonFee))
	for _, idx := range nonMakerNonFee[:len(nonMakerNonFee)-1] {
		assetBlinders[idx] = DeriveBlinder(c.Master, [32]byte(hashPrevouts), uint32(idx), true)
		valueBlinders[idx] = DeriveBlinder(c.Master, [32]byte(hashPrevouts), uint32(idx), false)
		otherOutputBalanceSecrets = append(otherOutputBalanceSecrets, zkp.BlindingSecret{
			Value:        outputValues[idx],
			AssetBlinder: assetBlinders[idx],
			ValueBlinder: valueBlinders[idx],
		})
	}
	lastIdx := nonMakerNonFee[len(nonMakerNonFee)-1]
	assetBlinders[lastIdx] = DeriveBlinder(c.Master, [32]byte(hashPrevouts), uint32(lastIdx), true)
	valueBlinders[lastIdx] = zkp.LastBlindingFactor(inputBalanceSecrets, otherOutputBalanceSecrets, outputValues[lastIdx], assetBlinders[lastIdx])

	for _, idx := range nonMakerNonFee {
		out := tx.Outputs[idx]
		assetTag := zkp.AssetTag(out.AssetTag())
		gen, err := zc.GenerateBlindedGenerator(assetTag, assetBlinders[idx])
		if err != nil {
			return err
		}
		value := outputValues[idx]
		commit, err := zc.Commit(valueBlinders[idx], value, gen)
		if err != nil {
			return err
		}

		recipientPub, err := btcec.ParsePubKey(out.Nonce[:])
		if err != nil {
			return fmt.Errorf("%w: invalid recipient blinding pubkey in nonce field: %v", walleterr.ErrCrypto, err)
		}
		ephemeral, err := btcec.NewPrivateKey()
		if err != nil {
			return fmt.Errorf("%w: failed to generate ephemeral key: %v", walleterr.ErrCrypto, err)
		}
		sharedSecret, err := zkp.ECDHSharedSecret(ephemeral, recipientPub)
		if err != nil {
			return err
		}

		message := zkp.RangeProofMessage{AssetID: assetTag, AssetBlinder: assetBlinders[idx]}
		minValue := uint64(1)
		params := zkp.RangeProofParams{Exponent: c.Config.CTExponentOrDefault(), MinBits: c.Config.CTBitsOrDefault()}
		proof, err := zc.RangeProofSign(zkp.RangeProofSignOpt{
			Commitment:     commit,
			BlindingFactor: valueBlinders[idx],
			Nonce:          sharedSecret,
			Value:          value,
			MinValue:       minValue,
			Message:        message.Bytes(),
			ExtraCommit:    out.ScriptPubKey,
			Generator:      gen,
			Params:         params,
		})
		if err != nil {
			return err
		}

		inputGens := make([]zkp.Generator, len(inputSecrets))
		for j, s := range inputSecrets {
			g, err := zc.GenerateBlindedGenerator(s.Asset, s.AssetBlinder)
			if err != nil {
				return err
			}
			inputGens[j] = g
		}
		var seed [32]byte
		if _, err := rand.Read(seed[:]); err != nil {
			return fmt.Errorf("%w: failed to sample surjection seed: %v", walleterr.ErrCrypto, err)
		}
		surjProof, err := zc.SurjectionProofGenerate(inputTags, assetTag, inputGens, gen, inputAssetBlinders, assetBlinders[idx], seed)
		if err != nil {
			return err
		}

		genBytes := gen.Bytes()
		commitBytes := commit.Bytes()
		out.SetBlindedAsset(genBytes)
		out.SetBlindedValue(commitBytes)
		out.RangeProof = proof
		out.SurjectionProof = surjProof.Bytes()
		copy(out.Nonce[:], ephemeral.PubKey().SerializeCompressed())
	}
	return nil
}
