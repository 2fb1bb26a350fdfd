package walletcore

import (
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/dan/liquid-wallet-core/network"
	"github.com/dan/liquid-wallet-core/txmodel"
	"github.com/dan/liquid-wallet-core/walleterr"
	"github.com/dan/liquid-wallet-core/zkp"
)

// BlindTransaction blinds every non-fee output of tx (spec §4.6): samples
// asset and value blinders, derives the ECDH shared secret between a
// fresh ephemeral key and the recipient's blinding pubkey (already
// carried in the output's nonce field), attaches a range proof and
// surjection proof, and overwrites the nonce with the ephemeral pubkey.
// The last non-fee output's value blinder is the balancing blinder so
// that Σ_in(value·abf + vbf) = Σ_out(value·abf + vbf) (see
// zkp.LastBlindingFactor).
func (c *Ctx) BlindTransaction(zc *zkp.Context, tx *txmodel.Transaction, inputSecrets []InputSecret) error {
	nonFee := nonFeeOutputs(tx)
	if len(nonFee) == 0 {
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

	outputValues := make([]uint64, len(nonFee))
	for i, out := range nonFee {
		v, _ := out.ExplicitValue()
		outputValues[i] = v
	}

	valueBlinders := make([][32]byte, len(nonFee))
	assetBlinders := make([][32]byte, len(nonFee))
	for i := 0; i < len(nonFee)-1; i++ {
		if _, err := cryptoRandRead(assetBlinders[i][:]); err != nil {
			return fmt.Errorf("%w: failed to sample asset blinder: %v", walleterr.ErrCrypto, err)
		}
		if _, err := cryptoRandRead(valueBlinders[i][:]); err != nil {
			return fmt.Errorf("%w: failed to sample value blinder: %v", walleterr.ErrCrypto, err)
		}
	}

	last := len(nonFee) - 1
	if _, err := cryptoRandRead(assetBlinders[last][:]); err != nil {
		return fmt.Errorf("%w: failed to sample asset blinder: %v", walleterr.ErrCrypto, err)
	}
	otherOutputBalanceSecrets := make([]zkp.BlindingSecret, last)
	for i := 0; i < last; i++ {
		otherOutputBalanceSecrets[i] = zkp.BlindingSecret{Value: outputValues[i], AssetBlinder: assetBlinders[i], ValueBlinder: valueBlinders[i]}
	}
	valueBlinders[last] = zkp.LastBlindingFactor(inputBalanceSecrets, otherOutputBalanceSecrets, outputValues[last], assetBlinders[last])

	for i, out := range nonFee {
		assetTag := zkp.AssetTag(out.AssetTag())
		gen, err := zc.GenerateBlindedGenerator(assetTag, assetBlinders[i])
		if err != nil {
			return err
		}
		value := outputValues[i]
		commit, err := zc.Commit(valueBlinders[i], value, gen)
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

		message := zkp.RangeProofMessage{AssetID: assetTag, AssetBlinder: assetBlinders[i]}
		minValue := uint64(1)
		if isProvablyUnspendable(out.ScriptPubKey) {
			minValue = 0
		}
		params := zkp.RangeProofParams{Exponent: c.Config.CTExponentOrDefault(), MinBits: c.Config.CTBitsOrDefault()}
		proof, err := zc.RangeProofSign(zkp.RangeProofSignOpt{
			Commitment:     commit,
			BlindingFactor: valueBlinders[i],
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
		if _, err := cryptoRandRead(seed[:]); err != nil {
			return fmt.Errorf("%w: failed to sample surjection seed: %v", walleterr.ErrCrypto, err)
		}
		surjProof, err := zc.SurjectionProofGenerate(inputTags, assetTag, inputGens, gen, inputAssetBlinders, assetBlinders[i], seed)
		if err != nil {
			return err
		}

		genBytes := gen.Bytes()
		out.SetBlindedAsset(genBytes)
		commitBytes := commit.Bytes()
		out.SetBlindedValue(commitBytes)
		out.RangeProof = proof
		out.SurjectionProof = surjProof.Bytes()
		copy(out.Nonce[:], ephemeral.PubKey().SerializeCompressed())
	}
	return nil
}

// InputSecret is the unblinded secret material for one input being spent,
// needed to balance the transaction's blinders and surjection-prove the
// output assets.
type InputSecret struct {
	Asset           zkp.AssetTag
	AssetBlinder    [32]byte
	ValueBlinder    [32]byte
	Value           uint64
	ValueCommitment [33]byte
}

func nonFeeOutputs(tx *txmodel.Transaction) []*txmodel.TxOut {
	var out []*txmodel.TxOut
	for _, o := range tx.Outputs {
		if !o.IsFee() {
			out = append(out, o)
		}
	}
	return out
}

// isProvablyUnspendable reports whether a scriptPubKey can never be
// spent (an OP_RETURN data carrier), in which case a range proof may
// bound the value at min=0 rather than min=1.
func isProvablyUnspendable(script []byte) bool {
	return len(script) > 0 && script[0] == 0x6a // OP_RETURN
}

func cryptoRandRead(b []byte) (int, error) {
	return rand.Read(b)
}
