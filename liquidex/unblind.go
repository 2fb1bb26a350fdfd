package liquidex

import (
	"github.com/dan/liquid-wallet-core/txmodel"
	"github.com/dan/liquid-wallet-core/wallet"
	"github.com/dan/liquid-wallet-core/walleterr"
	"github.com/dan/liquid-wallet-core/zkp"
)

// UnblindResult is what Unblind recovers for a maker's own output once the
// completed swap has been broadcast: the clear value, the asset it turned
// out to be, and the blinders needed to spend it later.
type UnblindResult struct {
	Asset        [32]byte
	Value        uint64
	AssetBlinder [32]byte
	ValueBlinder [32]byte
}

// Unblind implements receiving a completed LiquiDEX swap (spec §4.10): for
// a candidate output the maker itself produced, recompute the AES key and
// nonce for its script, decrypt the smuggled value from the nonce field,
// rederive the deterministic blinders from the same outpoint, and confirm
// the reconstructed value commitment matches what's on-chain. The caller
// supplies the set of assets the maker could plausibly have received
// (e.g. every asset it has ever requested); Unblind tries each until one
// reconstructs the observed asset generator.
func Unblind(zc *zkp.Context, master wallet.MasterBlindingKey, outpoint txmodel.OutPoint, out *txmodel.TxOut, candidateAssets [][32]byte) (*UnblindResult, error) {
	assetCommitment := out.AssetGeneratorBytes()
	valueCommitment := out.ValueCommitmentBytes()

	value, err := unblindNonce(master, outpoint, assetCommitment, valueCommitment, out.ScriptPubKey, out.Nonce)
	if err != nil {
		return nil, err
	}
	assetBlinder, valueBlinder := DeriveMakerBlinders(master, outpoint)

	for _, asset := range candidateAssets {
		gen, err := zc.GenerateBlindedGenerator(zkp.AssetTag(asset), assetBlinder)
		if err != nil {
			return nil, err
		}
		if gen.Bytes() != assetCommitment {
			continue
		}
		commit, err := zc.Commit(valueBlinder, value, gen)
		if err != nil {
			return nil, err
		}
		if commit.Bytes() != valueCommitment {
			return nil, walleterr.ErrCommitmentMismatch
		}
		return &UnblindResult{
			Asset:        asset,
			Value:        value,
			AssetBlinder: assetBlinder,
			ValueBlinder: valueBlinder,
		}, nil
	}
	return nil, walleterr.ErrCommitmentMismatch
}
