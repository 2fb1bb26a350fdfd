// Package coinselect implements per-asset coin selection, change planning,
// and fee estimation for confidential transactions: since every asset in a
// multi-asset UTXO set must independently balance, selection operates over
// a map of asset -> required/available value rather than a single satoshi
// total.
package coinselect

import (
	"fmt"
	"sort"

	"github.com/dan/liquid-wallet-core/walleterr"
)

// AssetID is the 32-byte (hex-decoded) asset identifier used as a map key
// throughout selection.
type AssetID [32]byte

// Fee-estimation constants, generalized from the teacher's plain-segwit
// vsize model (P2WPKHInputSize/P2WPKHOutputSize/TxOverhead) to account for
// the much larger witness a confidential output carries: a Borromean range
// proof plus surjection proof runs several thousand bytes, dominating the
// output's weight.
const (
	TxOverhead           = 10
	P2SHP2WPKHInputVSize = 91   // outpoint + sequence + scriptSig push + witness, weight-adjusted
	ConfidentialOutVSize = 270  // asset/value/nonce fields + scriptPubKey, amortized proof weight
	ExplicitOutVSize     = 46   // the trailing fee output: explicit asset+value, empty script
	DustValue            = 546 // matches network.DustValue
)

// UTXO is one spendable, already-unblinded confidential output available
// to the selector.
type UTXO struct {
	Asset        AssetID
	Value        uint64
	ScriptPubKey []byte
}

// EstimatedFee approximates ceil(vsize(tx) * feeRate) for a transaction
// with nInputs inputs, nConfidentialOutputs confidential outputs (not
// counting the trailing explicit fee output), and pendingChanges additional
// confidential change outputs not yet appended. feeRate is satoshi/byte.
func EstimatedFee(nInputs, nConfidentialOutputs, pendingChanges int, feeRate float64) uint64 {
	vsize := TxOverhead +
		nInputs*P2SHP2WPKHInputVSize +
		(nConfidentialOutputs+pendingChanges)*ConfidentialOutVSize +
		ExplicitOutVSize
	fee := float64(vsize) * feeRate
	return uint64(fee) + boolToUint64(fee > float64(uint64(fee)))
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Needs aggregates the required outputs per asset (already including the
// estimated fee charged to the policy asset), subtracts the aggregated
// input values per asset, and returns the positive residuals. The policy
// asset is always returned last so non-policy requirements are satisfied
// before fee balancing is evaluated.
func Needs(outputs map[AssetID]uint64, inputs map[AssetID]uint64, policyAsset AssetID) []AssetNeed {
	var result []AssetNeed
	for asset, outValue := range outputs {
		inValue := inputs[asset]
		if outValue > inValue {
			result = append(result, AssetNeed{Asset: asset, Value: outValue - inValue})
		}
	}
	sortNeedsPolicyLast(result, policyAsset)
	return result
}

// AssetNeed is one unmet per-asset requirement returned by Needs.
type AssetNeed struct {
	Asset AssetID
	Value uint64
}

func sortNeedsPolicyLast(needs []AssetNeed, policyAsset AssetID) {
	sort.SliceStable(needs, func(i, j int) bool {
		iPolicy := needs[i].Asset == policyAsset
		jPolicy := needs[j].Asset == policyAsset
		if iPolicy != jPolicy {
			return !iPolicy
		}
		return less32(needs[i].Asset, needs[j].Asset)
	})
}

func less32(a, b AssetID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// SelectionResult is the accumulated outcome of the selection loop.
type SelectionResult struct {
	Selected     []UTXO
	InputValues  map[AssetID]uint64
	UsedScripts  map[string]bool
}

// Select runs the per-asset coin selection loop: repeatedly compute needs
// from the current input total, pop the highest-priority unmet asset, and
// add the largest available UTXO of that asset not already spent by a
// script_pubkey already used in this transaction (the same-script guard
// prevents trivially linking two inputs to the same address). Fails with
// ErrInsufficientFunds if an asset's need cannot be met from the pool.
func Select(pool []UTXO, outputs map[AssetID]uint64, policyAsset AssetID, estimateFee func(nInputsSelected int) uint64) (*SelectionResult, error) {
	result := &SelectionResult{
		InputValues: make(map[AssetID]uint64),
		UsedScripts: make(map[string]bool),
	}
	available := make([]UTXO, len(pool))
	copy(available, pool)

	for {
		withFee := make(map[AssetID]uint64, len(outputs))
		for k, v := range outputs {
			withFee[k] = v
		}
		withFee[policyAsset] += estimateFee(len(result.Selected))

		needs := Needs(withFee, result.InputValues, policyAsset)
		if len(needs) == 0 {
			return result, nil
		}

		need := needs[0]
		candidates := filterByAsset(available, need.Asset, result.UsedScripts)
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: no remaining UTXO for asset %x", walleterr.ErrInsufficientFunds, need.Asset)
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Value > candidates[j].Value })
		chosen := candidates[0]

		result.Selected = append(result.Selected, chosen)
		result.InputValues[chosen.Asset] += chosen.Value
		result.UsedScripts[string(chosen.ScriptPubKey)] = true
		available = removeUTXO(available, chosen)
	}
}

func filterByAsset(pool []UTXO, asset AssetID, usedScripts map[string]bool) []UTXO {
	var out []UTXO
	for _, u := range pool {
		if u.Asset == asset && !usedScripts[string(u.ScriptPubKey)] {
			out = append(out, u)
		}
	}
	return out
}

func removeUTXO(pool []UTXO, target UTXO) []UTXO {
	out := make([]UTXO, 0, len(pool))
	removed := false
	for _, u := range pool {
		if !removed && u.Asset == target.Asset && u.Value == target.Value && string(u.ScriptPubKey) == string(target.ScriptPubKey) {
			removed = true
			continue
		}
		out = append(out, u)
	}
	return out
}

// Changes computes, for every asset with a positive residual between
// selected inputs and requested outputs, the change amount to return to
// the wallet. The policy asset additionally absorbs the estimated fee and
// only produces change above DustValue; every other asset emits change for
// any positive residual.
func Changes(inputValues map[AssetID]uint64, outputValues map[AssetID]uint64, policyAsset AssetID, estimatedFee uint64) map[AssetID]uint64 {
	result := make(map[AssetID]uint64)
	for asset, inValue := range inputValues {
		outValue := outputValues[asset]
		if inValue < outValue {
			continue
		}
		residual := inValue - outValue
		if asset == policyAsset {
			if residual < estimatedFee {
				continue
			}
			residual -= estimatedFee
			if residual > DustValue {
				result[asset] = residual
			}
			continue
		}
		if residual > 0 {
			result[asset] = residual
		}
	}
	return result
}

// ExactFee computes the final, exact fee once every input and output
// (including changes, excluding the not-yet-appended fee output) is
// finalized: Σ_in(policy) − Σ_out_non_fee(policy).
func ExactFee(inputValues map[AssetID]uint64, outputValues map[AssetID]uint64, policyAsset AssetID) uint64 {
	return inputValues[policyAsset] - outputValues[policyAsset]
}
