package coinselect

import (
	"fmt"
	"sort"

	"github.com/dan/liquid-wallet-core/walleterr"
)

// LiquidexNeeds is Needs adapted for a LiquiDEX take: the transaction
// already carries the maker's contribution at input[0]/output[0], so
// those are folded into inputs/outputs before the same residual
// computation is applied.
func LiquidexNeeds(makerInputAsset AssetID, makerInputValue uint64, makerOutputAsset AssetID, makerOutputValue uint64, otherOutputs map[AssetID]uint64, otherInputs map[AssetID]uint64, policyAsset AssetID, estimatedFee uint64) []AssetNeed {
	outputs := cloneAdd(otherOutputs, makerOutputAsset, makerOutputValue)
	inputs := cloneAdd(otherInputs, makerInputAsset, makerInputValue)
	outputs[policyAsset] += estimatedFee
	return Needs(outputs, inputs, policyAsset)
}

// LiquidexEstimatedChanges returns the number of distinct input assets
// already present (maker input plus any taker inputs so far), used as the
// pendingChanges hint to EstimatedFee the same way the standard builder
// uses its own running change count.
func LiquidexEstimatedChanges(makerInputAsset AssetID, otherInputAssets map[AssetID]uint64) int {
	seen := map[AssetID]bool{makerInputAsset: true}
	for asset := range otherInputAssets {
		seen[asset] = true
	}
	return len(seen)
}

// LiquidexChanges is Changes adapted for a LiquiDEX take, folding the
// maker's single input/output into the aggregate before computing
// residuals per asset.
func LiquidexChanges(makerInputAsset AssetID, makerInputValue uint64, makerOutputAsset AssetID, makerOutputValue uint64, otherInputs map[AssetID]uint64, otherOutputs map[AssetID]uint64, policyAsset AssetID, estimatedFee uint64) map[AssetID]uint64 {
	inputs := cloneAdd(otherInputs, makerInputAsset, makerInputValue)
	outputs := cloneAdd(otherOutputs, makerOutputAsset, makerOutputValue)
	return Changes(inputs, outputs, policyAsset, estimatedFee)
}

// LiquidexFee computes the exact policy-asset fee for a fully-assembled
// LiquiDEX take, before the trailing fee output has been appended.
func LiquidexFee(makerInputAsset AssetID, makerInputValue uint64, makerOutputAsset AssetID, makerOutputValue uint64, otherInputs map[AssetID]uint64, otherOutputs map[AssetID]uint64, policyAsset AssetID) uint64 {
	inputs := cloneAdd(otherInputs, makerInputAsset, makerInputValue)
	outputs := cloneAdd(otherOutputs, makerOutputAsset, makerOutputValue)
	return ExactFee(inputs, outputs, policyAsset)
}

// LiquidexSelect is Select specialized for a taker completing a proposal:
// the maker's input/output are already fixed, so the residual computation
// runs through LiquidexNeeds instead of Needs, and the fee estimate counts
// the maker's input (+1) and output (+1) alongside whatever the taker adds.
func LiquidexSelect(pool []UTXO, makerInputAsset AssetID, makerInputValue uint64, makerOutputAsset AssetID, makerOutputValue uint64, otherOutputs map[AssetID]uint64, policyAsset AssetID, estimateFee func(nTakerInputsSelected int) uint64) (*SelectionResult, error) {
	result := &SelectionResult{
		InputValues: make(map[AssetID]uint64),
		UsedScripts: make(map[string]bool),
	}
	available := make([]UTXO, len(pool))
	copy(available, pool)

	for {
		fee := estimateFee(len(result.Selected))
		needs := LiquidexNeeds(makerInputAsset, makerInputValue, makerOutputAsset, makerOutputValue, otherOutputs, result.InputValues, policyAsset, fee)
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

func cloneAdd(m map[AssetID]uint64, asset AssetID, value uint64) map[AssetID]uint64 {
	out := make(map[AssetID]uint64, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[asset] += value
	return out
}
