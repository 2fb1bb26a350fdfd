package coinselect

import (
	"errors"
	"testing"

	"github.com/dan/liquid-wallet-core/walleterr"
)

func assetFrom(b byte) AssetID {
	var a AssetID
	a[0] = b
	return a
}

func TestNeedsEmptyWhenCovered(t *testing.T) {
	policy := assetFrom(1)
	outputs := map[AssetID]uint64{policy: 100}
	inputs := map[AssetID]uint64{policy: 1000}
	if needs := Needs(outputs, inputs, policy); len(needs) != 0 {
		t.Fatalf("Needs() = %v, want none", needs)
	}
}

func TestNeedsPolicyAssetLast(t *testing.T) {
	policy := assetFrom(1)
	other := assetFrom(2)
	outputs := map[AssetID]uint64{policy: 100, other: 50}
	needs := Needs(outputs, map[AssetID]uint64{}, policy)
	if len(needs) != 2 {
		t.Fatalf("Needs() len = %d, want 2", len(needs))
	}
	if needs[len(needs)-1].Asset != policy {
		t.Fatalf("Needs() policy asset should sort last, got %v", needs)
	}
}

func TestSelectSatisfiesSingleAssetNeed(t *testing.T) {
	policy := assetFrom(1)
	pool := []UTXO{
		{Asset: policy, Value: 1000, ScriptPubKey: []byte{0x01}},
		{Asset: policy, Value: 5000, ScriptPubKey: []byte{0x02}},
	}
	outputs := map[AssetID]uint64{policy: 100}

	result, err := Select(pool, outputs, policy, func(int) uint64 { return 0 })
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(result.Selected) != 1 {
		t.Fatalf("Select() selected %d utxos, want 1", len(result.Selected))
	}
	if result.Selected[0].Value != 5000 {
		t.Fatalf("Select() should pick the largest UTXO first, got %d", result.Selected[0].Value)
	}
}

func TestSelectFailsWhenInsufficientFunds(t *testing.T) {
	policy := assetFrom(1)
	pool := []UTXO{{Asset: policy, Value: 10, ScriptPubKey: []byte{0x01}}}
	outputs := map[AssetID]uint64{policy: 1000}

	_, err := Select(pool, outputs, policy, func(int) uint64 { return 0 })
	if err == nil {
		t.Fatal("expected insufficient funds error")
	}
	if !errors.Is(err, walleterr.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestSelectAvoidsDuplicateScriptPubKey(t *testing.T) {
	policy := assetFrom(1)
	shared := []byte{0xaa}
	pool := []UTXO{
		{Asset: policy, Value: 100, ScriptPubKey: shared},
		{Asset: policy, Value: 50, ScriptPubKey: shared},
	}
	outputs := map[AssetID]uint64{policy: 120}

	_, err := Select(pool, outputs, policy, func(int) uint64 { return 0 })
	if err == nil {
		t.Fatal("expected insufficient funds: second UTXO shares a scriptPubKey already used")
	}
}

func TestChangesAbsorbsPolicyDustIntoFee(t *testing.T) {
	policy := assetFrom(1)
	inputValues := map[AssetID]uint64{policy: 1000}
	outputValues := map[AssetID]uint64{policy: 400}

	changes := Changes(inputValues, outputValues, policy, 599)
	if _, ok := changes[policy]; ok {
		t.Fatal("residual of 1 unit after fee should be absorbed as dust, not emitted as change")
	}
}

func TestChangesEmitsNonPolicyForAnyPositiveResidual(t *testing.T) {
	policy := assetFrom(1)
	other := assetFrom(2)
	inputValues := map[AssetID]uint64{policy: 1000, other: 10}
	outputValues := map[AssetID]uint64{policy: 1000, other: 5}

	changes := Changes(inputValues, outputValues, policy, 0)
	if changes[other] != 5 {
		t.Fatalf("Changes()[other] = %d, want 5", changes[other])
	}
}

func TestExactFee(t *testing.T) {
	policy := assetFrom(1)
	in := map[AssetID]uint64{policy: 1000}
	out := map[AssetID]uint64{policy: 900}
	if fee := ExactFee(in, out, policy); fee != 100 {
		t.Fatalf("ExactFee() = %d, want 100", fee)
	}
}
