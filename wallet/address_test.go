package wallet

import (
	"testing"

	"github.com/dan/liquid-wallet-core/network"
)

func testAddress(t *testing.T, net network.Net) *Address {
	t.Helper()
	seed, err := SeedFromMnemonic("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error = %v", err)
	}
	cfg := devConfig()
	if net == network.Liquid {
		cfg = mainConfig()
	}
	acct, err := DeriveAccountKeyFromSeed(seed, cfg)
	if err != nil {
		t.Fatalf("DeriveAccountKeyFromSeed() error = %v", err)
	}
	master := MasterBlindingKeyFromSeed(seed)
	addr, err := DeriveAddress(acct.Xpub, DerivationPath{Chain: 0, Index: 0}, master, net)
	if err != nil {
		t.Fatalf("DeriveAddress() error = %v", err)
	}
	return addr
}

func TestDeriveAddressRoundTripsThroughEncoding(t *testing.T) {
	for _, net := range []network.Net{network.Liquid, network.ElementsRegtest} {
		addr := testAddress(t, net)

		encoded, err := addr.Encode()
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		scriptHash, blindingPub, err := DecodeAddress(encoded, net)
		if err != nil {
			t.Fatalf("DecodeAddress() error = %v", err)
		}
		wantHash := addr.ScriptPubKey[2:22]
		if string(scriptHash) != string(wantHash) {
			t.Errorf("DecodeAddress() script hash = %x, want %x", scriptHash, wantHash)
		}
		if !blindingPub.IsEqual(addr.BlindingPubKey) {
			t.Errorf("DecodeAddress() blinding pubkey mismatch")
		}
	}
}

func TestDecodeAddressRejectsWrongNetwork(t *testing.T) {
	addr := testAddress(t, network.Liquid)
	encoded, err := addr.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, _, err := DecodeAddress(encoded, network.ElementsRegtest); err == nil {
		t.Fatal("expected error decoding a mainnet address against regtest params")
	}
}

func TestDeriveAddressDistinctIndexes(t *testing.T) {
	seed, _ := SeedFromMnemonic("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	acct, err := DeriveAccountKeyFromSeed(seed, devConfig())
	if err != nil {
		t.Fatalf("DeriveAccountKeyFromSeed() error = %v", err)
	}
	master := MasterBlindingKeyFromSeed(seed)

	a0, err := DeriveAddress(acct.Xpub, DerivationPath{Chain: 0, Index: 0}, master, network.ElementsRegtest)
	if err != nil {
		t.Fatalf("DeriveAddress(0) error = %v", err)
	}
	a1, err := DeriveAddress(acct.Xpub, DerivationPath{Chain: 0, Index: 1}, master, network.ElementsRegtest)
	if err != nil {
		t.Fatalf("DeriveAddress(1) error = %v", err)
	}
	if string(a0.ScriptPubKey) == string(a1.ScriptPubKey) {
		t.Fatal("distinct indexes should derive distinct scripts")
	}
}
