package wallet

import (
	"bytes"
	"testing"

	"github.com/dan/liquid-wallet-core/network"
)

func devConfig() network.Config {
	policy := network.LiquidPolicyAsset
	return network.Config{Development: true, Liquid: true, PolicyAsset: &policy}
}

func mainConfig() network.Config {
	return network.Config{Mainnet: true, Liquid: true}
}

func TestDeriveAccountKeyCoinType(t *testing.T) {
	tests := []struct {
		name string
		cfg  network.Config
	}{
		{"regtest", devConfig()},
		{"mainnet", mainConfig()},
	}

	seed, err := SeedFromMnemonic("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct, err := DeriveAccountKeyFromSeed(seed, tt.cfg)
			if err != nil {
				t.Fatalf("DeriveAccountKeyFromSeed() error = %v", err)
			}
			if acct.Xpub == nil || acct.Xprv == nil {
				t.Fatal("expected both xprv and xpub to be derived")
			}
		})
	}
}

func TestSeedFromMnemonicRejectsInvalid(t *testing.T) {
	if _, err := SeedFromMnemonic("not a valid mnemonic at all"); err == nil {
		t.Fatal("expected error for invalid mnemonic")
	}
}

func TestMasterBlindingKeyDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	k1 := MasterBlindingKeyFromSeed(seed)
	k2 := MasterBlindingKeyFromSeed(seed)
	if !bytes.Equal(k1[:], k2[:]) {
		t.Fatal("MasterBlindingKeyFromSeed() should be deterministic for the same seed")
	}

	other := make([]byte, 32)
	other[0] = 1
	k3 := MasterBlindingKeyFromSeed(other)
	if bytes.Equal(k1[:], k3[:]) {
		t.Fatal("different seeds should not produce the same master blinding key")
	}
}

func TestDeriveBlindingKeyPerScript(t *testing.T) {
	seed := make([]byte, 32)
	master := MasterBlindingKeyFromSeed(seed)

	k1, err := master.DeriveBlindingKey([]byte{0x51})
	if err != nil {
		t.Fatalf("DeriveBlindingKey() error = %v", err)
	}
	k2, err := master.DeriveBlindingKey([]byte{0x52})
	if err != nil {
		t.Fatalf("DeriveBlindingKey() error = %v", err)
	}
	if k1.Key.Equals(&k2.Key) {
		t.Fatal("distinct scripts should derive distinct blinding keys")
	}

	k1again, err := master.DeriveBlindingKey([]byte{0x51})
	if err != nil {
		t.Fatalf("DeriveBlindingKey() error = %v", err)
	}
	if !k1.Key.Equals(&k1again.Key) {
		t.Fatal("DeriveBlindingKey() should be deterministic for the same script")
	}
}

func TestDeriveChildPubExternalInternalDiffer(t *testing.T) {
	seed, err := SeedFromMnemonic("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error = %v", err)
	}
	acct, err := DeriveAccountKeyFromSeed(seed, devConfig())
	if err != nil {
		t.Fatalf("DeriveAccountKeyFromSeed() error = %v", err)
	}

	external, err := DeriveChildPub(acct.Xpub, DerivationPath{Chain: 0, Index: 0})
	if err != nil {
		t.Fatalf("DeriveChildPub(external) error = %v", err)
	}
	internal, err := DeriveChildPub(acct.Xpub, DerivationPath{Chain: 1, Index: 0})
	if err != nil {
		t.Fatalf("DeriveChildPub(internal) error = %v", err)
	}

	extPub, _ := external.ECPubKey()
	intPub, _ := internal.ECPubKey()
	if extPub.IsEqual(intPub) {
		t.Fatal("external and internal chain index 0 should derive distinct keys")
	}
}
