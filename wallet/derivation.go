// Package wallet derives the master key material and per-address keys for
// the nested-segwit confidential wallet: a BIP-39 mnemonic yields both a
// BIP-32 account extended key (m/49'/coin'/0') and an independent SLIP-77
// master blinding key.
package wallet

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/dan/liquid-wallet-core/network"
	"github.com/dan/liquid-wallet-core/walleterr"
)

// MasterBlindingKey is the SLIP-77 master blinding key: a 32-byte key,
// derived from the seed with HMAC-SHA256, from which every script's
// blinding key is independently derived.
type MasterBlindingKey [32]byte

// slip77Seed is the fixed SLIP-77 HMAC key, "Symmetric key seed".
var slip77Seed = []byte("Symmetric key seed")

// SeedFromMnemonic validates an English BIP-39 mnemonic and derives its
// seed via PBKDF2 with an empty passphrase.
func SeedFromMnemonic(mnemonic string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("%w: invalid mnemonic", walleterr.ErrGeneric)
	}
	return bip39.NewSeed(mnemonic, ""), nil
}

// MasterBlindingKeyFromSeed derives the SLIP-77 master blinding key
// independently from the raw BIP-39 seed (not from the BIP-32 master key).
func MasterBlindingKeyFromSeed(seed []byte) MasterBlindingKey {
	mac := hmac.New(sha256.New, slip77Seed)
	mac.Write(seed)
	// SLIP-77 specifies HMAC-SHA512 truncated is not used; the spec's
	// derive_blinding_key operates over HMAC-SHA256(script, master_key),
	// so the master key itself only needs to be a 32-byte HMAC key. We
	// derive it with HMAC-SHA256 over the seed for a fixed-size result.
	var key MasterBlindingKey
	copy(key[:], mac.Sum(nil))
	return key
}

// DeriveBlindingKey derives the per-script blinding private scalar:
// HMAC-SHA256 over the script, keyed by the master blinding key.
func (k MasterBlindingKey) DeriveBlindingKey(script []byte) (*btcec.PrivateKey, error) {
	mac := hmac.New(sha256.New, k[:])
	mac.Write(script)
	sum := mac.Sum(nil)
	priv, _ := btcec.PrivKeyFromBytes(sum)
	if priv == nil {
		return nil, fmt.Errorf("%w: could not derive blinding key", walleterr.ErrCrypto)
	}
	return priv, nil
}

// AccountKey is the derived m/49'/coin'/0' account extended key pair.
type AccountKey struct {
	Xprv *hdkeychain.ExtendedKey
	Xpub *hdkeychain.ExtendedKey
}

// masterParams is always Testnet, regardless of the wallet's actual
// network: the original carries this quirk to preserve xprv/xpub export
// compatibility with its source implementation. Do not "fix" this.
var masterParams = &chaincfg.TestNet3Params

// DeriveAccountKey derives the account extended key pair for a mnemonic and
// network, following m/49'/coin'/0' (coin=1776 Mainnet, 1 Regtest).
func DeriveAccountKey(mnemonic string, cfg network.Config) (*AccountKey, error) {
	seed, err := SeedFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	return DeriveAccountKeyFromSeed(seed, cfg)
}

// DeriveAccountKeyFromSeed is DeriveAccountKey given an already-derived seed.
func DeriveAccountKeyFromSeed(seed []byte, cfg network.Config) (*AccountKey, error) {
	coinType, err := cfg.CoinType()
	if err != nil {
		return nil, err
	}

	master, err := hdkeychain.NewMaster(seed, masterParams)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create master key: %v", walleterr.ErrCrypto, err)
	}

	purposeKey, err := master.Derive(hdkeychain.HardenedKeyStart + network.BIP49Purpose)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to derive purpose key: %v", walleterr.ErrCrypto, err)
	}
	coinKey, err := purposeKey.Derive(hdkeychain.HardenedKeyStart + coinType)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to derive coin type key: %v", walleterr.ErrCrypto, err)
	}
	accountXprv, err := coinKey.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to derive account key: %v", walleterr.ErrCrypto, err)
	}
	accountXpub, err := accountXprv.Neuter()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to neuter account key: %v", walleterr.ErrCrypto, err)
	}

	return &AccountKey{Xprv: accountXprv, Xpub: accountXpub}, nil
}

// DerivationPath is the two-element chain/index suffix below the account
// level: chain=0 external (receive), chain=1 internal (change).
type DerivationPath struct {
	Chain uint32
	Index uint32
}

// DeriveChildPub derives the public child key at [chain, index] below an
// account xpub using non-hardened public derivation.
func DeriveChildPub(xpub *hdkeychain.ExtendedKey, path DerivationPath) (*hdkeychain.ExtendedKey, error) {
	chainKey, err := xpub.Derive(path.Chain)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to derive chain key: %v", walleterr.ErrCrypto, err)
	}
	childKey, err := chainKey.Derive(path.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to derive address key: %v", walleterr.ErrCrypto, err)
	}
	return childKey, nil
}

// DeriveChildPriv derives the private child key at [chain, index] below an
// account xprv, for signing.
func DeriveChildPriv(xprv *hdkeychain.ExtendedKey, path DerivationPath) (*btcec.PrivateKey, error) {
	chainKey, err := xprv.Derive(path.Chain)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to derive chain key: %v", walleterr.ErrCrypto, err)
	}
	childKey, err := chainKey.Derive(path.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to derive address key: %v", walleterr.ErrCrypto, err)
	}
	return childKey.ECPrivKey()
}

// PathString formats the full derivation path the way the original logs it.
func PathString(coinType uint32, chain, index uint32) string {
	return fmt.Sprintf("m/%d'/%d'/0'/%d/%d", network.BIP49Purpose, coinType, chain, index)
}
