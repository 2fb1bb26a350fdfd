package liquidex

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ericlagergren/siv"

	"github.com/dan/liquid-wallet-core/txmodel"
	"github.com/dan/liquid-wallet-core/wallet"
	"github.com/dan/liquid-wallet-core/walleterr"
)

// aesKeyDomain and aesNonceDomain are the fixed domain-separation prefixes
// hashed together with the master blinding key to derive the AES-256-GCM-SIV
// key and nonce used to smuggle a maker's clear output value through the
// output's nonce field, where an ordinary recipient would instead find an
// ECDH-ready ephemeral public key.
var (
	aesKeyDomain   = []byte("liquidex_aes_key")
	aesNonceDomain = []byte("liquidex_aes_nonce")
)

func smuggleKey(master wallet.MasterBlindingKey, script []byte) [32]byte {
	h := sha256.New()
	h.Write(aesKeyDomain)
	h.Write(master[:])
	h.Write(script)
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

func smuggleNonce(master wallet.MasterBlindingKey, outpoint txmodel.OutPoint, assetCommitment, valueCommitment [33]byte, script []byte) [12]byte {
	h := sha256.New()
	h.Write(aesNonceDomain)
	h.Write(master[:])
	h.Write(outpoint.Serialize())
	h.Write(assetCommitment[:])
	h.Write(valueCommitment[:])
	h.Write(script)
	var nonce [12]byte
	copy(nonce[:], h.Sum(nil)[:12])
	return nonce
}

func newAEAD(key [32]byte) (*siv.GCMSIV, error) {
	aead, err := siv.NewGCMSIV(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build AES-256-GCM-SIV cipher: %v", walleterr.ErrCrypto, err)
	}
	return aead, nil
}

// blindNonce smuggles value through a 33-byte nonce commitment: the
// plaintext is the value (little-endian u64) followed by 8 random bytes,
// sealed under the deterministic key/nonce pair for this output, prefixed
// with 0x02 to mimic a compressed public key. Because a random 32-byte
// string isn't always a valid curve point, this resamples the random
// suffix until the sealed output parses as one (expected ~2 attempts). The
// prefix is always 0x02, never 0x03: unblindNonce rejects any other prefix
// and strips exactly that byte to recover the ciphertext.
func blindNonce(master wallet.MasterBlindingKey, outpoint txmodel.OutPoint, assetCommitment, valueCommitment [33]byte, script []byte, value uint64) ([33]byte, error) {
	key := smuggleKey(master, script)
	nonceBytes := smuggleNonce(master, outpoint, assetCommitment, valueCommitment, script)
	aead, err := newAEAD(key)
	if err != nil {
		return [33]byte{}, err
	}

	var plaintext [16]byte
	binary.LittleEndian.PutUint64(plaintext[:8], value)

	for {
		if _, err := rand.Read(plaintext[8:]); err != nil {
			return [33]byte{}, fmt.Errorf("%w: failed to sample smuggling randomness: %v", walleterr.ErrCrypto, err)
		}
		sealed := aead.Seal(nil, nonceBytes[:], plaintext[:], nil)

		var candidate [33]byte
		candidate[0] = 0x02
		copy(candidate[1:], sealed)
		if _, err := btcec.ParsePubKey(candidate[:]); err != nil {
			continue
		}
		return candidate, nil
	}
}

// unblindNonce reverses blindNonce: given the smuggled nonce commitment and
// the same deterministic key material, recovers the little-endian u64
// value from its leading 8 plaintext bytes.
func unblindNonce(master wallet.MasterBlindingKey, outpoint txmodel.OutPoint, assetCommitment, valueCommitment [33]byte, script []byte, smuggled [33]byte) (uint64, error) {
	if smuggled[0] != 0x02 {
		return 0, fmt.Errorf("%w: smuggled nonce must carry the 0x02 prefix", walleterr.ErrMalformed)
	}
	key := smuggleKey(master, script)
	nonceBytes := smuggleNonce(master, outpoint, assetCommitment, valueCommitment, script)
	aead, err := newAEAD(key)
	if err != nil {
		return 0, err
	}

	plaintext, err := aead.Open(nil, nonceBytes[:], smuggled[1:], nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to unblind smuggled value: %v", walleterr.ErrCrypto, err)
	}
	if len(plaintext) < 8 {
		return 0, fmt.Errorf("%w: smuggled plaintext too short", walleterr.ErrMalformed)
	}
	return binary.LittleEndian.Uint64(plaintext[:8]), nil
}
