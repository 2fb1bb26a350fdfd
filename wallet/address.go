package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/txscript"

	"github.com/dan/liquid-wallet-core/network"
	"github.com/dan/liquid-wallet-core/walleterr"
)

// Address is a P2SH-wrapped P2WPKH confidential address: the witness
// program is nested under a P2SH scriptPubKey, and a secp256k1 blinding
// public key is embedded so senders can derive the ECDH shared secret.
type Address struct {
	ScriptPubKey  []byte
	RedeemScript  []byte
	BlindingPubKey *btcec.PublicKey
	Params        network.AddressParams
}

// P2PKHScript builds the classic P2PKH script_code a P2WPKH program signs
// against per BIP-143, shared by address derivation and the signer so the
// script layout is defined in exactly one place.
func P2PKHScript(pubKeyHash []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pubKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// P2SHWPKHRedeemScript is the witness program embedded inside the P2SH
// redeem script: OP_0 <hash160(pubkey)>.
func P2SHWPKHRedeemScript(pubKey *btcec.PublicKey) ([]byte, error) {
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(pubKeyHash).
		Script()
}

// p2shwpkhScriptPubKey wraps the redeem script in a standard P2SH output:
// OP_HASH160 <hash160(redeemScript)> OP_EQUAL.
func p2shwpkhScriptPubKey(redeemScript []byte) ([]byte, error) {
	scriptHash := btcutil.Hash160(redeemScript)
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(scriptHash).
		AddOp(txscript.OP_EQUAL).
		Script()
}

// P2SHWPKHScriptSig is the script_sig that pushes the redeem script for a
// nested-segwit spend (the witness program itself lives in the witness).
func P2SHWPKHScriptSig(redeemScript []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().AddData(redeemScript).Script()
}

// DeriveAddress derives the receive or change address at [chain, index]
// below an account xpub, embedding the script's SLIP-77 blinding public key.
func DeriveAddress(xpub *hdkeychain.ExtendedKey, path DerivationPath, master MasterBlindingKey, net network.Net) (*Address, error) {
	child, err := DeriveChildPub(xpub, path)
	if err != nil {
		return nil, err
	}
	pubKey, err := child.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get public key: %v", walleterr.ErrCrypto, err)
	}

	redeemScript, err := P2SHWPKHRedeemScript(pubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build redeem script: %v", walleterr.ErrCrypto, err)
	}
	scriptPubKey, err := p2shwpkhScriptPubKey(redeemScript)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build script_pubkey: %v", walleterr.ErrCrypto, err)
	}

	blindingPriv, err := master.DeriveBlindingKey(scriptPubKey)
	if err != nil {
		return nil, err
	}
	blindingPub := blindingPriv.PubKey()

	return &Address{
		ScriptPubKey:   scriptPubKey,
		RedeemScript:   redeemScript,
		BlindingPubKey: blindingPub,
		Params:         network.Params(net),
	}, nil
}

// Encode serializes the address as a chain-specific string carrying the
// P2SH version byte, the confidential blinding public key and the script
// hash. The payload is encoded with the BIP-173 bech32 checksum, not the
// blech32 checksum, and the result is longer than bech32's 90-character
// limit.
func (a *Address) Encode() (string, error) {
	scriptHash := a.ScriptPubKey[2:22] // strip OP_HASH160 push, keep the 20-byte hash
	payload := make([]byte, 0, 1+33+20)
	payload = append(payload, a.Params.P2SHVersion)
	payload = append(payload, a.BlindingPubKey.SerializeCompressed()...)
	payload = append(payload, scriptHash...)

	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%w: failed to convert address payload: %v", walleterr.ErrCrypto, err)
	}
	encoded, err := bech32.Encode(a.Params.Blech32HRP, converted)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode blech32 address: %v", walleterr.ErrCrypto, err)
	}
	return encoded, nil
}

// DecodeAddress parses an address produced by Encode back into its script
// hash and blinding public key, validating the network HRP. The bech32
// checksum is checked without the 90-character limit; blech32-checksummed
// addresses are not accepted.
func DecodeAddress(encoded string, net network.Net) (scriptHash []byte, blindingPub *btcec.PublicKey, err error) {
	hrp, data, err := bech32.DecodeNoLimit(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid blech32 address: %v", walleterr.ErrInvalidAddress, err)
	}
	params := network.Params(net)
	if hrp != params.Blech32HRP {
		return nil, nil, fmt.Errorf("%w: address is for a different network", walleterr.ErrInvalidAddress)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid blech32 payload: %v", walleterr.ErrInvalidAddress, err)
	}
	if len(payload) != 1+33+20 {
		return nil, nil, fmt.Errorf("%w: unexpected address payload length %d", walleterr.ErrInvalidAddress, len(payload))
	}
	if payload[0] != params.P2SHVersion {
		return nil, nil, fmt.Errorf("%w: unexpected address version", walleterr.ErrInvalidAddress)
	}
	pub, err := btcec.ParsePubKey(payload[1:34])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid blinding public key: %v", walleterr.ErrInvalidAddress, err)
	}
	return payload[34:], pub, nil
}
