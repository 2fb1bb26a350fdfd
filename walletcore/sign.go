package walletcore

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/dan/liquid-wallet-core/txmodel"
	"github.com/dan/liquid-wallet-core/wallet"
	"github.com/dan/liquid-wallet-core/walleterr"
)

// SignInput performs the shared derive -> sighash -> ECDSA -> witness
// sequence (spec §4.7), used by both the standard signer and the
// LiquiDEX taker signer (`liquidex_take_sign` in the original).
func (c *Ctx) SignInput(tx *txmodel.Transaction, index int, prevScriptPubKey []byte, prevValueCommitment [33]byte, hashType txmodel.SigHashType) error {
	paths, err := c.Store.Paths()
	if err != nil {
		return err
	}
	path, ok := paths[string(prevScriptPubKey)]
	if !ok {
		return fmt.Errorf("%w: no derivation path for script %x", walleterr.ErrUnknownScript, prevScriptPubKey)
	}

	priv, err := wallet.DeriveChildPriv(c.Account.Xprv, path)
	if err != nil {
		return err
	}
	pub := priv.PubKey()

	pubKeyHash := btcutil.Hash160(pub.SerializeCompressed())
	redeemScript, err := wallet.P2SHWPKHRedeemScript(pub)
	if err != nil {
		return fmt.Errorf("%w: failed to build redeem script: %v", walleterr.ErrCrypto, err)
	}
	scriptCode, err := wallet.P2PKHScript(pubKeyHash)
	if err != nil {
		return fmt.Errorf("%w: failed to build script code: %v", walleterr.ErrCrypto, err)
	}
	scriptSig, err := wallet.P2SHWPKHScriptSig(redeemScript)
	if err != nil {
		return fmt.Errorf("%w: failed to build script_sig: %v", walleterr.ErrCrypto, err)
	}

	prevValue := txmodel.CommitmentConfidentialValue(prevValueCommitment)
	sighash := tx.SegwitV0Sighash(index, scriptCode, prevValue, hashType)

	sig := ecdsa.Sign(priv, sighash[:])
	sigBytes := append(sig.Serialize(), byte(hashType))

	in := tx.Inputs[index]
	in.ScriptSig = scriptSig
	in.Witness = [][]byte{sigBytes, pub.SerializeCompressed()}
	return nil
}

// SignTransaction signs every input of tx with SIGHASH_ALL, the standard
// builder's default.
func (c *Ctx) SignTransaction(tx *txmodel.Transaction, prevScripts [][]byte, prevValueCommitments [][33]byte) error {
	for i := range tx.Inputs {
		if err := c.SignInput(tx, i, prevScripts[i], prevValueCommitments[i], txmodel.SigHashAll); err != nil {
			return err
		}
	}
	return nil
}
