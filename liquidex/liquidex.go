// Package liquidex implements the maker/taker atomic-swap protocol: a
// maker commits a single input and single output to an exchange rate
// using deterministic blinders derived from the wallet's master blinding
// key, smuggles the clear value through the output's ECDH nonce field via
// AES-256-GCM-SIV, and serializes the result as a JSON proposal a taker
// can complete, balance, blind, and sign.
package liquidex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dan/liquid-wallet-core/txmodel"
	"github.com/dan/liquid-wallet-core/wallet"
	"github.com/dan/liquid-wallet-core/walleterr"
	"github.com/dan/liquid-wallet-core/zkp"
)

func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// TxOutSecrets is the unblinded secret material for one side of a
// proposal: asset, amount, and their blinding factors. It appears twice
// in a v0 proposal's JSON (exactly one input, one output).
type TxOutSecrets struct {
	Asset         [32]byte
	AssetBlinder  [32]byte
	Amount        uint64
	AmountBlinder [32]byte
}

type txOutSecretsJSON struct {
	Asset         string `json:"asset"`
	Amount        uint64 `json:"amount"`
	AssetBlinder  string `json:"asset_blinder"`
	AmountBlinder string `json:"amount_blinder"`
}

// MarshalJSON encodes a TxOutSecrets the way the wire proposal expects:
// hex-encoded 32-byte fields, decimal amount.
func (s TxOutSecrets) MarshalJSON() ([]byte, error) {
	return json.Marshal(txOutSecretsJSON{
		Asset:         hex.EncodeToString(s.Asset[:]),
		Amount:        s.Amount,
		AssetBlinder:  hex.EncodeToString(s.AssetBlinder[:]),
		AmountBlinder: hex.EncodeToString(s.AmountBlinder[:]),
	})
}

// UnmarshalJSON decodes a proposal's input/output secrets, rejecting any
// field that is not exactly 32 hex-decoded bytes.
func (s *TxOutSecrets) UnmarshalJSON(b []byte) error {
	var raw txOutSecretsJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: invalid proposal secrets: %v", walleterr.ErrMalformed, err)
	}
	asset, err := decodeHex32(raw.Asset)
	if err != nil {
		return err
	}
	assetBlinder, err := decodeHex32(raw.AssetBlinder)
	if err != nil {
		return err
	}
	amountBlinder, err := decodeHex32(raw.AmountBlinder)
	if err != nil {
		return err
	}
	s.Asset = asset
	s.AssetBlinder = assetBlinder
	s.Amount = raw.Amount
	s.AmountBlinder = amountBlinder
	return nil
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return out, fmt.Errorf("%w: expected 32 hex-encoded bytes, got %q", walleterr.ErrMalformed, s)
	}
	copy(out[:], b)
	return out, nil
}

// Proposal is the wire format of a LiquiDEX swap proposal: a partially
// signed single-input/single-output transaction plus the secrets needed
// to verify and complete it. v0 fixes exactly one input and one output.
type Proposal struct {
	Version int            `json:"version"`
	TxHex   string         `json:"tx"`
	Inputs  []TxOutSecrets `json:"inputs"`
	Outputs []TxOutSecrets `json:"outputs"`
}

// Transaction decodes the proposal's hex-encoded transaction.
func (p Proposal) Transaction() (*txmodel.Transaction, error) {
	raw, err := hex.DecodeString(p.TxHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid proposal tx hex: %v", walleterr.ErrMalformed, err)
	}
	return txmodel.Deserialize(raw)
}

// Validate enforces the v0 shape: exactly one input and one output.
func (p Proposal) Validate() error {
	if p.Inputs == nil || p.Outputs == nil {
		return fmt.Errorf("%w: proposal missing inputs/outputs", walleterr.ErrMalformed)
	}
	if len(p.Inputs) != 1 || len(p.Outputs) != 1 {
		return fmt.Errorf("%w: v0 proposals must have exactly one input and one output", walleterr.ErrMalformed)
	}
	return nil
}

// GetInput returns the maker's single declared input secret.
func (p Proposal) GetInput() TxOutSecrets {
	return p.Inputs[0]
}

// VerifyOutputCommitment recomputes the asset generator and value
// commitment from the proposal's declared output secrets and compares
// them against transaction output 0, rejecting any mismatch.
func VerifyOutputCommitment(zc *zkp.Context, tx *txmodel.Transaction, secrets TxOutSecrets) error {
	if len(tx.Outputs) == 0 {
		return fmt.Errorf("%w: proposal transaction has no outputs", walleterr.ErrMalformed)
	}
	out := tx.Outputs[0]

	gen, err := zc.GenerateBlindedGenerator(zkp.AssetTag(secrets.Asset), secrets.AssetBlinder)
	if err != nil {
		return err
	}
	commit, err := zc.Commit(secrets.AmountBlinder, secrets.Amount, gen)
	if err != nil {
		return err
	}

	genBytes := gen.Bytes()
	commitBytes := commit.Bytes()
	wantAsset := out.AssetGeneratorBytes()
	wantValue := out.ValueCommitmentBytes()
	if wantAsset != genBytes {
		return fmt.Errorf("%w: declared asset secrets do not reproduce the output's asset commitment", walleterr.ErrCommitmentMismatch)
	}
	if wantValue != commitBytes {
		return fmt.Errorf("%w: declared value secrets do not reproduce the output's value commitment", walleterr.ErrCommitmentMismatch)
	}
	return nil
}

// derivePrevHash computes SHA256d(serialize(outpoint)), the deterministic
// seed both make and take sides use to re-derive a maker output's
// blinders without sharing a session secret.
func derivePrevHash(outpoint txmodel.OutPoint) [32]byte {
	first := sha256.Sum256(outpoint.Serialize())
	return sha256.Sum256(first[:])
}

// makerVoutSentinel is the reserved vout value used in place of a real
// output index when deriving a maker's own blinders, so it can never
// collide with `derive_blinder(..., hash_prevouts, output_index, ...)`
// which always uses a real index.
const makerVoutSentinel = ^uint32(0)

// DeriveBlinder reproduces `derive_blinder(master, hash, vout, isAsset)`:
// HMAC-SHA256 over (hash || vout_le || tag) keyed by the master blinding
// key, where tag distinguishes an asset blinder from a value blinder.
func DeriveBlinder(master wallet.MasterBlindingKey, hash [32]byte, vout uint32, isAsset bool) [32]byte {
	tag := byte(0)
	if isAsset {
		tag = 1
	}
	msg := make([]byte, 0, 37)
	msg = append(msg, hash[:]...)
	var voutBytes [4]byte
	binary.LittleEndian.PutUint32(voutBytes[:], vout)
	msg = append(msg, voutBytes[:]...)
	msg = append(msg, tag)

	mac := hmacSHA256(master[:], msg)
	var out [32]byte
	copy(out[:], mac)
	return out
}

// DeriveMakerBlinders derives both blinders for a maker's own output
// using the reserved vout sentinel.
func DeriveMakerBlinders(master wallet.MasterBlindingKey, outpoint txmodel.OutPoint) (assetBlinder, valueBlinder [32]byte) {
	hash := derivePrevHash(outpoint)
	return DeriveBlinder(master, hash, makerVoutSentinel, true), DeriveBlinder(master, hash, makerVoutSentinel, false)
}

