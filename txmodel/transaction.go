// Package txmodel implements the confidential transaction wire format: a
// version-2 transaction whose outputs carry either an explicit value and
// asset or a blinded Pedersen commitment to each, plus the range and
// surjection proofs that make the commitments verifiable without revealing
// the underlying amounts.
package txmodel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/dan/liquid-wallet-core/walleterr"
)

const (
	txVersion        = 2
	sequenceFinal    = 0xffffffff
	confidentialPrefixExplicit = 0x01
)

// OutPoint identifies a previous transaction output being spent.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// Serialize writes the outpoint in the same 36-byte layout used by the
// sighash's hashPrevouts accumulator: txid || index, little-endian.
func (o OutPoint) Serialize() []byte {
	buf := make([]byte, 36)
	copy(buf[:32], o.Hash[:])
	binary.LittleEndian.PutUint32(buf[32:], o.Index)
	return buf
}

// TxIn is a transaction input. PrevoutValueCommitment and
// PrevoutAssetCommitment are populated from the previous output being
// spent, for sighash and blinding purposes, but are not part of the
// input's own consensus serialization.
type TxIn struct {
	PreviousOutPoint OutPoint
	ScriptSig        []byte
	Sequence         uint32
	Witness          [][]byte

	// PrevoutValueCommitment and PrevoutAssetCommitment carry the confidential commitments (or
	// explicit bytes) of the output this input spends, needed to compute
	// its segwit sighash and, for the wallet's own inputs, to derive the
	// value/asset blinding factors used when balancing new outputs.
	PrevoutValueCommitment [33]byte
	PrevoutAssetCommitment [33]byte
}

// ConfidentialValue is either an explicit 8-byte satoshi amount or a
// 33-byte Pedersen value commitment, per the Elements confidential output
// encoding (first byte selects which).
type ConfidentialValue struct {
	Explicit   bool
	Amount     uint64   // valid when Explicit
	Commitment [33]byte // valid when !Explicit
}

// Bytes serializes a confidential value the way it appears on the wire:
// an explicit amount is prefixed 0x01 and stored big-endian (8 bytes),
// a commitment is stored as-is (33 bytes, prefix 0x08/0x09).
func (v ConfidentialValue) Bytes() []byte {
	if v.Explicit {
		out := make([]byte, 9)
		out[0] = confidentialPrefixExplicit
		binary.BigEndian.PutUint64(out[1:], v.Amount)
		return out
	}
	out := make([]byte, 33)
	copy(out, v.Commitment[:])
	return out
}

// ConfidentialAsset is either an explicit 32-byte asset tag (prefixed
// 0x01) or a 33-byte blinded asset generator (prefixed 0x0a/0x0b).
type ConfidentialAsset struct {
	Explicit bool
	Tag      [32]byte // valid when Explicit
	Gen      [33]byte // valid when !Explicit
}

// Bytes serializes a confidential asset field.
func (a ConfidentialAsset) Bytes() []byte {
	if a.Explicit {
		out := make([]byte, 33)
		out[0] = confidentialPrefixExplicit
		copy(out[1:], a.Tag[:])
		return out
	}
	out := make([]byte, 33)
	copy(out, a.Gen[:])
	return out
}

// TxOut is a transaction output. A confidential output carries a blinded
// asset and value commitment plus a nonce (the sender's ephemeral public
// key, later overwritten by nothing -- the recipient derives the shared
// secret from it) and range/surjection proofs in its witness. An explicit
// output (the trailing fee output) carries its asset and value in the
// clear and an empty script.
type TxOut struct {
	Asset           ConfidentialAsset
	Value           ConfidentialValue
	Nonce           [33]byte // sender ephemeral pubkey once blinded; recipient blinding pubkey while staged; all-zero on the fee output
	ScriptPubKey    []byte
	SurjectionProof []byte
	RangeProof      []byte
}

// IsFee reports whether this is the trailing explicit fee output: empty
// script, explicit value, explicit asset.
func (o TxOut) IsFee() bool {
	return len(o.ScriptPubKey) == 0 && o.Value.Explicit && o.Asset.Explicit
}

// ExplicitValue returns the output's plain satoshi amount. Valid only for
// explicit (fee) outputs.
func (o TxOut) ExplicitValue() (uint64, bool) {
	if !o.Value.Explicit {
		return 0, false
	}
	return o.Value.Amount, true
}

// ExplicitConfidentialValue builds the explicit-amount wire form used
// when constructing a prevout reference for sighash purposes without a
// full TxOut (e.g. an input whose spent output was never blinded).
func ExplicitConfidentialValue(amount uint64) ConfidentialValue {
	return ConfidentialValue{Explicit: true, Amount: amount}
}

// CommitmentConfidentialValue builds the commitment wire form from a raw
// 33-byte Pedersen commitment, for sighash purposes.
func CommitmentConfidentialValue(commitment [33]byte) ConfidentialValue {
	return ConfidentialValue{Explicit: false, Commitment: commitment}
}

// SetBlindedAsset overwrites the output's asset field with a blinded
// generator, replacing whatever explicit tag it carried before blinding.
func (o *TxOut) SetBlindedAsset(generator [33]byte) {
	o.Asset = ConfidentialAsset{Explicit: false, Gen: generator}
}

// SetBlindedValue overwrites the output's value field with a Pedersen
// commitment, replacing the explicit amount it carried before blinding.
func (o *TxOut) SetBlindedValue(commitment [33]byte) {
	o.Value = ConfidentialValue{Explicit: false, Commitment: commitment}
}

// AssetTag returns the output's explicit asset tag. Valid only before
// blinding.
func (o TxOut) AssetTag() [32]byte {
	return o.Asset.Tag
}

// AssetGeneratorBytes returns the output's 33-byte blinded asset
// generator. Valid only after blinding.
func (o TxOut) AssetGeneratorBytes() [33]byte {
	return o.Asset.Gen
}

// ValueCommitmentBytes returns the output's 33-byte Pedersen value
// commitment. Valid only after blinding.
func (o TxOut) ValueCommitmentBytes() [33]byte {
	return o.Value.Commitment
}

// Transaction is a confidential transaction: version 2, lock_time 0 (the
// wallet never uses timelocks), segwit-serialized inputs/outputs.
type Transaction struct {
	Version  int32
	LockTime uint32
	Inputs   []*TxIn
	Outputs  []*TxOut
}

// NewTransaction creates an empty version-2, lock_time-0 transaction.
func NewTransaction() *Transaction {
	return &Transaction{Version: txVersion, LockTime: 0}
}

// AddInput appends a new input spending prevout, carrying forward the
// previous output's value/asset commitments for later sighash/blinding use.
func (tx *Transaction) AddInput(prevout OutPoint, prevValueCommitment, prevAssetCommitment [33]byte) *TxIn {
	in := &TxIn{
		PreviousOutPoint:       prevout,
		Sequence:               sequenceFinal,
		PrevoutValueCommitment: prevValueCommitment,
		PrevoutAssetCommitment: prevAssetCommitment,
	}
	tx.Inputs = append(tx.Inputs, in)
	return in
}

// AddExplicitOutput appends an output whose asset and value are still in
// the clear: a staging step before blinding, addressed to recipientNonce
// (the recipient's blinding public key, carried in the nonce field until
// blinding overwrites it with the sender's ephemeral key).
func (tx *Transaction) AddExplicitOutput(asset [32]byte, value uint64, scriptPubKey []byte, recipientNonce [33]byte) *TxOut {
	out := &TxOut{
		Asset:        ConfidentialAsset{Explicit: true, Tag: asset},
		Value:        ConfidentialValue{Explicit: true, Amount: value},
		Nonce:        recipientNonce,
		ScriptPubKey: scriptPubKey,
	}
	tx.Outputs = append(tx.Outputs, out)
	return out
}

// AddFeeOutput appends the trailing explicit fee output: empty script,
// explicit asset and value, no nonce. Must be the last output; Scramble is
// applied to inputs/outputs before this is appended so the fee output
// stays last.
func (tx *Transaction) AddFeeOutput(asset [32]byte, value uint64) *TxOut {
	out := &TxOut{
		Asset: ConfidentialAsset{Explicit: true, Tag: asset},
		Value: ConfidentialValue{Explicit: true, Amount: value},
	}
	tx.Outputs = append(tx.Outputs, out)
	return out
}

// Scramble deterministically shuffles inputs and outputs using rnd,
// preventing positional correlation between a transaction's inputs and
// outputs from leaking which belonged to which participant. Call this
// before AddFeeOutput so the fee output remains last.
func (tx *Transaction) Scramble(rnd *rand.Rand) {
	rnd.Shuffle(len(tx.Inputs), func(i, j int) {
		tx.Inputs[i], tx.Inputs[j] = tx.Inputs[j], tx.Inputs[i]
	})
	rnd.Shuffle(len(tx.Outputs), func(i, j int) {
		tx.Outputs[i], tx.Outputs[j] = tx.Outputs[j], tx.Outputs[i]
	})
}

// HashPrevouts computes SHA256d over the concatenation of every input's
// outpoint, in transaction order. Both the BIP-143 sighash and the
// LiquiDEX deterministic blinder derivation depend on this exact value.
func (tx *Transaction) HashPrevouts() chainhash.Hash {
	var buf bytes.Buffer
	for _, in := range tx.Inputs {
		buf.Write(in.PreviousOutPoint.Serialize())
	}
	return chainhash.DoubleHashH(buf.Bytes())
}

// HashSequence computes SHA256d over the concatenation of every input's
// sequence number, in transaction order.
func (tx *Transaction) HashSequence() chainhash.Hash {
	var buf bytes.Buffer
	for _, in := range tx.Inputs {
		var seq [4]byte
		binary.LittleEndian.PutUint32(seq[:], in.Sequence)
		buf.Write(seq[:])
	}
	return chainhash.DoubleHashH(buf.Bytes())
}

// HashOutputs computes SHA256d over the concatenation of every output's
// consensus serialization, in transaction order.
func (tx *Transaction) HashOutputs() chainhash.Hash {
	var buf bytes.Buffer
	for _, out := range tx.Outputs {
		out.serializeInto(&buf)
	}
	return chainhash.DoubleHashH(buf.Bytes())
}

func (o *TxOut) serializeInto(buf *bytes.Buffer) {
	buf.Write(o.Asset.Bytes())
	buf.Write(o.Value.Bytes())
	buf.Write(o.Nonce[:])
	writeVarBytes(buf, o.ScriptPubKey)
}

// Serialize encodes the full transaction in consensus order: version,
// inputs (outpoint, scriptSig, sequence), outputs (asset, value, nonce,
// scriptPubKey), lock_time, then the witness stack (scriptWitness and
// range/surjection proofs) per input/output, matching Elements' witness
// placement at the end of the transaction rather than inline per-input.
func (tx *Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, tx.Version); err != nil {
		return nil, fmt.Errorf("%w: failed to serialize version: %v", walleterr.ErrIO, err)
	}
	writeVarInt(&buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf.Write(in.PreviousOutPoint.Serialize())
		writeVarBytes(&buf, in.ScriptSig)
		var seq [4]byte
		binary.LittleEndian.PutUint32(seq[:], in.Sequence)
		buf.Write(seq[:])
	}
	writeVarInt(&buf, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		out.serializeInto(&buf)
	}
	var lockTime [4]byte
	binary.LittleEndian.PutUint32(lockTime[:], tx.LockTime)
	buf.Write(lockTime[:])

	for _, in := range tx.Inputs {
		writeVarInt(&buf, uint64(len(in.Witness)))
		for _, item := range in.Witness {
			writeVarBytes(&buf, item)
		}
	}
	for _, out := range tx.Outputs {
		writeVarBytes(&buf, out.SurjectionProof)
		writeVarBytes(&buf, out.RangeProof)
	}
	return buf.Bytes(), nil
}

// Deserialize parses a transaction from its consensus encoding, the
// inverse of Serialize. Used to load a LiquiDEX proposal's embedded
// transaction back into a *Transaction for verification and completion.
func Deserialize(raw []byte) (*Transaction, error) {
	r := bytes.NewReader(raw)
	tx := &Transaction{}

	if err := binary.Read(r, binary.LittleEndian, &tx.Version); err != nil {
		return nil, fmt.Errorf("%w: failed to read version: %v", walleterr.ErrMalformed, err)
	}

	nIn, err := readVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read input count: %v", walleterr.ErrMalformed, err)
	}
	tx.Inputs = make([]*TxIn, nIn)
	for i := range tx.Inputs {
		in := &TxIn{}
		var hash chainhash.Hash
		if _, err := r.Read(hash[:]); err != nil {
			return nil, fmt.Errorf("%w: failed to read outpoint hash: %v", walleterr.ErrMalformed, err)
		}
		var idx uint32
		if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
			return nil, fmt.Errorf("%w: failed to read outpoint index: %v", walleterr.ErrMalformed, err)
		}
		in.PreviousOutPoint = OutPoint{Hash: hash, Index: idx}
		scriptSig, err := readVarBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read script_sig: %v", walleterr.ErrMalformed, err)
		}
		in.ScriptSig = scriptSig
		if err := binary.Read(r, binary.LittleEndian, &in.Sequence); err != nil {
			return nil, fmt.Errorf("%w: failed to read sequence: %v", walleterr.ErrMalformed, err)
		}
		tx.Inputs[i] = in
	}

	nOut, err := readVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read output count: %v", walleterr.ErrMalformed, err)
	}
	tx.Outputs = make([]*TxOut, nOut)
	for i := range tx.Outputs {
		out, err := readTxOut(r)
		if err != nil {
			return nil, err
		}
		tx.Outputs[i] = out
	}

	if err := binary.Read(r, binary.LittleEndian, &tx.LockTime); err != nil {
		return nil, fmt.Errorf("%w: failed to read lock_time: %v", walleterr.ErrMalformed, err)
	}

	for _, in := range tx.Inputs {
		nWit, err := readVarInt(r)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read witness count: %v", walleterr.ErrMalformed, err)
		}
		in.Witness = make([][]byte, nWit)
		for j := range in.Witness {
			item, err := readVarBytes(r)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to read witness item: %v", walleterr.ErrMalformed, err)
			}
			in.Witness[j] = item
		}
	}
	for _, out := range tx.Outputs {
		surj, err := readVarBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read surjection proof: %v", walleterr.ErrMalformed, err)
		}
		out.SurjectionProof = surj
		rng, err := readVarBytes(r)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read range proof: %v", walleterr.ErrMalformed, err)
		}
		out.RangeProof = rng
	}

	return tx, nil
}

func readTxOut(r *bytes.Reader) (*TxOut, error) {
	out := &TxOut{}

	var assetRaw [33]byte
	if _, err := r.Read(assetRaw[:]); err != nil {
		return nil, fmt.Errorf("%w: failed to read output asset: %v", walleterr.ErrMalformed, err)
	}
	if assetRaw[0] == confidentialPrefixExplicit {
		var tag [32]byte
		copy(tag[:], assetRaw[1:])
		out.Asset = ConfidentialAsset{Explicit: true, Tag: tag}
	} else {
		out.Asset = ConfidentialAsset{Explicit: false, Gen: assetRaw}
	}

	prefix, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read output value prefix: %v", walleterr.ErrMalformed, err)
	}
	if err := r.UnreadByte(); err != nil {
		return nil, fmt.Errorf("%w: failed to unread value prefix: %v", walleterr.ErrMalformed, err)
	}
	if prefix == confidentialPrefixExplicit {
		var explicit [9]byte
		if _, err := r.Read(explicit[:]); err != nil {
			return nil, fmt.Errorf("%w: failed to read explicit value: %v", walleterr.ErrMalformed, err)
		}
		out.Value = ConfidentialValue{Explicit: true, Amount: binary.BigEndian.Uint64(explicit[1:])}
	} else {
		var commitment [33]byte
		if _, err := r.Read(commitment[:]); err != nil {
			return nil, fmt.Errorf("%w: failed to read value commitment: %v", walleterr.ErrMalformed, err)
		}
		out.Value = ConfidentialValue{Explicit: false, Commitment: commitment}
	}

	if _, err := r.Read(out.Nonce[:]); err != nil {
		return nil, fmt.Errorf("%w: failed to read nonce: %v", walleterr.ErrMalformed, err)
	}
	scriptPubKey, err := readVarBytes(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read script_pubkey: %v", walleterr.ErrMalformed, err)
	}
	out.ScriptPubKey = scriptPubKey

	return out, nil
}

func readVarInt(r *bytes.Reader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case 0xfd:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xfe:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xff:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return v, nil
	default:
		return uint64(b), nil
	}
}

func readVarBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if n == 0 {
		return out, nil
	}
	if _, err := r.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeVarInt(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		binary.Write(buf, binary.LittleEndian, uint16(n))
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		binary.Write(buf, binary.LittleEndian, uint32(n))
	default:
		buf.WriteByte(0xff)
		binary.Write(buf, binary.LittleEndian, n)
	}
}

func writeVarBytes(buf *bytes.Buffer, b []byte) {
	writeVarInt(buf, uint64(len(b)))
	buf.Write(b)
}
