package txmodel

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// SigHashType mirrors the four standard ECDSA sighash flags. LiquiDEX
// proposals are signed and verified against SigHashSingleAnyoneCanPay;
// standard spends use SigHashAll.
type SigHashType uint32

const (
	SigHashAll          SigHashType = 0x01
	SigHashNone         SigHashType = 0x02
	SigHashSingle       SigHashType = 0x03
	SigHashAnyoneCanPay SigHashType = 0x80

	SigHashSingleAnyoneCanPay = SigHashSingle | SigHashAnyoneCanPay
)

// SegwitV0Sighash computes the BIP-143 segwit v0 sighash for the input at
// index inputIdx, adapted for confidential transactions: where BIP-143
// hashes an 8-byte little-endian amount, this hashes the 33-byte
// confidential value commitment of the output being spent (or its 9-byte
// explicit encoding, for an unblinded prevout). Every other field follows
// BIP-143 exactly.
func (tx *Transaction) SegwitV0Sighash(inputIdx int, scriptCode []byte, prevoutValue ConfidentialValue, hashType SigHashType) chainhash.Hash {
	in := tx.Inputs[inputIdx]

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, tx.Version)

	var zero chainhash.Hash
	if hashType&SigHashAnyoneCanPay == 0 {
		h := tx.HashPrevouts()
		buf.Write(h[:])
	} else {
		buf.Write(zero[:])
	}

	baseType := hashType & 0x1f
	if hashType&SigHashAnyoneCanPay == 0 && baseType != SigHashSingle && baseType != SigHashNone {
		h := tx.HashSequence()
		buf.Write(h[:])
	} else {
		buf.Write(zero[:])
	}

	buf.Write(in.PreviousOutPoint.Serialize())
	writeVarBytes(&buf, scriptCode)
	buf.Write(prevoutValue.Bytes())

	var seq [4]byte
	binary.LittleEndian.PutUint32(seq[:], in.Sequence)
	buf.Write(seq[:])

	switch baseType {
	case SigHashSingle:
		if inputIdx < len(tx.Outputs) {
			var outBuf bytes.Buffer
			tx.Outputs[inputIdx].serializeInto(&outBuf)
			h := chainhash.DoubleHashH(outBuf.Bytes())
			buf.Write(h[:])
		} else {
			buf.Write(zero[:])
		}
	case SigHashNone:
		buf.Write(zero[:])
	default:
		h := tx.HashOutputs()
		buf.Write(h[:])
	}

	var lockTime [4]byte
	binary.LittleEndian.PutUint32(lockTime[:], tx.LockTime)
	buf.Write(lockTime[:])

	var ht [4]byte
	binary.LittleEndian.PutUint32(ht[:], uint32(hashType))
	buf.Write(ht[:])

	return chainhash.DoubleHashH(buf.Bytes())
}
