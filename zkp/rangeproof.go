package zkp

import (
	"fmt"

	secp256k1 "github.com/vulpemventures/go-secp256k1-zkp"

	"github.com/dan/liquid-wallet-core/walleterr"
)

// RangeProofParams configures the Borromean range proof's precision, read
// from network.Config with defaults DefaultCTBits/DefaultCTExponent.
type RangeProofParams struct {
	Exponent int
	MinBits  int
}

// RangeProofSignOpt carries everything RangeProofSign needs beyond the
// value itself.
type RangeProofSignOpt struct {
	Commitment     Commitment
	BlindingFactor [32]byte
	Nonce          [32]byte
	Value          uint64
	MinValue       uint64
	Message        []byte
	ExtraCommit    []byte
	Generator      Generator
	Params         RangeProofParams
}

// RangeProofSign produces the range proof attesting that a confidential
// output's value lies in a range starting at MinValue whose width Params
// sets (at least 2^MinBits with exponent 0). MinValue is 0 only when the
// output's scriptPubKey is provably unspendable (an OP_RETURN data carrier);
// every spendable output uses MinValue=1, since Elements disallows proving
// a spendable output might be worth zero.
func (c *Context) RangeProofSign(opt RangeProofSignOpt) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	proof, err := secp256k1.RangeProofSign(
		c.ctx,
		opt.MinValue,
		opt.Commitment.raw,
		opt.BlindingFactor[:],
		opt.Nonce[:],
		opt.Params.Exponent,
		opt.Params.MinBits,
		opt.Value,
		opt.Message,
		opt.ExtraCommit,
		opt.Generator.raw,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign range proof: %v", walleterr.ErrCrypto, err)
	}
	return proof, nil
}

// RangeProofVerify checks a range proof against the commitment it claims
// to bound, returning the proven [min, max] value range on success.
func (c *Context) RangeProofVerify(proof []byte, commitment Commitment, extraCommit []byte, gen Generator) (min, max uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	min, max, err = secp256k1.RangeProofVerify(c.ctx, proof, commitment.raw, extraCommit, gen.raw)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: range proof verification failed: %v", walleterr.ErrCommitmentMismatch, err)
	}
	return min, max, nil
}

// RangeProofRewind recovers the value, blinding factor, and message a range
// proof commits to, given the recipient's ECDH nonce. Used when scanning
// incoming confidential outputs for values this wallet controls.
func (c *Context) RangeProofRewind(proof []byte, commitment Commitment, nonce [32]byte, extraCommit []byte, gen Generator) (value uint64, blindingFactor [32]byte, message []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, blinder, msg, _, _, rewindErr := secp256k1.RangeProofRewind(
		c.ctx, opaqueNonce(nonce), commitment.raw, extraCommit, gen.raw, proof,
	)
	if rewindErr != nil {
		return 0, [32]byte{}, nil, fmt.Errorf("%w: failed to rewind range proof: %v", walleterr.ErrMissingUnblinded, rewindErr)
	}
	copy(blindingFactor[:], blinder)
	return v, blindingFactor, msg, nil
}

func opaqueNonce(n [32]byte) []byte {
	return n[:]
}
