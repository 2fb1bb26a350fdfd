package zkp

import (
	"fmt"

	secp256k1 "github.com/vulpemventures/go-secp256k1-zkp"

	"github.com/dan/liquid-wallet-core/walleterr"
)

// AssetCandidate is one (tag, generator) pair from the input domain a
// surjection proof draws from: an asset among the transaction's inputs and
// its blinded generator. It carries no blinding factor.
type AssetCandidate struct {
	Tag       AssetTag
	Generator Generator
}

// SurjectionProof asserts that an output's blinded asset generator traces
// back to one of the transaction's input asset tags, without revealing
// which one.
type SurjectionProof struct {
	raw *secp256k1.SurjectionProof
}

// Bytes returns the proof's serialized form for embedding in a TxOut's
// witness.
func (p SurjectionProof) Bytes() []byte {
	return p.raw.Bytes()
}

// SurjectionProofGenerate builds the proof that outputTag (blinded by
// outputBlinder) is one of the assets present in inputTags.
func (c *Context) SurjectionProofGenerate(inputTags []AssetTag, outputTag AssetTag, inputGenerators []Generator, outputGenerator Generator, inputBlinders [][32]byte, outputBlinder [32]byte, seed [32]byte) (SurjectionProof, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fixedTags := make([][]byte, len(inputTags))
	for i, t := range inputTags {
		fixedTags[i] = t[:]
	}

	proof, inputIndex, err := secp256k1.SurjectionProofInitialize(
		c.ctx, fixedTags, len(inputTags), outputTag[:], 100, seed[:],
	)
	if err != nil {
		return SurjectionProof{}, fmt.Errorf("%w: failed to initialize surjection proof: %v", walleterr.ErrCrypto, err)
	}

	rawInputGens := make([]*secp256k1.Generator, len(inputGenerators))
	for i, g := range inputGenerators {
		rawInputGens[i] = g.raw
	}

	if err := secp256k1.SurjectionProofGenerate(
		c.ctx, proof, rawInputGens, outputGenerator.raw, inputIndex,
		inputBlinders[inputIndex][:], outputBlinder[:],
	); err != nil {
		return SurjectionProof{}, fmt.Errorf("%w: failed to generate surjection proof: %v", walleterr.ErrCrypto, err)
	}

	return SurjectionProof{raw: proof}, nil
}

// SurjectionProofVerify checks that an output's blinded asset generator is
// covered by the proof's claimed input domain.
func (c *Context) SurjectionProofVerify(proof SurjectionProof, inputGenerators []Generator, outputGenerator Generator) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rawInputGens := make([]*secp256k1.Generator, len(inputGenerators))
	for i, g := range inputGenerators {
		rawInputGens[i] = g.raw
	}
	ok, err := secp256k1.SurjectionProofVerify(c.ctx, proof.raw, rawInputGens, outputGenerator.raw)
	if err != nil {
		return false, fmt.Errorf("%w: surjection proof verification failed: %v", walleterr.ErrCommitmentMismatch, err)
	}
	return ok, nil
}
