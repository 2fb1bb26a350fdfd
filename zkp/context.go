// Package zkp wraps the confidential-transaction cryptography: Pedersen
// value commitments, generator-blinded asset tags, range proofs, asset
// surjection proofs, and the ECDH shared secret used to encrypt a
// recipient's blinding factors into the nonce field.
//
// The heavy zero-knowledge machinery (range proofs, surjection proofs) is
// delegated to github.com/vulpemventures/go-secp256k1-zkp, the Go binding
// to the same secp256k1-zkp C library the original Rust implementation
// binds to. This package supplies the orchestration: message layout,
// generator/commitment bookkeeping, and the blinding-factor balancing math
// that the original computes independently of that library.
package zkp

import (
	"fmt"
	"sync"

	secp256k1 "github.com/vulpemventures/go-secp256k1-zkp"

	"github.com/dan/liquid-wallet-core/walleterr"
)

// Context wraps a shared secp256k1-zkp context. The underlying library's
// context is safe for concurrent read-only operations (signing, proof
// generation) once created, matching how the original shares a single
// Secp256k1<All> across the wallet.
type Context struct {
	mu  sync.Mutex
	ctx *secp256k1.Context
}

// NewContext creates a context suitable for both signing and verification.
func NewContext() (*Context, error) {
	ctx, err := secp256k1.ContextCreate(secp256k1.ContextBoth)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create secp256k1 context: %v", walleterr.ErrCrypto, err)
	}
	return &Context{ctx: ctx}, nil
}

// Destroy releases the underlying context's resources.
func (c *Context) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		secp256k1.ContextDestroy(c.ctx)
		c.ctx = nil
	}
}
