// Package walleterr enumerates the error kinds the wallet core returns.
//
// These are sentinel values, not custom types: callers compare with
// errors.Is against the wrapped chain, matching how the rest of the
// module wraps lower-level errors with fmt.Errorf("...: %w", err).
package walleterr

import "errors"

var (
	// ErrInvalidAddress is returned when a recipient address fails network
	// parameter validation or fails to parse.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrEmptyAddressees is returned when a transaction request carries no
	// recipients.
	ErrEmptyAddressees = errors.New("empty addressees")

	// ErrInvalidAmount is returned for a zero or sub-dust policy-asset amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds is returned when coin selection exhausts the
	// candidate UTXO set for some asset before needs are satisfied.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnknownScript is returned when the store has no derivation path
	// for a script_pubkey the signer needs to spend.
	ErrUnknownScript = errors.New("unknown script")

	// ErrMissingTx is returned when the store lacks a previous transaction
	// referenced by an input.
	ErrMissingTx = errors.New("missing transaction")

	// ErrMissingUnblinded is returned when the store lacks unblinded data
	// for a referenced outpoint.
	ErrMissingUnblinded = errors.New("missing unblinded data")

	// ErrMalformed is returned for range-proof messages, LiquiDEX
	// proposals, or other wire data that violates its shape.
	ErrMalformed = errors.New("malformed data")

	// ErrCommitmentMismatch is returned when a LiquiDEX proposal's declared
	// secrets do not reproduce the transaction's commitments.
	ErrCommitmentMismatch = errors.New("commitment mismatch")

	// ErrCrypto is returned for a range-proof, surjection-proof, ECDH, or
	// AEAD failure.
	ErrCrypto = errors.New("crypto operation failed")

	// ErrIO wraps a write failure while serializing a transaction. Errors
	// returned by Store methods are passed through as-is, not wrapped in
	// ErrIO.
	ErrIO = errors.New("store io error")

	// ErrGeneric covers conditions not otherwise classified.
	ErrGeneric = errors.New("generic error")
)
