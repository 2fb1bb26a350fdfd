// Package walletcore orchestrates the standard transaction builder, the
// blinding/signing engine, and the read-paths a wallet exposes over a
// caller-supplied Store: everything in spec sections 4.5-4.7 plus the
// GetTip/ListTransactions/UTXOs/Balance accessors the distilled spec
// dropped but the original wallet context implements.
package walletcore

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/hashicorp/go-hclog"

	"github.com/dan/liquid-wallet-core/network"
	"github.com/dan/liquid-wallet-core/txmodel"
	"github.com/dan/liquid-wallet-core/wallet"
	"github.com/dan/liquid-wallet-core/walleterr"
	"github.com/dan/liquid-wallet-core/zkp"
)

// SPVStatus mirrors the store's per-tx verification state.
type SPVStatus int

const (
	SPVInProgress SPVStatus = iota
	SPVVerified
	SPVNotVerified
	SPVUnverified
	SPVDisabled
)

// Unblinded is a fully-decrypted UTXO record: what the store hands back
// for every output it already knows the secrets of.
type Unblinded struct {
	Outpoint        txmodel.OutPoint
	ScriptPubKey    []byte
	Asset           [32]byte
	Value           uint64
	AssetBlinder    [32]byte
	ValueBlinder    [32]byte
	ValueCommitment [33]byte
	Height          *uint32
}

// Store is the external collaborator contract: an on-disk key-value store
// and its cache, consumed but never owned by the core. Every method here
// corresponds 1:1 to spec.md §6's store adapter contract.
type Store interface {
	Tip() (height uint32, blockHash chainhash.Hash, err error)
	Txs() (map[chainhash.Hash]*txmodel.Transaction, error)
	Unblinded() (map[txmodel.OutPoint]Unblinded, error)
	Heights() (map[chainhash.Hash]*uint32, error)
	Paths() (map[string]wallet.DerivationPath, error)
	Spent() (map[txmodel.OutPoint]bool, error)

	IndexExternal() (uint32, error)
	SetIndexExternal(uint32) error
	IndexInternal() (uint32, error)
	SetIndexInternal(uint32) error

	LiquidexAssetsGet() (map[[32]byte]bool, error)
	LiquidexAssetsInsert(asset [32]byte) error
	LiquidexAssetsRemove(asset [32]byte) error

	TxsVerif() (map[chainhash.Hash]SPVStatus, error)
}

// Ctx is the wallet context: the orchestrator that ties a Store, an
// account key, the master blinding key, and network config into the
// operations spec.md §4.5-§4.10 describe. A single sync.RWMutex guards
// the external/internal index: bumps take Lock briefly and release before
// further work, and peekInternalIndex takes RLock. The other store reads
// (UTXOs, ListTransactions, InputSecretFor, SignInput's path lookup) take
// no lock, and Ctx never mutates the LiquiDEX asset set.
type Ctx struct {
	mu sync.RWMutex

	Store  Store
	Config network.Config
	Net    network.Net

	Account *wallet.AccountKey
	Master  wallet.MasterBlindingKey

	Logger hclog.Logger

	// changeMaxDeriv is carried over from the original as an unused
	// counter; it does not gate the selection loop. Inert by design.
	changeMaxDeriv uint32
}

// NewCtx builds a wallet context. If logger is nil, a null logger is used.
func NewCtx(store Store, cfg network.Config, account *wallet.AccountKey, master wallet.MasterBlindingKey, logger hclog.Logger) (*Ctx, error) {
	net, err := cfg.Network()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Ctx{
		Store:   store,
		Config:  cfg,
		Net:     net,
		Account: account,
		Master:  master,
		Logger:  logger,
	}, nil
}

// bumpExternalIndex reserves and returns the next external (receive)
// derivation index, acquiring the writer lock only for the bump itself.
func (c *Ctx) bumpExternalIndex() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.Store.IndexExternal()
	if err != nil {
		return 0, err
	}
	if err := c.Store.SetIndexExternal(idx + 1); err != nil {
		return 0, err
	}
	return idx, nil
}

// peekInternalIndex reads the current internal index without bumping it,
// used by change placement to compute `internal_index + k + 1` addresses
// before committing to how many changes will actually be created.
func (c *Ctx) peekInternalIndex() (uint32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Store.IndexInternal()
}

// PeekInternalIndex is peekInternalIndex exported for the LiquiDEX taker
// builder, which places change addresses the same way the standard
// builder does.
func (c *Ctx) PeekInternalIndex() (uint32, error) {
	return c.peekInternalIndex()
}

// BumpInternalIndexBy is bumpInternalIndexBy exported for the LiquiDEX
// taker builder.
func (c *Ctx) BumpInternalIndexBy(k uint32) (uint32, error) {
	return c.bumpInternalIndexBy(k)
}

// InputSecretFor looks up the unblinded secrets for a spent outpoint, the
// material needed to balance blinders when constructing a new transaction
// that spends it.
func (c *Ctx) InputSecretFor(outpoint txmodel.OutPoint) (InputSecret, error) {
	unblinded, err := c.Store.Unblinded()
	if err != nil {
		return InputSecret{}, err
	}
	u, ok := unblinded[outpoint]
	if !ok {
		return InputSecret{}, fmt.Errorf("%w: no unblinded data for outpoint %v", walleterr.ErrMissingUnblinded, outpoint)
	}
	return InputSecret{
		Asset:           zkp.AssetTag(u.Asset),
		AssetBlinder:    u.AssetBlinder,
		ValueBlinder:    u.ValueBlinder,
		Value:           u.Value,
		ValueCommitment: u.ValueCommitment,
	}, nil
}

// GetAddress derives and returns the next receive address, bumping the
// external index.
func (c *Ctx) GetAddress() (*wallet.Address, error) {
	idx, err := c.bumpExternalIndex()
	if err != nil {
		return nil, err
	}
	return wallet.DeriveAddress(c.Account.Xpub, wallet.DerivationPath{Chain: 0, Index: idx}, c.Master, c.Net)
}
