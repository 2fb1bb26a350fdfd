package liquidex

import (
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/dan/liquid-wallet-core/network"
	"github.com/dan/liquid-wallet-core/txmodel"
	"github.com/dan/liquid-wallet-core/wallet"
	"github.com/dan/liquid-wallet-core/walletcore"
	"github.com/dan/liquid-wallet-core/zkp"
)

// fakeStore is a minimal in-memory walletcore.Store good enough to drive
// Make/Take end to end: one spendable UTXO, derivation paths for every
// address handed out, and the index/asset bookkeeping the swap touches.
type fakeStore struct {
	mu sync.Mutex

	unbl    map[txmodel.OutPoint]walletcore.Unblinded
	paths   map[string]wallet.DerivationPath
	spent   map[txmodel.OutPoint]bool
	extIdx  uint32
	intIdx  uint32
	liqAsset map[[32]byte]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		unbl:     make(map[txmodel.OutPoint]walletcore.Unblinded),
		paths:    make(map[string]wallet.DerivationPath),
		spent:    make(map[txmodel.OutPoint]bool),
		liqAsset: make(map[[32]byte]bool),
	}
}

func (s *fakeStore) Tip() (uint32, chainhash.Hash, error) { return 0, chainhash.Hash{}, nil }
func (s *fakeStore) Txs() (map[chainhash.Hash]*txmodel.Transaction, error) {
	return map[chainhash.Hash]*txmodel.Transaction{}, nil
}
func (s *fakeStore) Unblinded() (map[txmodel.OutPoint]walletcore.Unblinded, error) { return s.unbl, nil }
func (s *fakeStore) Heights() (map[chainhash.Hash]*uint32, error) {
	return map[chainhash.Hash]*uint32{}, nil
}
func (s *fakeStore) Paths() (map[string]wallet.DerivationPath, error) { return s.paths, nil }
func (s *fakeStore) Spent() (map[txmodel.OutPoint]bool, error)        { return s.spent, nil }

func (s *fakeStore) IndexExternal() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extIdx, nil
}
func (s *fakeStore) SetIndexExternal(idx uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extIdx = idx
	return nil
}
func (s *fakeStore) IndexInternal() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intIdx, nil
}
func (s *fakeStore) SetIndexInternal(idx uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intIdx = idx
	return nil
}

func (s *fakeStore) LiquidexAssetsGet() (map[[32]byte]bool, error) { return s.liqAsset, nil }
func (s *fakeStore) LiquidexAssetsInsert(asset [32]byte) error     { s.liqAsset[asset] = true; return nil }
func (s *fakeStore) LiquidexAssetsRemove(asset [32]byte) error     { delete(s.liqAsset, asset); return nil }

func (s *fakeStore) TxsVerif() (map[chainhash.Hash]walletcore.SPVStatus, error) {
	return map[chainhash.Hash]walletcore.SPVStatus{}, nil
}

func testNetworkConfig() network.Config {
	return network.Config{Liquid: true, Mainnet: true}
}

func testWalletCtx(t *testing.T, store *fakeStore) *walletcore.Ctx {
	t.Helper()
	return testWalletCtxSeeded(t, store, 7)
}

func testWalletCtxSeeded(t *testing.T, store *fakeStore, seedByte byte) *walletcore.Ctx {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i) + seedByte
	}
	cfg := testNetworkConfig()
	account, err := wallet.DeriveAccountKeyFromSeed(seed, cfg)
	if err != nil {
		t.Fatalf("DeriveAccountKeyFromSeed() error = %v", err)
	}
	master := wallet.MasterBlindingKeyFromSeed(seed)
	c, err := walletcore.NewCtx(store, cfg, account, master, nil)
	if err != nil {
		t.Fatalf("NewCtx() error = %v", err)
	}
	return c
}

// registerUTXO derives address `index`, records it as an unblinded UTXO in
// the store, and returns its outpoint and address for the caller to spend.
func registerUTXO(store *fakeStore, c *walletcore.Ctx, value uint64, asset [32]byte, index uint32) (txmodel.OutPoint, *wallet.Address, [32]byte, [32]byte) {
	addr, _ := wallet.DeriveAddress(c.Account.Xpub, wallet.DerivationPath{Chain: 0, Index: index}, c.Master, c.Net)
	var hash chainhash.Hash
	hash[0] = byte(index + 1)
	op := txmodel.OutPoint{Hash: hash, Index: 0}
	assetBlinder := [32]byte{byte(index + 1)}
	valueBlinder := [32]byte{byte(index + 50)}
	store.unbl[op] = walletcore.Unblinded{
		Outpoint:     op,
		ScriptPubKey: addr.ScriptPubKey,
		Asset:        asset,
		Value:        value,
		AssetBlinder: assetBlinder,
		ValueBlinder: valueBlinder,
	}
	store.paths[string(addr.ScriptPubKey)] = wallet.DerivationPath{Chain: 0, Index: index}
	return op, addr, assetBlinder, valueBlinder
}

// Maker flow per spec.md's testable property: a single 175,000,000-unit
// UTXO of asset X offered at rate 1e-6 for asset Y yields exactly one
// input, one output, and a reconstructible Y-amount of 175.
func TestMakeProducesSingleInputSingleOutput(t *testing.T) {
	zc, err := zkp.NewContext()
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	defer zc.Destroy()

	store := newFakeStore()
	c := testWalletCtx(t, store)

	assetX := assetOf(0x11)
	assetY := assetOf(0x22)
	op, srcAddr, assetBlinder, valueBlinder := registerUTXO(store, c, 175_000_000, assetX, 0)

	receiveAddr, err := wallet.DeriveAddress(c.Account.Xpub, wallet.DerivationPath{Chain: 0, Index: 50}, c.Master, c.Net)
	if err != nil {
		t.Fatalf("DeriveAddress() error = %v", err)
	}

	in := MakeInput{
		Outpoint:            op,
		Asset:               assetX,
		Value:               175_000_000,
		AssetBlinder:        assetBlinder,
		ValueBlinder:        valueBlinder,
		ScriptPubKey:        srcAddr.ScriptPubKey,
		PrevValueCommitment: [33]byte{0x08},
	}

	proposal, err := Make(c, zc, in, assetY, 0.000001, receiveAddr)
	if err != nil {
		t.Fatalf("Make() error = %v", err)
	}

	tx, err := proposal.Transaction()
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
	if len(tx.Inputs) != 1 || len(tx.Outputs) != 1 {
		t.Fatalf("Make() produced %d inputs / %d outputs, want 1/1", len(tx.Inputs), len(tx.Outputs))
	}
	if proposal.Outputs[0].Amount != 175 {
		t.Fatalf("Make() output amount = %d, want 175", proposal.Outputs[0].Amount)
	}
	if proposal.Outputs[0].Asset != assetY {
		t.Fatalf("Make() output asset = %x, want %x", proposal.Outputs[0].Asset, assetY)
	}

	if err := VerifyOutputCommitment(zc, tx, proposal.Outputs[0]); err != nil {
		t.Fatalf("VerifyOutputCommitment() error = %v", err)
	}
	if err := verifyMakerSigHashType(tx); err != nil {
		t.Fatalf("verifyMakerSigHashType() error = %v", err)
	}
}

func TestMakeRejectsRateTooLowForOutput(t *testing.T) {
	zc, err := zkp.NewContext()
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	defer zc.Destroy()

	store := newFakeStore()
	c := testWalletCtx(t, store)
	assetX := assetOf(0x11)
	assetY := assetOf(0x22)
	op, srcAddr, assetBlinder, valueBlinder := registerUTXO(store, c, 10, assetX, 0)
	receiveAddr, _ := wallet.DeriveAddress(c.Account.Xpub, wallet.DerivationPath{Chain: 0, Index: 50}, c.Master, c.Net)

	in := MakeInput{
		Outpoint:            op,
		Asset:               assetX,
		Value:               10,
		AssetBlinder:        assetBlinder,
		ValueBlinder:        valueBlinder,
		ScriptPubKey:        srcAddr.ScriptPubKey,
		PrevValueCommitment: [33]byte{0x08},
	}
	if _, err := Make(c, zc, in, assetY, 0.00001, receiveAddr); err == nil {
		t.Fatal("Make() succeeded despite a rate that floors the output to zero")
	}
}
