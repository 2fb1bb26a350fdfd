package walletcore

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/dan/liquid-wallet-core/network"
	"github.com/dan/liquid-wallet-core/txmodel"
)

// GetTip returns the chain tip height and block hash per the store's
// current view, dropped from spec.md's distillation but present in the
// original's `get_tip`.
func (c *Ctx) GetTip() (uint32, chainhash.Hash, error) {
	return c.Store.Tip()
}

// TxSummary describes one wallet transaction for listing: its balance
// change per asset, its SPV verification state, and its confirmation
// height if known.
type TxSummary struct {
	Txid          chainhash.Hash
	Height        *uint32
	BalanceChange map[[32]byte]int64
	SPV           SPVStatus
}

// ListTransactions returns every known wallet transaction with its
// per-asset balance change, newest first (unconfirmed, then by descending
// height) -- the original's `list_tx`.
func (c *Ctx) ListTransactions() ([]TxSummary, error) {
	txs, err := c.Store.Txs()
	if err != nil {
		return nil, err
	}
	heights, err := c.Store.Heights()
	if err != nil {
		return nil, err
	}
	unblinded, err := c.Store.Unblinded()
	if err != nil {
		return nil, err
	}
	verif, err := c.Store.TxsVerif()
	if err != nil {
		return nil, err
	}

	summaries := make([]TxSummary, 0, len(txs))
	for txid, tx := range txs {
		change := make(map[[32]byte]int64)
		for i := range tx.Outputs {
			op := txmodel.OutPoint{Hash: txid, Index: uint32(i)}
			if u, ok := unblinded[op]; ok {
				change[u.Asset] += int64(u.Value)
			}
		}
		for _, in := range tx.Inputs {
			if u, ok := unblinded[in.PreviousOutPoint]; ok {
				change[u.Asset] -= int64(u.Value)
			}
		}
		summaries = append(summaries, TxSummary{
			Txid:          txid,
			Height:        heights[txid],
			BalanceChange: change,
			SPV:           verif[txid],
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		hi, hj := summaries[i].Height, summaries[j].Height
		if hi == nil && hj == nil {
			return summaries[i].Txid.String() < summaries[j].Txid.String()
		}
		if hi == nil {
			return true
		}
		if hj == nil {
			return false
		}
		return *hi > *hj
	})
	return summaries, nil
}

// UTXOs returns every unspent, dust-filtered output the store knows the
// secrets for, sorted by descending value -- the original's `utxos`.
func (c *Ctx) UTXOs() ([]Unblinded, error) {
	unblinded, err := c.Store.Unblinded()
	if err != nil {
		return nil, err
	}
	spent, err := c.Store.Spent()
	if err != nil {
		return nil, err
	}
	policy, err := c.Config.PolicyAssetID()
	if err != nil {
		return nil, err
	}

	out := make([]Unblinded, 0, len(unblinded))
	for op, u := range unblinded {
		if spent[op] {
			continue
		}
		if u.Value < network.DustValue && u.Asset == policy {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out, nil
}

// Balance aggregates UTXOs() per asset; the policy asset is always
// present, even at zero.
func (c *Ctx) Balance() (map[[32]byte]uint64, error) {
	utxos, err := c.UTXOs()
	if err != nil {
		return nil, err
	}
	policy, err := c.Config.PolicyAssetID()
	if err != nil {
		return nil, err
	}
	balances := map[[32]byte]uint64{policy: 0}
	for _, u := range utxos {
		balances[u.Asset] += u.Value
	}
	return balances, nil
}
