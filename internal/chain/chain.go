// Package chain is the deterministic state-transition engine of the betting
// exchange: operations arrive in transactions, transactions in blocks, and
// applying the same blocks to the same genesis state always produces the
// same state, receipts, and virtual events.
package chain

import (
	"fmt"

	"github.com/evetabi/bookie/internal/domain"
)

// Chain applies blocks to the betting state. It is not safe for concurrent
// use; the block producer owns it and serializes all access, reads included.
type Chain struct {
	params     Parameters
	state      *State
	affiliates AffiliateDistributor

	height uint64
	now    int64
}

// New builds a chain at genesis. A nil distributor routes the whole rake to
// the configured dividend account.
func New(params Parameters, ledger Ledger, affiliates AffiliateDistributor) (*Chain, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("chain parameters: %w", err)
	}
	if affiliates == nil {
		affiliates = HouseDistributor{Account: params.DividendAccount}
	}
	return &Chain{
		params:     params,
		state:      NewState(ledger),
		affiliates: affiliates,
	}, nil
}

// Transaction is an atomic batch of operations. Either every operation
// applies or none do.
type Transaction struct {
	ID  string      `json:"id"`
	Ops []Operation `json:"ops"`
}

// Receipt reports the outcome of one transaction in a block.
type Receipt struct {
	TxID  string `json:"tx_id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BlockResult is everything a block application produced: per-transaction
// receipts and the virtual events emitted by sweeps and applied operations.
type BlockResult struct {
	Height   uint64                `json:"height"`
	Time     int64                 `json:"time"`
	Receipts []Receipt             `json:"receipts"`
	Events   []domain.VirtualEvent `json:"events"`
}

// ApplyBlock advances the chain by one block: first the delayed-bet release
// sweep, then the block's transactions in order, then the settlement sweep.
// Block times must be non-decreasing; a failed transaction is rolled back
// and reported in its receipt without aborting the block.
func (c *Chain) ApplyBlock(blockTime int64, txs []Transaction) (BlockResult, error) {
	if blockTime < c.now {
		return BlockResult{}, fmt.Errorf("block time %d before chain time %d", blockTime, c.now)
	}
	c.height++
	c.now = blockTime

	c.releaseDelayedBets()

	receipts := make([]Receipt, 0, len(txs))
	for _, t := range txs {
		rec := Receipt{TxID: t.ID, OK: true}
		if err := c.applyTransaction(t); err != nil {
			rec.OK = false
			rec.Error = err.Error()
		}
		receipts = append(receipts, rec)
	}

	if err := c.settleExpiredGroups(); err != nil {
		return BlockResult{}, fmt.Errorf("settlement sweep at height %d: %w", c.height, err)
	}

	return BlockResult{
		Height:   c.height,
		Time:     blockTime,
		Receipts: receipts,
		Events:   c.state.drainEvents(),
	}, nil
}

// applyTransaction applies every operation of one transaction against the
// live state, restoring the pre-transaction snapshot if any of them fails.
func (c *Chain) applyTransaction(t Transaction) error {
	snapshot := c.state.Clone()
	tx := &txContext{c: c}
	for i, op := range t.Ops {
		if err := op.Validate(c.params); err != nil {
			c.rollback(snapshot)
			return fmt.Errorf("op %d (%s): %w", i, op.Kind(), err)
		}
		if err := op.apply(tx); err != nil {
			c.rollback(snapshot)
			return fmt.Errorf("op %d (%s): %w", i, op.Kind(), err)
		}
	}
	return nil
}

// rollback swaps the snapshot back in. The ledger handle the chain was built
// with must survive the swap, so the snapshot's balances are copied onto it
// rather than replacing it with the clone.
func (c *Chain) rollback(snapshot *State) {
	ledger := c.state.Ledger
	ledger.Restore(snapshot.Ledger)
	snapshot.Ledger = ledger
	c.state = snapshot
}

// Height returns the number of blocks applied.
func (c *Chain) Height() uint64 { return c.height }

// Now returns the timestamp of the last applied block.
func (c *Chain) Now() int64 { return c.now }

// Params returns the consensus parameters.
func (c *Chain) Params() Parameters { return c.params }
