// Package scheduler runs the block production loop: it collects submitted
// transactions into a mempool, applies one block per interval to the betting
// engine, journals the result, and broadcasts the emitted events to WS clients.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/evetabi/bookie/internal/chain"
	"github.com/evetabi/bookie/internal/config"
	"github.com/evetabi/bookie/internal/domain"
	"github.com/evetabi/bookie/internal/repository"
	"github.com/evetabi/bookie/internal/ws"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ──────────────────────────────────────────────────────────────────────────────
// WsHub interface — minimally required from the Hub
// ──────────────────────────────────────────────────────────────────────────────

// WsHub defines the broadcast operations the Scheduler needs from the WebSocket
// hub.  Declared here so the scheduler package does not import the ws/hub.go
// implementation and cause a circular dependency.
type WsHub interface {
	BroadcastNewBlock(msg ws.NewBlockMessage)
	BroadcastBetMatched(msg ws.BetMatchedMessage)
	BroadcastBetCanceled(msg ws.BetCanceledMessage)
	BroadcastBetAdjusted(msg ws.BetAdjustedMessage)
	BroadcastGroupResolved(msg ws.GroupResolvedMessage)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler owns the betting engine and is the only writer to it.  API
// handlers submit operations into the mempool and read engine state through
// View; the block loop applies the mempool once per block interval.
type Scheduler struct {
	mu     sync.RWMutex // guards engine
	engine *chain.Chain

	poolMu  sync.Mutex
	pending []chain.Transaction

	db        *sqlx.DB
	blockRepo *repository.BlockRepository
	eventRepo *repository.EventRepository
	hub       WsHub
	cfg       *config.Config
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler around an engine at genesis.
func NewScheduler(
	engine *chain.Chain,
	db *sqlx.DB,
	blockRepo *repository.BlockRepository,
	eventRepo *repository.EventRepository,
	hub WsHub,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		engine:    engine,
		db:        db,
		blockRepo: blockRepo,
		eventRepo: eventRepo,
		hub:       hub,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start launches the block production goroutine.  It returns immediately;
// the loop runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.blockLoop(ctx)
	s.logger.Info("block producer started", "interval", s.cfg.Chain.BlockInterval)
}

// ──────────────────────────────────────────────────────────────────────────────
// Mempool
// ──────────────────────────────────────────────────────────────────────────────

// Submit queues one transaction for the next block and returns its id.
// The transaction is validated only at block application; callers look up
// the receipt by id to learn the outcome.
func (s *Scheduler) Submit(ops []chain.Operation) string {
	tx := chain.Transaction{ID: uuid.NewString(), Ops: ops}
	s.poolMu.Lock()
	s.pending = append(s.pending, tx)
	s.poolMu.Unlock()
	return tx.ID
}

// PendingCount returns the number of transactions waiting for the next block.
func (s *Scheduler) PendingCount() int {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()
	return len(s.pending)
}

// drainPool removes and returns every queued transaction.
func (s *Scheduler) drainPool() []chain.Transaction {
	s.poolMu.Lock()
	defer s.poolMu.Unlock()
	txs := s.pending
	s.pending = nil
	return txs
}

// requeue puts transactions back at the head of the pool after a failed
// block application, preserving their order.
func (s *Scheduler) requeue(txs []chain.Transaction) {
	s.poolMu.Lock()
	s.pending = append(txs, s.pending...)
	s.poolMu.Unlock()
}

// ──────────────────────────────────────────────────────────────────────────────
// Engine access
// ──────────────────────────────────────────────────────────────────────────────

// View runs fn with read access to the engine.  The engine is locked for the
// duration, so fn must not block.
func (s *Scheduler) View(fn func(*chain.Chain)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.engine)
}

// ──────────────────────────────────────────────────────────────────────────────
// blockLoop
// ──────────────────────────────────────────────────────────────────────────────

// blockLoop produces one block per configured interval.  Empty blocks are
// still applied: the delayed-bet release and settlement sweeps are driven by
// block time, not by transactions.
func (s *Scheduler) blockLoop(ctx context.Context) {
	defer s.recoverAndLog("blockLoop")

	ticker := time.NewTicker(s.cfg.Chain.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("blockLoop: shutting down")
			return
		case <-ticker.C:
			s.produceBlock(ctx)
		}
	}
}

// produceBlock applies one block and journals and broadcasts its results.
// Extracted from the loop so the defer/recover catches panics correctly.
func (s *Scheduler) produceBlock(ctx context.Context) {
	txs := s.drainPool()

	s.mu.Lock()
	res, err := s.engine.ApplyBlock(time.Now().Unix(), txs)
	s.mu.Unlock()
	if err != nil {
		// Wall clock went backwards past the last block time; keep the
		// transactions and try again on the next tick.
		s.logger.Error("produceBlock: block rejected", "err", err)
		s.requeue(txs)
		return
	}

	for _, rec := range res.Receipts {
		if !rec.OK {
			s.logger.Warn("transaction failed", "tx_id", rec.TxID, "err", rec.Error)
		}
	}

	if err := s.journalBlock(ctx, res, len(txs)); err != nil {
		// The engine has already advanced; losing a journal entry is an
		// audit gap, not a consensus failure.
		s.logger.Error("produceBlock: journal write failed", "height", res.Height, "err", err)
	}

	s.broadcastBlock(res, len(txs))

	if len(txs) > 0 || len(res.Events) > 0 {
		s.logger.Info("block applied",
			"height", res.Height, "txs", len(txs), "events", len(res.Events))
	}
}

// journalBlock writes the block header, receipts, and events in one DB
// transaction so the journal never holds a partial block.
func (s *Scheduler) journalBlock(ctx context.Context, res chain.BlockResult, txCount int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.blockRepo.InsertBlock(ctx, tx, res, txCount); err != nil {
		return err
	}
	if err := s.blockRepo.InsertReceipts(ctx, tx, res.Height, res.Receipts); err != nil {
		return err
	}
	if err := s.eventRepo.InsertBlockEvents(ctx, tx, res.Height, res.Events); err != nil {
		return err
	}
	return tx.Commit()
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcasting
// ──────────────────────────────────────────────────────────────────────────────

// broadcastBlock pushes the block header and every virtual event to WS clients.
func (s *Scheduler) broadcastBlock(res chain.BlockResult, txCount int) {
	if s.hub == nil {
		return
	}
	now := time.Now().UTC()

	s.hub.BroadcastNewBlock(ws.NewBlockMessage{
		Type:      ws.MsgTypeNewBlock,
		Height:    res.Height,
		BlockTime: res.Time,
		TxCount:   txCount,
		Timestamp: now,
	})

	for _, ev := range res.Events {
		switch e := ev.(type) {
		case domain.BetMatchedEvent:
			s.hub.BroadcastBetMatched(ws.BetMatchedMessage{
				Type:               ws.MsgTypeBetMatched,
				Bettor:             e.Bettor,
				BetID:              e.BetID,
				MarketID:           e.MarketID,
				AmountMatched:      e.AmountMatched,
				Odds:               ws.DecimalOdds(e.BackerMultiplier),
				GuaranteedWinnings: e.GuaranteedWinnings,
				Timestamp:          now,
			})
		case domain.BetCanceledEvent:
			s.hub.BroadcastBetCanceled(ws.BetCanceledMessage{
				Type:          ws.MsgTypeBetCanceled,
				Bettor:        e.Bettor,
				BetID:         e.BetID,
				MarketID:      e.MarketID,
				StakeReturned: e.StakeReturned,
				Timestamp:     now,
			})
		case domain.BetAdjustedEvent:
			s.hub.BroadcastBetAdjusted(ws.BetAdjustedMessage{
				Type:          ws.MsgTypeBetAdjusted,
				Bettor:        e.Bettor,
				BetID:         e.BetID,
				MarketID:      e.MarketID,
				StakeReturned: e.StakeReturned,
				Timestamp:     now,
			})
		case domain.GroupResolvedEvent:
			s.hub.BroadcastGroupResolved(ws.GroupResolvedMessage{
				Type:        ws.MsgTypeGroupResolved,
				Bettor:      e.Bettor,
				GroupID:     e.GroupID,
				TotalPayout: e.TotalPayout,
				FeesPaid:    e.FeesPaid,
				Timestamp:   now,
			})
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
