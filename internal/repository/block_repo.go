package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evetabi/bookie/internal/chain"
	"github.com/jmoiron/sqlx"
)

// ErrBlockNotFound is returned when the requested block height has not been
// journaled.
var ErrBlockNotFound = errors.New("block not found")

// ErrReceiptNotFound is returned when a transaction id has no journaled
// receipt, either because the id is unknown or its block is still pending.
var ErrReceiptNotFound = errors.New("transaction receipt not found")

// BlockRow is the journal record of one produced block.
type BlockRow struct {
	Height    uint64    `db:"height" json:"height"`
	BlockTime int64     `db:"block_time" json:"block_time"`
	TxCount   int       `db:"tx_count" json:"tx_count"`
	AppliedAt time.Time `db:"applied_at" json:"applied_at"`
}

// ReceiptRow is the journal record of one transaction outcome.
type ReceiptRow struct {
	BlockHeight uint64 `db:"block_height" json:"block_height"`
	TxID        string `db:"tx_id" json:"tx_id"`
	OK          bool   `db:"ok" json:"ok"`
	Error       string `db:"error" json:"error,omitempty"`
}

// BlockRepository journals produced blocks and their transaction receipts.
// The engine state itself lives in memory and is rebuilt by replay; the
// journal is the audit trail and the API's lookup surface for receipts.
type BlockRepository struct {
	db *sqlx.DB
}

// NewBlockRepository creates a new BlockRepository.
func NewBlockRepository(db *sqlx.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// InsertBlock journals one block header inside an existing transaction.
func (r *BlockRepository) InsertBlock(ctx context.Context, tx *sqlx.Tx, res chain.BlockResult, txCount int) error {
	query := `
		INSERT INTO blocks (height, block_time, tx_count, applied_at)
		VALUES ($1, $2, $3, now())`
	if _, err := tx.ExecContext(ctx, query, res.Height, res.Time, txCount); err != nil {
		return fmt.Errorf("block_repo.InsertBlock: %w", err)
	}
	return nil
}

// InsertReceipts journals the block's transaction receipts inside an existing
// transaction.
func (r *BlockRepository) InsertReceipts(ctx context.Context, tx *sqlx.Tx, height uint64, receipts []chain.Receipt) error {
	query := `
		INSERT INTO tx_receipts (block_height, tx_id, ok, error)
		VALUES (:block_height, :tx_id, :ok, :error)`
	for _, rec := range receipts {
		row := ReceiptRow{
			BlockHeight: height,
			TxID:        rec.TxID,
			OK:          rec.OK,
			Error:       rec.Error,
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("block_repo.InsertReceipts: tx %s: %w", rec.TxID, err)
		}
	}
	return nil
}

// GetLatest fetches the most recently journaled block.
func (r *BlockRepository) GetLatest(ctx context.Context) (*BlockRow, error) {
	var b BlockRow
	err := r.db.GetContext(ctx, &b, `SELECT * FROM blocks ORDER BY height DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("block_repo.GetLatest: %w", err)
	}
	return &b, nil
}

// GetByHeight fetches a journaled block by height.
func (r *BlockRepository) GetByHeight(ctx context.Context, height uint64) (*BlockRow, error) {
	var b BlockRow
	err := r.db.GetContext(ctx, &b, `SELECT * FROM blocks WHERE height = $1`, height)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("block_repo.GetByHeight: %w", err)
	}
	return &b, nil
}

// GetReceipt fetches the receipt of a submitted transaction by its id.
func (r *BlockRepository) GetReceipt(ctx context.Context, txID string) (*ReceiptRow, error) {
	var rec ReceiptRow
	err := r.db.GetContext(ctx, &rec, `SELECT * FROM tx_receipts WHERE tx_id = $1`, txID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("block_repo.GetReceipt: %w", err)
	}
	return &rec, nil
}

// GetReceiptsByBlock returns every receipt journaled for one block.
func (r *BlockRepository) GetReceiptsByBlock(ctx context.Context, height uint64) ([]*ReceiptRow, error) {
	var recs []*ReceiptRow
	err := r.db.SelectContext(ctx, &recs,
		`SELECT * FROM tx_receipts WHERE block_height = $1 ORDER BY tx_id ASC`, height)
	if err != nil {
		return nil, fmt.Errorf("block_repo.GetReceiptsByBlock: %w", err)
	}
	return recs, nil
}
