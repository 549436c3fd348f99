package handler

import (
	"encoding/json"
	"net/http"

	"github.com/evetabi/bookie/internal/api/middleware"
	"github.com/evetabi/bookie/internal/chain"
	"github.com/evetabi/bookie/internal/domain"
	"github.com/evetabi/bookie/internal/odds"
	"github.com/evetabi/bookie/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TxHandler turns HTTP requests into queued transactions. Everything here is
// asynchronous: the response carries a tx_id, and the outcome appears in the
// receipt once the next block is applied.
type TxHandler struct {
	sched *scheduler.Scheduler
}

// NewTxHandler creates a TxHandler.
func NewTxHandler(sched *scheduler.Scheduler) *TxHandler {
	return &TxHandler{sched: sched}
}

// PlaceBet godoc
// POST /api/bets [JWT]
// Body: {"market_id":12,"side":"back","amount":1000,"asset_id":1,"odds":"2.50"}
func (h *TxHandler) PlaceBet(c *gin.Context) {
	bettor := middleware.GetAccountID(c)

	var body struct {
		MarketID uint64 `json:"market_id" binding:"required"`
		Side     string `json:"side"      binding:"required"`
		Amount   int64  `json:"amount"    binding:"required"`
		AssetID  uint64 `json:"asset_id"  binding:"required"`
		Odds     string `json:"odds"      binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	var side domain.BetSide
	switch body.Side {
	case "back":
		side = domain.Back
	case "lay":
		side = domain.Lay
	default:
		respondError(c, http.StatusBadRequest, "ERR_INVALID_SIDE", "side must be back or lay")
		return
	}

	if body.Amount <= 0 {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", domain.ErrZeroAmountBet.Error())
		return
	}

	multiplier, err := parseOdds(body.Odds)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ODDS", err.Error())
		return
	}

	// Bounds and ladder alignment are re-checked at block application; doing
	// it here too turns a guaranteed-to-fail transaction into a direct 400.
	var oddsErr error
	h.sched.View(func(engine *chain.Chain) {
		oddsErr = engine.Params().ValidateMultiplier(multiplier)
	})
	if oddsErr != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ODDS", oddsErr.Error())
		return
	}

	txID := h.sched.Submit([]chain.Operation{chain.PlaceBetOp{
		Bettor:           bettor,
		Market:           domain.Ref(body.MarketID),
		Amount:           body.Amount,
		Asset:            domain.AssetID(body.AssetID),
		BackerMultiplier: multiplier,
		Side:             side,
	}})
	respondSuccess(c, http.StatusAccepted, gin.H{"tx_id": txID})
}

// CancelBet godoc
// DELETE /api/bets/:id [JWT]
func (h *TxHandler) CancelBet(c *gin.Context) {
	bettor := middleware.GetAccountID(c)

	betID, ok := parseID(c, "id")
	if !ok {
		return
	}

	txID := h.sched.Submit([]chain.Operation{chain.CancelBetOp{
		Bettor: bettor,
		Bet:    domain.BetID(betID),
	}})
	respondSuccess(c, http.StatusAccepted, gin.H{"tx_id": txID})
}

// SubmitTx godoc
// POST /api/admin/txs [JWT, operator]
// Body: {"ops":[{"kind":"create_event","description":"..."}, ...]}
// Operations in one submission share a transaction, so later ops may use
// negative references to objects created by earlier ones.
func (h *TxHandler) SubmitTx(c *gin.Context) {
	var body struct {
		Ops []json.RawMessage `json:"ops" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	if len(body.Ops) == 0 {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "ops must not be empty")
		return
	}

	ops, err := chain.DecodeOperations(body.Ops)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_OP", err.Error())
		return
	}

	txID := h.sched.Submit(ops)
	respondSuccess(c, http.StatusAccepted, gin.H{"tx_id": txID})
}

// parseOdds converts a decimal odds string ("2.50") into a fixed-point backer
// multiplier.
func parseOdds(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	scaled := d.Mul(decimal.NewFromInt(odds.Precision))
	if !scaled.IsInteger() {
		return 0, domain.ErrOddsIncrement
	}
	return scaled.IntPart(), nil
}
