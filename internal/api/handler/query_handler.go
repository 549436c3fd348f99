package handler

import (
	"errors"
	"net/http"

	"github.com/evetabi/bookie/internal/api/middleware"
	"github.com/evetabi/bookie/internal/chain"
	"github.com/evetabi/bookie/internal/domain"
	"github.com/evetabi/bookie/internal/odds"
	"github.com/evetabi/bookie/internal/repository"
	"github.com/evetabi/bookie/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// QueryHandler serves read-only views of the engine state and the block
// journal. Engine reads go through the scheduler's View so they never race
// block application.
type QueryHandler struct {
	sched     *scheduler.Scheduler
	blockRepo *repository.BlockRepository
	eventRepo *repository.EventRepository
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(sched *scheduler.Scheduler, blockRepo *repository.BlockRepository, eventRepo *repository.EventRepository) *QueryHandler {
	return &QueryHandler{sched: sched, blockRepo: blockRepo, eventRepo: eventRepo}
}

// ──────────────────────────────────────────────────────────────────────────────
// View types — engine objects with external statuses and decimal odds
// ──────────────────────────────────────────────────────────────────────────────

type groupView struct {
	ID                 domain.GroupID `json:"id"`
	Description        string         `json:"description"`
	EventID            domain.EventID `json:"event_id"`
	RulesID            domain.RulesID `json:"rules_id"`
	AssetID            domain.AssetID `json:"asset_id"`
	Status             string         `json:"status"`
	TotalMatchedAmount int64          `json:"total_matched_amount"`
	NeverInPlay        bool           `json:"never_in_play"`
	SettlingTime       int64          `json:"settling_time,omitempty"`
}

type marketView struct {
	ID              domain.MarketID `json:"id"`
	GroupID         domain.GroupID  `json:"group_id"`
	Description     string          `json:"description"`
	PayoutCondition string          `json:"payout_condition"`
	Status          string          `json:"status"`
	Resolution      string          `json:"resolution,omitempty"`
}

type betView struct {
	ID       domain.BetID     `json:"id"`
	Bettor   domain.AccountID `json:"bettor"`
	MarketID domain.MarketID  `json:"market_id"`
	Amount   int64            `json:"amount"`
	AssetID  domain.AssetID   `json:"asset_id"`
	Odds     decimal.Decimal  `json:"odds"`
	Side     string           `json:"side"`
	Delayed  bool             `json:"delayed"`
}

type positionView struct {
	MarketID                domain.MarketID `json:"market_id"`
	PayIfPayoutCondition    int64           `json:"pay_if_payout_condition"`
	PayIfNotPayoutCondition int64           `json:"pay_if_not_payout_condition"`
	PayIfCanceled           int64           `json:"pay_if_canceled"`
	PayIfNotCanceled        int64           `json:"pay_if_not_canceled"`
}

func toGroupView(g domain.Group) groupView {
	return groupView{
		ID:                 g.ID,
		Description:        g.Description,
		EventID:            g.EventID,
		RulesID:            g.RulesID,
		AssetID:            g.AssetID,
		Status:             g.Status.ExternalStatus(),
		TotalMatchedAmount: g.TotalMatchedAmount,
		NeverInPlay:        g.NeverInPlay,
		SettlingTime:       g.SettlingTime,
	}
}

func toMarketView(m domain.Market) marketView {
	v := marketView{
		ID:              m.ID,
		GroupID:         m.GroupID,
		Description:     m.Description,
		PayoutCondition: m.PayoutCondition,
		Status:          m.EffectiveStatus().String(),
	}
	if m.Resolution != domain.ResolutionUnset {
		v.Resolution = m.Resolution.String()
	}
	return v
}

func toBetView(b domain.Bet) betView {
	return betView{
		ID:       b.ID,
		Bettor:   b.Bettor,
		MarketID: b.MarketID,
		Amount:   b.Amount,
		AssetID:  b.AssetID,
		Odds:     decimalOdds(b.BackerMultiplier),
		Side:     b.Side.String(),
		Delayed:  b.Delayed(),
	}
}

// decimalOdds converts a fixed-point backer multiplier to decimal odds.
func decimalOdds(multiplier int64) decimal.Decimal {
	return decimal.NewFromInt(multiplier).Div(decimal.NewFromInt(odds.Precision))
}

// ──────────────────────────────────────────────────────────────────────────────
// Engine queries
// ──────────────────────────────────────────────────────────────────────────────

// ListGroups godoc
// GET /api/groups
func (h *QueryHandler) ListGroups(c *gin.Context) {
	var views []groupView
	h.sched.View(func(engine *chain.Chain) {
		for _, g := range engine.Groups() {
			views = append(views, toGroupView(g))
		}
	})
	page, limit := parsePagination(c)
	respondList(c, views, len(views), page, limit)
}

// GetGroup godoc
// GET /api/groups/:id — the group plus its member markets.
func (h *QueryHandler) GetGroup(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var (
		g       domain.Group
		markets []domain.Market
		err     error
	)
	h.sched.View(func(engine *chain.Chain) {
		g, err = engine.Group(domain.GroupID(id))
		if err != nil {
			return
		}
		markets, err = engine.GroupMarkets(domain.GroupID(id))
	})
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		return
	}

	marketViews := make([]marketView, 0, len(markets))
	for _, m := range markets {
		marketViews = append(marketViews, toMarketView(m))
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"group":   toGroupView(g),
		"markets": marketViews,
	})
}

// GetMarketBook godoc
// GET /api/markets/:id/book — resting bets in match priority order, then the
// delayed queue.
func (h *QueryHandler) GetMarketBook(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var (
		bets []domain.Bet
		err  error
	)
	h.sched.View(func(engine *chain.Chain) {
		bets, err = engine.MarketBook(domain.MarketID(id))
	})
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		return
	}

	views := make([]betView, 0, len(bets))
	for _, b := range bets {
		views = append(views, toBetView(b))
	}
	respondSuccess(c, http.StatusOK, views)
}

// GetMyBets godoc
// GET /api/markets/:id/bets [JWT] — the caller's unmatched bets on one market.
func (h *QueryHandler) GetMyBets(c *gin.Context) {
	bettor := middleware.GetAccountID(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var (
		bets []domain.Bet
		err  error
	)
	h.sched.View(func(engine *chain.Chain) {
		bets, err = engine.BettorBets(domain.MarketID(id), bettor)
	})
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		return
	}

	views := make([]betView, 0, len(bets))
	for _, b := range bets {
		views = append(views, toBetView(b))
	}
	respondSuccess(c, http.StatusOK, views)
}

// GetPosition godoc
// GET /api/markets/:id/position [JWT] — the caller's matched position.
func (h *QueryHandler) GetPosition(c *gin.Context) {
	bettor := middleware.GetAccountID(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var (
		pos domain.Position
		err error
	)
	h.sched.View(func(engine *chain.Chain) {
		pos, err = engine.Position(domain.MarketID(id), bettor)
	})
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		return
	}

	respondSuccess(c, http.StatusOK, positionView{
		MarketID:                domain.MarketID(id),
		PayIfPayoutCondition:    pos.PayIfPayoutCondition,
		PayIfNotPayoutCondition: pos.PayIfNotPayoutCondition,
		PayIfCanceled:           pos.PayIfCanceled,
		PayIfNotCanceled:        pos.PayIfNotCanceled,
	})
}

// GetBalance godoc
// GET /api/balance?asset=1 [JWT]
func (h *QueryHandler) GetBalance(c *gin.Context) {
	account := middleware.GetAccountID(c)

	asset, err := parseAssetQuery(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ASSET", "invalid asset id")
		return
	}

	var balance int64
	h.sched.View(func(engine *chain.Chain) {
		balance = engine.Balance(account, asset)
	})
	respondSuccess(c, http.StatusOK, gin.H{
		"account_id": account,
		"asset_id":   asset,
		"balance":    balance,
	})
}

// GetChainHead godoc
// GET /api/chain/head
func (h *QueryHandler) GetChainHead(c *gin.Context) {
	var (
		height    uint64
		blockTime int64
	)
	h.sched.View(func(engine *chain.Chain) {
		height = engine.Height()
		blockTime = engine.Now()
	})
	respondSuccess(c, http.StatusOK, gin.H{
		"height":      height,
		"block_time":  blockTime,
		"pending_txs": h.sched.PendingCount(),
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Journal queries
// ──────────────────────────────────────────────────────────────────────────────

// GetBlock godoc
// GET /api/blocks/:height — journaled header, receipts, and events.
func (h *QueryHandler) GetBlock(c *gin.Context) {
	height, ok := parseID(c, "height")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	block, err := h.blockRepo.GetByHeight(ctx, height)
	if err != nil {
		if errors.Is(err, repository.ErrBlockNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		} else {
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch block")
		}
		return
	}
	receipts, err := h.blockRepo.GetReceiptsByBlock(ctx, height)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch receipts")
		return
	}
	events, err := h.eventRepo.GetByBlock(ctx, height)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch events")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"block":    block,
		"receipts": receipts,
		"events":   events,
	})
}

// GetReceipt godoc
// GET /api/txs/:id — the journaled outcome of a submitted transaction.
// 404 means unknown id or a block that has not been produced yet.
func (h *QueryHandler) GetReceipt(c *gin.Context) {
	rec, err := h.blockRepo.GetReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrReceiptNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		} else {
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch receipt")
		}
		return
	}
	respondSuccess(c, http.StatusOK, rec)
}

// GetMyEvents godoc
// GET /api/events/my?page=1&limit=20 [JWT] — the caller's fill, cancel, and
// settlement history from the journal, newest first.
func (h *QueryHandler) GetMyEvents(c *gin.Context) {
	bettor := middleware.GetAccountID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	rows, err := h.eventRepo.GetByBettor(c.Request.Context(), bettor, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch events")
		return
	}
	respondList(c, rows, len(rows), page, limit)
}

// parseAssetQuery reads the required ?asset= query parameter.
func parseAssetQuery(c *gin.Context) (domain.AssetID, error) {
	var query struct {
		Asset uint64 `form:"asset" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		return 0, err
	}
	return domain.AssetID(query.Asset), nil
}
