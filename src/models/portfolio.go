package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Portfolio rows
// -----------------------------------------------------------------------------

// MPosition is one held position. StopLoss is optional; a position
// without one is never touched by the monitoring scheduler.
type MPosition struct {
	ID        int64               `json:"id"`
	Ticker    string              `json:"ticker"`
	Shares    decimal.Decimal     `json:"shares"`
	BuyPrice  decimal.Decimal     `json:"buy_price"`
	CostBasis decimal.Decimal     `json:"cost_basis"`
	StopLoss  decimal.NullDecimal `json:"stop_loss"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// MTradeLog is one executed trade, recorded at execution time.
type MTradeLog struct {
	ID        int64           `json:"id"`
	Date      time.Time       `json:"date"`
	Ticker    string          `json:"ticker"`
	Action    string          `json:"action"` // BUY or SELL
	Shares    decimal.Decimal `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	CostBasis decimal.Decimal `json:"cost_basis"`
	PnL       decimal.Decimal `json:"pnl"`
	Reason    string          `json:"reason"`
}

// MDailyPerformance is the end-of-day snapshot, one row per calendar date.
type MDailyPerformance struct {
	Date           time.Time       `json:"date"`
	TotalEquity    decimal.Decimal `json:"total_equity"`
	CashBalance    decimal.Decimal `json:"cash_balance"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
}

// -----------------------------------------------------------------------------
// Operation results
// -----------------------------------------------------------------------------

type MLiquidationResult struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	PnL           decimal.Decimal `json:"pnl"`
	RemainingCash decimal.Decimal `json:"remaining_cash"`
}

type MOrderResult struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	OrderNo string `json:"order_no"`
}

// MQuote is a point-in-time REST quote.
type MQuote struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Change     decimal.Decimal `json:"change"`
	ChangeRate decimal.Decimal `json:"change_rate"`
	Volume     int64           `json:"volume"`
}
