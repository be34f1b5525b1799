package interfaces

import (
	"stock-trader/src/models"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// IPortfolio defines the contract for portfolio storage operations.
// -----------------------------------------------------------------------------

type IPortfolio interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// ListPositions returns every held position.
	ListPositions() ([]models.MPosition, error)

	// -----------------------------------------------------------------------------

	// GetPosition returns the position for one ticker, or nil when not held.
	GetPosition(ticker string) (*models.MPosition, error)

	// -----------------------------------------------------------------------------

	// AddPosition records a buy, averaging into an existing position
	// when the ticker is already held.
	AddPosition(ticker string, shares, price decimal.Decimal, stopLoss decimal.NullDecimal) error

	// -----------------------------------------------------------------------------

	// Liquidate sells shares of a position, records the trade log and
	// returns the realized result.
	Liquidate(ticker string, shares, price decimal.Decimal, reason string) (*models.MLiquidationResult, error)

	// -----------------------------------------------------------------------------

	// SaveDailyPerformance upserts the end-of-day snapshot for its date.
	SaveDailyPerformance(perf models.MDailyPerformance) error

	// -----------------------------------------------------------------------------

	// CashBalance returns the current cash balance.
	CashBalance() decimal.Decimal

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
