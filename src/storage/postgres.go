package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"stock-trader/src/logger"
	"stock-trader/src/models"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

// PostgresPortfolioDB is the Postgres-backed portfolio store, selected
// with storage.db_type "postgres".
type PostgresPortfolioDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger

	cashMu sync.Mutex
	cash   decimal.Decimal
}

// -----------------------------------------------------------------------------

func NewPostgresPortfolioDB(cfg *models.MConfig, log *logger.Logger) (*PostgresPortfolioDB, error) {
	return &PostgresPortfolioDB{
		Config: cfg,
		Logger: log,
		cash:   decimal.NewFromInt(1000000),
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresPortfolioDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db
	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *PostgresPortfolioDB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			id SERIAL PRIMARY KEY,
			ticker TEXT NOT NULL UNIQUE,
			shares NUMERIC NOT NULL,
			buy_price NUMERIC NOT NULL,
			cost_basis NUMERIC NOT NULL,
			stop_loss NUMERIC,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trade_logs (
			id SERIAL PRIMARY KEY,
			date TIMESTAMPTZ NOT NULL,
			ticker TEXT NOT NULL,
			action TEXT NOT NULL,
			shares NUMERIC NOT NULL,
			price NUMERIC NOT NULL,
			cost_basis NUMERIC NOT NULL,
			pnl NUMERIC NOT NULL,
			reason TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS daily_performances (
			date DATE PRIMARY KEY,
			total_equity NUMERIC NOT NULL,
			cash_balance NUMERIC NOT NULL,
			total_pnl NUMERIC NOT NULL,
			portfolio_value NUMERIC NOT NULL
		);`,
	}

	for _, query := range queries {
		if _, err := d.DB.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresPortfolioDB) ListPositions() ([]models.MPosition, error) {
	rows, err := d.DB.Query(`SELECT id, ticker, shares, buy_price, cost_basis, stop_loss, created_at, updated_at
		FROM positions ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []models.MPosition
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresPortfolioDB) GetPosition(ticker string) (*models.MPosition, error) {
	row := d.DB.QueryRow(`SELECT id, ticker, shares, buy_price, cost_basis, stop_loss, created_at, updated_at
		FROM positions WHERE ticker = $1`, ticker)

	pos, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s: %w", ticker, err)
	}
	return pos, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresPortfolioDB) AddPosition(ticker string, shares, price decimal.Decimal, stopLoss decimal.NullDecimal) error {
	if !shares.IsPositive() || !price.IsPositive() {
		return fmt.Errorf("shares and price must be positive")
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing := tx.QueryRow(`SELECT id, ticker, shares, buy_price, cost_basis, stop_loss, created_at, updated_at
		FROM positions WHERE ticker = $1 FOR UPDATE`, ticker)

	now := time.Now()
	cost := shares.Mul(price)

	pos, err := scanPosition(existing)
	if err == sql.ErrNoRows {
		_, err = tx.Exec(`INSERT INTO positions (ticker, shares, buy_price, cost_basis, stop_loss, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ticker, shares, price, cost, stopLoss, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", ticker, err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to read position %s: %w", ticker, err)
	} else {
		newShares := pos.Shares.Add(shares)
		newCost := pos.CostBasis.Add(cost)
		avgPrice := newCost.Div(newShares)

		newStop := pos.StopLoss
		if stopLoss.Valid {
			newStop = stopLoss
		}

		_, err = tx.Exec(`UPDATE positions SET shares = $1, buy_price = $2, cost_basis = $3, stop_loss = $4, updated_at = $5
			WHERE ticker = $6`,
			newShares, avgPrice, newCost, newStop, now, ticker)
		if err != nil {
			return fmt.Errorf("failed to update position %s: %w", ticker, err)
		}
	}

	_, err = tx.Exec(`INSERT INTO trade_logs (date, ticker, action, shares, price, cost_basis, pnl, reason)
		VALUES ($1, $2, 'BUY', $3, $4, $5, 0, 'MANUAL')`,
		now, ticker, shares, price, cost)
	if err != nil {
		return fmt.Errorf("failed to log buy for %s: %w", ticker, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	d.cashMu.Lock()
	d.cash = d.cash.Sub(cost)
	d.cashMu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresPortfolioDB) Liquidate(ticker string, shares, price decimal.Decimal, reason string) (*models.MLiquidationResult, error) {
	tx, err := d.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT id, ticker, shares, buy_price, cost_basis, stop_loss, created_at, updated_at
		FROM positions WHERE ticker = $1 FOR UPDATE`, ticker)

	pos, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no position held for %s", ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read position %s: %w", ticker, err)
	}

	if shares.GreaterThan(pos.Shares) {
		return nil, fmt.Errorf("cannot sell %s shares of %s, only %s held", shares, ticker, pos.Shares)
	}

	soldCost := pos.CostBasis.Mul(shares).Div(pos.Shares)
	proceeds := shares.Mul(price)
	pnl := proceeds.Sub(soldCost)
	now := time.Now()

	_, err = tx.Exec(`INSERT INTO trade_logs (date, ticker, action, shares, price, cost_basis, pnl, reason)
		VALUES ($1, $2, 'SELL', $3, $4, $5, $6, $7)`,
		now, ticker, shares, price, soldCost, pnl, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to log sale for %s: %w", ticker, err)
	}

	if shares.Equal(pos.Shares) {
		if _, err := tx.Exec(`DELETE FROM positions WHERE ticker = $1`, ticker); err != nil {
			return nil, fmt.Errorf("failed to delete position %s: %w", ticker, err)
		}
	} else {
		_, err := tx.Exec(`UPDATE positions SET shares = $1, cost_basis = $2, updated_at = $3 WHERE ticker = $4`,
			pos.Shares.Sub(shares), pos.CostBasis.Sub(soldCost), now, ticker)
		if err != nil {
			return nil, fmt.Errorf("failed to shrink position %s: %w", ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	d.cashMu.Lock()
	d.cash = d.cash.Add(proceeds)
	remaining := d.cash
	d.cashMu.Unlock()

	return &models.MLiquidationResult{
		Success:       true,
		Message:       fmt.Sprintf("sold %s %s at %s (%s)", shares, ticker, price, reason),
		PnL:           pnl,
		RemainingCash: remaining,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresPortfolioDB) SaveDailyPerformance(perf models.MDailyPerformance) error {
	_, err := d.DB.Exec(`INSERT INTO daily_performances (date, total_equity, cash_balance, total_pnl, portfolio_value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			total_equity = EXCLUDED.total_equity,
			cash_balance = EXCLUDED.cash_balance,
			total_pnl = EXCLUDED.total_pnl,
			portfolio_value = EXCLUDED.portfolio_value`,
		perf.Date, perf.TotalEquity, perf.CashBalance, perf.TotalPnL, perf.PortfolioValue)
	if err != nil {
		return fmt.Errorf("failed to save daily performance: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresPortfolioDB) CashBalance() decimal.Decimal {
	d.cashMu.Lock()
	defer d.cashMu.Unlock()
	return d.cash
}

// -----------------------------------------------------------------------------

func (d *PostgresPortfolioDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
