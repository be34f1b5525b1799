package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"stock-trader/src/logger"
	"stock-trader/src/models"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

// SQLitePortfolioDB stores positions, trade logs and daily snapshots in
// a local SQLite file. Cash is book-kept in memory, seeded at startup.
type SQLitePortfolioDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger

	cashMu sync.Mutex
	cash   decimal.Decimal
}

// -----------------------------------------------------------------------------

func NewSQLitePortfolioDB(cfg *models.MConfig, log *logger.Logger) (*SQLitePortfolioDB, error) {
	return &SQLitePortfolioDB{
		Config: cfg,
		Logger: log,
		cash:   decimal.NewFromInt(1000000),
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLitePortfolioDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		d.Logger.Warning("Failed to enable foreign keys: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

// createTables builds the schema. Positions survive restarts, so the
// tables are created only when missing.
func (d *SQLitePortfolioDB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT NOT NULL UNIQUE,
			shares TEXT NOT NULL,
			buy_price TEXT NOT NULL,
			cost_basis TEXT NOT NULL,
			stop_loss TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trade_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TIMESTAMP NOT NULL,
			ticker TEXT NOT NULL,
			action TEXT NOT NULL,
			shares TEXT NOT NULL,
			price TEXT NOT NULL,
			cost_basis TEXT NOT NULL,
			pnl TEXT NOT NULL,
			reason TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS daily_performances (
			date TEXT PRIMARY KEY,
			total_equity TEXT NOT NULL,
			cash_balance TEXT NOT NULL,
			total_pnl TEXT NOT NULL,
			portfolio_value TEXT NOT NULL
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

func scanPosition(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.MPosition, error) {
	var pos models.MPosition
	err := scanner.Scan(&pos.ID, &pos.Ticker, &pos.Shares, &pos.BuyPrice,
		&pos.CostBasis, &pos.StopLoss, &pos.CreatedAt, &pos.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// -----------------------------------------------------------------------------

func (d *SQLitePortfolioDB) ListPositions() ([]models.MPosition, error) {
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

func (d *SQLitePortfolioDB) GetPosition(ticker string) (*models.MPosition, error) {
	row := d.DB.QueryRow(`SELECT id, ticker, shares, buy_price, cost_basis, stop_loss, created_at, updated_at
		FROM positions WHERE ticker = ?`, ticker)

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

// AddPosition records a buy. An existing position is averaged into:
// shares add up, buy price becomes the weighted average, the stop-loss
// is replaced when provided.
func (d *SQLitePortfolioDB) AddPosition(ticker string, shares, price decimal.Decimal, stopLoss decimal.NullDecimal) error {
	if !shares.IsPositive() || !price.IsPositive() {
		return fmt.Errorf("shares and price must be positive")
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing := tx.QueryRow(`SELECT id, ticker, shares, buy_price, cost_basis, stop_loss, created_at, updated_at
		FROM positions WHERE ticker = ?`, ticker)

	now := time.Now()
	cost := shares.Mul(price)

	pos, err := scanPosition(existing)
	if err == sql.ErrNoRows {
		_, err = tx.Exec(`INSERT INTO positions (ticker, shares, buy_price, cost_basis, stop_loss, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
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

		_, err = tx.Exec(`UPDATE positions SET shares = ?, buy_price = ?, cost_basis = ?, stop_loss = ?, updated_at = ?
			WHERE ticker = ?`,
			newShares, avgPrice, newCost, newStop, now, ticker)
		if err != nil {
			return fmt.Errorf("failed to update position %s: %w", ticker, err)
		}
	}

	_, err = tx.Exec(`INSERT INTO trade_logs (date, ticker, action, shares, price, cost_basis, pnl, reason)
		VALUES (?, ?, 'BUY', ?, ?, ?, '0', 'MANUAL')`,
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

// Liquidate sells shares of a position inside one transaction. Selling
// the full position deletes the row; a partial sale shrinks it and
// carries the proportional cost basis out.
func (d *SQLitePortfolioDB) Liquidate(ticker string, shares, price decimal.Decimal, reason string) (*models.MLiquidationResult, error) {
	tx, err := d.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT id, ticker, shares, buy_price, cost_basis, stop_loss, created_at, updated_at
		FROM positions WHERE ticker = ?`, ticker)

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

	// Cost basis leaves proportionally to the shares sold.
	soldCost := pos.CostBasis.Mul(shares).Div(pos.Shares)
	proceeds := shares.Mul(price)
	pnl := proceeds.Sub(soldCost)
	now := time.Now()

	_, err = tx.Exec(`INSERT INTO trade_logs (date, ticker, action, shares, price, cost_basis, pnl, reason)
		VALUES (?, ?, 'SELL', ?, ?, ?, ?, ?)`,
		now, ticker, shares, price, soldCost, pnl, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to log sale for %s: %w", ticker, err)
	}

	if shares.Equal(pos.Shares) {
		if _, err := tx.Exec(`DELETE FROM positions WHERE ticker = ?`, ticker); err != nil {
			return nil, fmt.Errorf("failed to delete position %s: %w", ticker, err)
		}
	} else {
		_, err := tx.Exec(`UPDATE positions SET shares = ?, cost_basis = ?, updated_at = ? WHERE ticker = ?`,
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

// SaveDailyPerformance upserts the snapshot for its date.
func (d *SQLitePortfolioDB) SaveDailyPerformance(perf models.MDailyPerformance) error {
	date := perf.Date.Format("2006-01-02")
	_, err := d.DB.Exec(`INSERT INTO daily_performances (date, total_equity, cash_balance, total_pnl, portfolio_value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_equity = excluded.total_equity,
			cash_balance = excluded.cash_balance,
			total_pnl = excluded.total_pnl,
			portfolio_value = excluded.portfolio_value`,
		date, perf.TotalEquity, perf.CashBalance, perf.TotalPnL, perf.PortfolioValue)
	if err != nil {
		return fmt.Errorf("failed to save daily performance: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLitePortfolioDB) CashBalance() decimal.Decimal {
	d.cashMu.Lock()
	defer d.cashMu.Unlock()
	return d.cash
}

// -----------------------------------------------------------------------------

func (d *SQLitePortfolioDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
