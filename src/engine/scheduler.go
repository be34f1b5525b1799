package engine

import (
	"context"
	"sync"
	"time"

	"stock-trader/src/interfaces"
	"stock-trader/src/logger"
	"stock-trader/src/models"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// MonitoringScheduler
// -----------------------------------------------------------------------------

// MonitoringScheduler runs the periodic stop-loss sweep. Each cycle it
// walks every position with a stop-loss, fetches a fresh quote and
// liquidates positions whose price touched the threshold. A liquidated
// position leaves the store, so a breach fires at most one order.
type MonitoringScheduler struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Broker    interfaces.IBrokerClient
	Portfolio interfaces.IPortfolio
	Settings  *TradingSettings
	Calendar  interfaces.ITradingCalendar

	// now is swappable for deterministic sweeps.
	now func() time.Time
	loc *time.Location

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// -----------------------------------------------------------------------------

func NewMonitoringScheduler(cfg *models.MConfig, log *logger.Logger, broker interfaces.IBrokerClient,
	portfolio interfaces.IPortfolio, settings *TradingSettings, cal interfaces.ITradingCalendar) *MonitoringScheduler {

	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.UTC
	}

	return &MonitoringScheduler{
		Config:    cfg,
		Logger:    log,
		Broker:    broker,
		Portfolio: portfolio,
		Settings:  settings,
		Calendar:  cal,
		now:       time.Now,
		loc:       loc,
	}
}

// -----------------------------------------------------------------------------

// Start launches the sweep loop. Calling Start on a running scheduler
// is a no-op.
func (ms *MonitoringScheduler) Start(ctx context.Context) {
	ms.mu.Lock()
	if ms.running {
		ms.mu.Unlock()
		return
	}
	ms.running = true
	ms.stopCh = make(chan struct{})
	ms.doneCh = make(chan struct{})
	stopCh, doneCh := ms.stopCh, ms.doneCh
	ms.mu.Unlock()

	ms.Logger.Info("Monitoring scheduler started (interval %ds)", ms.Config.Trading.CheckIntervalSeconds)

	go func() {
		defer close(doneCh)

		ticker := time.NewTicker(time.Duration(ms.Config.Trading.CheckIntervalSeconds) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				ms.markStopped()
				return
			case <-stopCh:
				return
			case <-ticker.C:
				ms.runCycle()
			}
		}
	}()
}

// -----------------------------------------------------------------------------

// Stop halts the loop and waits for the current cycle to finish.
// Calling Stop on a stopped scheduler is a no-op.
func (ms *MonitoringScheduler) Stop() {
	ms.mu.Lock()
	if !ms.running {
		ms.mu.Unlock()
		return
	}
	ms.running = false
	close(ms.stopCh)
	doneCh := ms.doneCh
	ms.mu.Unlock()

	<-doneCh
	ms.Logger.Info("Monitoring scheduler stopped")
}

// -----------------------------------------------------------------------------

func (ms *MonitoringScheduler) markStopped() {
	ms.mu.Lock()
	ms.running = false
	ms.mu.Unlock()
}

// -----------------------------------------------------------------------------

// IsRunning reports whether the sweep loop is active.
func (ms *MonitoringScheduler) IsRunning() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.running
}

// -----------------------------------------------------------------------------
// Sweep cycle
// -----------------------------------------------------------------------------

// runCycle performs one sweep. Gate order: monitoring switch, trading
// window, daily counter reset, then per-position quote and breach
// checks with the kill switch and quota consulted right before each
// order.
func (ms *MonitoringScheduler) runCycle() {
	if !ms.Settings.MonitoringEnabled() {
		return
	}

	now := ms.now().In(ms.loc)
	if !ms.inTradingWindow(now) {
		return
	}

	ms.Settings.ResetIfNewDay(now)

	positions, err := ms.Portfolio.ListPositions()
	if err != nil {
		ms.Logger.Error("Sweep aborted, cannot list positions: %v", err)
		return
	}

	for _, pos := range positions {
		if !pos.StopLoss.Valid {
			continue
		}

		quote, err := ms.Broker.GetQuote(pos.Ticker)
		if err != nil {
			// One dead quote must not block the rest of the sweep.
			ms.Logger.Warning("Quote for %s failed, skipping: %v", pos.Ticker, err)
			continue
		}

		if quote.Price.GreaterThan(pos.StopLoss.Decimal) {
			continue
		}

		if !ms.Settings.CanTrade() {
			ms.Logger.Warning("Stop-loss breached for %s at %s but trading is gated", pos.Ticker, quote.Price)
			continue
		}

		ms.executeStopLoss(pos, quote.Price)
	}
}

// -----------------------------------------------------------------------------

// executeStopLoss sells the full position at market, then records the
// liquidation. The order goes out before the book-keeping: a crash in
// between leaves a stale position that the next sweep re-checks against
// a live quote rather than losing a real fill.
func (ms *MonitoringScheduler) executeStopLoss(pos models.MPosition, price decimal.Decimal) {
	ms.Logger.Warning("Stop-loss triggered for %s: price %s <= stop %s", pos.Ticker, price, pos.StopLoss.Decimal)

	qty := pos.Shares.IntPart()
	if _, err := ms.Broker.PlaceOrder(pos.Ticker, "sell", qty, decimal.Zero); err != nil {
		ms.Logger.Error("Stop-loss order for %s failed: %v", pos.Ticker, err)
		return
	}

	result, err := ms.Portfolio.Liquidate(pos.Ticker, pos.Shares, price, "STOP_LOSS")
	if err != nil {
		ms.Logger.Error("Recording liquidation for %s failed: %v", pos.Ticker, err)
		return
	}

	ms.Settings.IncrementTradeCount()
	ms.Logger.Info("Position %s liquidated: %s (pnl %s)", pos.Ticker, result.Message, result.PnL)
}

// -----------------------------------------------------------------------------

// inTradingWindow checks the exchange calendar and the configured
// intraday window (HH:MM, inclusive bounds).
func (ms *MonitoringScheduler) inTradingWindow(now time.Time) bool {
	if ms.Calendar != nil && !ms.Calendar.IsTradingDay(now) {
		return false
	}

	start, err1 := time.Parse("15:04", ms.Config.Trading.WindowStart)
	end, err2 := time.Parse("15:04", ms.Config.Trading.WindowEnd)
	if err1 != nil || err2 != nil {
		ms.Logger.Error("Invalid trading window '%s'-'%s'", ms.Config.Trading.WindowStart, ms.Config.Trading.WindowEnd)
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	return minutes >= startMin && minutes <= endMin
}

// -----------------------------------------------------------------------------
// Daily close
// -----------------------------------------------------------------------------

// ProcessDailyClose values every open position at the latest quote and
// upserts the end-of-day performance snapshot.
func (ms *MonitoringScheduler) ProcessDailyClose() (*models.MDailyPerformance, error) {
	positions, err := ms.Portfolio.ListPositions()
	if err != nil {
		return nil, err
	}

	portfolioValue := decimal.Zero
	totalCost := decimal.Zero
	for _, pos := range positions {
		quote, err := ms.Broker.GetQuote(pos.Ticker)
		if err != nil {
			ms.Logger.Warning("Daily close quote for %s failed, valuing at cost: %v", pos.Ticker, err)
			portfolioValue = portfolioValue.Add(pos.CostBasis)
			totalCost = totalCost.Add(pos.CostBasis)
			continue
		}
		portfolioValue = portfolioValue.Add(quote.Price.Mul(pos.Shares))
		totalCost = totalCost.Add(pos.CostBasis)
	}

	now := ms.now().In(ms.loc)
	cash := ms.Portfolio.CashBalance()
	perf := models.MDailyPerformance{
		Date:           time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, ms.loc),
		TotalEquity:    cash.Add(portfolioValue),
		CashBalance:    cash,
		TotalPnL:       portfolioValue.Sub(totalCost),
		PortfolioValue: portfolioValue,
	}

	if err := ms.Portfolio.SaveDailyPerformance(perf); err != nil {
		return nil, err
	}

	ms.Logger.Info("Daily close recorded: equity %s, pnl %s", perf.TotalEquity, perf.TotalPnL)
	return &perf, nil
}
