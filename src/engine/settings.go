package engine

import (
	"fmt"
	"sync"
	"time"

	"stock-trader/src/models"
)

// -----------------------------------------------------------------------------
// TradingSettings
// -----------------------------------------------------------------------------

// TradingSettings holds the mutable automation switches plus the daily
// trade counter. All access is mutex-guarded; the REST surface, the
// control plane and the scheduler share one instance.
type TradingSettings struct {
	mu sync.Mutex

	stopLossMonitoring bool
	killSwitch         bool
	maxDailyTrades     int
	tradingMode        string // vps (paper) or prod (live)

	dailyTradeCount int
	lastResetDate   string
}

// -----------------------------------------------------------------------------

func NewTradingSettings(cfg *models.MConfig) *TradingSettings {
	return &TradingSettings{
		stopLossMonitoring: cfg.Trading.StopLossMonitoring,
		killSwitch:         false,
		maxDailyTrades:     cfg.Trading.MaxDailyTrades,
		tradingMode:        cfg.Broker.Env,
	}
}

// -----------------------------------------------------------------------------

// Snapshot returns a consistent copy of the current settings.
func (ts *TradingSettings) Snapshot() models.MTradingSettings {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	return models.MTradingSettings{
		StopLossMonitoring: ts.stopLossMonitoring,
		KillSwitch:         ts.killSwitch,
		MaxDailyTrades:     ts.maxDailyTrades,
		TradingMode:        ts.tradingMode,
		DailyTradeCount:    ts.dailyTradeCount,
		DailyLimitReached:  ts.maxDailyTrades > 0 && ts.dailyTradeCount >= ts.maxDailyTrades,
		LastResetDate:      ts.lastResetDate,
	}
}

// -----------------------------------------------------------------------------

// Update applies a partial update; nil fields are left unchanged.
func (ts *TradingSettings) Update(update models.MSettingsUpdate) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if update.MaxDailyTrades != nil && *update.MaxDailyTrades < 0 {
		return fmt.Errorf("max daily trades cannot be negative")
	}
	if update.TradingMode != nil && *update.TradingMode != "prod" && *update.TradingMode != "vps" {
		return fmt.Errorf("trading mode must be 'prod' or 'vps', got '%s'", *update.TradingMode)
	}

	if update.StopLossMonitoring != nil {
		ts.stopLossMonitoring = *update.StopLossMonitoring
	}
	if update.KillSwitch != nil {
		ts.killSwitch = *update.KillSwitch
	}
	if update.MaxDailyTrades != nil {
		ts.maxDailyTrades = *update.MaxDailyTrades
	}
	if update.TradingMode != nil {
		ts.tradingMode = *update.TradingMode
	}
	return nil
}

// -----------------------------------------------------------------------------

// EmergencyStop engages the kill switch. Only an explicit settings
// update releases it.
func (ts *TradingSettings) EmergencyStop() {
	ts.mu.Lock()
	ts.killSwitch = true
	ts.mu.Unlock()
}

// -----------------------------------------------------------------------------

// MonitoringEnabled reports whether the stop-loss sweep should run at all.
func (ts *TradingSettings) MonitoringEnabled() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.stopLossMonitoring
}

// -----------------------------------------------------------------------------

// ResetIfNewDay zeroes the daily trade counter on the first call of a
// new calendar date.
func (ts *TradingSettings) ResetIfNewDay(now time.Time) {
	date := now.Format("2006-01-02")

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.lastResetDate != date {
		ts.dailyTradeCount = 0
		ts.lastResetDate = date
	}
}

// -----------------------------------------------------------------------------

// CanTrade reports whether an order may be placed right now: the kill
// switch is off and the daily quota is not exhausted. A zero quota
// means unlimited.
func (ts *TradingSettings) CanTrade() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.killSwitch {
		return false
	}
	if ts.maxDailyTrades > 0 && ts.dailyTradeCount >= ts.maxDailyTrades {
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

// IncrementTradeCount records one executed trade against the quota.
func (ts *TradingSettings) IncrementTradeCount() {
	ts.mu.Lock()
	ts.dailyTradeCount++
	ts.mu.Unlock()
}
