package models

// -----------------------------------------------------------------------------
// Monitoring / trading settings snapshots
// -----------------------------------------------------------------------------

// MTradingSettings is a point-in-time snapshot of the automation settings
// plus the daily counter state.
type MTradingSettings struct {
	StopLossMonitoring bool   `json:"stop_loss_monitoring"`
	KillSwitch         bool   `json:"kill_switch"`
	MaxDailyTrades     int    `json:"max_daily_trades"`
	TradingMode        string `json:"trading_mode"` // vps (paper) or prod (live)
	DailyTradeCount    int    `json:"daily_trade_count"`
	DailyLimitReached  bool   `json:"daily_limit_reached"`
	LastResetDate      string `json:"last_reset_date"`
}

// MSettingsUpdate carries a partial settings update; nil fields are
// left unchanged.
type MSettingsUpdate struct {
	StopLossMonitoring *bool   `json:"stop_loss_monitoring,omitempty"`
	KillSwitch         *bool   `json:"kill_switch,omitempty"`
	MaxDailyTrades     *int    `json:"max_daily_trades,omitempty"`
	TradingMode        *string `json:"trading_mode,omitempty"`
}

// MMonitoringStatus is reported over the control plane.
type MMonitoringStatus struct {
	Running              bool              `json:"running"`
	CheckIntervalSeconds int               `json:"check_interval_seconds"`
	WindowStart          string            `json:"window_start"`
	WindowEnd            string            `json:"window_end"`
	Settings             MTradingSettings  `json:"settings"`
	FeedConnections      map[string]string `json:"feed_connections"`
}
