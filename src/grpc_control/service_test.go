package grpc_control

import (
	"context"
	"errors"
	"testing"

	"stock-trader/src/engine"
	"stock-trader/src/interfaces"
	"stock-trader/src/logger"
	"stock-trader/src/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Minimal fakes
// -----------------------------------------------------------------------------

type noopBroker struct{}

func (noopBroker) Authenticate() error                             { return nil }
func (noopBroker) GetQuote(string) (*models.MQuote, error)         { return nil, errors.New("n/a") }
func (noopBroker) GetOrderBook(string) (*models.MRealtimeOrderBook, error) {
	return nil, errors.New("n/a")
}
func (noopBroker) PlaceOrder(string, string, int64, decimal.Decimal) (*models.MOrderResult, error) {
	return nil, errors.New("n/a")
}
func (noopBroker) OpenFeedConnection(string) (interfaces.IFeedTransport, error) {
	return nil, errors.New("n/a")
}
func (noopBroker) HandshakeFrame(string) models.MHandshakeFrame { return models.MHandshakeFrame{} }

type emptyPortfolio struct{}

func (emptyPortfolio) Initialize() error                            { return nil }
func (emptyPortfolio) ListPositions() ([]models.MPosition, error)   { return nil, nil }
func (emptyPortfolio) GetPosition(string) (*models.MPosition, error) { return nil, nil }
func (emptyPortfolio) AddPosition(string, decimal.Decimal, decimal.Decimal, decimal.NullDecimal) error {
	return nil
}
func (emptyPortfolio) Liquidate(string, decimal.Decimal, decimal.Decimal, string) (*models.MLiquidationResult, error) {
	return nil, errors.New("n/a")
}
func (emptyPortfolio) SaveDailyPerformance(models.MDailyPerformance) error { return nil }
func (emptyPortfolio) CashBalance() decimal.Decimal                        { return decimal.Zero }
func (emptyPortfolio) Close() error                                        { return nil }

type idleConnector struct{}

func (idleConnector) EnsureConnection(string) error    { return nil }
func (idleConnector) Subscribe(string, string) error   { return nil }
func (idleConnector) Unsubscribe(string, string) error { return nil }
func (idleConnector) States() map[string]string {
	return map[string]string{"H0STCNT0": "open"}
}
func (idleConnector) Shutdown() {}

// -----------------------------------------------------------------------------

func newTestService(t *testing.T) *ControlService {
	t.Helper()

	cfg := &models.MConfig{
		Trading: models.MTradingConfig{
			CheckIntervalSeconds: 3600, // no tick fires during a test
			WindowStart:          "09:00",
			WindowEnd:            "15:30",
			MaxDailyTrades:       10,
			StopLossMonitoring:   true,
		},
		Broker: models.MBrokerConfig{Env: "vps"},
	}

	log := logger.NewLogger("error", "test")
	settings := engine.NewTradingSettings(cfg)
	scheduler := engine.NewMonitoringScheduler(cfg, log, noopBroker{}, emptyPortfolio{}, settings, nil)

	ctx := t.Context()
	svc := NewControlService(ctx, settings, scheduler, idleConnector{}, log)
	t.Cleanup(scheduler.Stop)
	return svc
}

// -----------------------------------------------------------------------------

func TestGetStatus(t *testing.T) {
	svc := newTestService(t)

	status, err := svc.GetStatus(context.Background(), &Empty{})
	require.NoError(t, err)

	assert.False(t, status.MonitoringRunning)
	assert.True(t, status.StopLossMonitoring)
	assert.False(t, status.KillSwitch)
	assert.Equal(t, "vps", status.TradingMode)
	assert.Equal(t, "open", status.FeedConnections["H0STCNT0"])
}

// -----------------------------------------------------------------------------

func TestStartStopMonitoring(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.StartMonitoring(context.Background(), &Empty{})
	require.NoError(t, err)
	assert.Equal(t, "running", resp.CurrentState)
	assert.True(t, svc.Scheduler.IsRunning())

	// Second start is a no-op.
	resp, err = svc.StartMonitoring(context.Background(), &Empty{})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	resp, err = svc.StopMonitoring(context.Background(), &Empty{})
	require.NoError(t, err)
	assert.Equal(t, "stopped", resp.CurrentState)
	assert.False(t, svc.Scheduler.IsRunning())
}

// -----------------------------------------------------------------------------

func TestUpdateSettingsPartial(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.UpdateSettings(context.Background(), &UpdateSettingsRequest{
		SetKillSwitch: true,
		KillSwitch:    true,
	})
	require.NoError(t, err)
	assert.True(t, resp.KillSwitch)
	assert.True(t, resp.StopLossMonitoring) // untouched

	_, err = svc.UpdateSettings(context.Background(), &UpdateSettingsRequest{
		TradingMode: "sandbox",
	})
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestEmergencyStopEngagesKillSwitch(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.EmergencyStop(context.Background(), &Empty{})
	require.NoError(t, err)
	assert.Equal(t, "halted", resp.CurrentState)
	assert.False(t, svc.Settings.CanTrade())
}
