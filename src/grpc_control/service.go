package grpc_control

import (
	"context"
	"fmt"

	"stock-trader/src/engine"
	"stock-trader/src/interfaces"
	"stock-trader/src/logger"
	"stock-trader/src/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ControlService implements the TradingControlServer interface
type ControlService struct {
	UnimplementedTradingControlServer
	Settings  *engine.TradingSettings
	Scheduler *engine.MonitoringScheduler
	Connector interfaces.IFeedConnector
	Logger    *logger.Logger

	// monitorCtx is the lifetime handed to scheduler restarts.
	monitorCtx context.Context
}

// NewControlService creates a new instance of ControlService
func NewControlService(
	ctx context.Context,
	settings *engine.TradingSettings,
	scheduler *engine.MonitoringScheduler,
	connector interfaces.IFeedConnector,
	log *logger.Logger,
) *ControlService {
	return &ControlService{
		Settings:   settings,
		Scheduler:  scheduler,
		Connector:  connector,
		Logger:     log,
		monitorCtx: ctx,
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, req *Empty) (*StatusResponse, error) {
	snap := s.Settings.Snapshot()

	return &StatusResponse{
		MonitoringRunning:  s.Scheduler.IsRunning(),
		StopLossMonitoring: snap.StopLossMonitoring,
		KillSwitch:         snap.KillSwitch,
		TradingMode:        snap.TradingMode,
		MaxDailyTrades:     int32(snap.MaxDailyTrades),
		DailyTradeCount:    int32(snap.DailyTradeCount),
		FeedConnections:    s.Connector.States(),
	}, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*SettingsResponse, error) {
	update := models.MSettingsUpdate{}
	if req.SetStopLoss {
		update.StopLossMonitoring = &req.StopLossMonitoring
	}
	if req.SetKillSwitch {
		update.KillSwitch = &req.KillSwitch
	}
	if req.SetMaxDailyTrades {
		max := int(req.MaxDailyTrades)
		update.MaxDailyTrades = &max
	}
	if req.TradingMode != "" {
		update.TradingMode = &req.TradingMode
	}

	if err := s.Settings.Update(update); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	snap := s.Settings.Snapshot()
	s.Logger.Info("gRPC: settings updated (mode %s, kill switch %v)", snap.TradingMode, snap.KillSwitch)
	return &SettingsResponse{
		StopLossMonitoring: snap.StopLossMonitoring,
		KillSwitch:         snap.KillSwitch,
		MaxDailyTrades:     int32(snap.MaxDailyTrades),
		TradingMode:        snap.TradingMode,
		DailyTradeCount:    int32(snap.DailyTradeCount),
	}, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) StartMonitoring(ctx context.Context, req *Empty) (*ControlResponse, error) {
	if s.Scheduler.IsRunning() {
		return &ControlResponse{
			Success:      true,
			Message:      "monitoring already running",
			CurrentState: "running",
		}, nil
	}

	s.Scheduler.Start(s.monitorCtx)
	s.Logger.Info("gRPC: monitoring started")
	return &ControlResponse{
		Success:      true,
		Message:      "monitoring started",
		CurrentState: "running",
	}, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) StopMonitoring(ctx context.Context, req *Empty) (*ControlResponse, error) {
	if !s.Scheduler.IsRunning() {
		return &ControlResponse{
			Success:      true,
			Message:      "monitoring already stopped",
			CurrentState: "stopped",
		}, nil
	}

	s.Scheduler.Stop()
	s.Logger.Info("gRPC: monitoring stopped")
	return &ControlResponse{
		Success:      true,
		Message:      "monitoring stopped",
		CurrentState: "stopped",
	}, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) EmergencyStop(ctx context.Context, req *Empty) (*ControlResponse, error) {
	s.Settings.EmergencyStop()
	s.Logger.Warning("gRPC: emergency stop engaged")

	snap := s.Settings.Snapshot()
	return &ControlResponse{
		Success:      true,
		Message:      fmt.Sprintf("kill switch engaged (daily count %d)", snap.DailyTradeCount),
		CurrentState: "halted",
	}, nil
}
