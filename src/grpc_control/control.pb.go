// Package grpc_control provides gRPC types for the trading control service
package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TradingControlServer is the server API for TradingControl service.
type TradingControlServer interface {
	// Status and settings
	GetStatus(context.Context, *Empty) (*StatusResponse, error)
	UpdateSettings(context.Context, *UpdateSettingsRequest) (*SettingsResponse, error)

	// Monitoring lifecycle
	StartMonitoring(context.Context, *Empty) (*ControlResponse, error)
	StopMonitoring(context.Context, *Empty) (*ControlResponse, error)

	// Kill switch
	EmergencyStop(context.Context, *Empty) (*ControlResponse, error)
}

// UnimplementedTradingControlServer can be embedded to have forward compatible implementations.
type UnimplementedTradingControlServer struct{}

func (UnimplementedTradingControlServer) GetStatus(context.Context, *Empty) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetStatus not implemented")
}

func (UnimplementedTradingControlServer) UpdateSettings(context.Context, *UpdateSettingsRequest) (*SettingsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpdateSettings not implemented")
}

func (UnimplementedTradingControlServer) StartMonitoring(context.Context, *Empty) (*ControlResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method StartMonitoring not implemented")
}

func (UnimplementedTradingControlServer) StopMonitoring(context.Context, *Empty) (*ControlResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method StopMonitoring not implemented")
}

func (UnimplementedTradingControlServer) EmergencyStop(context.Context, *Empty) (*ControlResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method EmergencyStop not implemented")
}

// Request/Response message types
type Empty struct{}

type StatusResponse struct {
	MonitoringRunning  bool              `json:"monitoring_running"`
	StopLossMonitoring bool              `json:"stop_loss_monitoring"`
	KillSwitch         bool              `json:"kill_switch"`
	TradingMode        string            `json:"trading_mode"`
	MaxDailyTrades     int32             `json:"max_daily_trades"`
	DailyTradeCount    int32             `json:"daily_trade_count"`
	FeedConnections    map[string]string `json:"feed_connections"`
}

type UpdateSettingsRequest struct {
	StopLossMonitoring bool   `json:"stop_loss_monitoring"`
	SetStopLoss        bool   `json:"set_stop_loss"`
	KillSwitch         bool   `json:"kill_switch"`
	SetKillSwitch      bool   `json:"set_kill_switch"`
	MaxDailyTrades     int32  `json:"max_daily_trades"`
	SetMaxDailyTrades  bool   `json:"set_max_daily_trades"`
	TradingMode        string `json:"trading_mode"`
}

type SettingsResponse struct {
	StopLossMonitoring bool   `json:"stop_loss_monitoring"`
	KillSwitch         bool   `json:"kill_switch"`
	MaxDailyTrades     int32  `json:"max_daily_trades"`
	TradingMode        string `json:"trading_mode"`
	DailyTradeCount    int32  `json:"daily_trade_count"`
}

type ControlResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	CurrentState string `json:"current_state"`
}

// RegisterTradingControlServer registers the server
func RegisterTradingControlServer(s grpc.ServiceRegistrar, srv TradingControlServer) {
	s.RegisterService(&tradingControlServiceDesc, srv)
}

func _TradingControl_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TradingControlServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/stocktrader.TradingControl/GetStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TradingControlServer).GetStatus(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _TradingControl_UpdateSettings_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UpdateSettingsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TradingControlServer).UpdateSettings(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/stocktrader.TradingControl/UpdateSettings"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TradingControlServer).UpdateSettings(ctx, req.(*UpdateSettingsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TradingControl_StartMonitoring_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TradingControlServer).StartMonitoring(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/stocktrader.TradingControl/StartMonitoring"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TradingControlServer).StartMonitoring(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _TradingControl_StopMonitoring_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TradingControlServer).StopMonitoring(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/stocktrader.TradingControl/StopMonitoring"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TradingControlServer).StopMonitoring(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _TradingControl_EmergencyStop_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TradingControlServer).EmergencyStop(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/stocktrader.TradingControl/EmergencyStop"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TradingControlServer).EmergencyStop(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var tradingControlServiceDesc = grpc.ServiceDesc{
	ServiceName: "stocktrader.TradingControl",
	HandlerType: (*TradingControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: _TradingControl_GetStatus_Handler},
		{MethodName: "UpdateSettings", Handler: _TradingControl_UpdateSettings_Handler},
		{MethodName: "StartMonitoring", Handler: _TradingControl_StartMonitoring_Handler},
		{MethodName: "StopMonitoring", Handler: _TradingControl_StopMonitoring_Handler},
		{MethodName: "EmergencyStop", Handler: _TradingControl_EmergencyStop_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "control.proto",
}
