package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-trader/src/broker"
	"stock-trader/src/config"
	"stock-trader/src/engine"
	"stock-trader/src/feed"
	"stock-trader/src/grpc_control"
	"stock-trader/src/helpers"
	"stock-trader/src/interfaces"
	"stock-trader/src/logger"
	"stock-trader/src/network"
	"stock-trader/src/server"
	"stock-trader/src/storage"
	"stock-trader/src/subscription"
	"stock-trader/src/utils"

	"google.golang.org/grpc"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.LogLevel, config.Name)

	// 1. Portfolio storage
	var portfolio interfaces.IPortfolio

	switch config.Storage.DBType {
	case "postgres":
		portfolio, err = storage.NewPostgresPortfolioDB(config.MConfig, appLogger)
	default:
		// Default to SQLite
		portfolio, err = storage.NewSQLitePortfolioDB(config.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := portfolio.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer portfolio.Close()

	// 2. Broker client
	var networkManager interfaces.INetworkManager = network.NewAsyncNetworkManager(config.MConfig, appLogger)
	kis := broker.NewKISClient(config.MConfig, networkManager, appLogger)
	if err := helpers.RetryWithBackoff(appLogger, "broker authentication", 3, time.Second, kis.Authenticate); err != nil {
		appLogger.Critical("Broker authentication failed: %v", err)
	}

	// 3. Upstream feed and fan-out registry
	connector := feed.NewUpstreamConnector(kis, appLogger)
	registry := subscription.NewRegistry(connector, appLogger)
	connector.SetDispatcher(registry)

	// 4. Trading engine
	settings := engine.NewTradingSettings(config.MConfig)
	calendar := utils.GetKRXCalendar()
	scheduler := engine.NewMonitoringScheduler(config.MConfig, appLogger, kis, portfolio, settings, calendar)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Trading.AutoStart {
		scheduler.Start(ctx)
	}

	// 5. gRPC control plane
	grpcAddr := fmt.Sprintf("%s:%d", config.GrpcHost, config.GrpcPort)
	listener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		appLogger.Critical("Failed to listen on %s: %v", grpcAddr, err)
	}

	grpcServer := grpc.NewServer()
	controlService := grpc_control.NewControlService(ctx, settings, scheduler, connector, appLogger)
	grpc_control.RegisterTradingControlServer(grpcServer, controlService)

	go func() {
		appLogger.Info("gRPC control plane on %s", grpcAddr)
		if err := grpcServer.Serve(listener); err != nil {
			appLogger.Error("gRPC server failed: %v", err)
		}
	}()

	// 6. HTTP / WebSocket server
	srv := server.NewMarketServer(config.MConfig, appLogger, registry, settings)
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 7. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	scheduler.Stop()
	grpcServer.GracefulStop()
	connector.Shutdown()
	appLogger.Info("Shutdown complete")
}
