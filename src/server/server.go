package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"stock-trader/src/engine"
	"stock-trader/src/feed"
	"stock-trader/src/logger"
	"stock-trader/src/models"
	"stock-trader/src/subscription"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// MarketServer
// -----------------------------------------------------------------------------

type MarketServer struct {
	Config   *models.MConfig
	Logger   *logger.Logger
	Registry *subscription.Registry
	Settings *engine.TradingSettings
	engine   *gin.Engine

	// WebSocket sessions
	sessionsMu sync.RWMutex
	sessions   map[*ClientSession]struct{}
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewMarketServer(cfg *models.MConfig, log *logger.Logger, registry *subscription.Registry, settings *engine.TradingSettings) *MarketServer {
	// Set Gin mode
	if strings.ToLower(cfg.LogLevel) != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &MarketServer{
		Config:   cfg,
		Logger:   log,
		Registry: registry,
		Settings: settings,
		engine:   gin.Default(),
		sessions: make(map[*ClientSession]struct{}),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *MarketServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/trading/settings", s.getSettings)
	s.engine.PUT("/api/trading/settings", s.putSettings)
	s.engine.POST("/api/trading/emergency-stop", s.postEmergencyStop)

	// WebSocket endpoint
	s.engine.GET("/ws/market", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *MarketServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)
	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *MarketServer) getHealth(c *gin.Context) {
	s.sessionsMu.RLock()
	connections := len(s.sessions)
	s.sessionsMu.RUnlock()

	c.JSON(200, gin.H{
		"status":      "ok",
		"connections": connections,
		"topics":      len(s.Registry.Topics()),
	})
}

// -----------------------------------------------------------------------------

func (s *MarketServer) getSettings(c *gin.Context) {
	c.JSON(200, s.Settings.Snapshot())
}

// -----------------------------------------------------------------------------

func (s *MarketServer) putSettings(c *gin.Context) {
	var update models.MSettingsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(400, gin.H{"error": fmt.Sprintf("invalid settings payload: %v", err)})
		return
	}

	if err := s.Settings.Update(update); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, s.Settings.Snapshot())
}

// -----------------------------------------------------------------------------

func (s *MarketServer) postEmergencyStop(c *gin.Context) {
	s.Settings.EmergencyStop()
	s.Logger.Warning("Emergency stop engaged via REST")
	c.JSON(200, s.Settings.Snapshot())
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *MarketServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	session := newClientSession(s, conn)

	s.sessionsMu.Lock()
	s.sessions[session] = struct{}{}
	s.sessionsMu.Unlock()
	s.Logger.Info("Client %s connected", session.id)

	// Start goroutines for reading/writing
	go session.writePump()
	go session.readPump()
}

// -----------------------------------------------------------------------------

// Disconnect tears one session down: every topic it listened on is
// released in the registry, which unsubscribes upstream when the last
// listener goes. Safe to call multiple times.
func (s *MarketServer) Disconnect(session *ClientSession) {
	session.disconnectOnce.Do(func() {
		s.sessionsMu.Lock()
		delete(s.sessions, session)
		s.sessionsMu.Unlock()

		for _, topic := range session.drainTopics() {
			s.Registry.RemoveListener(topic, session.id)
		}

		close(session.send)
		session.conn.Close()
	})
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage dispatches one client request. Protocol errors
// are answered with an error frame; the connection always stays open.
func (s *MarketServer) HandleClientMessage(session *ClientSession, message []byte) {
	var req models.MClientRequest
	if err := json.Unmarshal(message, &req); err != nil {
		session.queue(models.ErrorResponse("invalid message format"))
		return
	}

	switch req.Type {
	case "subscribe":
		s.handleSubscribe(session, req.Data)
	case "unsubscribe":
		s.handleUnsubscribe(session, req.Data)
	case "ping":
		session.queue(models.NewClientResponse("pong", gin.H{}))
	default:
		session.queue(models.ErrorResponse(fmt.Sprintf("unknown message type '%s'", req.Type)))
	}
}

// -----------------------------------------------------------------------------

func feedKindFor(dataType string) (string, error) {
	switch dataType {
	case "", "price":
		return feed.KindPrice, nil
	case "book", "orderbook":
		return feed.KindOrderBook, nil
	}
	return "", fmt.Errorf("unknown data_type '%s'", dataType)
}

// -----------------------------------------------------------------------------

func (s *MarketServer) handleSubscribe(session *ClientSession, data models.MClientRequestData) {
	if data.Symbol == "" {
		session.queue(models.ErrorResponse("symbol is required"))
		return
	}

	feedKind, err := feedKindFor(data.DataType)
	if err != nil {
		session.queue(models.ErrorResponse(err.Error()))
		return
	}

	// On upstream failure the listener stays registered; a later
	// subscriber retriggers the upstream subscribe.
	topic := subscription.Topic{Symbol: data.Symbol, FeedKind: feedKind}
	if session.trackTopic(topic) {
		if err := s.Registry.AddListener(topic, session); err != nil {
			session.queue(models.ErrorResponse(fmt.Sprintf("subscribe to %s failed", data.Symbol)))
			return
		}
	}

	session.queue(models.NewClientResponse("subscribe_confirm", gin.H{
		"symbol":    data.Symbol,
		"data_type": data.DataType,
	}))
}

// -----------------------------------------------------------------------------

// handleUnsubscribe removes the symbol for both feed kinds.
func (s *MarketServer) handleUnsubscribe(session *ClientSession, data models.MClientRequestData) {
	if data.Symbol == "" {
		session.queue(models.ErrorResponse("symbol is required"))
		return
	}

	for _, kind := range []string{feed.KindPrice, feed.KindOrderBook} {
		topic := subscription.Topic{Symbol: data.Symbol, FeedKind: kind}
		if session.untrackTopic(topic) {
			s.Registry.RemoveListener(topic, session.id)
		}
	}

	session.queue(models.NewClientResponse("unsubscribe_confirm", gin.H{
		"symbol": data.Symbol,
	}))
}
