package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"stock-trader/src/engine"
	"stock-trader/src/feed"
	"stock-trader/src/logger"
	"stock-trader/src/models"
	"stock-trader/src/subscription"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fake connector (no real upstream in these tests)
// -----------------------------------------------------------------------------

type stubConnector struct {
	mu           sync.Mutex
	subscribes   []string
	unsubscribes []string
}

func (s *stubConnector) EnsureConnection(feedKind string) error { return nil }

func (s *stubConnector) Subscribe(feedKind, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribes = append(s.subscribes, symbol+"/"+feedKind)
	return nil
}

func (s *stubConnector) Unsubscribe(feedKind, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribes = append(s.unsubscribes, symbol+"/"+feedKind)
	return nil
}

func (s *stubConnector) States() map[string]string { return map[string]string{} }

func (s *stubConnector) Shutdown() {}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func newTestServer(t *testing.T) (*MarketServer, *subscription.Registry, *httptest.Server) {
	t.Helper()

	cfg := &models.MConfig{
		Name:     "test",
		Host:     "127.0.0.1",
		Port:     8000,
		LogLevel: "error",
		Trading: models.MTradingConfig{
			CheckIntervalSeconds: 30,
			WindowStart:          "09:00",
			WindowEnd:            "15:30",
			MaxDailyTrades:       10,
			StopLossMonitoring:   true,
		},
		Broker: models.MBrokerConfig{Env: "vps"},
	}

	log := logger.NewLogger("error", "test")
	registry := subscription.NewRegistry(&stubConnector{}, log)
	settings := engine.NewTradingSettings(cfg)
	srv := NewMarketServer(cfg, log, registry, settings)

	ts := httptest.NewServer(srv.engine)
	t.Cleanup(ts.Close)
	return srv, registry, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/market"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readResponse(t *testing.T, conn *websocket.Conn) models.MClientResponse {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp models.MClientResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

// -----------------------------------------------------------------------------
// WebSocket protocol
// -----------------------------------------------------------------------------

func TestSubscribeConfirm(t *testing.T) {
	_, registry, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(models.MClientRequest{
		Type: "subscribe",
		Data: models.MClientRequestData{Symbol: "005930", DataType: "price"},
	}))

	resp := readResponse(t, conn)
	assert.Equal(t, "subscribe_confirm", resp.Type)
	assert.NotEmpty(t, resp.Timestamp)

	topic := subscription.Topic{Symbol: "005930", FeedKind: feed.KindPrice}
	assert.Equal(t, 1, registry.ListenerCount(topic))
}

// -----------------------------------------------------------------------------

func TestDuplicateSubscribeIsIdempotent(t *testing.T) {
	_, registry, ts := newTestServer(t)
	conn := dialWS(t, ts)

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteJSON(models.MClientRequest{
			Type: "subscribe",
			Data: models.MClientRequestData{Symbol: "005930", DataType: "price"},
		}))
		resp := readResponse(t, conn)
		assert.Equal(t, "subscribe_confirm", resp.Type)
	}

	topic := subscription.Topic{Symbol: "005930", FeedKind: feed.KindPrice}
	assert.Equal(t, 1, registry.ListenerCount(topic))
}

// -----------------------------------------------------------------------------

func TestSubscribeBookDataType(t *testing.T) {
	_, registry, ts := newTestServer(t)
	conn := dialWS(t, ts)

	// "book" is the wire name; "orderbook" stays accepted as an alias.
	for _, dt := range []string{"book", "orderbook"} {
		require.NoError(t, conn.WriteJSON(models.MClientRequest{
			Type: "subscribe",
			Data: models.MClientRequestData{Symbol: "000660", DataType: dt},
		}))
		resp := readResponse(t, conn)
		assert.Equal(t, "subscribe_confirm", resp.Type)
	}

	topic := subscription.Topic{Symbol: "000660", FeedKind: feed.KindOrderBook}
	assert.Equal(t, 1, registry.ListenerCount(topic))
}

// -----------------------------------------------------------------------------

func TestUnsubscribeRemovesBothFeedKinds(t *testing.T) {
	_, registry, ts := newTestServer(t)
	conn := dialWS(t, ts)

	for _, dt := range []string{"price", "book"} {
		require.NoError(t, conn.WriteJSON(models.MClientRequest{
			Type: "subscribe",
			Data: models.MClientRequestData{Symbol: "005930", DataType: dt},
		}))
		readResponse(t, conn)
	}

	require.NoError(t, conn.WriteJSON(models.MClientRequest{
		Type: "unsubscribe",
		Data: models.MClientRequestData{Symbol: "005930"},
	}))
	resp := readResponse(t, conn)
	assert.Equal(t, "unsubscribe_confirm", resp.Type)

	assert.Equal(t, 0, registry.ListenerCount(subscription.Topic{Symbol: "005930", FeedKind: feed.KindPrice}))
	assert.Equal(t, 0, registry.ListenerCount(subscription.Topic{Symbol: "005930", FeedKind: feed.KindOrderBook}))
}

// -----------------------------------------------------------------------------

func TestPingPong(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(models.MClientRequest{Type: "ping"}))
	resp := readResponse(t, conn)
	assert.Equal(t, "pong", resp.Type)
}

// -----------------------------------------------------------------------------

func TestMalformedMessageKeepsConnectionOpen(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{{{not json")))
	resp := readResponse(t, conn)
	assert.Equal(t, "error", resp.Type)

	// The connection survives: a ping still gets answered.
	require.NoError(t, conn.WriteJSON(models.MClientRequest{Type: "ping"}))
	resp = readResponse(t, conn)
	assert.Equal(t, "pong", resp.Type)
}

// -----------------------------------------------------------------------------

func TestUnknownTypeAndBadDataTypeReturnErrors(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(models.MClientRequest{Type: "teleport"}))
	assert.Equal(t, "error", readResponse(t, conn).Type)

	require.NoError(t, conn.WriteJSON(models.MClientRequest{
		Type: "subscribe",
		Data: models.MClientRequestData{Symbol: "005930", DataType: "vibes"},
	}))
	assert.Equal(t, "error", readResponse(t, conn).Type)

	require.NoError(t, conn.WriteJSON(models.MClientRequest{
		Type: "subscribe",
		Data: models.MClientRequestData{DataType: "price"},
	}))
	assert.Equal(t, "error", readResponse(t, conn).Type)
}

// -----------------------------------------------------------------------------

func TestDisconnectReleasesTopics(t *testing.T) {
	srv, registry, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(models.MClientRequest{
		Type: "subscribe",
		Data: models.MClientRequestData{Symbol: "005930", DataType: "price"},
	}))
	readResponse(t, conn)

	conn.Close()

	topic := subscription.Topic{Symbol: "005930", FeedKind: feed.KindPrice}
	require.Eventually(t, func() bool {
		return registry.ListenerCount(topic) == 0
	}, 2*time.Second, 10*time.Millisecond)

	srv.sessionsMu.RLock()
	remaining := len(srv.sessions)
	srv.sessionsMu.RUnlock()
	assert.Equal(t, 0, remaining)
}

// -----------------------------------------------------------------------------

func TestDeliverFansOutAsProtocolFrames(t *testing.T) {
	_, registry, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(models.MClientRequest{
		Type: "subscribe",
		Data: models.MClientRequestData{Symbol: "005930", DataType: "price"},
	}))
	readResponse(t, conn)

	registry.Dispatch(&models.MFeedMessage{
		FeedKind: feed.KindPrice,
		Symbol:   "005930",
		Price:    &models.MRealtimePrice{Symbol: "005930", Price: 71200},
	})

	resp := readResponse(t, conn)
	assert.Equal(t, "stock_price", resp.Type)

	payload, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "005930", payload["symbol"])
	assert.Equal(t, 71200.0, payload["price"])
}

// -----------------------------------------------------------------------------
// REST surface
// -----------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

// -----------------------------------------------------------------------------

func TestSettingsRoundTrip(t *testing.T) {
	srv, _, ts := newTestServer(t)

	req, err := http.NewRequest("PUT", ts.URL+"/api/trading/settings", strings.NewReader(`{"kill_switch": true}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	assert.True(t, srv.Settings.Snapshot().KillSwitch)
}

// -----------------------------------------------------------------------------

func TestEmergencyStopEndpoint(t *testing.T) {
	srv, _, ts := newTestServer(t)

	resp, err := ts.Client().Post(ts.URL+"/api/trading/emergency-stop", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	assert.True(t, srv.Settings.Snapshot().KillSwitch)
	assert.False(t, srv.Settings.CanTrade())
}
