package feed

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"stock-trader/src/helpers"
	"stock-trader/src/interfaces"
	"stock-trader/src/logger"
	"stock-trader/src/models"
)

// Maximum time to wait for the handshake confirmation frame.
const handshakeWait = 10 * time.Second

// -----------------------------------------------------------------------------
// Feed kinds (KIS realtime transaction IDs)
// -----------------------------------------------------------------------------

const (
	KindPrice     = "H0STCNT0" // trade ticks
	KindOrderBook = "H0STASP0" // order book snapshots
)

// -----------------------------------------------------------------------------
// Connection states
// -----------------------------------------------------------------------------

const (
	StateIdle           = "idle"
	StateConnecting     = "connecting"
	StateAuthenticating = "authenticating"
	StateOpen           = "open"
	StateClosed         = "closed"
	StateFailed         = "failed"
)

// -----------------------------------------------------------------------------

// connection is one live (or dead) upstream connection for a feed kind.
// Closed and Failed are terminal for an instance; EnsureConnection
// replaces a dead instance with a fresh one.
type connection struct {
	transport interfaces.IFeedTransport

	mu      sync.Mutex // guards state
	writeMu sync.Mutex // serializes control frame writes
	state   string
}

func (c *connection) getState() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *connection) setState(state string) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// UpstreamConnector manages one upstream connection per feed kind and
// fans decoded frames out through the dispatcher.
type UpstreamConnector struct {
	Broker interfaces.IBrokerClient
	Logger *logger.Logger

	mu          sync.Mutex // guards the conns map only
	conns       map[string]*connection
	kindMu      map[string]*sync.Mutex // serializes handshakes per feed kind
	dispatcher  interfaces.IDispatcher
	dispatchMu  sync.RWMutex
	shutdownWg  sync.WaitGroup
	shuttingMu  sync.Mutex
	shuttingOff bool
}

// -----------------------------------------------------------------------------

func NewUpstreamConnector(broker interfaces.IBrokerClient, log *logger.Logger) *UpstreamConnector {
	return &UpstreamConnector{
		Broker: broker,
		Logger: log,
		conns:  make(map[string]*connection),
		kindMu: map[string]*sync.Mutex{
			KindPrice:     {},
			KindOrderBook: {},
		},
	}
}

// -----------------------------------------------------------------------------

// SetDispatcher wires the fan-out target. Must be called before the
// first EnsureConnection.
func (uc *UpstreamConnector) SetDispatcher(d interfaces.IDispatcher) {
	uc.dispatchMu.Lock()
	uc.dispatcher = d
	uc.dispatchMu.Unlock()
}

// -----------------------------------------------------------------------------

// EnsureConnection brings up a healthy connection for the feed kind.
// A Closed or Failed instance is discarded and replaced; an Open one is
// reused. Concurrent callers for the same kind perform a single
// handshake; handshakes for different kinds never serialize.
func (uc *UpstreamConnector) EnsureConnection(feedKind string) error {
	kindMu, ok := uc.kindMu[feedKind]
	if !ok {
		return helpers.NewSubscriptionError(fmt.Sprintf("unknown feed kind '%s'", feedKind), nil)
	}

	uc.shuttingMu.Lock()
	if uc.shuttingOff {
		uc.shuttingMu.Unlock()
		return helpers.NewConnectionError("connector is shut down", nil)
	}
	uc.shuttingMu.Unlock()

	kindMu.Lock()
	defer kindMu.Unlock()

	uc.mu.Lock()
	existing, ok := uc.conns[feedKind]
	uc.mu.Unlock()
	if ok {
		switch existing.getState() {
		case StateOpen, StateConnecting, StateAuthenticating:
			return nil
		}
		// Terminal instance: fall through and replace it.
	}

	conn := &connection{state: StateConnecting}
	uc.mu.Lock()
	uc.conns[feedKind] = conn
	uc.mu.Unlock()

	transport, err := uc.Broker.OpenFeedConnection(feedKind)
	if err != nil {
		conn.setState(StateFailed)
		return helpers.NewConnectionError(fmt.Sprintf("connect %s feed failed", feedKind), err)
	}
	conn.transport = transport
	conn.setState(StateAuthenticating)

	if err := uc.handshake(conn, feedKind); err != nil {
		transport.Close()
		conn.setState(StateFailed)
		return err
	}

	conn.setState(StateOpen)
	uc.Logger.Info("Feed connection open for %s", feedKind)

	uc.shutdownWg.Add(1)
	go uc.receiveLoop(conn, feedKind)
	return nil
}

// -----------------------------------------------------------------------------

// handshake sends the auth frame and waits for the confirmation. The
// read is bounded so a stalled upstream cannot wedge the connector.
func (uc *UpstreamConnector) handshake(conn *connection, feedKind string) error {
	frame := uc.Broker.HandshakeFrame(feedKind)
	if err := conn.transport.WriteJSON(frame); err != nil {
		return helpers.NewConnectionError(fmt.Sprintf("handshake write for %s failed", feedKind), err)
	}

	conn.transport.SetReadDeadline(time.Now().Add(handshakeWait))
	_, raw, err := conn.transport.ReadMessage()
	if err != nil {
		return helpers.NewConnectionError(fmt.Sprintf("handshake read for %s failed", feedKind), err)
	}
	conn.transport.SetReadDeadline(time.Time{})

	var resp models.MFeedFrame
	if err := json.Unmarshal(raw, &resp); err != nil {
		return helpers.NewProtocolError(fmt.Sprintf("handshake response for %s malformed", feedKind), err)
	}
	if resp.Header.ResultCode != "0" {
		return helpers.NewProtocolError(fmt.Sprintf("handshake for %s rejected (result_code %s)", feedKind, resp.Header.ResultCode), nil)
	}
	return nil
}

// -----------------------------------------------------------------------------

// receiveLoop reads frames until the transport dies. Malformed frames
// are logged and skipped; they never kill the connection.
func (uc *UpstreamConnector) receiveLoop(conn *connection, feedKind string) {
	defer uc.shutdownWg.Done()

	for {
		_, raw, err := conn.transport.ReadMessage()
		if err != nil {
			conn.setState(StateClosed)
			uc.Logger.Warning("Feed connection for %s closed: %v", feedKind, err)
			return
		}

		var frame models.MFeedFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			uc.Logger.Warning("Skipping malformed %s frame: %v", feedKind, err)
			continue
		}

		// Subscription acks and pings carry a result code and no
		// payload worth dispatching.
		if frame.Header.ResultCode != "" {
			if frame.Header.ResultCode != "0" {
				uc.Logger.Warning("Upstream %s reported result_code %s for tr_key '%s'", feedKind, frame.Header.ResultCode, frame.Header.TrKey)
			}
			continue
		}
		if len(frame.Body) == 0 {
			continue
		}

		msg, err := decodeFrame(feedKind, frame.Body)
		if err != nil {
			uc.Logger.Warning("Skipping undecodable %s frame: %v", feedKind, err)
			continue
		}

		uc.dispatchMu.RLock()
		dispatcher := uc.dispatcher
		uc.dispatchMu.RUnlock()
		if dispatcher != nil {
			dispatcher.Dispatch(msg)
		}
	}
}

// -----------------------------------------------------------------------------

func decodeFrame(feedKind string, body map[string]string) (*models.MFeedMessage, error) {
	switch feedKind {
	case KindPrice:
		price, err := models.PriceFromBody(body)
		if err != nil {
			return nil, err
		}
		return &models.MFeedMessage{FeedKind: feedKind, Symbol: price.Symbol, Price: price}, nil
	case KindOrderBook:
		book, err := models.OrderBookFromBody(body)
		if err != nil {
			return nil, err
		}
		return &models.MFeedMessage{FeedKind: feedKind, Symbol: book.Symbol, OrderBook: book}, nil
	}
	return nil, fmt.Errorf("unknown feed kind '%s'", feedKind)
}

// -----------------------------------------------------------------------------

// Subscribe registers a symbol upstream on an open connection.
func (uc *UpstreamConnector) Subscribe(feedKind string, symbol string) error {
	return uc.sendControl(feedKind, symbol, "1")
}

// -----------------------------------------------------------------------------

// Unsubscribe removes a symbol upstream. Best effort on a dead
// connection: the upstream forgets the subscription when it drops.
func (uc *UpstreamConnector) Unsubscribe(feedKind string, symbol string) error {
	return uc.sendControl(feedKind, symbol, "0")
}

// -----------------------------------------------------------------------------

func (uc *UpstreamConnector) sendControl(feedKind, symbol, trType string) error {
	uc.mu.Lock()
	conn, ok := uc.conns[feedKind]
	uc.mu.Unlock()

	if !ok || conn.getState() != StateOpen {
		return helpers.NewSubscriptionError(fmt.Sprintf("no open %s connection for %s", feedKind, symbol), nil)
	}

	frame := models.MControlFrame{
		Header: models.MFeedHeader{
			TrType: trType,
			TrID:   feedKind,
			TrKey:  symbol,
		},
	}

	conn.writeMu.Lock()
	err := conn.transport.WriteJSON(frame)
	conn.writeMu.Unlock()
	if err != nil {
		conn.setState(StateClosed)
		return helpers.NewSubscriptionError(fmt.Sprintf("control frame for %s/%s failed", feedKind, symbol), err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// States reports the current state per feed kind.
func (uc *UpstreamConnector) States() map[string]string {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	states := make(map[string]string, len(uc.conns))
	for kind, conn := range uc.conns {
		states[kind] = conn.getState()
	}
	return states
}

// -----------------------------------------------------------------------------

// Shutdown closes every connection and waits for the receive loops.
func (uc *UpstreamConnector) Shutdown() {
	uc.shuttingMu.Lock()
	uc.shuttingOff = true
	uc.shuttingMu.Unlock()

	uc.mu.Lock()
	for _, conn := range uc.conns {
		if conn.transport != nil {
			conn.transport.Close()
		}
	}
	uc.mu.Unlock()

	uc.shutdownWg.Wait()
	uc.Logger.Info("Feed connector shut down")
}
