package interfaces

import (
	"time"

	"stock-trader/src/models"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// IFeedTransport is the raw realtime connection. *websocket.Conn satisfies it.
// -----------------------------------------------------------------------------

type IFeedTransport interface {

	// -----------------------------------------------------------------------------

	// ReadMessage blocks for the next frame.
	ReadMessage() (messageType int, p []byte, err error)

	// -----------------------------------------------------------------------------

	// WriteJSON marshals v and writes it as a single frame.
	WriteJSON(v interface{}) error

	// -----------------------------------------------------------------------------

	// SetReadDeadline bounds the next ReadMessage; the zero time clears it.
	SetReadDeadline(t time.Time) error

	// -----------------------------------------------------------------------------

	// Close tears down the connection.
	Close() error
}

// -----------------------------------------------------------------------------
// IBrokerClient defines the contract for the brokerage OpenAPI.
// -----------------------------------------------------------------------------

type IBrokerClient interface {

	// -----------------------------------------------------------------------------

	// Authenticate obtains (or refreshes) the REST access token.
	Authenticate() error

	// -----------------------------------------------------------------------------

	// GetQuote fetches the current price for one symbol.
	GetQuote(symbol string) (*models.MQuote, error)

	// -----------------------------------------------------------------------------

	// GetOrderBook fetches the current order book for one symbol.
	GetOrderBook(symbol string) (*models.MRealtimeOrderBook, error)

	// -----------------------------------------------------------------------------

	// PlaceOrder submits a cash order. Side is "buy" or "sell"; a zero
	// price means a market order.
	PlaceOrder(symbol string, side string, quantity int64, price decimal.Decimal) (*models.MOrderResult, error)

	// -----------------------------------------------------------------------------

	// OpenFeedConnection dials the realtime endpoint for one feed kind.
	OpenFeedConnection(feedKind string) (IFeedTransport, error)

	// -----------------------------------------------------------------------------

	// HandshakeFrame builds the authentication frame sent first on a
	// fresh feed connection.
	HandshakeFrame(feedKind string) models.MHandshakeFrame
}
