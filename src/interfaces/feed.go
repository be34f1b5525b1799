package interfaces

import "stock-trader/src/models"

// -----------------------------------------------------------------------------
// ITopicListener receives decoded feed messages for topics it registered on.
// -----------------------------------------------------------------------------

type ITopicListener interface {

	// -----------------------------------------------------------------------------

	// ID uniquely identifies the listener within the registry.
	ID() string

	// -----------------------------------------------------------------------------

	// Deliver hands one decoded message to the listener. A non-nil error
	// marks the listener as failed for this message only.
	Deliver(msg *models.MFeedMessage) error
}

// -----------------------------------------------------------------------------
// IDispatcher routes decoded upstream messages to interested listeners.
// -----------------------------------------------------------------------------

type IDispatcher interface {

	// -----------------------------------------------------------------------------

	// Dispatch fans the message out to every listener of its topic.
	Dispatch(msg *models.MFeedMessage)
}

// -----------------------------------------------------------------------------
// IFeedConnector manages upstream realtime connections and subscriptions.
// -----------------------------------------------------------------------------

type IFeedConnector interface {

	// -----------------------------------------------------------------------------

	// EnsureConnection brings up a healthy connection for the feed kind,
	// replacing a dead instance when needed.
	EnsureConnection(feedKind string) error

	// -----------------------------------------------------------------------------

	// Subscribe registers a symbol upstream on an open connection.
	Subscribe(feedKind string, symbol string) error

	// -----------------------------------------------------------------------------

	// Unsubscribe removes a symbol upstream. Best effort on a dead
	// connection.
	Unsubscribe(feedKind string, symbol string) error

	// -----------------------------------------------------------------------------

	// States reports the current state per feed kind.
	States() map[string]string

	// -----------------------------------------------------------------------------

	// Shutdown closes every connection.
	Shutdown()
}
