package subscription

import (
	"fmt"
	"sync"

	"stock-trader/src/helpers"
	"stock-trader/src/interfaces"
	"stock-trader/src/logger"
	"stock-trader/src/models"
)

// -----------------------------------------------------------------------------

// Topic identifies one stream of decoded messages.
type Topic struct {
	Symbol   string
	FeedKind string
}

func (t Topic) String() string {
	return t.Symbol + "/" + t.FeedKind
}

// -----------------------------------------------------------------------------

// topicEntry holds the listener set for one topic. Mutations and
// dispatch for a topic serialize on its mu; removed marks an entry that
// has been deleted from the map and must not be reused. subscribed
// tracks whether the upstream subscribe has succeeded.
type topicEntry struct {
	mu         sync.Mutex
	listeners  map[string]interfaces.ITopicListener
	removed    bool
	subscribed bool
}

// -----------------------------------------------------------------------------

// Registry maps topics to listeners and keeps exactly one upstream
// subscription alive per topic with at least one listener.
type Registry struct {
	Connector interfaces.IFeedConnector
	Logger    *logger.Logger

	mu      sync.RWMutex
	entries map[Topic]*topicEntry
}

// -----------------------------------------------------------------------------

func NewRegistry(connector interfaces.IFeedConnector, log *logger.Logger) *Registry {
	return &Registry{
		Connector: connector,
		Logger:    log,
		entries:   make(map[Topic]*topicEntry),
	}
}

// -----------------------------------------------------------------------------

// AddListener registers a listener on a topic. The first listener of a
// topic triggers the upstream connection and subscribe; later listeners
// attach without touching upstream. When the upstream subscribe fails
// the listener stays registered and a SubscriptionError is returned, so
// a later listener (or retry) can bring the topic up.
func (r *Registry) AddListener(topic Topic, listener interfaces.ITopicListener) error {
	for {
		r.mu.Lock()
		entry, ok := r.entries[topic]
		if !ok {
			entry = &topicEntry{listeners: make(map[string]interfaces.ITopicListener)}
			r.entries[topic] = entry
		}
		r.mu.Unlock()

		entry.mu.Lock()
		if entry.removed {
			// Lost a race with the last-listener removal; retry with a
			// fresh entry.
			entry.mu.Unlock()
			continue
		}

		entry.listeners[listener.ID()] = listener

		var upstreamErr error
		brought := false
		if !entry.subscribed {
			if err := r.Connector.EnsureConnection(topic.FeedKind); err != nil {
				upstreamErr = err
			} else if err := r.Connector.Subscribe(topic.FeedKind, topic.Symbol); err != nil {
				upstreamErr = err
			} else {
				entry.subscribed = true
				brought = true
			}
		}
		entry.mu.Unlock()

		if upstreamErr != nil {
			r.Logger.Warning("Upstream subscribe for %s failed: %v", topic, upstreamErr)
			return helpers.NewSubscriptionError(fmt.Sprintf("upstream subscribe for %s failed", topic), upstreamErr)
		}
		if brought {
			r.Logger.Info("Topic %s subscribed upstream", topic)
		}
		return nil
	}
}

// -----------------------------------------------------------------------------

// RemoveListener detaches a listener from a topic. The last listener of
// a topic triggers the upstream unsubscribe and drops the entry.
// Removing an unknown listener is a no-op.
func (r *Registry) RemoveListener(topic Topic, listenerID string) {
	r.mu.Lock()
	entry, ok := r.entries[topic]
	if !ok {
		r.mu.Unlock()
		return
	}

	entry.mu.Lock()
	if _, known := entry.listeners[listenerID]; !known {
		entry.mu.Unlock()
		r.mu.Unlock()
		return
	}

	delete(entry.listeners, listenerID)
	last := len(entry.listeners) == 0
	if last {
		entry.removed = true
		delete(r.entries, topic)
	}
	r.mu.Unlock()

	if last && entry.subscribed {
		if err := r.Connector.Unsubscribe(topic.FeedKind, topic.Symbol); err != nil {
			r.Logger.Warning("Upstream unsubscribe for %s failed: %v", topic, err)
		} else {
			r.Logger.Info("Topic %s unsubscribed upstream", topic)
		}
	}
	entry.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Dispatch fans a decoded message out to every listener of its topic.
// A failing listener is logged and skipped; it never affects delivery
// to the others. Messages for topics without listeners are dropped.
func (r *Registry) Dispatch(msg *models.MFeedMessage) {
	topic := Topic{Symbol: msg.Symbol, FeedKind: msg.FeedKind}

	r.mu.RLock()
	entry, ok := r.entries[topic]
	r.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return
	}

	for id, listener := range entry.listeners {
		if err := listener.Deliver(msg); err != nil {
			r.Logger.Warning("Delivery to listener %s on %s failed: %v", id, topic, err)
		}
	}
}

// -----------------------------------------------------------------------------

// ListenerCount reports how many listeners a topic currently has.
func (r *Registry) ListenerCount(topic Topic) int {
	r.mu.RLock()
	entry, ok := r.entries[topic]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.listeners)
}

// -----------------------------------------------------------------------------

// Topics returns every topic that currently has listeners.
func (r *Registry) Topics() []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]Topic, 0, len(r.entries))
	for topic := range r.entries {
		topics = append(topics, topic)
	}
	return topics
}

// -----------------------------------------------------------------------------

// CallbackListener adapts a plain function into a topic listener.
type CallbackListener struct {
	id string
	fn func(*models.MFeedMessage) error
}

func NewCallbackListener(id string, fn func(*models.MFeedMessage) error) *CallbackListener {
	return &CallbackListener{id: id, fn: fn}
}

func (c *CallbackListener) ID() string { return c.id }

func (c *CallbackListener) Deliver(msg *models.MFeedMessage) error { return c.fn(msg) }
