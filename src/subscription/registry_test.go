package subscription

import (
	"errors"
	"sync"
	"testing"

	"stock-trader/src/feed"
	"stock-trader/src/logger"
	"stock-trader/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fake connector
// -----------------------------------------------------------------------------

type fakeConnector struct {
	mu            sync.Mutex
	ensureCalls   int
	subscribes    []string
	unsubscribes  []string
	failSubscribe bool
}

func (f *fakeConnector) EnsureConnection(feedKind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return nil
}

func (f *fakeConnector) Subscribe(feedKind, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubscribe {
		return errors.New("upstream down")
	}
	f.subscribes = append(f.subscribes, symbol+"/"+feedKind)
	return nil
}

func (f *fakeConnector) Unsubscribe(feedKind, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes = append(f.unsubscribes, symbol+"/"+feedKind)
	return nil
}

func (f *fakeConnector) States() map[string]string { return nil }

func (f *fakeConnector) Shutdown() {}

func (f *fakeConnector) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribes)
}

func (f *fakeConnector) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.unsubscribes)
}

// -----------------------------------------------------------------------------

func newTestRegistry() (*Registry, *fakeConnector) {
	conn := &fakeConnector{}
	return NewRegistry(conn, logger.NewLogger("error", "test")), conn
}

func priceTopic(symbol string) Topic {
	return Topic{Symbol: symbol, FeedKind: feed.KindPrice}
}

// -----------------------------------------------------------------------------

func TestSecondListenerSharesUpstreamSubscription(t *testing.T) {
	registry, conn := newTestRegistry()
	topic := priceTopic("005930")

	require.NoError(t, registry.AddListener(topic, NewCallbackListener("a", func(*models.MFeedMessage) error { return nil })))
	require.NoError(t, registry.AddListener(topic, NewCallbackListener("b", func(*models.MFeedMessage) error { return nil })))

	assert.Equal(t, 1, conn.subscribeCount())
	assert.Equal(t, 2, registry.ListenerCount(topic))
}

// -----------------------------------------------------------------------------

func TestUnsubscribeOnlyWhenLastListenerLeaves(t *testing.T) {
	registry, conn := newTestRegistry()
	topic := priceTopic("005930")

	require.NoError(t, registry.AddListener(topic, NewCallbackListener("a", func(*models.MFeedMessage) error { return nil })))
	require.NoError(t, registry.AddListener(topic, NewCallbackListener("b", func(*models.MFeedMessage) error { return nil })))

	registry.RemoveListener(topic, "a")
	assert.Equal(t, 0, conn.unsubscribeCount())
	assert.Equal(t, 1, registry.ListenerCount(topic))

	registry.RemoveListener(topic, "b")
	assert.Equal(t, 1, conn.unsubscribeCount())
	assert.Equal(t, 0, registry.ListenerCount(topic))
}

// -----------------------------------------------------------------------------

func TestRemoveUnknownListenerIsNoop(t *testing.T) {
	registry, conn := newTestRegistry()
	topic := priceTopic("005930")

	require.NoError(t, registry.AddListener(topic, NewCallbackListener("a", func(*models.MFeedMessage) error { return nil })))
	registry.RemoveListener(topic, "ghost")

	assert.Equal(t, 0, conn.unsubscribeCount())
	assert.Equal(t, 1, registry.ListenerCount(topic))
}

// -----------------------------------------------------------------------------

func TestDispatchIsolatesFailingListener(t *testing.T) {
	registry, _ := newTestRegistry()
	topic := priceTopic("005930")

	var delivered int
	require.NoError(t, registry.AddListener(topic, NewCallbackListener("bad", func(*models.MFeedMessage) error {
		return errors.New("client gone")
	})))
	require.NoError(t, registry.AddListener(topic, NewCallbackListener("good", func(*models.MFeedMessage) error {
		delivered++
		return nil
	})))

	registry.Dispatch(&models.MFeedMessage{
		FeedKind: feed.KindPrice,
		Symbol:   "005930",
		Price:    &models.MRealtimePrice{Symbol: "005930", Price: 71200},
	})

	assert.Equal(t, 1, delivered)
	assert.Equal(t, 2, registry.ListenerCount(topic))
}

// -----------------------------------------------------------------------------

func TestDispatchWithoutListenersIsDropped(t *testing.T) {
	registry, _ := newTestRegistry()

	// Must not panic or block.
	registry.Dispatch(&models.MFeedMessage{
		FeedKind: feed.KindPrice,
		Symbol:   "035720",
		Price:    &models.MRealtimePrice{Symbol: "035720", Price: 43000},
	})
}

// -----------------------------------------------------------------------------

func TestDispatchTargetsOnlyMatchingTopic(t *testing.T) {
	registry, _ := newTestRegistry()

	var samsung, kakao int
	require.NoError(t, registry.AddListener(priceTopic("005930"), NewCallbackListener("s", func(*models.MFeedMessage) error {
		samsung++
		return nil
	})))
	require.NoError(t, registry.AddListener(priceTopic("035720"), NewCallbackListener("k", func(*models.MFeedMessage) error {
		kakao++
		return nil
	})))

	registry.Dispatch(&models.MFeedMessage{
		FeedKind: feed.KindPrice,
		Symbol:   "005930",
		Price:    &models.MRealtimePrice{Symbol: "005930", Price: 71200},
	})

	assert.Equal(t, 1, samsung)
	assert.Equal(t, 0, kakao)
}

// -----------------------------------------------------------------------------

func TestFailedUpstreamSubscribeKeepsListenerAndRetries(t *testing.T) {
	registry, conn := newTestRegistry()
	topic := priceTopic("005930")

	conn.failSubscribe = true
	err := registry.AddListener(topic, NewCallbackListener("a", func(*models.MFeedMessage) error { return nil }))
	require.Error(t, err)
	assert.Equal(t, 1, registry.ListenerCount(topic))

	// The next listener retriggers the upstream subscribe.
	conn.failSubscribe = false
	require.NoError(t, registry.AddListener(topic, NewCallbackListener("b", func(*models.MFeedMessage) error { return nil })))
	assert.Equal(t, 1, conn.subscribeCount())
}

// -----------------------------------------------------------------------------

func TestConcurrentAddRemove(t *testing.T) {
	registry, conn := newTestRegistry()
	topic := priceTopic("005930")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			listener := NewCallbackListener(string(rune('A'+id%26))+string(rune('0'+id/26)), func(*models.MFeedMessage) error { return nil })
			assert.NoError(t, registry.AddListener(topic, listener))
			registry.Dispatch(&models.MFeedMessage{
				FeedKind: feed.KindPrice,
				Symbol:   "005930",
				Price:    &models.MRealtimePrice{Symbol: "005930"},
			})
			registry.RemoveListener(topic, listener.ID())
		}(i)
	}
	wg.Wait()

	// Every listener left, so the topic is gone and upstream balanced.
	assert.Equal(t, 0, registry.ListenerCount(topic))
	assert.Equal(t, conn.subscribeCount(), conn.unsubscribeCount())
}
