package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vehiclelookup/internal/attributes"
	"vehiclelookup/internal/coordinator"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

// fakeBroker records publishes and lets tests deliver messages.
type fakeBroker struct {
	mu        sync.Mutex
	messages  []published
	handlers  map[string]MessageHandler
	failTopic string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]MessageHandler)}
}

func (b *fakeBroker) Publish(topic string, payload []byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if topic == b.failTopic {
		return ErrNotConnected
	}
	b.messages = append(b.messages, published{topic, payload, retained})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, handler MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) deliver(topic, payload string) {
	b.mu.Lock()
	handler := b.handlers[topic]
	b.mu.Unlock()
	handler(topic, []byte(payload))
}

func (b *fakeBroker) last(topic string) (published, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.messages) - 1; i >= 0; i-- {
		if b.messages[i].topic == topic {
			return b.messages[i], true
		}
	}
	return published{}, false
}

func (b *fakeBroker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
}

func newTestPublisher(t *testing.T) (*Publisher, *fakeBroker) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	broker := newFakeBroker()
	return NewPublisher(broker, testTopics, logger), broker
}

func TestPublisher_Announce(t *testing.T) {
	p, broker := newTestPublisher(t)

	require.NoError(t, p.Announce(attributes.Supported()))
	assert.Len(t, broker.messages, 110)
	for _, m := range broker.messages {
		assert.True(t, m.retained)
	}
	assert.Len(t, p.Definitions(), 109)
}

func TestPublisher_AnnounceRemovesStale(t *testing.T) {
	p, broker := newTestPublisher(t)

	defs, err := attributes.Resolve(nil, nil, []attributes.Custom{{Key: "tyre_front", Path: "a.b"}})
	require.NoError(t, err)
	require.NoError(t, p.Announce(defs))
	_, ok := broker.last(testTopics.SensorConfig("tyre_front"))
	require.True(t, ok)

	broker.reset()
	require.NoError(t, p.Announce(attributes.Supported()))

	removal, ok := broker.last(testTopics.SensorConfig("tyre_front"))
	require.True(t, ok)
	assert.Empty(t, removal.payload)
	assert.True(t, removal.retained)
}

func TestPublisher_AnnounceReportsFailures(t *testing.T) {
	p, broker := newTestPublisher(t)
	broker.failTopic = testTopics.SensorConfig("make")

	err := p.Announce(attributes.Supported())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConnected))
	// the rest are still published
	assert.Len(t, broker.messages, 109)
}

func TestPublisher_PublishSnapshot(t *testing.T) {
	p, broker := newTestPublisher(t)

	snap := coordinator.Snapshot{
		Target:      "AB12345",
		Status:      coordinator.StatusSuccess,
		LastUpdated: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		RawJSON:     `{"kjoretoyId":{"kjennemerke":"AB 12345"}}`,
		Record:      map[string]any{"kjoretoyId": map[string]any{"kjennemerke": "AB 12345"}},
	}
	require.NoError(t, p.PublishSnapshot(snap))

	state, ok := broker.last(testTopics.State())
	require.True(t, ok)
	var values map[string]any
	require.NoError(t, json.Unmarshal(state.payload, &values))
	assert.Len(t, values, 109)
	assert.Equal(t, "AB 12345", values["registration_number"])
	assert.Nil(t, values["make"])
	assert.Equal(t, "success", values[attributes.KeyLastStatus])
	assert.Equal(t, "2026-03-01T08:00:00Z", values[attributes.KeyLastUpdated])
	assert.Equal(t, coordinator.RawAvailable, values[attributes.KeyRawResponse])

	raw, ok := broker.last(testTopics.RawAttributes())
	require.True(t, ok)
	assert.JSONEq(t, `{"raw_response":"{\"kjoretoyId\":{\"kjennemerke\":\"AB 12345\"}}"}`, string(raw.payload))
}

func TestPublisher_PublishSnapshotFailure(t *testing.T) {
	p, broker := newTestPublisher(t)
	broker.failTopic = testTopics.State()

	err := p.PublishSnapshot(coordinator.Snapshot{Status: coordinator.StatusIdle})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPublisher_HandleCommands(t *testing.T) {
	p, broker := newTestPublisher(t)

	var lookups []string
	refreshes := 0
	require.NoError(t, p.HandleCommands(
		func(number string) { lookups = append(lookups, number) },
		func() { refreshes++ },
	))

	broker.deliver(testTopics.LookupCommand(), " ab 12345\n")
	broker.deliver(testTopics.LookupCommand(), "")
	broker.deliver(testTopics.RefreshCommand(), "PRESS")
	broker.deliver(testTopics.RefreshCommand(), "")
	broker.deliver(testTopics.RefreshCommand(), "bogus")

	assert.Equal(t, []string{"ab 12345", ""}, lookups)
	assert.Equal(t, 2, refreshes)
}
