package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/outbox"
	"github.com/NordCoder/Healthwatch/internal/obs/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	mu     sync.Mutex
	queue  []outbox.Message
	marked []string
}

func (f *fakeRepo) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, outbox.Message{IdempotencyKey: key, Kind: kind, Data: data})
	return nil
}

func (f *fakeRepo) PickBatch(_ context.Context, batch int, _ time.Duration) ([]outbox.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if batch > len(f.queue) {
		batch = len(f.queue)
	}
	out := append([]outbox.Message(nil), f.queue[:batch]...)
	f.queue = f.queue[batch:]
	return out, nil
}

func (f *fakeRepo) MarkSuccess(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, keys...)
	return nil
}

type fakeWriter struct {
	fail   map[string]bool
	topics []string
	keys   []string
	calls  int
}

func (w *fakeWriter) Publish(_ context.Context, topic string, key, _ []byte) error {
	w.calls++
	if w.fail[string(key)] {
		return errors.New("broker down")
	}
	w.topics = append(w.topics, topic)
	w.keys = append(w.keys, string(key))
	return nil
}

func spooled(t *testing.T, topic, key string) []byte {
	t.Helper()
	b, err := json.Marshal(SpooledEvent{Topic: topic, Key: key, Value: []byte(`{}`)})
	require.NoError(t, err)
	return b
}

func noRetry() retry.Policy {
	return retry.Policy{Name: "test", Attempts: 1, Backoff: retry.ExpoJitter{Base: time.Millisecond}}
}

func TestRunnerTick_DeliversAndMarks(t *testing.T) {
	repo := &fakeRepo{}
	ctx := context.Background()
	require.NoError(t, repo.Enqueue(ctx, "a", outbox.KindEvent, spooled(t, "system.health.service_unhealthy", "api")))
	require.NoError(t, repo.Enqueue(ctx, "b", outbox.KindEvent, spooled(t, "system.health.service_recovered", "db")))

	w := &fakeWriter{}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(w, noRetry()), 1, 10, time.Second, time.Minute)

	n := r.Tick(ctx)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, repo.marked)
	assert.Equal(t, []string{"api", "db"}, w.keys)
	assert.Equal(t, "system.health.service_unhealthy", w.topics[0])
}

func TestRunnerTick_FailedDeliveryStaysUnmarked(t *testing.T) {
	repo := &fakeRepo{}
	ctx := context.Background()
	require.NoError(t, repo.Enqueue(ctx, "a", outbox.KindEvent, spooled(t, "t", "api")))
	require.NoError(t, repo.Enqueue(ctx, "b", outbox.KindEvent, spooled(t, "t", "db")))

	w := &fakeWriter{fail: map[string]bool{"api": true}}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(w, noRetry()), 1, 10, time.Second, time.Minute)

	assert.Equal(t, 1, r.Tick(ctx))
	assert.Equal(t, []string{"b"}, repo.marked)
}

func TestGlobalHandler_UnknownKind(t *testing.T) {
	h := MakeGlobalOutboxHandler(&fakeWriter{}, noRetry())
	_, err := h(outbox.Kind(99))
	require.Error(t, err)
}

func TestGlobalHandler_RejectsMissingTopic(t *testing.T) {
	h, err := MakeGlobalOutboxHandler(&fakeWriter{}, noRetry())(outbox.KindEvent)
	require.NoError(t, err)
	b, _ := json.Marshal(SpooledEvent{Key: "k"})
	require.Error(t, h(context.Background(), b))
}

func TestGlobalHandler_RetriesBrokerErrors(t *testing.T) {
	w := &fakeWriter{fail: map[string]bool{"api": true}}
	pol := retry.Policy{Name: "test_retry", Attempts: 3, Backoff: retry.Constant(time.Millisecond)}
	h, err := MakeGlobalOutboxHandler(w, pol)(outbox.KindEvent)
	require.NoError(t, err)

	require.Error(t, h(context.Background(), spooled(t, "system.health.service_unhealthy", "api")))
	assert.Equal(t, 3, w.calls)

	b, _ := json.Marshal(SpooledEvent{Key: "api"})
	require.ErrorIs(t, h(context.Background(), b), errNoTopic)
	assert.Equal(t, 3, w.calls)
}
