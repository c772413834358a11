package broadcaster

import (
	"context"
	"sync"
	"testing"
	"time"

	"bite/infra/logging"
	exitwal "bite/infra/wal/exit"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	sent   []string
	keys   []string
	failAt int // fail the n-th call (1-based); 0 never fails
	calls  int
}

func (f *fakePublisher) Publish(_ context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == f.failAt {
		return errors.New("broker down")
	}
	f.sent = append(f.sent, string(value))
	f.keys = append(f.keys, string(key))
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func openOutbox(t *testing.T) *exitwal.ExitWAL {
	t.Helper()
	w, err := exitwal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func put(t *testing.T, w *exitwal.ExitWAL, seq uint64, payloads ...string) {
	t.Helper()
	msgs := make([]exitwal.Message, len(payloads))
	for i, p := range payloads {
		msgs[i] = exitwal.Message{Key: []byte("request/1"), Payload: []byte(p)}
	}
	require.NoError(t, w.PutNew(seq, msgs))
}

func TestDrainPublishesInOrder(t *testing.T) {
	w := openOutbox(t)
	put(t, w, 2, "b0", "b1")
	put(t, w, 1, "a0")
	put(t, w, 3, "c0")

	pub := &fakePublisher{}
	b := New(w, pub, Config{}, logging.Discard())

	n, err := b.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"a0", "b0", "b1", "c0"}, pub.published())
	assert.Equal(t, "request/1", pub.keys[0])

	left, err := w.Pending()
	require.NoError(t, err)
	assert.Zero(t, left)

	// nothing left to send
	n, err = b.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDrainStopsAtFirstFailure(t *testing.T) {
	w := openOutbox(t)
	put(t, w, 1, "a")
	put(t, w, 2, "b")
	put(t, w, 3, "c")

	pub := &fakePublisher{failAt: 2}
	b := New(w, pub, Config{}, logging.Discard())

	n, err := b.DrainOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a"}, pub.published())

	rec, err := w.Get(2, 0)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateFailed, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	rec, err = w.Get(3, 0)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateNew, rec.State)

	// the next pass resumes with the failed event
	n, err = b.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b", "c"}, pub.published())
}

func TestDrainRespectsBatchSize(t *testing.T) {
	w := openOutbox(t)
	for seq := uint64(1); seq <= 5; seq++ {
		put(t, w, seq, "e")
	}

	b := New(w, &fakePublisher{}, Config{BatchSize: 2}, logging.Discard())
	n, err := b.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := w.Pending()
	require.NoError(t, err)
	assert.Equal(t, 3, left)
}

func TestRunDrainsUntilCancelled(t *testing.T) {
	w := openOutbox(t)
	put(t, w, 1, "a")

	pub := &fakePublisher{}
	b := New(w, pub, Config{Interval: 5 * time.Millisecond}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestSaramaPublisher(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	mock := mocks.NewSyncProducer(t, cfg)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(v []byte) error {
		if string(v) != "payload" {
			return errors.Newf("unexpected value %q", v)
		}
		return nil
	})
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewSaramaPublisherFromProducer(mock, "events")
	require.NoError(t, p.Publish(context.Background(), []byte("request/1"), []byte("payload")))
	err := p.Publish(context.Background(), []byte("request/1"), []byte("again"))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}
