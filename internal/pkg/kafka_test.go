package pkg

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	next    int
	commits []int64
	drained chan struct{}
	once    sync.Once
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{drained: make(chan struct{})}
	for i, v := range values {
		r.msgs = append(r.msgs, kafka.Message{Topic: "user.deleted", Offset: int64(i), Value: []byte(v)})
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.next < len(r.msgs) {
		m := r.msgs[r.next]
		r.next++
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	r.once.Do(func() { close(r.drained) })
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.commits = append(r.commits, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func runConsumer(t *testing.T, c *KafkaConsumer, r *fakeReader, handle func(ctx context.Context, key, value []byte) error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, handle)
		close(done)
	}()
	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	<-done
}

func TestKafkaConsumer_RetriesFailedMessageBeforeMovingOn(t *testing.T) {
	r := newFakeReader("a", "b")
	c := &KafkaConsumer{reader: r, log: zap.NewNop(), backoff: time.Millisecond}

	var handled []string
	failures := 0
	runConsumer(t, c, r, func(_ context.Context, _, value []byte) error {
		handled = append(handled, string(value))
		if string(value) == "a" && failures < 2 {
			failures++
			return errors.New("store unavailable")
		}
		return nil
	})

	assert.Equal(t, []string{"a", "a", "a", "b"}, handled)
	assert.Equal(t, []int64{0, 1}, r.commits)
}

func TestKafkaConsumer_StopsWithoutCommitOnCancel(t *testing.T) {
	r := newFakeReader("a")
	c := &KafkaConsumer{reader: r, log: zap.NewNop(), backoff: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan struct{})
	go func() {
		c.Run(ctx, func(context.Context, []byte, []byte) error {
			calls++
			if calls == 3 {
				cancel()
			}
			return errors.New("store unavailable")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
	require.GreaterOrEqual(t, calls, 3)
	assert.Empty(t, r.commits)
}
