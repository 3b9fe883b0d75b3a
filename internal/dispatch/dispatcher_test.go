package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotdog/pkg/retry"
)

type fakeSink struct {
	mu        sync.Mutex
	published []Envelope
	gate      chan struct{}
	failures  int
	closed    bool
}

func (f *fakeSink) Publish(ctx context.Context, topic string, key, payload []byte) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("sink temporarily unavailable")
	}
	f.published = append(f.published, Envelope{Topic: topic, Key: key, Payload: payload})
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func fastPolicy() retry.Policy {
	return retry.Policy{
		InitialInterval: time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestSubmitDeliversInOrder(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, 4, nil)
	d.Start(context.Background())

	for _, topic := range []string{"a", "b", "c"} {
		require.NoError(t, d.Submit(Envelope{Topic: topic, Payload: []byte(topic)}))
	}

	require.NoError(t, d.Close(context.Background()))

	require.Equal(t, 3, sink.count())
	assert.Equal(t, "a", sink.published[0].Topic)
	assert.Equal(t, "b", sink.published[1].Topic)
	assert.Equal(t, "c", sink.published[2].Topic)
	assert.True(t, sink.closed)
}

func TestSubmitBlocksAtCapacity(t *testing.T) {
	sink := &fakeSink{gate: make(chan struct{})}
	d := New(sink, 2, nil)
	d.Start(context.Background())

	// Sink is paused: the first two submissions are accepted immediately
	// (one in flight at the sink, one buffered).
	require.NoError(t, d.Submit(Envelope{Topic: "one"}))
	require.NoError(t, d.Submit(Envelope{Topic: "two"}))

	third := make(chan error, 1)
	go func() {
		third <- d.Submit(Envelope{Topic: "three"})
	}()

	select {
	case <-third:
		t.Fatal("third submission should block while the buffer is full")
	case <-time.After(100 * time.Millisecond):
	}

	// Resume the sink for one publish; draining one slot unblocks the
	// third submission.
	sink.gate <- struct{}{}

	select {
	case err := <-third:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("third submission never unblocked")
	}

	close(sink.gate)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 3, sink.count())
}

func TestSubmitAfterCloseFails(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, 2, nil)
	d.Start(context.Background())

	require.NoError(t, d.Close(context.Background()))

	err := d.Submit(Envelope{Topic: "late"})
	assert.ErrorIs(t, err, ErrDispatcherClosed)
	assert.Equal(t, 0, sink.count())
}

func TestCloseDrainsBufferedEnvelopes(t *testing.T) {
	sink := &fakeSink{gate: make(chan struct{}, 8)}
	d := New(sink, 8, nil)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(Envelope{Topic: "t"}))
	}

	for i := 0; i < 5; i++ {
		sink.gate <- struct{}{}
	}
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 5, sink.count())
}

func TestTransientSinkFailureIsRetriedInvisibly(t *testing.T) {
	sink := &fakeSink{failures: 3}
	d := New(sink, 2, nil)
	d.policy = fastPolicy()
	d.Start(context.Background())

	require.NoError(t, d.Submit(Envelope{Topic: "t", Payload: []byte("x")}))
	require.NoError(t, d.Close(context.Background()))

	require.Equal(t, 1, sink.count())
	assert.Equal(t, []byte("x"), sink.published[0].Payload)
}

func TestCloseIsIdempotent(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, 2, nil)
	d.Start(context.Background())

	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))
}
