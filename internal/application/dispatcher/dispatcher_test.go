package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/garyjia/quote-revision/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func committed() *event.Event {
	return event.NewEvent(event.TypeChangesCommitted, "q-1", "s-1", nil)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string
	d.Subscribe(event.TypeChangesCommitted, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe(event.TypeChangesCommitted, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})
	d.Subscribe(event.TypeSessionExpired, "other", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), committed()))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	boom := errors.New("boom")
	called := false
	d.Subscribe(event.TypeChangesCommitted, "fails", func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	d.Subscribe(event.TypeChangesCommitted, "after", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	err := d.Dispatch(context.Background(), committed())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fails")
	assert.False(t, called)
	assert.Equal(t, 1, logger.errorCount())
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeChangesCommitted, "panics", func(ctx context.Context, evt *event.Event) error {
		panic("bad handler")
	})

	err := d.Dispatch(context.Background(), committed())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad handler")
}

func TestSubscribe_SameNameReplaces(t *testing.T) {
	d := NewDispatcher()
	var got string
	d.Subscribe(event.TypeSessionStarted, "h", func(ctx context.Context, evt *event.Event) error {
		got = "old"
		return nil
	})
	d.Subscribe(event.TypeSessionStarted, "h", func(ctx context.Context, evt *event.Event) error {
		got = "new"
		return nil
	})

	assert.Equal(t, []string{"h"}, d.Handlers(event.TypeSessionStarted))
	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeSessionStarted, "q-1", "s-1", nil)))
	assert.Equal(t, "new", got)
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }
	d.Subscribe(event.TypeSessionStarted, "a", noop)
	d.Subscribe(event.TypeSessionStarted, "b", noop)

	d.Unsubscribe(event.TypeSessionStarted, "a")
	assert.Equal(t, []string{"b"}, d.Handlers(event.TypeSessionStarted))
}

func TestDispatchAsync_CloseWaitsForHandlers(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	var count atomic.Int32
	for i := 0; i < 5; i++ {
		d.Subscribe(event.TypeChangesCommitted, fmt.Sprintf("h-%d", i), func(ctx context.Context, evt *event.Event) error {
			count.Add(1)
			return nil
		})
	}
	d.Subscribe(event.TypeChangesCommitted, "fails", func(ctx context.Context, evt *event.Event) error {
		return errors.New("lark unavailable")
	})

	d.DispatchAsync(context.Background(), committed())
	require.NoError(t, d.Close())

	assert.Equal(t, int32(5), count.Load())
	assert.Equal(t, 1, logger.errorCount())
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Close())
	assert.Error(t, d.Close())
	assert.ErrorIs(t, d.Dispatch(context.Background(), committed()), ErrClosed)

	// async after close only logs
	d.DispatchAsync(context.Background(), committed())
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			d.Subscribe(event.TypeCommandQueued, fmt.Sprintf("h-%d", id), func(ctx context.Context, evt *event.Event) error {
				return nil
			})
		}(i)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeCommandQueued, "q-1", "s-1", nil))
		}()
	}
	wg.Wait()
	assert.Len(t, d.Handlers(event.TypeCommandQueued), 20)
}
