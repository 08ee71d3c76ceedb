package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/garyjia/flow-forge/internal/domain/event"
)

// mockLogger implements Logger for testing
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

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func transitioned() *event.Event {
	return event.NewEvent(event.TypeWorkflowTransitioned, 1, map[string]interface{}{
		event.KeyFromState: "DRAFT",
		event.KeyToState:   "PENDING",
	})
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()

	var order []string
	d.Subscribe(event.TypeWorkflowTransitioned, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe(event.TypeWorkflowTransitioned, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})
	d.Subscribe(event.TypeTemplateCreated, "other", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	})

	if err := d.Dispatch(context.Background(), transitioned()); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}

	if strings.Join(order, ",") != "first,second" {
		t.Errorf("handler order = %v, want [first second]", order)
	}
}

func TestDispatch_StopsOnError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	boom := errors.New("boom")
	called := false
	d.Subscribe(event.TypeWorkflowTransitioned, "failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	d.Subscribe(event.TypeWorkflowTransitioned, "after", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	err := d.Dispatch(context.Background(), transitioned())
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch() error = %v, want %v", err, boom)
	}
	if called {
		t.Error("handlers after a failure should not run")
	}
	if logger.ErrorCount() != 1 {
		t.Errorf("ErrorCount() = %d, want 1", logger.ErrorCount())
	}
}

func TestDispatch_RecoversPanic(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeWorkflowCreated, "panicky", func(ctx context.Context, evt *event.Event) error {
		panic("unexpected")
	})

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeWorkflowCreated, 1, nil))
	if err == nil || !strings.Contains(err.Error(), "handler panic") {
		t.Errorf("Dispatch() error = %v, want handler panic", err)
	}
}

func TestDispatchAsync_CloseWaits(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	var count atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		d.Subscribe(event.TypeWorkflowTransitioned, name, func(ctx context.Context, evt *event.Event) error {
			count.Add(1)
			return errors.New("logged only")
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchAsync(ctx, transitioned())
	cancel()

	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if count.Load() != 3 {
		t.Errorf("handlers run = %d, want 3", count.Load())
	}
	if logger.ErrorCount() != 3 {
		t.Errorf("ErrorCount() = %d, want 3", logger.ErrorCount())
	}
}

func TestDispatchAsync_ConcurrentWithClose(t *testing.T) {
	d := NewDispatcher(WithLogger(&mockLogger{}))

	var started, finished atomic.Int32
	d.Subscribe(event.TypeWorkflowTransitioned, "counter", func(ctx context.Context, evt *event.Event) error {
		started.Add(1)
		finished.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.DispatchAsync(context.Background(), transitioned())
		}()
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	accepted := finished.Load()
	if started.Load() != accepted {
		t.Errorf("started = %d, finished = %d after Close()", started.Load(), accepted)
	}

	wg.Wait()
	if finished.Load() != accepted {
		t.Errorf("handler ran after Close() returned: %d > %d", finished.Load(), accepted)
	}
}

func TestClose_RejectsFurtherDispatch(t *testing.T) {
	d := NewDispatcher()

	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("second Close() should fail")
	}
	if err := d.Dispatch(context.Background(), transitioned()); err == nil {
		t.Error("Dispatch() after Close() should fail")
	}
}

func TestHandlers(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }
	d.Subscribe(event.TypeWorkflowTransitioned, "lark-notifier", noop)

	names := d.Handlers(event.TypeWorkflowTransitioned)
	if len(names) != 1 || names[0] != "lark-notifier" {
		t.Errorf("Handlers() = %v, want [lark-notifier]", names)
	}
	if len(d.Handlers(event.TypeTemplateCreated)) != 0 {
		t.Error("Handlers() should be empty for unsubscribed type")
	}
}
