package shutdown

import (
	"context"
	"testing"
	"time"
)

func TestShutdownReleasesInReverseOrder(t *testing.T) {
	m := NewManager(context.Background(), nil)
	var order []string
	m.Register("driver", Func(func() { order = append(order, "driver") }))
	m.Register("metrics", Func(func() { order = append(order, "metrics") }))

	m.Shutdown()
	m.Shutdown()

	if len(order) != 2 || order[0] != "metrics" || order[1] != "driver" {
		t.Errorf("order = %v", order)
	}
	if m.Context().Err() == nil {
		t.Error("context must be cancelled")
	}
	select {
	case <-m.Done():
	default:
		t.Error("done must be closed")
	}
}

func TestShutdownTimesOutSlowComponent(t *testing.T) {
	m := NewManager(context.Background(), nil)
	m.timeout = 10 * time.Millisecond
	block := make(chan struct{})
	defer close(block)
	m.Register("stuck", Func(func() { <-block }))

	start := time.Now()
	m.Shutdown()
	if time.Since(start) > time.Second {
		t.Error("shutdown waited on a stuck component")
	}
}

func TestParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	m := NewManager(parent, nil)
	cancel()
	if m.Context().Err() == nil {
		t.Error("parent cancellation must reach the manager context")
	}
}
