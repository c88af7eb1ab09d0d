package utils

import (
	"context"
	"testing"

	"go.uber.org/atomic"
	"go.viam.com/test"
)

func TestStoppableWorkers(t *testing.T) {
	var stopped atomic.Int32
	started := make(chan struct{}, 2)
	worker := func(ctx context.Context) {
		started <- struct{}{}
		<-ctx.Done()
		stopped.Inc()
	}

	workers := NewStoppableWorkers(worker)
	workers.AddWorkers(worker)
	<-started
	<-started
	workers.Stop()
	test.That(t, stopped.Load(), test.ShouldEqual, 2)
	test.That(t, workers.Context().Err(), test.ShouldNotBeNil)

	// Adding after Stop is a no-op.
	workers.AddWorkers(worker)
	test.That(t, stopped.Load(), test.ShouldEqual, 2)
}

func TestStoppableWorkersParentContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	workers := NewStoppableWorkersWithContext(parent, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	cancel()
	<-done
	workers.Stop()
}
