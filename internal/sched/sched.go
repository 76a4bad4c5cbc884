// Package sched abstracts deferred work and waiting.
//
// Everything in dotheat that waits on time (the flush debounce, retry backoff,
// inter-chunk pacing, the load timeout) goes through a Scheduler so tests can
// drive time by hand with Manual instead of sleeping.
package sched

import (
	"context"
	"time"
)

// Task is a cancellable deferred function.
type Task interface {
	// Stop prevents the task from running. It returns false if the task
	// already ran or was already stopped.
	Stop() bool
}

// Scheduler creates deferred tasks and waits.
type Scheduler interface {
	// AfterFunc runs f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Task
	// Sleep waits for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
	// Now returns the current time.
	Now() time.Time
}

// Real is the wall-clock Scheduler.
type Real struct{}

var _ Scheduler = Real{}

func (Real) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (Real) Now() time.Time {
	return time.Now()
}
