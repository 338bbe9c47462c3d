// Package testutil provides shared helpers, mock collaborators, and graph
// fixtures for tests across the module.
package testutil

import (
	"context"
	"testing"
	"time"
)

// Context returns a test context cancelled automatically at cleanup. The 30s
// ceiling keeps a hung collaborator from stalling the whole test run.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext returns a context that is already cancelled.
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// Eventually polls cond every 10ms until it returns true or the timeout
// elapses.
func Eventually(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
