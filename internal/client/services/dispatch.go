// Package services implements the device-side application logic: local turn
// recording, fire-and-forget sync dispatch, recovery reconciliation, and
// workspace file submission.
package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ssergeev/studysync/internal/client/api"
	"github.com/ssergeev/studysync/internal/logging"
)

// Target names the server-side session a dispatch is bound to. A nil target
// means the session has no remote registration and dispatch is a no-op. The
// target travels with every call; there is no process-global session handle.
type Target struct {
	SessionID string
	ChapterID string
}

// MemoryUpdate is a full-replacement memory snapshot to push.
type MemoryUpdate struct {
	Memory     json.RawMessage
	AgentState json.RawMessage
}

// ReportUpdate is a full-replacement report snapshot to push.
type ReportUpdate struct {
	ReportMD string
}

const defaultDispatchTimeout = 5 * time.Second

// Dispatcher pushes turn and snapshot updates to the server without ever
// blocking the caller. Each call gets its own timeout; failures are logged
// and dropped. There is no retry and no queue: a missed sync is repaired by
// the next turn's snapshots or by recovery.
type Dispatcher struct {
	api     api.Client
	logger  logging.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(client api.Client, l logging.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{
		api:     client,
		logger:  l.With("module", "dispatcher"),
		timeout: timeout,
	}
}

// Dispatch returns immediately; the sync happens on a detached goroutine.
// Any of turn, memory, report may be nil to skip that update.
func (d *Dispatcher) Dispatch(target *Target, turn *api.Turn, memory *MemoryUpdate, report *ReportUpdate) {
	if target == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// The parent request is long gone by the time these run, so each
		// call gets a fresh context with its own deadline.
		if turn != nil {
			d.call("append turn", target, func(ctx context.Context) error {
				return d.api.AppendTurn(ctx, target.SessionID, *turn)
			})
		}
		if memory != nil {
			d.call("upsert memory", target, func(ctx context.Context) error {
				return d.api.UpsertMemory(ctx, target.SessionID, target.ChapterID, memory.Memory, memory.AgentState)
			})
		}
		if report != nil {
			d.call("upsert report", target, func(ctx context.Context) error {
				return d.api.UpsertReport(ctx, target.SessionID, target.ChapterID, report.ReportMD)
			})
		}
	}()
}

func (d *Dispatcher) call(op string, target *Target, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		d.logger.Warn(ctx, "sync dropped",
			"op", op, "session_id", target.SessionID, "error", err.Error())
	}
}

// Wait blocks until in-flight dispatches finish. For shutdown and tests
// only; the turn loop never calls it.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
