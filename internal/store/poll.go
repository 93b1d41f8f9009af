package store

import (
	"context"
	"log"
	"time"
)

// pollInteraction tags background refreshes so the server can tell them
// apart from user-driven requests.
const pollInteraction = "timer"

// StartPolling begins the periodic project-metadata refresh. At most one
// timer is ever pending per store; duplicate starts and a disabled-polling
// configuration are both no-ops.
func (a *AppStore) StartPolling(ctx context.Context) {
	a.mu.Lock()
	if a.polling || a.pollDisabled || a.crashed {
		a.mu.Unlock()
		return
	}
	a.polling = true
	a.pollTimer = time.AfterFunc(a.pollEvery, func() { a.pollTick(ctx) })
	a.mu.Unlock()
}

// StopPolling cancels the pending refresh, if any.
func (a *AppStore) StopPolling() {
	a.mu.Lock()
	a.stopPollLocked()
	a.mu.Unlock()
}

func (a *AppStore) stopPollLocked() {
	a.polling = false
	if a.pollTimer != nil {
		a.pollTimer.Stop()
		a.pollTimer = nil
	}
}

// pollTick runs one refresh and reschedules itself. Failures are logged and
// the next tick retries naturally.
func (a *AppStore) pollTick(ctx context.Context) {
	a.mu.Lock()
	if !a.polling || a.crashed {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	if ctx.Err() != nil {
		a.StopPolling()
		return
	}

	if err := a.FetchProject(ctx, pollInteraction); err != nil {
		log.Printf("project poll failed: %v", err)
	}

	a.mu.Lock()
	if a.polling && !a.crashed {
		a.pollTimer = time.AfterFunc(a.pollEvery, func() { a.pollTick(ctx) })
	}
	a.mu.Unlock()
}
