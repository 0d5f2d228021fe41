// Package await correlates state writes with their eventual device
// acknowledgements.
//
// A caller that writes a value and wants the applied result parks in
// Await; the tracker watches acknowledged state events and releases the
// oldest waiter per datapoint. Waiters that see no acknowledgement within
// their window time out.
package await

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oakhurst-automation/stategate/internal/store"
)

// ErrTimeout indicates no acknowledgement arrived within the wait window.
var ErrTimeout = errors.New("await: timeout waiting for acknowledgement")

// Subscriber is the store subset the tracker needs for scoping event
// delivery to datapoints with active waiters.
type Subscriber interface {
	SubscribeStates(id string)
	UnsubscribeStates(id string)
}

// pendingWrite is one parked waiter.
type pendingWrite struct {
	id          string
	correlation string
	result      chan store.State
}

// Tracker matches acknowledged state events to pending writes.
//
// Multiple waiters may be outstanding for the same datapoint; each
// acknowledgement releases the oldest one (FIFO per id). Every waiter is
// released at most once, whether by acknowledgement, timeout, or
// cancellation.
type Tracker struct {
	subs Subscriber

	mu      sync.Mutex
	pending map[string][]*pendingWrite
}

// NewTracker creates a tracker. Call Run with the store's state event
// channel to start matching acknowledgements.
func NewTracker(subs Subscriber) *Tracker {
	return &Tracker{
		subs:    subs,
		pending: make(map[string][]*pendingWrite),
	}
}

// Waiter is one registered pending write, parked until Wait is called.
type Waiter struct {
	t  *Tracker
	pw *pendingWrite
}

// Register enqueues a waiter for id before the write is issued, so an
// acknowledgement arriving between write and Wait is not lost.
func (t *Tracker) Register(id string) *Waiter {
	pw := &pendingWrite{
		id:          id,
		correlation: correlationIndex(),
		result:      make(chan store.State, 1),
	}
	t.enqueue(pw)
	return &Waiter{t: t, pw: pw}
}

// Wait parks until an acknowledged state event arrives, the wait window
// elapses (ErrTimeout), or ctx is cancelled.
func (w *Waiter) Wait(ctx context.Context, wait time.Duration) (store.State, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case state := <-w.pw.result:
		return state, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	// The waiter may have been released between the timer firing and the
	// removal below. The buffered result then wins: the acknowledgement
	// was consumed and must produce the observable response.
	if !w.t.remove(w.pw) {
		return <-w.pw.result, nil
	}

	if err := ctx.Err(); err != nil {
		return store.State{}, err
	}
	return store.State{}, ErrTimeout
}

// Cancel withdraws a registered waiter without waiting.
func (w *Waiter) Cancel() {
	w.t.remove(w.pw)
}

// Await registers a waiter and parks in one step.
func (t *Tracker) Await(ctx context.Context, id string, wait time.Duration) (store.State, error) {
	return t.Register(id).Wait(ctx, wait)
}

// PendingCount reports the number of outstanding waiters for id.
func (t *Tracker) PendingCount(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending[id])
}

// Run consumes state events until ctx is cancelled or the channel closes.
// Only acknowledged events release waiters.
func (t *Tracker) Run(ctx context.Context, events <-chan store.StateEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.State.Ack {
				t.release(ev.ID, ev.State)
			}
		}
	}
}

// enqueue adds a waiter, subscribing to the datapoint's events when it is
// the first waiter for that id.
func (t *Tracker) enqueue(pw *pendingWrite) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending[pw.id]) == 0 {
		t.subs.SubscribeStates(pw.id)
	}
	t.pending[pw.id] = append(t.pending[pw.id], pw)
}

// release hands the state to the oldest waiter for id, if any.
func (t *Tracker) release(id string, state store.State) {
	t.mu.Lock()
	queue := t.pending[id]
	if len(queue) == 0 {
		t.mu.Unlock()
		return
	}
	pw := queue[0]
	t.dropLocked(pw)
	t.mu.Unlock()

	pw.result <- state
}

// remove withdraws a waiter that timed out or was cancelled. Returns false
// if the waiter was already released by an acknowledgement.
func (t *Tracker) remove(pw *pendingWrite) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, queued := range t.pending[pw.id] {
		if queued == pw {
			t.dropLocked(pw)
			return true
		}
	}
	return false
}

// dropLocked removes a waiter from its queue, unsubscribing from the
// datapoint's events when it was the last. Caller holds t.mu.
func (t *Tracker) dropLocked(pw *pendingWrite) {
	queue := t.pending[pw.id]
	for i, queued := range queue {
		if queued == pw {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}

	if len(queue) == 0 {
		delete(t.pending, pw.id)
		t.subs.UnsubscribeStates(pw.id)
		return
	}
	t.pending[pw.id] = queue
}

// correlationIndex builds a unique tag for one waiter: creation time plus
// a random suffix so concurrent waiters never collide.
func correlationIndex() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
