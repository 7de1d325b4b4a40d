package eventloop

import (
	"fmt"
	"sync"
	"time"

	"github.com/ionlattice/edgejs/internal/core"
)

// FetchEvent is one step of an in-flight fetch's lifecycle, delivered to JS
// as it happens rather than buffered until the whole exchange completes.
// Kind is one of "headers" (status/header block ready, body streaming
// begins), "chunk" (a body chunk is available), "done" (body fully
// delivered) or "error" (network failure or abort).
type FetchEvent struct {
	Kind        string
	Status      int
	StatusText  string
	HeadersJSON string
	FinalURL    string
	Redirected  bool
	ChunkB64    string
	Err         error
}

// PendingFetch represents an in-flight HTTP request whose events will be
// delivered to JS via the event loop as they arrive on Events.
type PendingFetch struct {
	Events  <-chan FetchEvent
	FetchID string
}

// timerEntry represents a pending setTimeout or setInterval callback.
// The actual callback is stored in globalThis.__timerCallbacks[id] on the
// JS side. Go only tracks scheduling metadata.
type timerEntry struct {
	deadline time.Time
	interval time.Duration // 0 for setTimeout, >0 for setInterval
	id       int
	cleared  bool
}

// EventLoop manages Go-backed timers for setTimeout/setInterval and
// pending fetch requests that need to be resolved on the JS thread.
// Provides real wall-clock delays backed by Go timers.
type EventLoop struct {
	mu             sync.Mutex
	timers         map[int]*timerEntry
	nextID         int
	pendingFetches []*PendingFetch
}

// New creates a new EventLoop.
func New() *EventLoop {
	return &EventLoop{
		timers: make(map[int]*timerEntry),
	}
}

// RegisterTimer creates a timer entry and returns its ID.
// The actual JS callback is stored in globalThis.__timerCallbacks[id].
func (el *EventLoop) RegisterTimer(delay time.Duration, isInterval bool) int {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.nextID++
	id := el.nextID
	entry := &timerEntry{
		deadline: time.Now().Add(delay),
		id:       id,
	}
	if isInterval {
		if delay < 10*time.Millisecond {
			delay = 10 * time.Millisecond // minimum interval
		}
		entry.interval = delay
	}
	el.timers[id] = entry
	return id
}

// ClearTimer cancels a timer by ID.
func (el *EventLoop) ClearTimer(id int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if t, ok := el.timers[id]; ok {
		t.cleared = true
		delete(el.timers, id)
	}
}

// AddPendingFetch registers a pending fetch whose events will be delivered
// to JS as the HTTP exchange progresses.
func (el *EventLoop) AddPendingFetch(pf *PendingFetch) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.pendingFetches = append(el.pendingFetches, pf)
}

// DrainPendingFetches does non-blocking reads on all pending fetch event
// channels. Each ready event is delivered to JS via __fetchDispatch; a
// fetch is removed from the pending list once its channel yields a "done"
// or "error" event (or is closed). Returns true if any event was delivered.
func (el *EventLoop) DrainPendingFetches(rt core.JSRuntime) bool {
	el.mu.Lock()
	if len(el.pendingFetches) == 0 {
		el.mu.Unlock()
		return false
	}
	pending := el.pendingFetches
	el.pendingFetches = nil
	el.mu.Unlock()

	var remaining []*PendingFetch
	didWork := false
	for _, pf := range pending {
		keep := true
	drainLoop:
		for {
			select {
			case ev, ok := <-pf.Events:
				if !ok {
					keep = false
					break drainLoop
				}
				deliverFetchEvent(rt, pf.FetchID, ev)
				rt.RunMicrotasks()
				didWork = true
				if ev.Kind == "done" || ev.Kind == "error" {
					keep = false
					break drainLoop
				}
			default:
				break drainLoop
			}
		}
		if keep {
			remaining = append(remaining, pf)
		}
	}

	el.mu.Lock()
	el.pendingFetches = append(remaining, el.pendingFetches...)
	el.mu.Unlock()
	return didWork
}

func deliverFetchEvent(rt core.JSRuntime, fetchID string, ev FetchEvent) {
	switch ev.Kind {
	case "headers":
		js := fmt.Sprintf(`globalThis.__fetchHeaders(%q, %d, %q, %q, %v, %q)`,
			fetchID, ev.Status, ev.StatusText, ev.HeadersJSON, ev.Redirected, ev.FinalURL)
		_ = rt.Eval(js)
	case "chunk":
		js := fmt.Sprintf(`globalThis.__fetchChunk(%q, %q)`, fetchID, ev.ChunkB64)
		_ = rt.Eval(js)
	case "done":
		js := fmt.Sprintf(`globalThis.__fetchDone(%q)`, fetchID)
		_ = rt.Eval(js)
	case "error":
		msg := ""
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		js := fmt.Sprintf(`globalThis.__fetchError(%q, %q)`, fetchID, msg)
		_ = rt.Eval(js)
	}
}

// fireTimer fires a timer callback by invoking the JS-side callback map.
func (el *EventLoop) fireTimer(rt core.JSRuntime, id int) {
	js := fmt.Sprintf(`(function() {
		var entry = globalThis.__timerCallbacks[%d];
		if (!entry) return;
		if (!entry.interval) delete globalThis.__timerCallbacks[%d];
		entry.fn.apply(null, entry.args || []);
	})()`, id, id)
	_ = rt.Eval(js)
}

// Drain fires all pending timers and resolves pending fetches until none remain
// or the deadline is reached.
// Must be called on the runtime's goroutine (JS engines are single-threaded).
func (el *EventLoop) Drain(rt core.JSRuntime, deadline time.Time) {
	for {
		// Always try to drain pending fetches first.
		if el.DrainPendingFetches(rt) {
			continue
		}

		el.mu.Lock()
		hasTimers := len(el.timers) > 0
		hasFetches := len(el.pendingFetches) > 0
		el.mu.Unlock()

		if !hasTimers && !hasFetches {
			return
		}

		// Find the next timer to fire.
		el.mu.Lock()
		var next *timerEntry
		for _, t := range el.timers {
			if t.cleared {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		el.mu.Unlock()

		if next == nil && !hasFetches {
			return
		}

		if next == nil && hasFetches {
			// No timers, but fetches are pending — poll with short sleep.
			if time.Now().After(deadline) {
				return
			}
			time.Sleep(1 * time.Millisecond)
			continue
		}

		// Wait until timer fires or execution deadline.
		now := time.Now()
		if next.deadline.After(now) {
			wait := next.deadline.Sub(now)
			if now.Add(wait).After(deadline) {
				if hasFetches {
					for time.Now().Before(deadline) {
						if el.DrainPendingFetches(rt) {
							break
						}
						time.Sleep(1 * time.Millisecond)
					}
				}
				return
			}
			if hasFetches {
				timerDeadline := now.Add(wait)
				for time.Now().Before(timerDeadline) {
					el.DrainPendingFetches(rt)
					remaining := time.Until(timerDeadline)
					if remaining <= 0 {
						break
					}
					if remaining > 1*time.Millisecond {
						remaining = 1 * time.Millisecond
					}
					time.Sleep(remaining)
				}
			} else {
				time.Sleep(wait)
			}
		}

		if next.deadline.After(deadline) {
			return
		}

		// Fire the callback.
		el.mu.Lock()
		if next.cleared {
			el.mu.Unlock()
			continue
		}
		timerID := next.id
		if next.interval <= 0 {
			delete(el.timers, next.id)
		}
		el.mu.Unlock()

		el.fireTimer(rt, timerID)
		rt.RunMicrotasks()

		// Intervals are rescheduled relative to the end of this firing.
		if next.interval > 0 {
			el.mu.Lock()
			next.deadline = time.Now().Add(next.interval)
			el.mu.Unlock()
		}
	}
}

// HasPending returns true if there are any active timers or pending fetches.
func (el *EventLoop) HasPending() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.timers) > 0 || len(el.pendingFetches) > 0
}

// Reset clears all timers and pending fetches.
func (el *EventLoop) Reset() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.timers = make(map[int]*timerEntry)
	el.nextID = 0
	el.pendingFetches = nil
}
