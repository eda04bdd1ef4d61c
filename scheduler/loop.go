// Package scheduler runs cooperative work one turn at a time.
//
// A turn is a single function followed by the Once actions it queued. Once
// coalesces: the same key queued several times during a turn runs once, at
// the end of that turn. Later yields: the function gets a turn of its own
// after the current one unwinds. Turns never overlap, whichever goroutine
// drives them.
package scheduler

import (
	"context"
	"sync"

	"github.com/metrico/tablepipe/utils/promise"
)

type action struct {
	key string
	fn  func()
}

type Loop struct {
	turn sync.Mutex

	// guarded by turn
	actions   []action
	queued    map[string]bool
	afterTurn []func()

	mtx      sync.Mutex
	later    []func()
	inflight *promise.WaitForAllPromise[int32]
	wake     chan struct{}
}

func NewLoop() *Loop {
	return &Loop{
		queued:   make(map[string]bool),
		inflight: promise.NewWaitForAll[int32](nil),
		wake:     make(chan struct{}, 1),
	}
}

// Do runs fn as one turn. It must not be called from inside a turn.
func (l *Loop) Do(fn func()) {
	l.turn.Lock()
	defer l.turn.Unlock()
	l.runTurn(fn)
}

func (l *Loop) runTurn(fn func()) {
	if fn != nil {
		fn()
	}
	for len(l.actions) > 0 {
		a := l.actions[0]
		l.actions = l.actions[1:]
		delete(l.queued, a.key)
		a.fn()
	}
	for _, hook := range l.afterTurn {
		hook()
	}
}

// Once queues fn to run at the end of the current turn unless an action
// with the same key is already queued. Only valid inside a turn.
func (l *Loop) Once(key string, fn func()) {
	if l.queued[key] {
		return
	}
	l.queued[key] = true
	l.actions = append(l.actions, action{key: key, fn: fn})
}

// AfterTurn registers fn to run at the end of every turn.
func (l *Loop) AfterTurn(fn func()) {
	l.turn.Lock()
	defer l.turn.Unlock()
	l.afterTurn = append(l.afterTurn, fn)
}

// Later queues fn to run in a turn of its own. Safe from any goroutine.
func (l *Loop) Later(fn func()) {
	l.mtx.Lock()
	l.later = append(l.later, fn)
	l.mtx.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Track registers work running outside the loop. Flush waits for it.
func (l *Loop) Track(p promise.Promise[int32]) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.inflight.Add(p)
}

func (l *Loop) next() func() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if len(l.later) == 0 {
		return nil
	}
	fn := l.later[0]
	l.later[0] = nil
	l.later = l.later[1:]
	return fn
}

// Step runs the next queued task as a turn. It reports false when the
// queue was empty.
func (l *Loop) Step() bool {
	l.turn.Lock()
	defer l.turn.Unlock()
	fn := l.next()
	if fn == nil {
		return false
	}
	l.runTurn(fn)
	return true
}

// Pending reports the number of queued tasks.
func (l *Loop) Pending() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return len(l.later)
}

// Flush runs turns until nothing is queued and no tracked work is left.
func (l *Loop) Flush() {
	for {
		for l.Step() {
		}
		l.mtx.Lock()
		inflight := l.inflight
		l.inflight = promise.NewWaitForAll[int32](nil)
		l.mtx.Unlock()
		if inflight.Len() == 0 {
			if l.Pending() == 0 {
				return
			}
			continue
		}
		inflight.Get()
	}
}

// Run processes queued tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
			for l.Step() {
			}
		}
	}
}
