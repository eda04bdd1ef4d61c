package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOnceCoalesces(t *testing.T) {
	l := NewLoop()
	runs := 0
	l.Do(func() {
		for i := 0; i < 5; i++ {
			l.Once("sort", func() { runs++ })
		}
	})
	assert.Equal(t, 1, runs)

	l.Do(func() { l.Once("sort", func() { runs++ }) })
	assert.Equal(t, 2, runs, "key is released once the action ran")
}

func TestOnceChains(t *testing.T) {
	l := NewLoop()
	var order []string
	l.Do(func() {
		l.Once("a", func() {
			order = append(order, "a")
			l.Once("b", func() { order = append(order, "b") })
		})
		order = append(order, "turn")
	})
	assert.Equal(t, []string{"turn", "a", "b"}, order)
}

func TestLaterYields(t *testing.T) {
	l := NewLoop()
	var order []string
	turns := 0
	l.AfterTurn(func() { turns++ })
	l.Do(func() {
		l.Later(func() { order = append(order, "later") })
		order = append(order, "now")
	})
	assert.Equal(t, []string{"now"}, order)
	assert.Equal(t, 1, l.Pending())

	l.Flush()
	assert.Equal(t, []string{"now", "later"}, order)
	assert.Equal(t, 2, turns)
}

func TestPoolExecutorFlush(t *testing.T) {
	l := NewLoop()
	e := NewPoolExecutor(l, 2)
	var published int32
	for i := 0; i < 10; i++ {
		e.Submit(func() func() {
			time.Sleep(time.Millisecond)
			return func() { atomic.AddInt32(&published, 1) }
		})
	}
	l.Flush()
	assert.Equal(t, int32(10), atomic.LoadInt32(&published))
}

func TestPoolExecutorRecovers(t *testing.T) {
	l := NewLoop()
	e := NewPoolExecutor(l, 1)
	e.Submit(func() func() { panic("boom") })
	l.Flush()
	assert.Equal(t, 0, l.Pending())
}

func TestLoopExecutor(t *testing.T) {
	l := NewLoop()
	e := NewLoopExecutor(l)
	done := false
	e.Submit(func() func() { return func() { done = true } })
	assert.False(t, done)
	l.Flush()
	assert.True(t, done)
}

func TestRun(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	done := make(chan struct{})
	l.Later(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}
