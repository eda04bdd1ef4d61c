package scheduler

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/metrico/tablepipe/utils/promise"
)

// Work computes the heavy part of a deferred pass and returns the step that
// publishes its result. The publish step always runs inside a turn.
type Work func() (publish func())

type Executor interface {
	Submit(work Work)
}

// LoopExecutor computes and publishes in the next turn of the loop.
type LoopExecutor struct {
	loop *Loop
}

func NewLoopExecutor(l *Loop) *LoopExecutor {
	return &LoopExecutor{loop: l}
}

func (e *LoopExecutor) Submit(work Work) {
	e.loop.Later(func() {
		if publish := work(); publish != nil {
			publish()
		}
	})
}

// PoolExecutor computes on goroutines, at most workers at a time, and posts
// the publish step back to the loop.
type PoolExecutor struct {
	loop *Loop
	sem  *semaphore.Weighted
}

func NewPoolExecutor(l *Loop, workers int) *PoolExecutor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &PoolExecutor{
		loop: l,
		sem:  semaphore.NewWeighted(int64(workers)),
	}
}

func (e *PoolExecutor) Submit(work Work) {
	p := promise.New[int32]()
	e.loop.Track(p)
	go func() {
		var err error
		defer func() { p.Done(0, err) }()
		if err = e.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		publish, err := runWork(work)
		e.sem.Release(1)
		if publish != nil {
			e.loop.Later(publish)
		}
	}()
}

func runWork(work Work) (publish func(), err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deferred pass panicked: %v", r)
		}
	}()
	return work(), nil
}
