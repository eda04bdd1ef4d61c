package promise

import (
	"sync"
	"sync/atomic"
)

type Promise[T any] interface {
	Get() (T, error)
	Peek() (int32, T, error)
	Done(res T, err error)
}

type SinglePromise[T any] struct {
	lock    sync.Mutex
	err     error
	res     T
	pending int32
}

func New[T any]() Promise[T] {
	res := &SinglePromise[T]{
		pending: 1,
	}
	res.lock.Lock()
	return res
}

func Fulfilled[T any](err error, res T) Promise[T] {
	return &SinglePromise[T]{
		err:     err,
		res:     res,
		pending: 0,
	}
}

func (p *SinglePromise[T]) Get() (T, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.res, p.err
}

// Peek reports the pending flag without blocking. The result and error are
// only meaningful once pending is 0.
func (p *SinglePromise[T]) Peek() (int32, T, error) {
	if atomic.LoadInt32(&p.pending) != 0 {
		var zero T
		return 1, zero, nil
	}
	return 0, p.res, p.err
}

func (p *SinglePromise[T]) Done(res T, err error) {
	if !atomic.CompareAndSwapInt32(&p.pending, 1, 0) {
		return
	}
	p.res = res
	p.err = err
	p.lock.Unlock()
}

// WaitForAllPromise resolves when every wrapped promise has resolved and
// reports the first error met.
type WaitForAllPromise[T any] struct {
	promises []Promise[T]
}

func NewWaitForAll[T any](promises []Promise[T]) *WaitForAllPromise[T] {
	return &WaitForAllPromise[T]{promises: promises}
}

func (p *WaitForAllPromise[T]) Get() (T, error) {
	var res T
	var firstErr error
	for _, p := range p.promises {
		_res, err := p.Get()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		res = _res
	}
	return res, firstErr
}

func (p *WaitForAllPromise[T]) Peek() (int32, T, error) {
	var res T
	for _, p := range p.promises {
		pending, _, err := p.Peek()
		if pending != 0 {
			return 1, res, nil
		}
		if err != nil {
			return 0, res, err
		}
	}
	return 0, res, nil
}

func (p *WaitForAllPromise[T]) Done(res T, err error) {
	// No-op
}

func (p *WaitForAllPromise[T]) Add(promise Promise[T]) {
	p.promises = append(p.promises, promise)
}

func (p *WaitForAllPromise[T]) Len() int {
	return len(p.promises)
}
