// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned when work is submitted after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// workerPool runs submitted functions on a fixed set of goroutines.
type workerPool struct {
	jobs chan func()
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func newWorkerPool(size int) *workerPool {
	if size < 1 {
		size = 1
	}
	p := &workerPool{
		jobs: make(chan func()),
		done: make(chan struct{}),
	}
	p.wg.Add(size)
	for range size {
		go p.run()
	}
	return p
}

func (p *workerPool) run() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			job()
		case <-p.done:
			return
		}
	}
}

// submit hands fn to a worker, blocking until one is free.
func (p *workerPool) submit(ctx context.Context, fn func()) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}
	select {
	case p.jobs <- fn:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops the workers and waits for in-flight jobs to finish.
func (p *workerPool) close() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}
