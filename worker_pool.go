// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package covenant

import (
	"context"
	"sync"
)

// Task is a unit of work run by a WorkerPool.
type Task func(ctx context.Context)

// WorkerPool runs tasks on a fixed number of goroutines. The image mirror
// uses one so image downloads are bounded independently of page fetches.
type WorkerPool struct {
	queue     chan Task
	ctx       context.Context
	workers   sync.WaitGroup
	pending   sync.WaitGroup
	closeOnce sync.Once
}

// NewWorkerPool starts maxWorkers goroutines reading from a queue of
// queueSize entries. A maxWorkers below one is treated as one.
func NewWorkerPool(ctx context.Context, maxWorkers int, queueSize int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	wp := &WorkerPool{
		queue: make(chan Task, queueSize),
		ctx:   ctx,
	}
	for i := 0; i < maxWorkers; i++ {
		wp.workers.Add(1)
		go wp.worker()
	}
	return wp
}

// Every queued task runs, even after cancellation; tasks observe ctx
// themselves.
func (wp *WorkerPool) worker() {
	defer wp.workers.Done()
	for task := range wp.queue {
		task(wp.ctx)
		wp.pending.Done()
	}
}

// Submit queues task, blocking while the queue is full. It returns the
// context error if the pool's context is cancelled first. Submit must not
// be called after Close.
func (wp *WorkerPool) Submit(task Task) error {
	wp.pending.Add(1)
	select {
	case wp.queue <- task:
		return nil
	case <-wp.ctx.Done():
		wp.pending.Done()
		return wp.ctx.Err()
	}
}

// Wait blocks until every submitted task has finished.
func (wp *WorkerPool) Wait() {
	wp.pending.Wait()
}

// Close stops accepting work, waits for queued tasks and stops the workers.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.queue)
	})
	wp.workers.Wait()
}
