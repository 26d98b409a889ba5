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

// Package storage holds the crawl frontier bookkeeping: which URLs have been
// visited, which are waiting in the queue, and how much of the page budget
// is spent.
package storage

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Frontier is the crawl work queue together with its visited-or-enqueued
// guard and page budget.
type Frontier interface {
	// Push adds url to the tail of the queue. It returns false when url was
	// already visited or enqueued, or when processed + enqueued has reached
	// the page budget.
	Push(url string) bool
	// Pop removes the head of the queue and marks it visited.
	Pop() (string, bool)
	// Complete records that a popped url produced a result. The url stops
	// counting as enqueued and starts counting as processed.
	Complete(url string)
	// Len is the number of queued urls not yet popped.
	Len() int
	// Stats returns the processed and enqueued counts.
	Stats() (processed, enqueued int)
}

// InMemoryFrontier is the default Frontier. URLs are tracked by their
// xxhash so the sets stay small on large crawls.
type InMemoryFrontier struct {
	maxPages  int
	visited   map[uint64]bool
	enqueued  map[uint64]bool
	queue     []string
	processed int
	mu        sync.Mutex
}

// NewInMemoryFrontier creates a frontier capped at maxPages. A non-positive
// budget means unlimited.
func NewInMemoryFrontier(maxPages int) *InMemoryFrontier {
	return &InMemoryFrontier{
		maxPages: maxPages,
		visited:  make(map[uint64]bool),
		enqueued: make(map[uint64]bool),
	}
}

// Push implements Frontier.Push.
func (f *InMemoryFrontier) Push(url string) bool {
	if url == "" {
		return false
	}
	hash := xxhash.Sum64String(url)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visited[hash] || f.enqueued[hash] {
		return false
	}
	if f.maxPages > 0 && f.processed+len(f.enqueued) >= f.maxPages {
		return false
	}
	f.enqueued[hash] = true
	f.queue = append(f.queue, url)
	return true
}

// Pop implements Frontier.Pop.
func (f *InMemoryFrontier) Pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return "", false
	}
	url := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	f.visited[xxhash.Sum64String(url)] = true
	return url, true
}

// Complete implements Frontier.Complete.
func (f *InMemoryFrontier) Complete(url string) {
	hash := xxhash.Sum64String(url)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.enqueued[hash] {
		delete(f.enqueued, hash)
	}
	f.processed++
}

// Len implements Frontier.Len.
func (f *InMemoryFrontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Stats implements Frontier.Stats.
func (f *InMemoryFrontier) Stats() (processed, enqueued int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed, len(f.enqueued)
}

// IsVisited reports whether url has been popped.
func (f *InMemoryFrontier) IsVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited[xxhash.Sum64String(url)]
}
