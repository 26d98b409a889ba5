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

package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ExportCache holds the raw export payload between requests.
type ExportCache interface {
	Get(ctx context.Context) ([]byte, bool, error)
	Set(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
}

// MemoryCache keeps the payload in process memory.
type MemoryCache struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(ctx context.Context) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data, c.data != nil, nil
}

func (c *MemoryCache) Set(ctx context.Context, data []byte) error {
	c.mu.Lock()
	c.data = data
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	return c.Set(ctx, nil)
}

// DefaultCacheKey is the Redis key of the cached export.
const DefaultCacheKey = "covenant:content-export"

// RedisCache shares the payload between server instances.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at rawURL
// (redis://[user:pass@]host:port/db). A zero ttl keeps the payload until
// it is cleared.
func NewRedisCache(rawURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts), key: DefaultCacheKey, ttl: ttl}, nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, data []byte) error {
	return c.client.Set(ctx, c.key, data, c.ttl).Err()
}

func (c *RedisCache) Clear(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
