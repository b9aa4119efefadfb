// Package cache provides the small key/value cache used for playlist corpora
// and geolocation results.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores string values with a time-to-live. A miss is reported as
// ok=false with a nil error; errors mean the backend itself failed.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (string, bool, error)        { return "", false, nil }
func (Nop) Set(context.Context, string, string, time.Duration) error { return nil }

type entry struct {
	value   string
	expires time.Time // zero means no expiry
}

// Memory is an in-process cache. Expired entries are dropped lazily on read
// and by Sweep.
type Memory struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]entry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.items[key] = e
	return nil
}

// Sweep removes every expired entry and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for k, e := range m.items {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
