package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/socialweight/socialweight/internal/collect"
	"github.com/socialweight/socialweight/internal/store"
)

// DefaultUserCountTTL is how long a registered-user count is reused.
const DefaultUserCountTTL = time.Hour

// DefaultUserCountFetchTimeout bounds one shared refresh of the count.
const DefaultUserCountFetchTimeout = 10 * time.Second

// UserCountMemo caches the registered-user count for the decay calculator.
// Concurrent refreshes collapse into one query. When a refresh fails, the
// previous value is served however old it is; the count only tunes decay.
//
// The refresh runs detached from the caller that started it and is bounded
// by its own timeout. Each caller waits only as long as its own context.
type UserCountMemo struct {
	ttl          time.Duration
	fetchTimeout time.Duration
	fetch        func(ctx context.Context) (int64, error)
	now          func() time.Time
	group        singleflight.Group

	mu        sync.RWMutex
	value     int64
	fetchedAt time.Time
	loaded    bool
}

// NewUserCountMemo creates a memo around fetch.
func NewUserCountMemo(ttl time.Duration, fetch func(ctx context.Context) (int64, error)) *UserCountMemo {
	if ttl <= 0 {
		ttl = DefaultUserCountTTL
	}
	return &UserCountMemo{ttl: ttl, fetchTimeout: DefaultUserCountFetchTimeout, fetch: fetch, now: time.Now}
}

// CountUsers returns a fetch func counting rows of the profiles table.
func CountUsers(src store.Source) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		return src.Count(ctx, store.Query{Table: collect.TableProfiles})
	}
}

// Get returns the cached count, refreshing it when older than the TTL.
func (m *UserCountMemo) Get(ctx context.Context) (int64, error) {
	m.mu.RLock()
	value, at, loaded := m.value, m.fetchedAt, m.loaded
	m.mu.RUnlock()

	if loaded && m.now().Sub(at) < m.ttl {
		return value, nil
	}

	ch := m.group.DoChan("count", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.fetchTimeout)
		defer cancel()
		n, err := m.fetch(fctx)
		if err != nil {
			return int64(0), err
		}
		m.mu.Lock()
		m.value, m.fetchedAt, m.loaded = n, m.now(), true
		m.mu.Unlock()
		return n, nil
	})

	var v any
	var err error
	select {
	case r := <-ch:
		v, err = r.Val, r.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		if loaded {
			return value, nil
		}
		return 0, fmt.Errorf("count users: %w", err)
	}
	return v.(int64), nil
}

// Age returns how old the cached value is, and whether there is one.
func (m *UserCountMemo) Age() (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		return 0, false
	}
	return m.now().Sub(m.fetchedAt), true
}
