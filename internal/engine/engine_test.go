package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialweight/socialweight/internal/collect"
	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/internal/store/storetest"
	"github.com/socialweight/socialweight/pkg/scoring"
)

var t0 = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingArchive struct {
	mu  sync.Mutex
	got []Transition
}

func (a *recordingArchive) ArchiveTransition(_ context.Context, t Transition) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, t)
	return nil
}

func (a *recordingArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.got)
}

// fixture builds a network where alice's signals add up to a base of 227:
// registration 100, complete profile 50, growth 15, two followers 20,
// one comment 2, two accepted invites 40.
func fixture() *storetest.Memory {
	src := storetest.New().
		Define(collect.TableProfiles, "id", "username", "full_name", "bio", "country", "avatar_url", "numeric_id", "created_at").
		Define(collect.TableGrowth, "id", "user_id", "points").
		Define(collect.TableFollows, "follower_id", "following_id").
		Define(collect.TablePosts, "id", "author_id", "content", "created_at").
		Define(collect.TableComments, "id", "author_id").
		Define(collect.TableReactions, "id", "post_id", "user_id").
		Define(collect.TableInvites, "id", "inviter_id", "invitee_id", "status").
		Define(collect.TableAdjustments, "id", "user_id", "points")

	src.Insert(collect.TableProfiles,
		store.Row{"id": "alice", "username": "alice", "full_name": "Alice A", "bio": "hi", "country": "NL", "avatar_url": "a.png", "numeric_id": 1, "created_at": t0.Add(-24 * time.Hour)},
		store.Row{"id": "bob", "username": "bob", "numeric_id": 2, "created_at": t0},
		store.Row{"id": "carol", "username": "carol", "numeric_id": 3, "created_at": t0},
	)
	src.Insert(collect.TableGrowth,
		store.Row{"id": 1, "user_id": "alice", "points": 10},
		store.Row{"id": 2, "user_id": "alice", "points": 5},
	)
	src.Insert(collect.TableFollows,
		store.Row{"follower_id": "bob", "following_id": "alice"},
		store.Row{"follower_id": "carol", "following_id": "alice"},
	)
	src.Insert(collect.TableComments, store.Row{"id": "c1", "author_id": "alice"})
	src.Insert(collect.TableInvites,
		store.Row{"id": 1, "inviter_id": "alice", "invitee_id": "bob", "status": "accepted"},
		store.Row{"id": 2, "inviter_id": "alice", "invitee_id": "carol", "status": "accepted"},
	)
	src.Insert(collect.TableAdjustments, store.Row{"id": 1, "user_id": "alice", "points": 10})
	return src
}

type harness struct {
	src      *storetest.Memory
	cache    *store.MemoryScoreCache
	clock    *clock
	archive  *recordingArchive
	cfg      *scoring.Config
	memo     *UserCountMemo
	pipeline *Pipeline
	cached   *Cached
}

func newHarness(t *testing.T, src *storetest.Memory) *harness {
	t.Helper()
	w := scoring.Defaults()
	w.Decay = scoring.DecayParams{Floor: 0.5}
	h := &harness{
		src:     src,
		cache:   store.NewMemoryScoreCache(0),
		clock:   &clock{t: t0},
		archive: &recordingArchive{},
		cfg:     &scoring.Config{Weights: w, Tiers: scoring.DefaultTiers()},
	}
	provider := scoring.StaticProvider{Cfg: h.cfg}
	h.memo = NewUserCountMemo(time.Hour, CountUsers(src))
	h.memo.now = h.clock.Now

	runner := collect.NewRunner(zerolog.Nop(), time.Second, collect.Defaults(src, h.cache, 0)...)
	h.pipeline = NewPipeline(src, provider, runner, h.memo, zerolog.Nop())
	h.pipeline.now = h.clock.Now
	h.cached = NewCached(h.pipeline, h.cache, provider, src, h.archive, zerolog.Nop())
	h.cached.now = h.clock.Now
	return h
}

func TestScoreMissComputesAndCaches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, fixture())

	res, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 227.0, res.Score.BaseScore)
	assert.Equal(t, 10.0, res.Score.AdminAdjustments)
	assert.Equal(t, int64(237), res.Score.Total)
	assert.Equal(t, "Beginner", res.Score.Tier)
	assert.Equal(t, 1.0, res.Score.DecayRate)
	assert.True(t, res.Score.TierChangedAt.Equal(t0))

	rec, err := h.cached.Peek(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(237), rec.Total)
	assert.Zero(t, h.archive.count(), "first classification is not a transition")
}

func TestFastPathReflectsNewAdjustmentWithoutCollectors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, fixture())

	_, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)

	h.clock.Advance(h.cfg.Weights.CacheTTL() - time.Second)
	h.src.Insert(collect.TableAdjustments, store.Row{"id": 2, "user_id": "alice", "points": 40})
	follows, posts := h.src.Reads(collect.TableFollows), h.src.Reads(collect.TablePosts)

	res, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, h.cfg.Weights.CacheTTL()-time.Second, res.CacheAge)
	assert.Equal(t, 50.0, res.Score.AdminAdjustments)
	assert.Equal(t, int64(277), res.Score.Total)
	assert.Equal(t, 277.0, res.Score.OriginalTotal)
	assert.Equal(t, 227.0, res.Score.BaseScore)
	assert.Equal(t, 50.0, res.Score.Breakdown[scoring.CategoryAdminAdjustments].Points)
	assert.Equal(t, "Beginner", res.Score.Tier, "fast path keeps the cached tier")
	assert.True(t, res.Score.TierChangedAt.Equal(t0), "fast path keeps the stored stamp")

	assert.Equal(t, follows, h.src.Reads(collect.TableFollows), "collectors re-ran")
	assert.Equal(t, posts, h.src.Reads(collect.TablePosts), "collectors re-ran")

	rec, err := h.cached.Peek(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(237), rec.Total, "fast path must not persist")
}

func TestFastPathIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, fixture())
	_, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)

	first, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)
	second, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)

	assert.True(t, first.Cached)
	assert.Equal(t, first.Score, second.Score)
}

func TestFastPathKeepsCachedAdjustmentWhenUnreadable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, fixture())
	_, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)

	h.src.Fail(collect.TableAdjustments, errors.New("connection reset"))
	res, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, int64(237), res.Score.Total)
	admin := res.Score.Breakdown[scoring.CategoryAdminAdjustments]
	assert.True(t, admin.Skipped)
	assert.Equal(t, scoring.ReasonTransient, admin.Reason)
}

func TestStaleRecordRecomputes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, fixture())
	_, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)

	h.clock.Advance(h.cfg.Weights.CacheTTL() + time.Second)
	follows := h.src.Reads(collect.TableFollows)
	res, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Greater(t, h.src.Reads(collect.TableFollows), follows)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, fixture())

	first, err := h.cached.Score(ctx, Request{UserID: "alice", Fresh: true})
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	second, err := h.cached.Score(ctx, Request{UserID: "alice", Fresh: true})
	require.NoError(t, err)

	assert.Equal(t, first.Score.Total, second.Score.Total)
	assert.Equal(t, first.Score.Breakdown, second.Score.Breakdown)
	assert.True(t, second.Score.TierChangedAt.Equal(first.Score.TierChangedAt))
}

func TestTierStampUpdatesOnlyOnCrossing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, fixture())

	first, err := h.cached.Score(ctx, Request{UserID: "alice", Fresh: true})
	require.NoError(t, err)
	require.Equal(t, "Beginner", first.Score.Tier)

	h.clock.Advance(time.Hour)
	h.src.Insert(collect.TableAdjustments, store.Row{"id": 2, "user_id": "alice", "points": 5})
	same, err := h.cached.Score(ctx, Request{UserID: "alice", Fresh: true})
	require.NoError(t, err)
	assert.Equal(t, int64(242), same.Score.Total)
	assert.True(t, same.Score.TierChangedAt.Equal(t0))

	h.clock.Advance(time.Hour)
	crossedAt := h.clock.Now()
	h.src.Insert(collect.TableAdjustments, store.Row{"id": 3, "user_id": "alice", "points": 100})
	crossed, err := h.cached.Score(ctx, Request{UserID: "alice", Fresh: true})
	require.NoError(t, err)
	assert.Equal(t, "Growing", crossed.Score.Tier)
	assert.True(t, crossed.Score.TierChangedAt.Equal(crossedAt))
	require.Equal(t, 1, h.archive.count())
	assert.Equal(t, "Beginner", h.archive.got[0].From)
	assert.Equal(t, "Growing", h.archive.got[0].To)

	h.clock.Advance(time.Hour)
	again, err := h.cached.Score(ctx, Request{UserID: "alice", Fresh: true})
	require.NoError(t, err)
	assert.True(t, again.Score.TierChangedAt.Equal(crossedAt))
	assert.Equal(t, 1, h.archive.count())
}

func TestNoProfileScoresAdjustmentsOnly(t *testing.T) {
	ctx := context.Background()
	src := fixture()
	src.Insert(collect.TableAdjustments, store.Row{"id": 9, "user_id": "ghost", "points": 30})
	h := newHarness(t, src)

	res, err := h.cached.Score(ctx, Request{UserID: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.Score.Total)
	assert.Zero(t, res.Score.BaseScore)
	assert.Equal(t, 1.0, res.Score.DecayRate)
	for _, c := range scoring.SignalCategories {
		assert.Zero(t, res.Score.Breakdown[c].Points, c)
	}
	assert.Zero(t, src.Reads(collect.TableFollows), "collectors ran without a profile")
}

func TestConfigMissing(t *testing.T) {
	h := newHarness(t, fixture())
	provider := scoring.StaticProvider{}
	h.pipeline.config = provider
	h.cached.config = provider

	_, err := h.cached.Score(context.Background(), Request{UserID: "alice"})
	assert.ErrorIs(t, err, ErrConfigMissing)

	_, err = h.pipeline.Recompute(context.Background(), Request{UserID: "alice"})
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestAccessDenied(t *testing.T) {
	ctx := context.Background()
	src := fixture().Deny(collect.TableComments)
	h := newHarness(t, src)

	_, err := h.cached.Score(ctx, Request{UserID: "alice", Elevated: true})
	assert.ErrorIs(t, err, store.ErrAccessDenied)

	res, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(235), res.Score.Total)
	comments := res.Score.Breakdown[scoring.CategoryComments]
	assert.True(t, comments.Skipped)
	assert.Equal(t, scoring.ReasonAccessDenied, comments.Reason)
	assert.Zero(t, h.cache.Len(), "degraded score was cached")
}

func TestDeniedAdjustments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, fixture().Deny(collect.TableAdjustments))

	_, err := h.cached.Score(ctx, Request{UserID: "alice", Elevated: true})
	assert.ErrorIs(t, err, store.ErrAccessDenied)

	res, err := h.cached.Score(ctx, Request{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(227), res.Score.Total)
	assert.True(t, res.Score.Breakdown[scoring.CategoryAdminAdjustments].Skipped)
}

func TestAdminTotalFunctionPreferred(t *testing.T) {
	src := fixture().Func(AdminTotalFunc, func(args ...any) (float64, error) {
		return 70, nil
	})
	total, reason, err := Overlay{Src: src}.Total(context.Background(), Request{UserID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, reason)
	assert.Equal(t, 70.0, total)
	assert.Zero(t, src.Reads(collect.TableAdjustments))
}

func TestOverlayReadIsBounded(t *testing.T) {
	src := fixture().Delay(collect.TableAdjustments, time.Minute)
	start := time.Now()
	total, reason, err := Overlay{Src: src, Timeout: 20 * time.Millisecond}.Total(context.Background(), Request{UserID: "alice"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, scoring.ReasonTimeout, reason)
	assert.Zero(t, total)
}

func TestSlowUserCountSkipsDecay(t *testing.T) {
	h := newHarness(t, fixture())
	h.cfg.Weights.Decay = scoring.DecayParams{PerHundredUsersRate: 0.1, Floor: 0.5}
	h.pipeline.runner = collect.NewRunner(zerolog.Nop(), 50*time.Millisecond, collect.Defaults(h.src, h.cache, 0)...)
	h.memo.fetchTimeout = 200 * time.Millisecond
	h.memo.fetch = func(ctx context.Context) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	res, err := h.pipeline.Recompute(ctx, Request{UserID: "alice"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "recompute waited on the user count")
	assert.Equal(t, 1.0, res.Score.DecayRate)
	assert.Equal(t, int64(237), res.Score.Total)
}

func TestDecayUsesStaleUserCount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, fixture())
	h.cfg.Weights.Decay = scoring.DecayParams{PerHundredUsersRate: 0.1, Floor: 0.5}

	var fail atomic.Bool
	h.memo.fetch = func(context.Context) (int64, error) {
		if fail.Load() {
			return 0, errors.New("statement timeout")
		}
		return 100, nil
	}

	first, err := h.pipeline.Recompute(ctx, Request{UserID: "alice"})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, first.Score.DecayRate, 1e-9)

	fail.Store(true)
	h.clock.Advance(2 * time.Hour)
	stale, err := h.pipeline.Recompute(ctx, Request{UserID: "alice"})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, stale.Score.DecayRate, 1e-9)
	assert.Equal(t, first.Score.Total, stale.Score.Total)
}

func TestUserCountMemo(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: t0}
	var calls atomic.Int32
	var fail atomic.Bool
	m := NewUserCountMemo(time.Hour, func(context.Context) (int64, error) {
		calls.Add(1)
		if fail.Load() {
			return 0, errors.New("down")
		}
		return 42, nil
	})
	m.now = c.Now

	_, ok := m.Age()
	assert.False(t, ok)

	n, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	c.Advance(30 * time.Minute)
	_, err = m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "fresh value refetched")

	fail.Store(true)
	c.Advance(2 * time.Hour)
	n, err = m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	age, ok := m.Age()
	assert.True(t, ok)
	assert.Equal(t, 150*time.Minute, age)
}

func TestUserCountMemoWithoutValueFails(t *testing.T) {
	m := NewUserCountMemo(0, func(context.Context) (int64, error) {
		return 0, errors.New("down")
	})
	_, err := m.Get(context.Background())
	assert.Error(t, err)
}

func TestUserCountMemoCollapsesRefreshes(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	m := NewUserCountMemo(time.Hour, func(context.Context) (int64, error) {
		calls.Add(1)
		<-release
		return 7, nil
	})

	var wg sync.WaitGroup
	results := make([]int64, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := m.Get(context.Background())
			if err == nil {
				results[i] = n
			}
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, n := range results {
		assert.Equal(t, int64(7), n)
	}
}

func TestUserCountRefreshOutlivesCaller(t *testing.T) {
	release := make(chan struct{})
	m := NewUserCountMemo(time.Hour, func(ctx context.Context) (int64, error) {
		select {
		case <-release:
			return 9, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	n, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
}

func TestPeekMissing(t *testing.T) {
	h := newHarness(t, fixture())
	rec, err := h.cached.Peek(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
