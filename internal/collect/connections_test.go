package collect_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialweight/socialweight/internal/collect"
	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/internal/store/storetest"
	"github.com/socialweight/socialweight/pkg/scoring"
)

func connections(t *testing.T, src *storetest.Memory, userID string) scoring.CategoryResult {
	t.Helper()
	res, err := collect.Connections{Src: src, Window: 100}.Collect(context.Background(), subject(t, src, userID))
	require.NoError(t, err)
	return res
}

func TestConnectionsOneVersusTwoMentions(t *testing.T) {
	src := world()
	post(src, "alice", "hey @bob")
	post(src, "bob", "@alice welcome")
	post(src, "bob", "thanks @alice!")

	res := connections(t, src, "alice")
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, 25.0, res.Points, "only the first-connection weight is billed")
	assert.Equal(t, 1.0, res.Details["firstUnits"])
	assert.Equal(t, 0.0, res.Details["repeatUnits"])
	assert.Equal(t, 1.0, res.Details["connectedUsers"])
}

func TestConnectionsSymmetric(t *testing.T) {
	src := world()
	post(src, "alice", "hey @bob")
	post(src, "alice", "again /u/bob")
	post(src, "alice", "and /u/2")
	post(src, "bob", "@alice one")
	post(src, "bob", "@alice two")
	post(src, "carol", "@alice hello")

	a := connections(t, src, "alice")
	b := connections(t, src, "bob")
	assert.Equal(t, a.Count, b.Count)
	assert.Equal(t, int64(collect.MutualUnits(3, 2)), a.Count)
	assert.Equal(t, 25.0+5.0, a.Points, "one first unit plus one repeat unit")
	assert.Equal(t, 1.0, a.Details["connectedUsers"], "carol was never mentioned back")
}

func TestConnectionsSymmetricAtWindowEdge(t *testing.T) {
	ctx := context.Background()
	collectWindow := func(src *storetest.Memory, userID string, window int) int64 {
		t.Helper()
		res, err := collect.Connections{Src: src, Window: window}.Collect(ctx, subject(t, src, userID))
		require.NoError(t, err)
		return res.Count
	}

	src := world()
	post(src, "alice", "hey @bob")
	post(src, "carol", "unrelated")
	post(src, "bob", "hi @alice")

	// alice's post falls outside a window of two.
	assert.Equal(t, collectWindow(src, "alice", 2), collectWindow(src, "bob", 2))
	assert.Zero(t, collectWindow(src, "alice", 2))

	// With room for all three posts both sides see the connection.
	assert.Equal(t, int64(1), collectWindow(src, "alice", 3))
	assert.Equal(t, int64(1), collectWindow(src, "bob", 3))
}

func TestConnectionsWordBoundary(t *testing.T) {
	src := world()
	post(src, "carol", "hi @alice2 and @alice_b")
	post(src, "alice", "@carol hello")

	res := connections(t, src, "alice")
	assert.Zero(t, res.Count)
	assert.Zero(t, res.Points)
}

func TestConnectionsFromBio(t *testing.T) {
	ctx := context.Background()
	src := world()
	require.NoError(t, src.Upsert(ctx, collect.TableProfiles, "id", store.Row{
		"id": "carol", "username": "carol", "numeric_id": 3, "bio": "friends with /u/1", "created_at": t0,
	}))
	post(src, "alice", "shout out to @carol")

	res := connections(t, src, "alice")
	assert.Equal(t, int64(1), res.Count)
}

func TestConnectionsWithoutHandle(t *testing.T) {
	ctx := context.Background()
	src := world()
	require.NoError(t, src.Upsert(ctx, collect.TableProfiles, "id", store.Row{"id": "alice", "created_at": t0}))
	post(src, "bob", "@alice")

	res := connections(t, src, "alice")
	assert.Zero(t, res.Points)
	assert.False(t, res.Skipped)
}

func TestConnectionsAlternateContentColumns(t *testing.T) {
	src := storetest.New().
		Define(collect.TableProfiles, "id", "username", "created_at").
		Define(collect.TablePosts, "id", "user_id", "body", "created_at").
		Insert(collect.TableProfiles,
			store.Row{"id": "a", "username": "ann", "created_at": t0},
			store.Row{"id": "b", "username": "ben", "created_at": t0},
		).
		Insert(collect.TablePosts,
			store.Row{"id": "1", "user_id": "a", "body": "@ben", "created_at": t0},
			store.Row{"id": "2", "user_id": "b", "body": "@ann", "created_at": t0},
		)

	p, err := collect.LoadProfile(context.Background(), src, "a")
	require.NoError(t, err)
	res, err := collect.Connections{Src: src}.Collect(context.Background(), collect.Subject{UserID: "a", Profile: p, Weights: scoring.Defaults()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)
}

func TestMutualUnits(t *testing.T) {
	tests := []struct{ theirs, mine, want int }{
		{0, 5, 0},
		{1, 2, 1},
		{2, 1, 1},
		{4, 4, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, int64(tt.want), collect.MutualUnits(tt.theirs, tt.mine))
		assert.Equal(t, collect.MutualUnits(tt.mine, tt.theirs), collect.MutualUnits(tt.theirs, tt.mine))
	}
}
