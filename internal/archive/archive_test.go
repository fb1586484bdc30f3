package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialweight/socialweight/internal/engine"
	"github.com/socialweight/socialweight/internal/store"
)

func TestLocalStoragePutGet(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	data := []byte(`{"totalSW":10}`)
	require.NoError(t, s.Put(ctx, key("user1", "transitions", "t1"), data))

	got, err := s.Get(ctx, "user1/transitions/t1.json")
	require.NoError(t, err)
	assert.Equal(t, string(data), string(got))

	_, err = os.Stat(filepath.Join(dir, "user1", "transitions", "t1.json"))
	assert.NoError(t, err)
}

func TestLocalStorageGetNotFound(t *testing.T) {
	s := NewLocalStorage(t.TempDir())
	_, err := s.Get(context.Background(), "user1/transitions/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewTransitions(NewLocalStorage(t.TempDir()))
	ids := []string{"first", "second"}
	a.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return at }

	rec := &store.ScoreRecord{UserID: "u1", Total: 260, Tier: "Growing", TierChangedAt: at}
	first, err := a.Put(ctx, engine.Transition{UserID: "u1", From: "Beginner", To: "Growing", Record: rec})
	require.NoError(t, err)
	assert.Equal(t, "first", first.ID)

	rec2 := &store.ScoreRecord{UserID: "u1", Total: 1200, Tier: "Established", TierChangedAt: at}
	require.NoError(t, a.ArchiveTransition(ctx, engine.Transition{UserID: "u1", From: "Growing", To: "Established", Record: rec2}))

	got, err := a.Get(ctx, "u1", "first")
	require.NoError(t, err)
	assert.Equal(t, "Beginner", got.From)
	assert.Equal(t, int64(260), got.Record.Total)
	assert.True(t, got.ArchivedAt.Equal(at))

	latest, err := a.Get(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "second", latest.ID)
	assert.Equal(t, "Established", latest.To)

	_, err = a.Get(ctx, "u2", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, Config{Backend: BackendLocal, LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = Open(ctx, Config{Backend: BackendS3})
	assert.Error(t, err, "s3 without a bucket")

	_, err = Open(ctx, Config{Backend: BackendGCS})
	assert.Error(t, err, "gcs without a bucket")

	_, err = Open(ctx, Config{Backend: "ftp"})
	assert.Error(t, err)
}

func TestReadRecordLimit(t *testing.T) {
	data, err := readRecord("ok", bytes.NewReader([]byte(`{"id":"x"}`)))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"x"}`, string(data))

	_, err = readRecord("big", bytes.NewReader(make([]byte, MaxRecordSize+1)))
	assert.ErrorContains(t, err, "exceeds")
}
