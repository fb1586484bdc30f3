package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/socialweight/socialweight/internal/engine"
	"github.com/socialweight/socialweight/internal/store"
)

// Backends.
const (
	BackendNone  = "none"
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
)

// Latest names the pointer to a user's most recent transition.
const Latest = "latest"

const kindTransitions = "transitions"

// Config selects and configures a storage backend.
type Config struct {
	Backend   string
	LocalDir  string
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Open returns the configured Storage, or nil for BackendNone.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case "", BackendLocal:
		return NewLocalStorage(cfg.LocalDir), nil
	case BackendS3:
		s, err := openS3(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendGCS:
		s, err := openGCS(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// Entry is one archived tier transition.
type Entry struct {
	ID         string             `json:"id"`
	UserID     string             `json:"userId"`
	From       string             `json:"from"`
	To         string             `json:"to"`
	ArchivedAt time.Time          `json:"archivedAt"`
	Record     *store.ScoreRecord `json:"record"`
}

// Transitions archives tier transitions. Each entry is written under its own
// id and again as the user's latest.
type Transitions struct {
	storage Storage
	newID   func() string
	now     func() time.Time
}

// NewTransitions wraps storage.
func NewTransitions(storage Storage) *Transitions {
	return &Transitions{storage: storage, newID: uuid.NewString, now: time.Now}
}

// ArchiveTransition implements engine.Archiver.
func (a *Transitions) ArchiveTransition(ctx context.Context, t engine.Transition) error {
	_, err := a.Put(ctx, t)
	return err
}

// Put stores t and returns the entry written.
func (a *Transitions) Put(ctx context.Context, t engine.Transition) (*Entry, error) {
	e := &Entry{
		ID:         a.newID(),
		UserID:     t.UserID,
		From:       t.From,
		To:         t.To,
		ArchivedAt: a.now().UTC(),
		Record:     t.Record,
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal transition: %w", err)
	}
	if err := a.storage.Put(ctx, key(t.UserID, kindTransitions, e.ID), data); err != nil {
		return nil, fmt.Errorf("archive transition: %w", err)
	}
	if err := a.storage.Put(ctx, key(t.UserID, kindTransitions, Latest), data); err != nil {
		return nil, fmt.Errorf("archive latest transition: %w", err)
	}
	return e, nil
}

// Get loads an archived transition. An empty id means Latest.
func (a *Transitions) Get(ctx context.Context, userID, id string) (*Entry, error) {
	if id == "" {
		id = Latest
	}
	data, err := a.storage.Get(ctx, key(userID, kindTransitions, id))
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode transition %s: %w", id, err)
	}
	return &e, nil
}
