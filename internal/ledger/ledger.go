// Package ledger records which titles have been broadcast and whether
// broadcasting is paused. Both live in the shared store and survive restarts.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tmdb-tg-bot/internal/storage"
)

const (
	postedPrefix = "posted:"
	pausedKey    = "state:paused"
)

type Entry struct {
	Title    string    `json:"title"`
	PostedAt time.Time `json:"posted_at"`
}

// Ledger deduplicates on the exact display title (case-sensitive).
type Ledger struct {
	store storage.Store
	now   func() time.Time
}

func New(store storage.Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

func (l *Ledger) HasPosted(ctx context.Context, title string) (bool, error) {
	_, err := l.store.Get(ctx, postedPrefix+title)
	if errors.Is(err, storage.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup %q: %w", title, err)
	}
	return true, nil
}

// MarkPosted is idempotent; marking twice keeps the title posted.
func (l *Ledger) MarkPosted(ctx context.Context, title string) error {
	raw, err := json.Marshal(Entry{Title: title, PostedAt: l.now().UTC()})
	if err != nil {
		return err
	}
	if err := l.store.Put(ctx, postedPrefix+title, raw, 0); err != nil {
		return fmt.Errorf("ledger mark %q: %w", title, err)
	}
	return nil
}

func (l *Ledger) Count(ctx context.Context) (int, error) {
	return l.store.Count(ctx, postedPrefix)
}

// Pause is the persisted process-wide switch for outbound broadcasts.
type Pause struct {
	store storage.Store
}

func NewPause(store storage.Store) *Pause {
	return &Pause{store: store}
}

// Paused reports false when the flag was never set.
func (p *Pause) Paused(ctx context.Context) (bool, error) {
	raw, err := p.store.Get(ctx, pausedKey)
	if errors.Is(err, storage.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read pause flag: %w", err)
	}
	return string(raw) == "true", nil
}

func (p *Pause) SetPaused(ctx context.Context, paused bool) error {
	v := "false"
	if paused {
		v = "true"
	}
	if err := p.store.Put(ctx, pausedKey, []byte(v), 0); err != nil {
		return fmt.Errorf("write pause flag: %w", err)
	}
	return nil
}
