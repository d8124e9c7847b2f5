// Package session keeps short-lived result lists behind opaque ids so
// paging and selection never go back to the upstream API.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tmdb-tg-bot/internal/media"
	"tmdb-tg-bot/internal/storage"
)

var (
	// ErrExpired means the id is unknown or its TTL has elapsed.
	ErrExpired = errors.New("session expired")
	// ErrNotInSession means a selected item was never part of the result set.
	ErrNotInSession = errors.New("item not in session")
)

type Kind string

const (
	KindSearch Kind = "search"
	KindPoster Kind = "poster"
)

type ResultSet struct {
	ID        string       `json:"id"`
	Kind      Kind         `json:"kind"`
	Query     string       `json:"query"`
	Items     []media.Item `json:"items"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Find returns the item with the given type and id.
func (rs *ResultSet) Find(t media.Type, id int) (media.Item, error) {
	for _, it := range rs.Items {
		if it.Type == t && it.ID == id {
			return it, nil
		}
	}
	return media.Item{}, ErrNotInSession
}

type Manager struct {
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger
}

func NewManager(store storage.Store, ttl time.Duration, log *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, ttl: ttl, now: time.Now, log: log}
}

func key(id string) string { return "session:" + id }

// NewID returns 128 random bits (UUIDv4) as 32 hex characters.
func NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return strings.ReplaceAll(u.String(), "-", ""), nil
}

// Create stores items under a fresh id. A store failure is logged and the
// id is still returned: the first page can be rendered from items directly,
// later navigation will report the session as expired.
func (m *Manager) Create(ctx context.Context, kind Kind, query string, items []media.Item) (*ResultSet, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	now := m.now()
	rs := &ResultSet{
		ID:        id,
		Kind:      kind,
		Query:     query,
		Items:     append([]media.Item(nil), items...),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	raw, err := json.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Put(ctx, key(id), raw, m.ttl); err != nil {
		m.log.Warn("session not persisted", "session", id, "error", err)
	}
	return rs, nil
}

func (m *Manager) Resolve(ctx context.Context, id string) (*ResultSet, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrExpired
	}
	raw, err := m.store.Get(ctx, key(id))
	if errors.Is(err, storage.ErrMiss) {
		return nil, ErrExpired
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session %s: %w", id, err)
	}
	var rs ResultSet
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if !rs.ExpiresAt.IsZero() && !m.now().Before(rs.ExpiresAt) {
		return nil, ErrExpired
	}
	return &rs, nil
}

// Evict drops a session before its TTL.
func (m *Manager) Evict(ctx context.Context, id string) error {
	return m.store.Delete(ctx, key(id))
}
