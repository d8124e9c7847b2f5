// Package catalog fronts the TMDB client with the shared store so repeated
// searches, detail views and poster lookups stay off the network.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tmdb-tg-bot/internal/media"
	"tmdb-tg-bot/internal/storage"
	"tmdb-tg-bot/internal/tmdb"
)

type Upstream interface {
	SearchMulti(ctx context.Context, query string) ([]tmdb.Result, error)
	Trending(ctx context.Context, mediaType string, window string) ([]tmdb.Result, error)
	Details(ctx context.Context, t media.Type, id int) (*tmdb.Detail, error)
	Images(ctx context.Context, t media.Type, id int) (*tmdb.Images, error)
}

type Catalog struct {
	api        Upstream
	store      storage.Store
	ttl        time.Duration
	maxResults int
	log        *slog.Logger
}

func New(api Upstream, store storage.Store, ttl time.Duration, maxResults int, log *slog.Logger) *Catalog {
	if log == nil {
		log = slog.Default()
	}
	if maxResults <= 0 {
		maxResults = 100
	}
	return &Catalog{api: api, store: store, ttl: ttl, maxResults: maxResults, log: log}
}

func SearchKey(query string) string {
	return "search:" + strings.ToLower(strings.TrimSpace(query))
}

func DetailsKey(t media.Type, id int) string { return fmt.Sprintf("details:%s:%d", t, id) }

func ImagesKey(t media.Type, id int) string { return fmt.Sprintf("images:%s:%d", t, id) }

// Search returns normalized movie/series matches for query.
func (c *Catalog) Search(ctx context.Context, query string) ([]media.Item, error) {
	key := SearchKey(query)
	var items []media.Item
	if c.load(ctx, key, &items) && len(items) > 0 {
		return items, nil
	}
	res, err := c.api.SearchMulti(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	items = tmdb.Normalize(res, c.maxResults)
	if len(items) > 0 {
		c.save(ctx, key, items)
	}
	return items, nil
}

func (c *Catalog) Details(ctx context.Context, t media.Type, id int) (*tmdb.Detail, error) {
	key := DetailsKey(t, id)
	var d tmdb.Detail
	if c.load(ctx, key, &d) {
		return &d, nil
	}
	fresh, err := c.api.Details(ctx, t, id)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, fresh)
	return fresh, nil
}

func (c *Catalog) Images(ctx context.Context, t media.Type, id int) (*tmdb.Images, error) {
	key := ImagesKey(t, id)
	var imgs tmdb.Images
	if c.load(ctx, key, &imgs) {
		return &imgs, nil
	}
	fresh, err := c.api.Images(ctx, t, id)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, fresh)
	return fresh, nil
}

// Trending is never cached: the broadcast loop wants a fresh view each cycle.
func (c *Catalog) Trending(ctx context.Context, mediaType string, window string) ([]tmdb.Result, error) {
	return c.api.Trending(ctx, mediaType, window)
}

func (c *Catalog) load(ctx context.Context, key string, out any) bool {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrMiss) {
			c.log.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn("cache entry undecodable, refetching", "key", key, "error", err)
		return false
	}
	return true
}

// save never fails the caller; losing the cache only costs a refetch.
func (c *Catalog) save(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Put(ctx, key, raw, c.ttl); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
}
