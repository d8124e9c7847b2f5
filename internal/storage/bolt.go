package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const cacheBucket = "cache"

type boltRecord struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Bolt is a single-file Store for running without MongoDB.
type Bolt struct {
	db  *bbolt.DB
	now func() time.Time
}

func OpenBolt(path string) (*Bolt, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}
	return &Bolt{db: db, now: time.Now}, nil
}

// WithClock replaces the time source. Tests only.
func (b *Bolt) WithClock(now func() time.Time) *Bolt {
	b.now = now
	return b
}

func (b *Bolt) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil || b.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	now := b.now()
	payload, err := json.Marshal(boltRecord{Value: value, ExpiresAt: expiry(now, ttl), CreatedAt: now})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(cacheBucket)).Put([]byte(key), payload)
	})
}

func (b *Bolt) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b == nil || b.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	var (
		out   []byte
		found bool
	)
	// Update rather than View so an expired entry is evicted in the same tx.
	// The tx must commit for the eviction to stick, so a miss is reported
	// through found rather than as a tx error.
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cacheBucket))
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		var rec boltRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("unmarshal entry %q: %w", key, err)
		}
		if expired(rec.ExpiresAt, b.now()) {
			return bucket.Delete([]byte(key))
		}
		out = append([]byte(nil), rec.Value...)
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrMiss
	}
	return out, nil
}

func (b *Bolt) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil || b.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(cacheBucket)).Delete([]byte(key))
	})
}

func (b *Bolt) Count(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if b == nil || b.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	now := b.now()
	n := 0
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(cacheBucket)).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if !expired(rec.ExpiresAt, now) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (b *Bolt) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if b == nil || b.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	now := b.now()
	n := 0
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cacheBucket))
		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			if expired(rec.ExpiresAt, now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}

func (b *Bolt) Close(context.Context) error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
