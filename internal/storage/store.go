// Package storage provides the durable key/value cache shared by the
// result sessions, the metadata caches and the posting ledger.
//
// Every backend follows the same contract: Put overwrites (last write wins),
// a ttl <= 0 never expires, and a Get of an expired entry evicts it and
// reports ErrMiss.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrMiss = errors.New("cache miss")

type Store interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Count returns the number of live entries whose key starts with prefix.
	Count(ctx context.Context, prefix string) (int, error)
	// Sweep removes expired entries and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}
