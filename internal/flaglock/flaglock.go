// Package flaglock implements the per-key busy/free flag that prevents
// duplicate concurrent fetch jobs. The flag lives in a shared key-value store
// with an expiring retention window, so a crashed holder cannot wedge a key
// forever.
package flaglock

import (
	"context"
	"fmt"
	"time"
)

const busyValue = "busy"

// KV is the minimal key-value surface the lock needs. SetNX must be atomic:
// of two concurrent callers only one may observe a successful set.
type KV interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
}

// Lock is the busy/free flag over a shared KV store. A key is busy while it
// holds the busy marker; an absent key, or a legacy "free"/"0" value, reads
// as free.
type Lock struct {
	kv  KV
	ttl time.Duration
}

func New(kv KV, ttl time.Duration) *Lock {
	return &Lock{kv: kv, ttl: ttl}
}

// Key builds the canonical flag key for a (host, day, job-type) triple.
func Key(host string, day time.Time, taskType string) string {
	return fmt.Sprintf("%s_%s_%s", host, day.Format("20060102"), taskType)
}

// Acquire transitions the key from free to busy. It returns false when the
// key is already held; the caller must not dispatch in that case. A key still
// holding a legacy "free"/"0" marker blocks the atomic set, so it is cleared
// and the set retried once.
func (l *Lock) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.kv.SetNX(ctx, key, busyValue, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire flag %s: %w", key, err)
	}
	if ok {
		return true, nil
	}

	v, err := l.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("acquire flag %s: %w", key, err)
	}
	switch v {
	case "", "free", "0":
		if err := l.kv.Del(ctx, key); err != nil {
			return false, fmt.Errorf("acquire flag %s: %w", key, err)
		}
		ok, err = l.kv.SetNX(ctx, key, busyValue, l.ttl)
		if err != nil {
			return false, fmt.Errorf("acquire flag %s: %w", key, err)
		}
		return ok, nil
	default:
		return false, nil
	}
}

// Release transitions the key back to free. Safe to call on a key that is
// already free.
func (l *Lock) Release(ctx context.Context, key string) error {
	if err := l.kv.Del(ctx, key); err != nil {
		return fmt.Errorf("release flag %s: %w", key, err)
	}
	return nil
}

// Busy reports whether the key currently holds an active fetch. Any value
// other than absent, "free" or "0" counts as busy.
func (l *Lock) Busy(ctx context.Context, key string) (bool, error) {
	v, err := l.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read flag %s: %w", key, err)
	}
	switch v {
	case "", "free", "0":
		return false, nil
	default:
		return true, nil
	}
}
