package flaglock

import (
	"context"
	"sync"
	"testing"
	"time"
)

// memoryKV is an in-process KV with the same atomicity contract as the real
// store: SetNX succeeds for exactly one of any set of concurrent callers.
type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestKey(t *testing.T) {
	day := time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC)
	got := Key("host-a", day, "upload_history")
	want := "host-a_20240601_upload_history"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

// TestAcquireMutualExclusion verifies that of many concurrent acquirers on
// the same key exactly one wins.
func TestAcquireMutualExclusion(t *testing.T) {
	lock := New(newMemoryKV(), time.Hour)
	ctx := context.Background()

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := lock.Acquire(ctx, "key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

// TestReleaseFreesKey verifies the busy/free lifecycle: acquired keys read
// busy, released keys read free and can be re-acquired.
func TestReleaseFreesKey(t *testing.T) {
	lock := New(newMemoryKV(), time.Hour)
	ctx := context.Background()

	busy, err := lock.Busy(ctx, "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if busy {
		t.Fatal("expected fresh key to read free")
	}

	if ok, err := lock.Acquire(ctx, "key"); err != nil || !ok {
		t.Fatalf("expected acquire to succeed, got ok=%v err=%v", ok, err)
	}

	busy, err = lock.Busy(ctx, "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !busy {
		t.Fatal("expected acquired key to read busy")
	}

	if err := lock.Release(ctx, "key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	busy, err = lock.Busy(ctx, "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if busy {
		t.Fatal("expected released key to read free")
	}

	if ok, err := lock.Acquire(ctx, "key"); err != nil || !ok {
		t.Fatalf("expected re-acquire to succeed, got ok=%v err=%v", ok, err)
	}
}

// TestLegacyFreeValues verifies that explicit "free" and "0" markers count as
// free.
func TestLegacyFreeValues(t *testing.T) {
	kv := newMemoryKV()
	lock := New(kv, time.Hour)
	ctx := context.Background()

	for _, v := range []string{"free", "0"} {
		kv.data["key"] = v
		busy, err := lock.Busy(ctx, "key")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if busy {
			t.Fatalf("expected value %q to read free", v)
		}
	}

	kv.data["key"] = "busy"
	busy, err := lock.Busy(ctx, "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !busy {
		t.Fatal("expected busy marker to read busy")
	}
}

// TestAcquireClearsLegacyFreeMarker verifies that a key still holding an
// explicit free marker can be acquired: the stale value is cleared rather
// than blocking the atomic set until the TTL expires.
func TestAcquireClearsLegacyFreeMarker(t *testing.T) {
	ctx := context.Background()

	for _, v := range []string{"free", "0"} {
		kv := newMemoryKV()
		kv.data["key"] = v
		lock := New(kv, time.Hour)

		ok, err := lock.Acquire(ctx, "key")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatalf("expected acquire to succeed over marker %q", v)
		}

		busy, err := lock.Busy(ctx, "key")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !busy {
			t.Fatal("expected key to read busy after acquire")
		}
	}

	kv := newMemoryKV()
	kv.data["key"] = "busy"
	lock := New(kv, time.Hour)
	ok, err := lock.Acquire(ctx, "key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected acquire to fail on a held key")
	}
}
