package stores

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testOTPTTL = 5 * time.Minute

func newOTPTestStore(t *testing.T) (*miniredis.Miniredis, *OTPStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, NewOTPStore(rdb, "cotp", 15*time.Minute)
}

func TestOTPStoreReplaceKeepsLatestRecord(t *testing.T) {
	_, store := newOTPTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	if err := store.Replace(ctx, &OTPRecord{ID: "r1", Email: "a@b.com", Code: "111111", CreatedAt: now}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if err := store.Replace(ctx, &OTPRecord{ID: "r2", Email: "a@b.com", Code: "222222", CreatedAt: now.Add(time.Second)}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	got, err := store.Get(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != "r2" || got.Code != "222222" {
		t.Fatalf("expected second record, got %+v", got)
	}
	if got.Consumed() {
		t.Fatal("fresh record must not be consumed")
	}

	if _, err := store.Consume(ctx, "a@b.com", "111111", now.Add(2*time.Second), testOTPTTL, true); !errors.Is(err, ErrOTPCodeMismatch) {
		t.Fatalf("expected replaced code to be rejected, got %v", err)
	}
}

func TestOTPStoreConsumeOutcomes(t *testing.T) {
	created := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name    string
		email   string
		code    string
		now     time.Time
		wantErr error
	}{
		{name: "valid before expiry", email: "a@b.com", code: "123456", now: created.Add(time.Minute)},
		{name: "valid at boundary", email: "a@b.com", code: "123456", now: created.Add(testOTPTTL)},
		{name: "expired one millisecond late", email: "a@b.com", code: "123456", now: created.Add(testOTPTTL + time.Millisecond), wantErr: ErrOTPExpired},
		{name: "wrong code", email: "a@b.com", code: "654321", now: created.Add(time.Minute), wantErr: ErrOTPCodeMismatch},
		{name: "unknown email", email: "x@y.com", code: "123456", now: created.Add(time.Minute), wantErr: ErrOTPNotFound},
		{name: "wrong code beats expiry", email: "a@b.com", code: "000000", now: created.Add(time.Hour), wantErr: ErrOTPCodeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store := newOTPTestStore(t)
			ctx := context.Background()

			if err := store.Replace(ctx, &OTPRecord{ID: "r1", Email: "a@b.com", Code: "123456", CreatedAt: created}); err != nil {
				t.Fatalf("Replace failed: %v", err)
			}

			record, err := store.Consume(ctx, tt.email, tt.code, tt.now, testOTPTTL, true)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Consume failed: %v", err)
			}
			if record.ID != "r1" || record.Email != "a@b.com" {
				t.Fatalf("unexpected record %+v", record)
			}
			if !record.CreatedAt.Equal(created) {
				t.Fatalf("expected createdAt %v, got %v", created, record.CreatedAt)
			}
			if !record.Consumed() {
				t.Fatal("expected single-use consume to mark the record")
			}
		})
	}
}

func TestOTPStoreSingleUseRejectsReplay(t *testing.T) {
	_, store := newOTPTestStore(t)
	ctx := context.Background()
	created := time.UnixMilli(1_700_000_000_000)

	if err := store.Replace(ctx, &OTPRecord{ID: "r1", Email: "a@b.com", Code: "123456", CreatedAt: created}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if _, err := store.Consume(ctx, "a@b.com", "123456", created.Add(time.Second), testOTPTTL, true); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if _, err := store.Consume(ctx, "a@b.com", "123456", created.Add(2*time.Second), testOTPTTL, true); !errors.Is(err, ErrOTPConsumed) {
		t.Fatalf("expected ErrOTPConsumed, got %v", err)
	}
}

func TestOTPStoreReplayAllowedWhenNotSingleUse(t *testing.T) {
	_, store := newOTPTestStore(t)
	ctx := context.Background()
	created := time.UnixMilli(1_700_000_000_000)

	if err := store.Replace(ctx, &OTPRecord{ID: "r1", Email: "a@b.com", Code: "123456", CreatedAt: created}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		record, err := store.Consume(ctx, "a@b.com", "123456", created.Add(time.Second), testOTPTTL, false)
		if err != nil {
			t.Fatalf("consume %d failed: %v", i, err)
		}
		if record.Consumed() {
			t.Fatalf("consume %d should leave the record pending", i)
		}
	}
}

func TestOTPStoreReleaseAllowsRetry(t *testing.T) {
	_, store := newOTPTestStore(t)
	ctx := context.Background()
	created := time.UnixMilli(1_700_000_000_000)

	if err := store.Replace(ctx, &OTPRecord{ID: "r1", Email: "a@b.com", Code: "123456", CreatedAt: created}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	record, err := store.Consume(ctx, "a@b.com", "123456", created.Add(time.Second), testOTPTTL, true)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	released, err := store.Release(ctx, record)
	if err != nil || !released {
		t.Fatalf("expected release, got released=%v err=%v", released, err)
	}
	if again, _ := store.Release(ctx, record); again {
		t.Fatal("second release of the same consume must be a no-op")
	}
	if _, err := store.Consume(ctx, "a@b.com", "123456", created.Add(2*time.Second), testOTPTTL, true); err != nil {
		t.Fatalf("expected released code to be usable, got %v", err)
	}
}

func TestOTPStoreReleaseIgnoresReplacedRecord(t *testing.T) {
	_, store := newOTPTestStore(t)
	ctx := context.Background()
	created := time.UnixMilli(1_700_000_000_000)

	if err := store.Replace(ctx, &OTPRecord{ID: "r1", Email: "a@b.com", Code: "123456", CreatedAt: created}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	stale, err := store.Consume(ctx, "a@b.com", "123456", created.Add(time.Second), testOTPTTL, true)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	if err := store.Replace(ctx, &OTPRecord{ID: "r2", Email: "a@b.com", Code: "654321", CreatedAt: created.Add(2 * time.Second)}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if _, err := store.Consume(ctx, "a@b.com", "654321", created.Add(3*time.Second), testOTPTTL, true); err != nil {
		t.Fatalf("consume of new code failed: %v", err)
	}

	released, err := store.Release(ctx, stale)
	if err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if released {
		t.Fatal("release of a replaced record must not touch the new one")
	}
	got, err := store.Get(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != "r2" || !got.Consumed() {
		t.Fatalf("expected r2 to stay consumed, got %+v", got)
	}
}

func TestOTPStoreConcurrentSingleUseConsume(t *testing.T) {
	_, store := newOTPTestStore(t)
	ctx := context.Background()
	created := time.UnixMilli(1_700_000_000_000)

	if err := store.Replace(ctx, &OTPRecord{ID: "r1", Email: "a@b.com", Code: "123456", CreatedAt: created}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, "a@b.com", "123456", created.Add(time.Second), testOTPTTL, true); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", success)
	}
}

func TestOTPStoreRecordRetention(t *testing.T) {
	mr, store := newOTPTestStore(t)
	ctx := context.Background()

	if err := store.Replace(ctx, &OTPRecord{ID: "r1", Email: "a@b.com", Code: "123456", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if ttl := mr.TTL("cotp:a@b.com"); ttl != 15*time.Minute {
		t.Fatalf("expected 15m retention, got %v", ttl)
	}

	mr.FastForward(16 * time.Minute)
	if _, err := store.Get(ctx, "a@b.com"); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("expected record to be gone after retention, got %v", err)
	}
}

func TestOTPStoreUnavailable(t *testing.T) {
	mr, store := newOTPTestStore(t)
	mr.Close()

	err := store.Replace(context.Background(), &OTPRecord{ID: "r1", Email: "a@b.com", Code: "123456", CreatedAt: time.Now()})
	if !errors.Is(err, ErrOTPRedisUnavailable) {
		t.Fatalf("expected ErrOTPRedisUnavailable, got %v", err)
	}
	_, err = store.Consume(context.Background(), "a@b.com", "123456", time.Now(), testOTPTTL, true)
	if !errors.Is(err, ErrOTPRedisUnavailable) {
		t.Fatalf("expected ErrOTPRedisUnavailable, got %v", err)
	}
}

func TestOTPStoreReplaceRejectsIncompleteRecord(t *testing.T) {
	_, store := newOTPTestStore(t)
	if err := store.Replace(context.Background(), &OTPRecord{Email: "a@b.com"}); err == nil {
		t.Fatal("expected error for record without code")
	}
}
