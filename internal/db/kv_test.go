package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestPutGet(t *testing.T) {
	db, _ := newClockedTestDB(t)
	ctx := context.Background()

	if err := db.Put(ctx, "zones:acc1", []byte(`[1]`), time.Hour); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	got, ok, err := db.Get(ctx, "zones:acc1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !ok || string(got) != `[1]` {
		t.Errorf("Get() = %q, %v; want [1], true", got, ok)
	}

	if err := db.Put(ctx, "zones:acc1", []byte(`[2]`), time.Hour); err != nil {
		t.Fatalf("Put() overwrite failed: %v", err)
	}
	got, _, _ = db.Get(ctx, "zones:acc1")
	if string(got) != `[2]` {
		t.Errorf("Get() after overwrite = %q, want [2]", got)
	}
}

func TestGet_Missing(t *testing.T) {
	db, _ := newClockedTestDB(t)

	_, ok, err := db.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if ok {
		t.Error("Get() on missing key should report not found")
	}
}

func TestGet_Expired(t *testing.T) {
	db, clock := newClockedTestDB(t)
	ctx := context.Background()

	if err := db.Put(ctx, "current-month:acc1:2025-03-15-12", []byte("x"), 10*time.Minute); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	if err := db.Put(ctx, "config:default", []byte("cfg"), 0); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	clock.Advance(9 * time.Minute)
	if _, ok, _ := db.Get(ctx, "current-month:acc1:2025-03-15-12"); !ok {
		t.Error("entry should still be live before its TTL")
	}

	clock.Advance(2 * time.Minute)
	if _, ok, _ := db.Get(ctx, "current-month:acc1:2025-03-15-12"); ok {
		t.Error("entry should be expired after its TTL")
	}
	if _, ok, _ := db.Get(ctx, "config:default"); !ok {
		t.Error("entry without TTL should never expire")
	}
}

func TestPutIfAbsent(t *testing.T) {
	db, clock := newClockedTestDB(t)
	ctx := context.Background()
	key := "alert-sent:a,b:requests:2025-03"

	written, err := db.PutIfAbsent(ctx, key, []byte("1"), time.Hour)
	if err != nil {
		t.Fatalf("PutIfAbsent() failed: %v", err)
	}
	if !written {
		t.Fatal("first PutIfAbsent() should write")
	}

	written, err = db.PutIfAbsent(ctx, key, []byte("2"), time.Hour)
	if err != nil {
		t.Fatalf("PutIfAbsent() failed: %v", err)
	}
	if written {
		t.Error("second PutIfAbsent() should not write")
	}

	got, _, _ := db.Get(ctx, key)
	if string(got) != "1" {
		t.Errorf("value = %q, want original 1", got)
	}

	clock.Advance(2 * time.Hour)
	written, err = db.PutIfAbsent(ctx, key, []byte("3"), time.Hour)
	if err != nil {
		t.Fatalf("PutIfAbsent() failed: %v", err)
	}
	if !written {
		t.Error("PutIfAbsent() should replace an expired entry")
	}
}

func TestList(t *testing.T) {
	db, clock := newClockedTestDB(t)
	ctx := context.Background()

	entries := map[string]time.Duration{
		"monthly-stats:acc1:2025-01":  0,
		"monthly-stats:acc1:2025-02":  0,
		"monthly-stats:acc10:2025-02": 0,
		"monthly-stats:acc2:2025-01":  0,
		"monthly-stats:acc1:2024-12":  time.Minute,
		"monthly_stats:acc1:2025-03":  0,
	}
	for k, ttl := range entries {
		if err := db.Put(ctx, k, []byte("{}"), ttl); err != nil {
			t.Fatalf("Put(%s) failed: %v", k, err)
		}
	}
	clock.Advance(2 * time.Minute)

	keys, err := db.List(ctx, "monthly-stats:acc1:")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}

	want := []string{"monthly-stats:acc1:2025-01", "monthly-stats:acc1:2025-02"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestList_EscapesWildcards(t *testing.T) {
	db, _ := newClockedTestDB(t)
	ctx := context.Background()

	_ = db.Put(ctx, "a_b:1", []byte("1"), 0)
	_ = db.Put(ctx, "axb:1", []byte("1"), 0)

	keys, err := db.List(ctx, "a_b:")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "a_b:1" {
		t.Errorf("List() = %v, want [a_b:1]", keys)
	}
}

func TestDeleteAndPurge(t *testing.T) {
	db, clock := newClockedTestDB(t)
	ctx := context.Background()

	_ = db.Put(ctx, "keep", []byte("1"), 0)
	_ = db.Put(ctx, "short", []byte("1"), time.Minute)
	_ = db.Put(ctx, "gone", []byte("1"), 0)

	if err := db.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, ok, _ := db.Get(ctx, "gone"); ok {
		t.Error("deleted key should be missing")
	}

	clock.Advance(time.Hour)
	n, err := db.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeExpired() removed %d rows, want 1", n)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv_entries").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("remaining rows = %d, want 1", count)
	}
}
