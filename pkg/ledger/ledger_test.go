package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/ccd-enrollment-sync/pkg/partition"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 and skips the test if
// none is available. The integration suite uses testcontainers instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNew(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	l := New(client, Config{})
	if l == nil {
		t.Fatal("New returned nil")
	}
	if l.redis != client {
		t.Error("Ledger redis client not set correctly")
	}
	if l.config.KeyPrefix != "enrollment" {
		t.Errorf("KeyPrefix = %q, want default %q", l.config.KeyPrefix, "enrollment")
	}
}

func TestNew_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("New should panic with nil redis client")
		}
	}()
	New(nil, DefaultConfig())
}

func TestEntryKey(t *testing.T) {
	k := partition.Key{Year: 2020, Grade: "grade-pk"}

	if got := entryKey("enrollment", k); got != "enrollment:partition:2020:grade-pk" {
		t.Errorf("entryKey() = %q", got)
	}
	if got := indexKey("enrollment"); got != "enrollment:partitions" {
		t.Errorf("indexKey() = %q", got)
	}
}

func TestEntry_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		entry    Entry
		maxAge   time.Duration
		expected bool
	}{
		{"fresh", Entry{UpdatedAt: time.Now()}, 5 * time.Minute, false},
		{"stale", Entry{UpdatedAt: time.Now().Add(-10 * time.Minute)}, 5 * time.Minute, true},
		{"just under max age", Entry{UpdatedAt: time.Now().Add(-4 * time.Minute)}, 5 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLedger_RecordAndGet(t *testing.T) {
	client := setupTestRedis(t)
	l := New(client, DefaultConfig())
	ctx := context.Background()

	entry := Entry{
		Year:      2020,
		Grade:     "grade-pk",
		Status:    partition.StatusWritten,
		Records:   42,
		Pages:     3,
		ObjectKey: "2020/grade-pk/enrollment.json",
		Bytes:     4096,
	}

	if err := l.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := l.Get(ctx, partition.Key{Year: 2020, Grade: "grade-pk"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.Status != partition.StatusWritten {
		t.Errorf("Status = %q, want %q", got.Status, partition.StatusWritten)
	}
	if got.Records != 42 || got.Pages != 3 || got.Bytes != 4096 {
		t.Errorf("counters mismatch: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set on record")
	}
}

func TestLedger_Get_NotRecorded(t *testing.T) {
	client := setupTestRedis(t)
	l := New(client, DefaultConfig())

	_, err := l.Get(context.Background(), partition.Key{Year: 1999, Grade: "grade-1"})
	if err != ErrNotRecorded {
		t.Errorf("Expected ErrNotRecorded, got %v", err)
	}
}

func TestLedger_Get_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	l := New(client, DefaultConfig())
	ctx := context.Background()

	k := partition.Key{Year: 2020, Grade: "grade-1"}
	client.Set(ctx, entryKey("enrollment", k), "not json", 0)

	if _, err := l.Get(ctx, k); err == nil {
		t.Error("Get on corrupted entry should fail")
	}
}

func TestLedger_List(t *testing.T) {
	client := setupTestRedis(t)
	l := New(client, DefaultConfig())
	ctx := context.Background()

	for _, e := range []Entry{
		{Year: 2021, Grade: "grade-pk", Status: partition.StatusEmpty},
		{Year: 2020, Grade: "grade-pk", Status: partition.StatusWritten},
		{Year: 2020, Grade: "grade-1", Status: partition.StatusFetchFailed, Error: "boom"},
	} {
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := l.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []partition.Key{
		{Year: 2020, Grade: "grade-1"},
		{Year: 2020, Grade: "grade-pk"},
		{Year: 2021, Grade: "grade-pk"},
	}
	if len(entries) != len(want) {
		t.Fatalf("List returned %d entries, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i].Key() != want[i] {
			t.Errorf("entries[%d] = %v, want %v", i, entries[i].Key(), want[i])
		}
	}
}

func TestLedger_ListPrunesExpired(t *testing.T) {
	client := setupTestRedis(t)
	l := New(client, DefaultConfig())
	ctx := context.Background()

	k := partition.Key{Year: 2020, Grade: "grade-pk"}
	if err := l.Record(ctx, Entry{Year: k.Year, Grade: k.Grade, Status: partition.StatusWritten}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	// simulate TTL expiry of the entry while the index still lists it
	client.Del(ctx, entryKey("enrollment", k))

	entries, err := l.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List returned %d entries, want 0", len(entries))
	}
	if n := client.SCard(ctx, indexKey("enrollment")).Val(); n != 0 {
		t.Errorf("index still has %d members after prune", n)
	}
}

func TestLedger_Delete(t *testing.T) {
	client := setupTestRedis(t)
	l := New(client, DefaultConfig())
	ctx := context.Background()

	k := partition.Key{Year: 2020, Grade: "grade-pk"}
	if err := l.Record(ctx, Entry{Year: k.Year, Grade: k.Grade, Status: partition.StatusWritten}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if err := l.Delete(ctx, k); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := l.Get(ctx, k); err != ErrNotRecorded {
		t.Errorf("Expected ErrNotRecorded after Delete, got %v", err)
	}
}

func TestLedger_TTL(t *testing.T) {
	client := setupTestRedis(t)
	l := New(client, Config{KeyPrefix: "ttltest", TTL: time.Hour})
	ctx := context.Background()

	k := partition.Key{Year: 2020, Grade: "grade-pk"}
	if err := l.Record(ctx, Entry{Year: k.Year, Grade: k.Grade, Status: partition.StatusEmpty}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	ttl := client.TTL(ctx, entryKey("ttltest", k)).Val()
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want (0, 1h]", ttl)
	}
}
