package booking

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pixelcraft/concierge/internal/availability"
)

func newTestRedisStore(t *testing.T) (SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSessionStore(client, nil), mr
}

func TestRedisSessionRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	s := offeredSession(StateSlotsOffered)
	if err := store.Save(ctx, &s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil for saved session")
	}
	if loaded.State != StateSlotsOffered || loaded.SelectedDate != "2024-06-03" {
		t.Errorf("loaded %+v", loaded)
	}
	if len(loaded.OfferedSlots) != 2 || loaded.OfferedSlots[0] != (availability.Slot{Time: "14:00", Display: "2:00 PM"}) {
		t.Errorf("offered slots did not survive: %+v", loaded.OfferedSlots)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped on save")
	}
}

func TestRedisSessionMissIsNil(t *testing.T) {
	store, _ := newTestRedisStore(t)
	loaded, err := store.Load(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil session, got %+v", loaded)
	}
}

func TestRedisSessionDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	s := NewSession("conv-1", "biz-1")
	if err := store.Save(ctx, &s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, "conv-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if loaded, _ := store.Load(ctx, "conv-1"); loaded != nil {
		t.Fatalf("session survived delete: %+v", loaded)
	}
}

func TestRedisSessionExpires(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	s := NewSession("conv-1", "biz-1")
	if err := store.Save(ctx, &s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(sessionTTL + 1)
	if loaded, _ := store.Load(ctx, "conv-1"); loaded != nil {
		t.Fatalf("session survived TTL: %+v", loaded)
	}
}

func TestMemorySessionStoreIsolation(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	s := offeredSession(StateDaysOffered)
	if err := store.Save(ctx, &s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	loaded.State = StateFormOpen

	again, _ := store.Load(ctx, "conv-1")
	if again.State != StateDaysOffered {
		t.Error("mutating a loaded session leaked into the store")
	}
}
