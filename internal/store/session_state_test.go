package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/foodmap/foodmap/pkg/geo"
)

func newTestStore(t *testing.T) (*HybridStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &HybridStore{redis: rdb}, mr
}

func TestSaveAndLoadCenter(t *testing.T) {
	ctx := context.Background()
	st, mr := newTestStore(t)
	defer mr.Close()

	p := geo.Point{Lat: 25.05, Lng: 121.55}
	if err := st.SaveCenter(ctx, "sess-1", p, 2.5); err != nil {
		t.Fatalf("SaveCenter failed: %v", err)
	}

	got, radius, err := st.LoadCenter(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadCenter failed: %v", err)
	}
	if got != p {
		t.Errorf("expected %+v, got %+v", p, got)
	}
	if radius != 2.5 {
		t.Errorf("expected radius 2.5, got %v", radius)
	}
}

func TestLoadCenterDefault(t *testing.T) {
	ctx := context.Background()
	st, mr := newTestStore(t)
	defer mr.Close()

	got, radius, err := st.LoadCenter(ctx, "unknown-session")
	if err != nil {
		t.Fatalf("LoadCenter failed: %v", err)
	}
	if got != geo.DefaultCenter {
		t.Errorf("expected default center, got %+v", got)
	}
	if radius != 3 {
		t.Errorf("expected default radius 3, got %v", radius)
	}
}

func TestReminderFlag(t *testing.T) {
	ctx := context.Background()
	st, mr := newTestStore(t)
	defer mr.Close()

	date, err := st.ReminderShownDate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReminderShownDate failed: %v", err)
	}
	if date != "" {
		t.Errorf("expected empty flag, got %q", date)
	}

	if err := st.MarkReminderShown(ctx, "sess-1", "2026-08-28"); err != nil {
		t.Fatalf("MarkReminderShown failed: %v", err)
	}

	date, err = st.ReminderShownDate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReminderShownDate failed: %v", err)
	}
	if date != "2026-08-28" {
		t.Errorf("expected 2026-08-28, got %q", date)
	}

	// Sessions do not share flags.
	other, _ := st.ReminderShownDate(ctx, "sess-2")
	if other != "" {
		t.Errorf("expected empty flag for other session, got %q", other)
	}
}

func TestAddressHistoryMRU(t *testing.T) {
	ctx := context.Background()
	st, mr := newTestStore(t)
	defer mr.Close()

	for _, addr := range []string{"a", "b", "c", "d", "e", "f"} {
		if err := st.PushAddressHistory(ctx, "sess-1", addr); err != nil {
			t.Fatalf("PushAddressHistory failed: %v", err)
		}
	}

	got, err := st.AddressHistory(ctx, "sess-1")
	if err != nil {
		t.Fatalf("AddressHistory failed: %v", err)
	}
	want := []string{"f", "e", "d", "c", "b"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestAddressHistoryDedup(t *testing.T) {
	ctx := context.Background()
	st, mr := newTestStore(t)
	defer mr.Close()

	for _, addr := range []string{"a", "b", "c", "a"} {
		if err := st.PushAddressHistory(ctx, "sess-1", addr); err != nil {
			t.Fatalf("PushAddressHistory failed: %v", err)
		}
	}

	got, err := st.AddressHistory(ctx, "sess-1")
	if err != nil {
		t.Fatalf("AddressHistory failed: %v", err)
	}
	want := []string{"a", "c", "b"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSetGetJSONRoundtrip(t *testing.T) {
	ctx := context.Background()
	st, mr := newTestStore(t)
	defer mr.Close()

	val := map[string]float64{"lat": 25.03, "lng": 121.56}
	if err := st.SetJSON(ctx, "view:center", val, time.Minute); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var got map[string]float64
	if err := st.GetJSON(ctx, "view:center", &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got["lat"] != 25.03 || got["lng"] != 121.56 {
		t.Errorf("unexpected roundtrip value: %v", got)
	}

	if err := st.GetJSON(ctx, "missing-key", &got); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestNewHybridRedisAuth(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()
	mr.RequireAuth("sekret")

	if _, err := NewHybrid(mr.Addr(), "", 0, "", nil); err == nil {
		t.Fatal("expected ping failure without password")
	}

	st, err := NewHybrid(mr.Addr(), "sekret", 0, "", nil)
	if err != nil {
		t.Fatalf("NewHybrid with password failed: %v", err)
	}
	st.Close()
}
