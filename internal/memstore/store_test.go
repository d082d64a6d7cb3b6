package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/actuallystonmai/progress-service/internal/domain"
)

func TestUpsertKeepsCompletedSticky(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	s.UpsertProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "t", PositionSeconds: 95, DurationSeconds: 100, Completed: true, UpdatedAt: now})
	s.UpsertProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "t", PositionSeconds: 5, DurationSeconds: 100, UpdatedAt: now.Add(time.Second)})

	p, _ := s.GetProgress(ctx, "u", "t")
	if p == nil || !p.Completed {
		t.Fatalf("expected completed to stay true, got %+v", p)
	}
	if p.PositionSeconds != 5 {
		t.Errorf("expected position 5, got %f", p.PositionSeconds)
	}
}

func TestUpsertIgnoresStaleWrite(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	s.UpsertProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "t", PositionSeconds: 60, UpdatedAt: now})
	got, err := s.UpsertProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "t", PositionSeconds: 30, UpdatedAt: now.Add(-time.Second)})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got != nil {
		t.Errorf("stale write should report nil, got %+v", got)
	}

	p, _ := s.GetProgress(ctx, "u", "t")
	if p.PositionSeconds != 60 {
		t.Errorf("stale write overwrote newer row: %f", p.PositionSeconds)
	}
}

func TestListContinueWatching(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	s.PutTitle(domain.Title{ID: "b", Name: "Arrival", Genre: "sci-fi"})

	s.UpsertProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "a", PositionSeconds: 10, DurationSeconds: 100, UpdatedAt: now})
	s.UpsertProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "b", PositionSeconds: 50, DurationSeconds: 100, UpdatedAt: now.Add(time.Minute)})
	s.UpsertProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "done", PositionSeconds: 99, DurationSeconds: 100, Completed: true, UpdatedAt: now})
	s.UpsertProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "zero", UpdatedAt: now})
	s.UpsertProgress(ctx, domain.WatchProgress{UserID: "other", TitleID: "a", PositionSeconds: 10, UpdatedAt: now})

	items, err := s.ListContinueWatching(ctx, "u", 6)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].TitleID != "b" || items[1].TitleID != "a" {
		t.Errorf("expected newest first [b a], got [%s %s]", items[0].TitleID, items[1].TitleID)
	}
	if items[0].TitleName != "Arrival" || items[0].Percent != 50 {
		t.Errorf("expected decorated item, got %+v", items[0])
	}

	limited, _ := s.ListContinueWatching(ctx, "u", 1)
	if len(limited) != 1 {
		t.Errorf("expected limit 1, got %d", len(limited))
	}
}

func TestListWatchHistoryPages(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		s.UpsertProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: id, PositionSeconds: 1, UpdatedAt: now.Add(time.Duration(i) * time.Second)})
	}

	page1, _ := s.ListWatchHistory(ctx, "u", 1, 2)
	page2, _ := s.ListWatchHistory(ctx, "u", 2, 2)
	page3, _ := s.ListWatchHistory(ctx, "u", 3, 2)

	if len(page1) != 2 || page1[0].TitleID != "c" {
		t.Errorf("unexpected page 1: %+v", page1)
	}
	if len(page2) != 1 || page2[0].TitleID != "a" {
		t.Errorf("unexpected page 2: %+v", page2)
	}
	if len(page3) != 0 {
		t.Errorf("expected empty page 3, got %d", len(page3))
	}
	if n, _ := s.CountWatchHistory(ctx, "u"); n != 3 {
		t.Errorf("expected count 3, got %d", n)
	}
}

func TestWatchlistAddIsIdempotent(t *testing.T) {
	s := New()
	s.PutTitle(domain.Title{ID: "dune", Name: "Dune", Genre: "sci-fi"})
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	s.AddToWatchlist(ctx, "u", "dune", first)
	s.AddToWatchlist(ctx, "u", "dune", first.Add(time.Hour))
	s.AddToWatchlist(ctx, "u", "arrival", first.Add(time.Minute))
	s.AddToWatchlist(ctx, "other", "dune", first)

	items, err := s.ListWatchlist(ctx, "u")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %+v", items)
	}
	if items[0].TitleID != "arrival" || items[1].TitleID != "dune" {
		t.Errorf("expected newest first, got %s then %s", items[0].TitleID, items[1].TitleID)
	}
	if !items[1].AddedAt.Equal(first) {
		t.Errorf("re-add changed added_at to %v", items[1].AddedAt)
	}
	if items[1].TitleName != "Dune" {
		t.Errorf("expected title name from catalogue, got %q", items[1].TitleName)
	}
}

func TestWatchlistRemove(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.AddToWatchlist(ctx, "u", "dune", time.Now())
	if err := s.RemoveFromWatchlist(ctx, "u", "dune"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RemoveFromWatchlist(ctx, "u", "never-added"); err != nil {
		t.Errorf("removing an absent title should succeed, got %v", err)
	}
	if items, _ := s.ListWatchlist(ctx, "u"); len(items) != 0 {
		t.Errorf("expected empty watchlist, got %+v", items)
	}
}
