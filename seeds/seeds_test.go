package seeds

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/actuallystonmai/progress-service/internal/memstore"
)

func TestGenerateIsDeterministic(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Generate(42, now)
	b := Generate(42, now)

	if len(a.Titles) != demoTitles {
		t.Fatalf("expected %d titles, got %d", demoTitles, len(a.Titles))
	}
	if len(a.Progress) != len(b.Progress) {
		t.Fatalf("expected identical datasets, got %d and %d rows", len(a.Progress), len(b.Progress))
	}
	for i := range a.Progress {
		if a.Progress[i] != b.Progress[i] {
			t.Fatalf("row %d differs: %+v vs %+v", i, a.Progress[i], b.Progress[i])
		}
	}
}

func TestGenerateRowsAreValid(t *testing.T) {
	data := Generate(42, time.Now())
	seen := make(map[string]bool)
	for _, p := range data.Progress {
		key := p.UserID + "/" + p.TitleID
		if seen[key] {
			t.Fatalf("duplicate progress row %s", key)
		}
		seen[key] = true

		if p.PositionSeconds < 0 || p.PositionSeconds > p.DurationSeconds {
			t.Errorf("position %f outside [0, %f]", p.PositionSeconds, p.DurationSeconds)
		}
		if !p.Completed && p.PositionSeconds/p.DurationSeconds >= 0.9 {
			t.Errorf("row %s past threshold but not completed", key)
		}
	}
}

func TestLoadIntoMemstore(t *testing.T) {
	store := memstore.New()
	if err := Load(context.Background(), store, zap.NewNop()); err != nil {
		t.Fatalf("load: %v", err)
	}
	title, _ := store.GetTitle(context.Background(), "tt001")
	if title == nil || title.RuntimeSeconds <= 0 {
		t.Errorf("expected seeded title tt001, got %+v", title)
	}

	data := Generate(42, time.Now())
	if len(data.Watchlist) == 0 {
		t.Fatal("expected demo watchlist rows")
	}
	w := data.Watchlist[0]
	items, _ := store.ListWatchlist(context.Background(), w.UserID)
	if len(items) == 0 {
		t.Errorf("expected watchlist for %s to be loaded", w.UserID)
	}
}
