package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/actuallystonmai/progress-service/internal/domain"
	"github.com/actuallystonmai/progress-service/internal/memstore"
)

type mapCache struct {
	mu        sync.Mutex
	progress  map[string]domain.WatchProgress
	lists     map[string][]domain.ContinueWatchingItem
	watchlist map[string][]domain.WatchlistItem
	cleared   int
}

func newMapCache() *mapCache {
	return &mapCache{
		progress:  make(map[string]domain.WatchProgress),
		lists:     make(map[string][]domain.ContinueWatchingItem),
		watchlist: make(map[string][]domain.WatchlistItem),
	}
}

func (c *mapCache) GetProgress(ctx context.Context, userID, titleID string) (*domain.WatchProgress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.progress[userID+"/"+titleID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *mapCache) SetProgress(ctx context.Context, p domain.WatchProgress) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress[p.UserID+"/"+p.TitleID] = p
	return nil
}

func (c *mapCache) DeleteProgress(ctx context.Context, userID, titleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.progress, userID+"/"+titleID)
	return nil
}

func (c *mapCache) GetContinueWatching(ctx context.Context, userID string, limit int) ([]domain.ContinueWatchingItem, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.lists[userID]
	return items, ok, nil
}

func (c *mapCache) SetContinueWatching(ctx context.Context, userID string, limit int, items []domain.ContinueWatchingItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[userID] = items
	return nil
}

func (c *mapCache) GetWatchlist(ctx context.Context, userID string) ([]domain.WatchlistItem, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.watchlist[userID]
	return items, ok, nil
}

func (c *mapCache) SetWatchlist(ctx context.Context, userID string, items []domain.WatchlistItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchlist[userID] = items
	return nil
}

func (c *mapCache) ClearUserCache(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lists, userID)
	delete(c.watchlist, userID)
	c.cleared++
	return nil
}

func (c *mapCache) Ping(ctx context.Context) error { return nil }

type brokenStore struct {
	*memstore.Store
}

func (brokenStore) GetProgress(ctx context.Context, userID, titleID string) (*domain.WatchProgress, error) {
	return nil, errors.New("connection reset")
}

func (brokenStore) UpsertProgress(ctx context.Context, p domain.WatchProgress) (*domain.WatchProgress, error) {
	return nil, errors.New("connection reset")
}

func TestSaveProgressInvalidatesLists(t *testing.T) {
	store := memstore.New()
	cache := newMapCache()
	svc := NewService(store, cache, 0, nil)
	ctx := context.Background()

	p := domain.WatchProgress{UserID: "u", TitleID: "t", PositionSeconds: 30, DurationSeconds: 100, UpdatedAt: time.Now()}
	if err := svc.SaveProgress(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}

	items, hit, err := svc.ContinueWatching(ctx, "u", 0)
	if err != nil || hit || len(items) != 1 {
		t.Fatalf("expected 1 uncached item, got %d hit=%v err=%v", len(items), hit, err)
	}
	if _, hit, _ = svc.ContinueWatching(ctx, "u", 0); !hit {
		t.Error("expected second read to hit cache")
	}

	p.PositionSeconds = 60
	p.UpdatedAt = p.UpdatedAt.Add(time.Second)
	svc.SaveProgress(ctx, p)

	items, hit, _ = svc.ContinueWatching(ctx, "u", 0)
	if hit {
		t.Error("expected cache cleared after save")
	}
	if items[0].PositionSeconds != 60 {
		t.Errorf("expected fresh position 60, got %f", items[0].PositionSeconds)
	}

	cached, _ := cache.GetProgress(ctx, "u", "t")
	if cached == nil || cached.PositionSeconds != 60 {
		t.Errorf("expected write-through of progress record, got %+v", cached)
	}
}

func TestSaveProgressStaleWriteDropsCachedRecord(t *testing.T) {
	store := memstore.New()
	cache := newMapCache()
	svc := NewService(store, cache, 0, nil)
	ctx := context.Background()
	now := time.Now()

	svc.SaveProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "t", PositionSeconds: 60, UpdatedAt: now})
	err := svc.SaveProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "t", PositionSeconds: 30, UpdatedAt: now.Add(-time.Second)})
	if !errors.Is(err, domain.ErrStaleWrite) {
		t.Errorf("expected ErrStaleWrite for losing write, got %v", err)
	}

	if cached, _ := cache.GetProgress(ctx, "u", "t"); cached != nil {
		t.Errorf("expected cached record dropped after losing write, got %+v", cached)
	}
	p, _ := svc.GetProgress(ctx, "u", "t")
	if p.PositionSeconds != 60 {
		t.Errorf("expected 60 from store, got %f", p.PositionSeconds)
	}
}

func TestStoreFailuresArePersistenceErrors(t *testing.T) {
	svc := NewService(brokenStore{memstore.New()}, nil, 0, nil)
	ctx := context.Background()

	if _, err := svc.GetProgress(ctx, "u", "t"); !domain.IsPersistenceError(err) {
		t.Errorf("read: expected PersistenceError, got %v", err)
	}
	if err := svc.SaveProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "t"}); !domain.IsPersistenceError(err) {
		t.Errorf("write: expected PersistenceError, got %v", err)
	}
}

func TestWatchHistoryClampsPaging(t *testing.T) {
	store := memstore.New()
	svc := NewService(store, nil, 0, nil)
	ctx := context.Background()
	svc.SaveProgress(ctx, domain.WatchProgress{UserID: "u", TitleID: "t", PositionSeconds: 1, UpdatedAt: time.Now()})

	page, err := svc.WatchHistory(ctx, "u", 0, 1000)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if page.Page != 1 || page.Limit != maxHistoryLimit {
		t.Errorf("expected page 1 limit %d, got page %d limit %d", maxHistoryLimit, page.Page, page.Limit)
	}
	if page.TotalCount != 1 || len(page.Items) != 1 {
		t.Errorf("expected 1 item, got %+v", page)
	}

	empty, _ := svc.WatchHistory(ctx, "nobody", 1, 10)
	if empty.Items == nil {
		t.Error("expected empty slice, not nil")
	}
}

func TestTitleRuntime(t *testing.T) {
	store := memstore.New()
	store.PutTitle(domain.Title{ID: "dune", Name: "Dune", RuntimeSeconds: 9360})
	svc := NewService(store, nil, 0, nil)

	if got := svc.TitleRuntime(context.Background(), "dune"); got != 9360 {
		t.Errorf("expected 9360, got %f", got)
	}
	if got := svc.TitleRuntime(context.Background(), "missing"); got != 0 {
		t.Errorf("expected 0 for unknown title, got %f", got)
	}
}

func TestWatchlistCacheInvalidation(t *testing.T) {
	store := memstore.New()
	cache := newMapCache()
	svc := NewService(store, cache, 0, nil)
	ctx := context.Background()

	if err := svc.AddToWatchlist(ctx, "u", "dune"); err != nil {
		t.Fatalf("add: %v", err)
	}
	items, hit, err := svc.Watchlist(ctx, "u")
	if err != nil || hit || len(items) != 1 {
		t.Fatalf("expected 1 uncached item, got %d hit=%v err=%v", len(items), hit, err)
	}
	if _, hit, _ = svc.Watchlist(ctx, "u"); !hit {
		t.Error("expected second read to hit cache")
	}

	if err := svc.RemoveFromWatchlist(ctx, "u", "dune"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	items, hit, _ = svc.Watchlist(ctx, "u")
	if hit || len(items) != 0 {
		t.Errorf("expected fresh empty watchlist after remove, got %d hit=%v", len(items), hit)
	}
	if items == nil {
		t.Error("expected empty slice, not nil")
	}
}

func TestWatchlistRejectsEmptyIDs(t *testing.T) {
	svc := NewService(memstore.New(), nil, 0, nil)

	if err := svc.AddToWatchlist(context.Background(), "u", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("add: expected ErrInvalidInput, got %v", err)
	}
	if err := svc.RemoveFromWatchlist(context.Background(), "", "t"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("remove: expected ErrInvalidInput, got %v", err)
	}
}
