// Package memstore is an in-process progress store with the same upsert
// semantics as the Postgres repository. It backs local runs without a database
// and the handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/actuallystonmai/progress-service/internal/domain"
)

type key struct {
	userID  string
	titleID string
}

type Store struct {
	mu        sync.RWMutex
	progress  map[key]domain.WatchProgress
	watchlist map[key]time.Time
	titles    map[string]domain.Title
}

func New() *Store {
	return &Store{
		progress:  make(map[key]domain.WatchProgress),
		watchlist: make(map[key]time.Time),
		titles:    make(map[string]domain.Title),
	}
}

func (s *Store) GetProgress(ctx context.Context, userID, titleID string) (*domain.WatchProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[key{userID, titleID}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// UpsertProgress stores p unless a newer row exists, in which case it returns
// nil. Completed is OR-ed with the stored value.
func (s *Store) UpsertProgress(ctx context.Context, p domain.WatchProgress) (*domain.WatchProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{p.UserID, p.TitleID}
	if cur, ok := s.progress[k]; ok {
		if cur.UpdatedAt.After(p.UpdatedAt) {
			return nil, nil
		}
		p.Completed = p.Completed || cur.Completed
	}
	s.progress[k] = p
	return &p, nil
}

func (s *Store) ListContinueWatching(ctx context.Context, userID string, limit int) ([]domain.ContinueWatchingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []domain.WatchProgress
	for k, p := range s.progress {
		if k.userID == userID && !p.Completed && p.PositionSeconds > 0 {
			rows = append(rows, p)
		}
	}
	sortNewestFirst(rows)
	if len(rows) > limit {
		rows = rows[:limit]
	}

	items := make([]domain.ContinueWatchingItem, 0, len(rows))
	for _, p := range rows {
		item := domain.ContinueWatchingItem{WatchProgress: p, Percent: p.Percent()}
		if t, ok := s.titles[p.TitleID]; ok {
			item.TitleName = t.Name
			item.Genre = t.Genre
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) ListWatchHistory(ctx context.Context, userID string, page, limit int) ([]domain.WatchProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []domain.WatchProgress
	for k, p := range s.progress {
		if k.userID == userID {
			rows = append(rows, p)
		}
	}
	sortNewestFirst(rows)

	offset := (page - 1) * limit
	if offset >= len(rows) {
		return nil, nil
	}
	end := min(offset+limit, len(rows))
	return rows[offset:end], nil
}

func (s *Store) CountWatchHistory(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.progress {
		if k.userID == userID {
			n++
		}
	}
	return n, nil
}

// AddToWatchlist keeps the first added time when the title is already listed.
func (s *Store) AddToWatchlist(ctx context.Context, userID, titleID string, addedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{userID, titleID}
	if _, ok := s.watchlist[k]; !ok {
		s.watchlist[k] = addedAt
	}
	return nil
}

func (s *Store) RemoveFromWatchlist(ctx context.Context, userID, titleID string) error {
	s.mu.Lock()
	delete(s.watchlist, key{userID, titleID})
	s.mu.Unlock()
	return nil
}

func (s *Store) ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []domain.WatchlistItem
	for k, addedAt := range s.watchlist {
		if k.userID != userID {
			continue
		}
		item := domain.WatchlistItem{UserID: k.userID, TitleID: k.titleID, AddedAt: addedAt}
		if t, ok := s.titles[k.titleID]; ok {
			item.TitleName = t.Name
			item.Genre = t.Genre
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].TitleID < items[j].TitleID
		}
		return items[i].AddedAt.After(items[j].AddedAt)
	})
	return items, nil
}

func (s *Store) GetTitle(ctx context.Context, id string) (*domain.Title, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.titles[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) PutTitle(t domain.Title) {
	s.mu.Lock()
	s.titles[t.ID] = t
	s.mu.Unlock()
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func sortNewestFirst(rows []domain.WatchProgress) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
			return rows[i].TitleID < rows[j].TitleID
		}
		return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
	})
}
