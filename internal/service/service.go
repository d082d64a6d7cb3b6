package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/actuallystonmai/progress-service/internal/domain"
)

const (
	DefaultContinueWatchingLimit = 6
	maxLimit                     = 50
	defaultHistoryLimit          = 20
	maxHistoryLimit              = 100
)

// Store is the durable home of progress records and the title catalogue.
type Store interface {
	GetProgress(ctx context.Context, userID, titleID string) (*domain.WatchProgress, error)
	UpsertProgress(ctx context.Context, p domain.WatchProgress) (*domain.WatchProgress, error)
	ListContinueWatching(ctx context.Context, userID string, limit int) ([]domain.ContinueWatchingItem, error)
	ListWatchHistory(ctx context.Context, userID string, page, limit int) ([]domain.WatchProgress, error)
	CountWatchHistory(ctx context.Context, userID string) (int, error)
	GetTitle(ctx context.Context, id string) (*domain.Title, error)
	AddToWatchlist(ctx context.Context, userID, titleID string, addedAt time.Time) error
	RemoveFromWatchlist(ctx context.Context, userID, titleID string) error
	ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistItem, error)
	Ping(ctx context.Context) error
}

type Cache interface {
	GetProgress(ctx context.Context, userID, titleID string) (*domain.WatchProgress, error)
	SetProgress(ctx context.Context, p domain.WatchProgress) error
	DeleteProgress(ctx context.Context, userID, titleID string) error
	GetContinueWatching(ctx context.Context, userID string, limit int) ([]domain.ContinueWatchingItem, bool, error)
	SetContinueWatching(ctx context.Context, userID string, limit int, items []domain.ContinueWatchingItem) error
	GetWatchlist(ctx context.Context, userID string) ([]domain.WatchlistItem, bool, error)
	SetWatchlist(ctx context.Context, userID string, items []domain.WatchlistItem) error
	ClearUserCache(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}

type Service struct {
	store         Store
	cache         Cache
	continueLimit int
	logger        *zap.Logger
}

// NewService wires the store and an optional cache; pass a nil cache to run
// without one.
func NewService(store Store, cache Cache, continueLimit int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if continueLimit <= 0 || continueLimit > maxLimit {
		continueLimit = DefaultContinueWatchingLimit
	}
	return &Service{
		store:         store,
		cache:         cache,
		continueLimit: continueLimit,
		logger:        logger,
	}
}

// GetProgress is the tracker's read collaborator.
func (s *Service) GetProgress(ctx context.Context, userID, titleID string) (*domain.WatchProgress, error) {
	if s.cache != nil {
		cached, err := s.cache.GetProgress(ctx, userID, titleID)
		if err != nil {
			s.logger.Warn("cache get progress", zap.String("user_id", userID), zap.Error(err))
		}
		if cached != nil {
			return cached, nil
		}
	}

	p, err := s.store.GetProgress(ctx, userID, titleID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "read", Err: err}
	}

	if p != nil && s.cache != nil {
		if err := s.cache.SetProgress(ctx, *p); err != nil {
			s.logger.Warn("cache set progress", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return p, nil
}

// SaveProgress is the tracker's write collaborator: upsert, then refresh the
// cached record and drop the user's list caches. It returns ErrStaleWrite when
// a newer record won.
func (s *Service) SaveProgress(ctx context.Context, p domain.WatchProgress) error {
	stored, err := s.store.UpsertProgress(ctx, p)
	if err != nil {
		return &domain.PersistenceError{Op: "write", Err: err}
	}
	if s.cache != nil {
		if stored != nil {
			err = s.cache.SetProgress(ctx, *stored)
		} else {
			// A newer write already landed; let the next read repopulate.
			err = s.cache.DeleteProgress(ctx, p.UserID, p.TitleID)
		}
		if err != nil {
			s.logger.Warn("cache refresh progress", zap.String("user_id", p.UserID), zap.Error(err))
		}
		s.clearUserCache(ctx, p.UserID)
	}
	if stored == nil {
		return domain.ErrStaleWrite
	}
	return nil
}

func (s *Service) ContinueWatching(ctx context.Context, userID string, limit int) ([]domain.ContinueWatchingItem, bool, error) {
	if limit <= 0 {
		limit = s.continueLimit
	} else if limit > maxLimit {
		limit = maxLimit
	}

	if s.cache != nil {
		cached, found, err := s.cache.GetContinueWatching(ctx, userID, limit)
		if err != nil {
			s.logger.Warn("cache get continue watching", zap.String("user_id", userID), zap.Error(err))
		}
		if found {
			return cached, true, nil
		}
	}

	items, err := s.store.ListContinueWatching(ctx, userID, limit)
	if err != nil {
		return nil, false, fmt.Errorf("fetch continue watching: %w", err)
	}
	if items == nil {
		items = []domain.ContinueWatchingItem{}
	}

	if s.cache != nil {
		if err := s.cache.SetContinueWatching(ctx, userID, limit, items); err != nil {
			s.logger.Warn("cache set continue watching", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return items, false, nil
}

func (s *Service) WatchHistory(ctx context.Context, userID string, page, limit int) (*domain.WatchHistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	} else if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	items, err := s.store.ListWatchHistory(ctx, userID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch watch history: %w", err)
	}
	total, err := s.store.CountWatchHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count watch history: %w", err)
	}
	if items == nil {
		items = []domain.WatchProgress{}
	}

	return &domain.WatchHistoryPage{
		Page:       page,
		Limit:      limit,
		TotalCount: total,
		Items:      items,
	}, nil
}

func (s *Service) AddToWatchlist(ctx context.Context, userID, titleID string) error {
	if err := validateIDs(userID, titleID); err != nil {
		return err
	}
	if err := s.store.AddToWatchlist(ctx, userID, titleID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add to watchlist: %w", err)
	}
	s.clearUserCache(ctx, userID)
	return nil
}

// RemoveFromWatchlist succeeds when the title was not listed.
func (s *Service) RemoveFromWatchlist(ctx context.Context, userID, titleID string) error {
	if err := validateIDs(userID, titleID); err != nil {
		return err
	}
	if err := s.store.RemoveFromWatchlist(ctx, userID, titleID); err != nil {
		return fmt.Errorf("remove from watchlist: %w", err)
	}
	s.clearUserCache(ctx, userID)
	return nil
}

func (s *Service) Watchlist(ctx context.Context, userID string) ([]domain.WatchlistItem, bool, error) {
	if s.cache != nil {
		cached, found, err := s.cache.GetWatchlist(ctx, userID)
		if err != nil {
			s.logger.Warn("cache get watchlist", zap.String("user_id", userID), zap.Error(err))
		}
		if found {
			return cached, true, nil
		}
	}

	items, err := s.store.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("fetch watchlist: %w", err)
	}
	if items == nil {
		items = []domain.WatchlistItem{}
	}

	if s.cache != nil {
		if err := s.cache.SetWatchlist(ctx, userID, items); err != nil {
			s.logger.Warn("cache set watchlist", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return items, false, nil
}

func (s *Service) clearUserCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.ClearUserCache(ctx, userID); err != nil {
		s.logger.Warn("cache invalidation", zap.String("user_id", userID), zap.Error(err))
	}
}

func validateIDs(userID, titleID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", domain.ErrInvalidInput)
	}
	if titleID == "" {
		return fmt.Errorf("%w: empty title id", domain.ErrInvalidInput)
	}
	return nil
}

// TitleRuntime returns the catalogue runtime of a title, or 0 when unknown.
func (s *Service) TitleRuntime(ctx context.Context, titleID string) float64 {
	t, err := s.store.GetTitle(ctx, titleID)
	if err != nil {
		s.logger.Warn("lookup title runtime", zap.String("title_id", titleID), zap.Error(err))
		return 0
	}
	if t == nil {
		return 0
	}
	return t.RuntimeSeconds
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}
