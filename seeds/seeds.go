package seeds

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/actuallystonmai/progress-service/internal/domain"
)

const (
	demoUsers  = 20
	demoTitles = 50
	demoViews  = 200
	demoSaves  = 60
)

// Dataset is a deterministic demo catalogue plus watch progress for it.
type Dataset struct {
	Titles    []domain.Title
	Progress  []domain.WatchProgress
	Watchlist []domain.WatchlistItem
}

// Generate builds the demo dataset. The same seed always yields the same rows.
func Generate(seed int64, now time.Time) Dataset {
	rng := rand.New(rand.NewSource(seed))
	titles := generateTitles(rng, now, demoTitles)
	return Dataset{
		Titles:    titles,
		Progress:  generateProgress(rng, now, titles, demoUsers, demoViews),
		Watchlist: generateWatchlist(rng, now, titles, demoUsers, demoSaves),
	}
}

// Setup truncates and reseeds the Postgres tables.
func Setup(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	data := Generate(42, time.Now())

	// Truncate existing data before insert
	logger.Info("seed: truncating existing data")
	if _, err := pool.Exec(ctx, `TRUNCATE watchlist, watch_progress, titles`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	logger.Info("seed: inserting titles", zap.Int("count", len(data.Titles)))
	if err := insertTitles(ctx, pool, data.Titles); err != nil {
		return fmt.Errorf("seed titles: %w", err)
	}

	logger.Info("seed: inserting watch progress", zap.Int("count", len(data.Progress)))
	if err := insertProgress(ctx, pool, data.Progress); err != nil {
		return fmt.Errorf("seed watch progress: %w", err)
	}

	logger.Info("seed: inserting watchlist", zap.Int("count", len(data.Watchlist)))
	if err := insertWatchlist(ctx, pool, data.Watchlist); err != nil {
		return fmt.Errorf("seed watchlist: %w", err)
	}

	logger.Info("seed: complete")
	return nil
}

// Loader is satisfied by the in-memory store.
type Loader interface {
	PutTitle(t domain.Title)
	UpsertProgress(ctx context.Context, p domain.WatchProgress) (*domain.WatchProgress, error)
	AddToWatchlist(ctx context.Context, userID, titleID string, addedAt time.Time) error
}

// Load writes the demo dataset into a store through its own methods.
func Load(ctx context.Context, store Loader, logger *zap.Logger) error {
	data := Generate(42, time.Now())
	for _, t := range data.Titles {
		store.PutTitle(t)
	}
	for _, p := range data.Progress {
		if _, err := store.UpsertProgress(ctx, p); err != nil {
			return fmt.Errorf("seed progress %s/%s: %w", p.UserID, p.TitleID, err)
		}
	}
	for _, w := range data.Watchlist {
		if err := store.AddToWatchlist(ctx, w.UserID, w.TitleID, w.AddedAt); err != nil {
			return fmt.Errorf("seed watchlist %s/%s: %w", w.UserID, w.TitleID, err)
		}
	}
	logger.Info("seed: loaded demo data",
		zap.Int("titles", len(data.Titles)),
		zap.Int("progress", len(data.Progress)),
		zap.Int("watchlist", len(data.Watchlist)))
	return nil
}

func generateTitles(rng *rand.Rand, now time.Time, n int) []domain.Title {
	genres := []string{"action", "drama", "comedy", "thriller", "sci-fi"}
	names := map[string][]string{
		"action": {
			"Die Hard", "Mad Max: Fury Road", "John Wick", "The Dark Knight",
			"Gladiator", "Top Gun: Maverick", "The Raid", "Mission: Impossible",
			"Casino Royale", "The Avengers",
		},
		"drama": {
			"The Shawshank Redemption", "Forrest Gump", "The Godfather",
			"Schindler's List", "A Beautiful Mind", "12 Angry Men",
			"Parasite", "Moonlight", "Whiplash", "The Green Mile",
		},
		"comedy": {
			"Superbad", "The Hangover", "Bridesmaids", "Step Brothers",
			"Anchorman", "Mean Girls", "Borat", "Hot Fuzz",
			"Groundhog Day", "The Grand Budapest Hotel",
		},
		"thriller": {
			"Se7en", "Gone Girl", "Zodiac", "Prisoners",
			"Sicario", "No Country for Old Men", "Nightcrawler",
			"Shutter Island", "The Silence of the Lambs", "Oldboy",
		},
		"sci-fi": {
			"Blade Runner 2049", "Interstellar", "The Matrix", "Arrival",
			"Dune", "Ex Machina", "Alien", "Inception",
			"Edge of Tomorrow", "2001: A Space Odyssey",
		},
	}

	titles := make([]domain.Title, 0, n)
	for i := range n {
		genre := genres[i%len(genres)]
		list := names[genre]
		name := list[(i/len(genres))%len(list)]
		if i >= len(genres)*len(list) {
			name = fmt.Sprintf("%s %d", name, i/(len(genres)*len(list))+1)
		}

		// 80 to 180 minutes, whole seconds
		runtime := float64(80*60 + rng.Intn(100*60))

		titles = append(titles, domain.Title{
			ID:             fmt.Sprintf("tt%03d", i+1),
			Name:           name,
			Genre:          genre,
			RuntimeSeconds: runtime,
			CreatedAt:      now.AddDate(0, 0, -rng.Intn(730)),
		})
	}
	return titles
}

func generateProgress(rng *rand.Rand, now time.Time, titles []domain.Title, users, n int) []domain.WatchProgress {
	seen := make(map[[2]int]bool)
	rows := make([]domain.WatchProgress, 0, n)

	for range n {
		// Skew towards low ids so a few users and titles dominate
		user := int(math.Ceil(math.Pow(rng.Float64(), 1.5) * float64(users)))
		user = max(1, min(user, users))
		idx := int(math.Ceil(math.Pow(rng.Float64(), 1.3)*float64(len(titles)))) - 1
		idx = max(0, min(idx, len(titles)-1))

		key := [2]int{user, idx}
		if seen[key] {
			continue
		}
		seen[key] = true

		title := titles[idx]
		watched := watchedFraction(rng)
		position := math.Round(title.RuntimeSeconds * watched)
		rows = append(rows, domain.WatchProgress{
			UserID:          fmt.Sprintf("user-%d", user),
			TitleID:         title.ID,
			PositionSeconds: position,
			DurationSeconds: title.RuntimeSeconds,
			Completed:       watched >= 0.9,
			UpdatedAt:       now.Add(-time.Duration(rng.Intn(180*24)) * time.Hour),
		})
	}
	return rows
}

func generateWatchlist(rng *rand.Rand, now time.Time, titles []domain.Title, users, n int) []domain.WatchlistItem {
	seen := make(map[[2]int]bool)
	items := make([]domain.WatchlistItem, 0, n)

	for range n {
		user := rng.Intn(users) + 1
		idx := rng.Intn(len(titles))

		key := [2]int{user, idx}
		if seen[key] {
			continue
		}
		seen[key] = true

		items = append(items, domain.WatchlistItem{
			UserID:  fmt.Sprintf("user-%d", user),
			TitleID: titles[idx].ID,
			AddedAt: now.Add(-time.Duration(rng.Intn(90*24)) * time.Hour),
		})
	}
	return items
}

// watchedFraction is bimodal: most views are either abandoned early or
// finished.
func watchedFraction(rng *rand.Rand) float64 {
	u := rng.Float64()
	if u < 0.35 {
		return 0.92 + rng.Float64()*0.08
	}
	return math.Round(math.Pow(rng.Float64(), 1.5)*88) / 100
}

func insertTitles(ctx context.Context, pool *pgxpool.Pool, titles []domain.Title) error {
	if len(titles) == 0 {
		return nil
	}

	rows := []string{}
	args := []any{}
	for _, t := range titles {
		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5))
		args = append(args, t.ID, t.Name, t.Genre, t.RuntimeSeconds, t.CreatedAt)
	}

	query := "INSERT INTO titles (id, name, genre, runtime_seconds, created_at) VALUES " +
		strings.Join(rows, ", ")
	_, err := pool.Exec(ctx, query, args...)
	return err
}

func insertProgress(ctx context.Context, pool *pgxpool.Pool, progress []domain.WatchProgress) error {
	if len(progress) == 0 {
		return nil
	}

	rows := []string{}
	args := []any{}
	for _, p := range progress {
		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, p.UserID, p.TitleID, p.PositionSeconds, p.DurationSeconds, p.Completed, p.UpdatedAt)
	}

	query := "INSERT INTO watch_progress (user_id, title_id, position_seconds, duration_seconds, completed, updated_at) VALUES " +
		strings.Join(rows, ", ")
	_, err := pool.Exec(ctx, query, args...)
	return err
}

func insertWatchlist(ctx context.Context, pool *pgxpool.Pool, items []domain.WatchlistItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := []string{}
	args := []any{}
	for _, w := range items {
		base := len(args)
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, w.UserID, w.TitleID, w.AddedAt)
	}

	query := "INSERT INTO watchlist (user_id, title_id, added_at) VALUES " +
		strings.Join(rows, ", ")
	_, err := pool.Exec(ctx, query, args...)
	return err
}
