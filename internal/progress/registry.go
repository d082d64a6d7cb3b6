package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/actuallystonmai/progress-service/internal/domain"
	"github.com/actuallystonmai/progress-service/internal/metrics"
)

const (
	DefaultIdleTimeout  = 2 * time.Minute
	shutdownConcurrency = 10
)

// Registry holds the live playback sessions of this process.
type Registry struct {
	tracker     *Tracker
	idleTimeout time.Duration
	logger      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(tracker *Tracker, idleTimeout time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Registry{
		tracker:     tracker,
		idleTimeout: idleTimeout,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// Start opens a session for userID on titleID, positioned at the stored resume
// point, and begins playback.
func (r *Registry) Start(ctx context.Context, userID, titleID string, duration float64) (*Session, float64, error) {
	if err := validate(userID, titleID, 0, duration); err != nil {
		return nil, 0, err
	}
	resume, _ := r.tracker.ResumePoint(ctx, userID, titleID, duration)

	s := NewSession(uuid.NewString(), userID, titleID, resume, duration, r.tracker, r.logger)
	if err := s.Play(); err != nil {
		return nil, 0, err
	}

	r.mu.Lock()
	r.sessions[s.ID()] = s
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()

	r.logger.Info("session started",
		zap.String("session_id", s.ID()),
		zap.String("user_id", userID),
		zap.String("title_id", titleID),
		zap.Float64("resume_seconds", resume),
		zap.Int("active_sessions", n))
	return s, resume, nil
}

// Get returns the session only if it belongs to userID.
func (r *Registry) Get(userID, sessionID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok || s.UserID() != userID {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// End performs the final flush and forgets the session.
func (r *Registry) End(ctx context.Context, userID, sessionID string) (domain.WatchProgress, error) {
	s, err := r.Get(userID, sessionID)
	if err != nil {
		return domain.WatchProgress{}, err
	}
	r.remove(sessionID)
	return s.End(ctx)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// remove reports whether this call was the one that removed the session.
func (r *Registry) remove(sessionID string) bool {
	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if ok {
		metrics.ActiveSessions.Dec()
	}
	return ok
}

// RunReaper ends sessions that have been silent for longer than the idle
// timeout, so a vanished client still gets its final write.
func (r *Registry) RunReaper(ctx context.Context) {
	r.logger.Info("session reaper started", zap.Duration("idle_timeout", r.idleTimeout))
	ticker := time.NewTicker(r.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reapIdle(ctx)
		}
	}
}

func (r *Registry) reapIdle(ctx context.Context) {
	cutoff := r.tracker.now().Add(-r.idleTimeout)

	r.mu.RLock()
	var idle []*Session
	for _, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range idle {
		if !r.remove(s.ID()) {
			continue
		}
		if _, err := s.End(ctx); err != nil && !errors.Is(err, domain.ErrSessionEnded) {
			r.logger.Warn("end idle session", zap.String("session_id", s.ID()), zap.Error(err))
			continue
		}
		r.logger.Info("idle session reaped", zap.String("session_id", s.ID()), zap.String("user_id", s.UserID()))
	}
}

// Shutdown ends every live session, flushing each one's final position.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	metrics.ActiveSessions.Sub(float64(len(all)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(shutdownConcurrency)
	for _, s := range all {
		g.Go(func() error {
			if _, err := s.End(gctx); err != nil && !errors.Is(err, domain.ErrSessionEnded) {
				r.logger.Warn("end session on shutdown", zap.String("session_id", s.ID()), zap.Error(err))
			}
			return nil
		})
	}
	err := g.Wait()
	r.logger.Info("sessions flushed on shutdown", zap.Int("count", len(all)))
	return err
}
