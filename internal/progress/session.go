package progress

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/actuallystonmai/progress-service/internal/domain"
	"github.com/actuallystonmai/progress-service/internal/metrics"
)

// Session is one viewer watching one title. While playing it flushes the
// latest position every FlushInterval, and End performs a last flush before
// returning.
type Session struct {
	id      string
	userID  string
	titleID string
	tracker *Tracker
	logger  *zap.Logger

	mu           sync.Mutex
	state        domain.SessionState
	position     float64
	duration     float64
	touched      bool
	startedAt    time.Time
	lastActivity time.Time

	stop chan struct{}
	done chan struct{}
}

// NewSession creates a session in the not_started state positioned at start.
func NewSession(id, userID, titleID string, start, duration float64, tracker *Tracker, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := tracker.now()
	return &Session{
		id:           id,
		userID:       userID,
		titleID:      titleID,
		tracker:      tracker,
		logger:       logger.With(zap.String("session_id", id)),
		state:        domain.SessionNotStarted,
		position:     start,
		duration:     duration,
		startedAt:    now,
		lastActivity: now,
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) UserID() string { return s.userID }

func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case domain.SessionEnded:
		return domain.ErrSessionEnded
	case domain.SessionPlaying:
		return nil
	}
	s.state = domain.SessionPlaying
	s.touched = true
	s.lastActivity = s.tracker.now()
	s.startTickerLocked()
	return nil
}

func (s *Session) Pause() error {
	s.mu.Lock()
	switch s.state {
	case domain.SessionEnded:
		s.mu.Unlock()
		return domain.ErrSessionEnded
	case domain.SessionNotStarted:
		s.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", domain.ErrInvalidTransition, s.state)
	case domain.SessionPaused:
		s.mu.Unlock()
		return nil
	}
	s.state = domain.SessionPaused
	s.lastActivity = s.tracker.now()
	stop, done := s.detachTickerLocked()
	s.mu.Unlock()

	waitTicker(stop, done)
	return nil
}

// Advance applies a playback report. Positions behind the current one are
// stale reports and are ignored; use Seek to move backwards.
func (s *Session) Advance(position, duration float64) error {
	if err := validatePosition(position, duration); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionEnded {
		return domain.ErrSessionEnded
	}
	if position > s.position {
		s.position = position
	}
	if duration > 0 {
		s.duration = duration
	}
	s.touched = true
	s.lastActivity = s.tracker.now()
	return nil
}

func (s *Session) Seek(position float64) error {
	if err := validatePosition(position, 0); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionEnded {
		return domain.ErrSessionEnded
	}
	s.position = position
	s.touched = true
	s.lastActivity = s.tracker.now()
	return nil
}

// Touch records client activity without changing the position.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = s.tracker.now()
	s.mu.Unlock()
}

// End stops the periodic flush and writes the final position synchronously.
// A session that never played nor received a position writes nothing.
func (s *Session) End(ctx context.Context) (domain.WatchProgress, error) {
	s.mu.Lock()
	if s.state == domain.SessionEnded {
		s.mu.Unlock()
		return domain.WatchProgress{}, domain.ErrSessionEnded
	}
	s.state = domain.SessionEnded
	s.lastActivity = s.tracker.now()
	stop, done := s.detachTickerLocked()
	touched := s.touched
	position, duration := s.position, s.duration
	s.mu.Unlock()

	waitTicker(stop, done)

	if !touched {
		s.logger.Debug("session ended before playback, nothing to flush")
		return domain.WatchProgress{UserID: s.userID, TitleID: s.titleID, PositionSeconds: position, DurationSeconds: duration}, nil
	}
	// The session is already gone from the registry, so this write must outlive
	// a client that hung up. Only the tracker's write timeout bounds it.
	rec, err := s.tracker.record(context.WithoutCancel(ctx), metrics.TriggerEnd, s.userID, s.titleID, position, duration)
	if err != nil {
		return domain.WatchProgress{}, err
	}
	s.logger.Info("session ended",
		zap.String("user_id", s.userID),
		zap.String("title_id", s.titleID),
		zap.Float64("position_seconds", rec.PositionSeconds),
		zap.Bool("completed", rec.Completed))
	return rec, nil
}

func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionSnapshot{
		ID:              s.id,
		UserID:          s.userID,
		TitleID:         s.titleID,
		State:           s.state,
		PositionSeconds: s.position,
		DurationSeconds: s.duration,
		StartedAt:       s.startedAt,
		LastActivityAt:  s.lastActivity,
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) startTickerLocked() {
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.runTicker(s.stop, s.done)
}

func (s *Session) detachTickerLocked() (chan struct{}, chan struct{}) {
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	return stop, done
}

func waitTicker(stop, done chan struct{}) {
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *Session) runTicker(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.tracker.policy.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *Session) flush() {
	s.mu.Lock()
	if s.state != domain.SessionPlaying {
		s.mu.Unlock()
		return
	}
	position, duration := s.position, s.duration
	s.mu.Unlock()

	// Errors here are input errors only; position and duration were validated on entry.
	if _, err := s.tracker.record(context.Background(), metrics.TriggerTick, s.userID, s.titleID, position, duration); err != nil {
		s.logger.Error("periodic flush rejected", zap.Error(err))
	}
}

func validatePosition(position, duration float64) error {
	if math.IsNaN(position) || math.IsInf(position, 0) || position < 0 {
		return fmt.Errorf("%w: position %v", domain.ErrInvalidInput, position)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return fmt.Errorf("%w: duration %v", domain.ErrInvalidInput, duration)
	}
	return nil
}
