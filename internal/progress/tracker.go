package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/actuallystonmai/progress-service/internal/domain"
	"github.com/actuallystonmai/progress-service/internal/metrics"
)

const (
	DefaultCompletionThreshold = 0.9
	DefaultFlushInterval       = 10 * time.Second
	DefaultWriteTimeout        = 5 * time.Second
)

// ReadFunc loads the stored record for (userID, titleID). It returns nil, nil
// when nothing has been stored yet.
type ReadFunc func(ctx context.Context, userID, titleID string) (*domain.WatchProgress, error)

// WriteFunc upserts a record keyed on (UserID, TitleID). It returns
// domain.ErrStaleWrite when a newer record is already stored.
type WriteFunc func(ctx context.Context, p domain.WatchProgress) error

type Policy struct {
	CompletionThreshold float64
	FlushInterval       time.Duration
	WriteTimeout        time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		CompletionThreshold: DefaultCompletionThreshold,
		FlushInterval:       DefaultFlushInterval,
		WriteTimeout:        DefaultWriteTimeout,
	}
}

func (p Policy) withDefaults() Policy {
	if p.CompletionThreshold <= 0 || p.CompletionThreshold > 1 {
		p.CompletionThreshold = DefaultCompletionThreshold
	}
	if p.FlushInterval <= 0 {
		p.FlushInterval = DefaultFlushInterval
	}
	if p.WriteTimeout <= 0 {
		p.WriteTimeout = DefaultWriteTimeout
	}
	return p
}

type Option func(*Tracker)

// WithClock replaces time.Now as the source of UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker turns playback positions into progress records and computes resume
// points. Storage is reached only through the injected read and write funcs.
type Tracker struct {
	read   ReadFunc
	write  WriteFunc
	policy Policy
	logger *zap.Logger
	now    func() time.Time
}

func NewTracker(read ReadFunc, write WriteFunc, policy Policy, logger *zap.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		read:   read,
		write:  write,
		policy: policy.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Policy() Policy {
	return t.policy
}

// RecordProgress upserts the record for (userID, titleID). Only invalid input
// is reported; a failed write is logged and left for the next flush to supersede.
func (t *Tracker) RecordProgress(ctx context.Context, userID, titleID string, position, duration float64) error {
	_, err := t.Record(ctx, userID, titleID, position, duration)
	return err
}

// Record is RecordProgress returning the record it attempted to store.
func (t *Tracker) Record(ctx context.Context, userID, titleID string, position, duration float64) (domain.WatchProgress, error) {
	return t.record(ctx, metrics.TriggerDirect, userID, titleID, position, duration)
}

func (t *Tracker) record(ctx context.Context, trigger, userID, titleID string, position, duration float64) (domain.WatchProgress, error) {
	if err := validate(userID, titleID, position, duration); err != nil {
		metrics.RejectedInputs.Inc()
		return domain.WatchProgress{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, t.policy.WriteTimeout)
	defer cancel()

	prior, err := t.read(ctx, userID, titleID)
	if err != nil {
		t.logger.Warn("read prior progress failed",
			zap.String("user_id", userID), zap.String("title_id", titleID), zap.Error(err))
		prior = nil
	}

	rec := domain.WatchProgress{
		UserID:          userID,
		TitleID:         titleID,
		PositionSeconds: position,
		DurationSeconds: duration,
		UpdatedAt:       t.now(),
	}
	if rec.DurationSeconds == 0 && prior != nil {
		rec.DurationSeconds = prior.DurationSeconds
	}
	rec.Completed = t.reachedThreshold(rec.PositionSeconds, rec.DurationSeconds) || (prior != nil && prior.Completed)

	err = t.write(ctx, rec)
	if errors.Is(err, domain.ErrStaleWrite) {
		metrics.Flushes.WithLabelValues(trigger, metrics.ResultStale).Inc()
		t.logger.Debug("progress write superseded by newer record",
			zap.String("trigger", trigger),
			zap.String("user_id", userID),
			zap.String("title_id", titleID))
		return rec, nil
	}
	if err != nil {
		metrics.Flushes.WithLabelValues(trigger, metrics.ResultError).Inc()
		t.logger.Warn("progress write dropped",
			zap.String("trigger", trigger),
			zap.String("user_id", userID),
			zap.String("title_id", titleID),
			zap.Float64("position_seconds", position),
			zap.Error(err))
		return rec, nil
	}
	metrics.Flushes.WithLabelValues(trigger, metrics.ResultOK).Inc()
	return rec, nil
}

func (t *Tracker) reachedThreshold(position, duration float64) bool {
	return duration > 0 && position/duration >= t.policy.CompletionThreshold
}

// ComputeResumePoint returns the offset a new session should start from.
// Completed titles restart at 0. With a known duration the stored offset is
// kept in [0, duration); an offset at or past the end restarts at 0.
func (t *Tracker) ComputeResumePoint(rec *domain.WatchProgress, duration float64) float64 {
	if rec == nil || rec.Completed {
		return 0
	}
	pos := rec.PositionSeconds
	if pos < 0 || math.IsNaN(pos) || math.IsInf(pos, 0) {
		return 0
	}
	if duration > 0 && pos >= duration {
		return 0
	}
	return pos
}

// ResumePoint reads the stored record and computes the resume offset. A failed
// read resumes from the beginning.
func (t *Tracker) ResumePoint(ctx context.Context, userID, titleID string, duration float64) (float64, *domain.WatchProgress) {
	ctx, cancel := context.WithTimeout(ctx, t.policy.WriteTimeout)
	defer cancel()

	rec, err := t.read(ctx, userID, titleID)
	if err != nil {
		t.logger.Warn("read progress failed, resuming from start",
			zap.String("user_id", userID), zap.String("title_id", titleID), zap.Error(err))
		return 0, nil
	}
	return t.ComputeResumePoint(rec, duration), rec
}

func validate(userID, titleID string, position, duration float64) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", domain.ErrInvalidInput)
	}
	if titleID == "" {
		return fmt.Errorf("%w: empty title id", domain.ErrInvalidInput)
	}
	return validatePosition(position, duration)
}
