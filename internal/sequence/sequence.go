// Package sequence allocates human-readable scope-of-work numbers of the form
// SOW2025-000042 (root) or SUB-SOW2025-000007 (child).
package sequence

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sow-service/internal/config"
)

// Kind selects the number prefix.
type Kind int

const (
	KindRoot Kind = iota
	KindSub
)

// Prefix returns the year-independent prefix for k.
func (k Kind) Prefix() string {
	if k == KindSub {
		return "SUB-SOW"
	}
	return "SOW"
}

// Source answers the two questions numbering needs. Both count soft-deleted
// records so a number is never reused.
type Source interface {
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	NumberExists(ctx context.Context, number string) (bool, error)
}

// Reserver claims a number across processes before it is inserted.
// Reserve returns false when another writer already holds it.
type Reserver interface {
	Reserve(ctx context.Context, number string) (bool, error)
}

// Recorder receives allocation signals.
type Recorder interface {
	RecordNumberCollision()
	RecordNumberFallback()
}

// Generator proposes sequential numbers and retries on collision.
type Generator struct {
	maxAttempts int
	retryDelay  time.Duration
	reserver    Reserver
	recorder    Recorder
	logger      *zap.Logger
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	lastStamp   atomic.Int64
}

// Dependencies bundles optional collaborators.
type Dependencies struct {
	Reserver Reserver
	Recorder Recorder
	Logger   *zap.Logger
	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
}

// NewGenerator builds a Generator from config.
func NewGenerator(cfg config.SequenceConfig, deps Dependencies) *Generator {
	g := &Generator{
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay(),
		reserver:    deps.Reserver,
		recorder:    deps.Recorder,
		logger:      deps.Logger,
		now:         deps.Now,
		sleep:       deps.Sleep,
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = 5
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.sleep == nil {
		g.sleep = sleepContext
	}
	return g
}

// Next returns a number that was free when checked. Sequential proposals are
// tried up to the configured attempt count; after that a timestamp-derived
// number is returned instead.
func (g *Generator) Next(ctx context.Context, src Source, kind Kind) (string, error) {
	now := g.now().UTC()
	year := now.Year()
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		count, err := src.CountCreatedBetween(ctx, from, to)
		if err != nil {
			return "", fmt.Errorf("count scopes of work: %w", err)
		}
		// later attempts step past numbers claimed by concurrent writers
		// that have not committed yet
		candidate := Format(kind, year, count+1+attempt)

		free, err := g.available(ctx, src, candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}

		g.recordCollision()
		g.logger.Debug("scope of work number taken",
			zap.String("number", candidate), zap.Int("attempt", attempt+1))
		if attempt+1 < g.maxAttempts {
			if err := g.sleep(ctx, g.retryDelay); err != nil {
				return "", err
			}
		}
	}

	number := g.Fallback(kind)
	if g.recorder != nil {
		g.recorder.RecordNumberFallback()
	}
	g.logger.Warn("scope of work numbering fell back to timestamp",
		zap.String("number", number), zap.Int("attempts", g.maxAttempts))
	return number, nil
}

// Fallback returns <prefix><year>-<unix nanoseconds>. The stamp is strictly
// increasing within the process even when the clock repeats.
func (g *Generator) Fallback(kind Kind) string {
	now := g.now().UTC()
	stamp := now.UnixNano()
	for {
		last := g.lastStamp.Load()
		if stamp <= last {
			stamp = last + 1
		}
		if g.lastStamp.CompareAndSwap(last, stamp) {
			break
		}
		stamp = now.UnixNano()
	}
	return fmt.Sprintf("%s%d-%d", kind.Prefix(), now.Year(), stamp)
}

// Format renders the sequential form of a number.
func Format(kind Kind, year, seq int) string {
	return fmt.Sprintf("%s%d-%06d", kind.Prefix(), year, seq)
}

func (g *Generator) available(ctx context.Context, src Source, candidate string) (bool, error) {
	exists, err := src.NumberExists(ctx, candidate)
	if err != nil {
		return false, fmt.Errorf("check scope of work number: %w", err)
	}
	if exists {
		return false, nil
	}
	if g.reserver == nil {
		return true, nil
	}
	reserved, err := g.reserver.Reserve(ctx, candidate)
	if err != nil {
		// the database unique constraint still guards the insert
		g.logger.Warn("number reservation unavailable", zap.Error(err))
		return true, nil
	}
	return reserved, nil
}

func (g *Generator) recordCollision() {
	if g.recorder != nil {
		g.recorder.RecordNumberCollision()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
