package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-proxy/internal/observability"
)

// FlushInterval is the period between full cache clears.
const FlushInterval = 10 * time.Second

// flushTimeout bounds a single Clear call.
const flushTimeout = 5 * time.Second

// Clearer is the part of the lookup path the flusher drives.
type Clearer interface {
	ClearCache(ctx context.Context) error
}

// Flusher empties the result cache once at startup and then every interval.
type Flusher struct {
	scheduler *gocron.Scheduler
	target    Clearer
	interval  time.Duration
	logger    *zap.Logger
}

// NewFlusher creates a Flusher for target running every FlushInterval.
func NewFlusher(target Clearer, logger *zap.Logger) *Flusher {
	return newFlusher(target, FlushInterval, logger)
}

func newFlusher(target Clearer, interval time.Duration, logger *zap.Logger) *Flusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Flusher{
		scheduler: s,
		target:    target,
		interval:  interval,
		logger:    logger,
	}
}

// Start clears the cache synchronously, then schedules periodic clears.
// A failed startup clear is logged and does not prevent scheduling.
func (f *Flusher) Start(ctx context.Context) error {
	f.flush(ctx, "startup")

	_, err := f.scheduler.Every(f.interval).WaitForSchedule().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		f.flush(ctx, "scheduled")
	})
	if err != nil {
		return fmt.Errorf("schedule cache flush: %w", err)
	}

	f.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future flushes.
func (f *Flusher) Stop() {
	if f.scheduler != nil {
		f.scheduler.Stop()
	}
}

func (f *Flusher) flush(ctx context.Context, trigger string) {
	if err := f.target.ClearCache(ctx); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("clear").Inc()
		f.logger.Warn("cache flush failed", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	observability.CacheFlushesTotal.Inc()
	f.logger.Debug("cache flushed", zap.String("trigger", trigger))
}
