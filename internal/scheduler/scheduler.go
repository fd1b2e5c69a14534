// Package scheduler runs the display loop: it alternates the direction on
// screen, refreshes the feed when due, and pushes one frame per tick.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tarediiran-industries.com/transit-board/internal/arrivals"
	"tarediiran-industries.com/transit-board/internal/common"
	"tarediiran-industries.com/transit-board/internal/feed"
	"tarediiran-industries.com/transit-board/internal/render"
)

const (
	DefaultDwell         = 5 * time.Second
	DefaultFPS           = 30
	DefaultRefresh       = 10 * time.Second
	DefaultRetryDelay    = 2 * time.Second
	DefaultStaleAfter    = 2 * time.Minute
	defaultRecordTimeout = 5 * time.Second
)

type Fetcher interface {
	Fetch(ctx context.Context) (arrivals.Pair, error)
}

type CacheReader interface {
	Load() (feed.Entry, bool)
}

// Recorder receives every freshly cached entry, e.g. to persist history.
type Recorder interface {
	Record(ctx context.Context, entry feed.Entry) error
}

type Options struct {
	Dwell         time.Duration
	FrameInterval time.Duration
	Refresh       time.Duration
	RetryDelay    time.Duration
	FetchTimeout  time.Duration
	// StaleAfter flags cached data older than this; zero disables the flag.
	StaleAfter time.Duration
	Route      string
}

func DefaultOptions() Options {
	return Options{
		Dwell:         DefaultDwell,
		FrameInterval: time.Second / DefaultFPS,
		Refresh:       DefaultRefresh,
		RetryDelay:    DefaultRetryDelay,
		FetchTimeout:  feed.DefaultTimeout,
		StaleAfter:    DefaultStaleAfter,
	}
}

func (options Options) Validate() error {
	if options.Dwell <= 0 {
		return fmt.Errorf("dwell must be positive, got %s", options.Dwell)
	}
	if options.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive, got %s", options.FrameInterval)
	}
	if options.Refresh <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", options.Refresh)
	}
	if options.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive, got %s", options.RetryDelay)
	}
	if options.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", options.FetchTimeout)
	}
	return nil
}

type Scheduler struct {
	fetcher  Fetcher
	cache    CacheReader
	renderer render.Renderer
	sink     render.Sink
	options  Options

	Recorder Recorder
	Metrics  *common.Metrics
	Now      func() time.Time

	log       *logrus.Entry
	state     FrameState
	started   bool
	attempted bool
	nextFetch time.Time
	backoff   backoff
}

func NewScheduler(fetcher Fetcher, cache CacheReader, renderer render.Renderer, sink render.Sink, options Options, log *logrus.Logger) (*Scheduler, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = common.DiscardLogger()
	}

	return &Scheduler{
		fetcher:  fetcher,
		cache:    cache,
		renderer: renderer,
		sink:     sink,
		options:  options,
		Now:      time.Now,
		log:      log.WithField("component", "scheduler"),
		backoff:  backoff{base: options.RetryDelay, ceiling: options.Refresh},
	}, nil
}

func (scheduler *Scheduler) State() FrameState {
	return scheduler.state
}

// NextFetch is when the next feed attempt becomes due.
func (scheduler *Scheduler) NextFetch() time.Time {
	return scheduler.nextFetch
}

// Run ticks until ctx is cancelled. A tick in progress always completes.
func (scheduler *Scheduler) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return nil
	}

	ticker := time.NewTicker(scheduler.options.FrameInterval)
	defer ticker.Stop()

	scheduler.log.WithFields(logrus.Fields{
		"dwell":   scheduler.options.Dwell,
		"refresh": scheduler.options.Refresh,
		"frame":   scheduler.options.FrameInterval,
	}).Info("Frame scheduler started")

	scheduler.Tick(ctx, scheduler.Now())
	for {
		select {
		case <-ctx.Done():
			scheduler.log.Info("Frame scheduler stopped")
			return nil

		case <-ticker.C:
			scheduler.Tick(ctx, scheduler.Now())
		}
	}
}

// Tick performs one scheduling step at now. The returned error is the
// render or sink failure that dropped the frame, if any; it is already
// logged and never stops the loop. The dwell check runs either way.
func (scheduler *Scheduler) Tick(ctx context.Context, now time.Time) error {
	if !scheduler.started {
		scheduler.state = NewFrameState(now)
		scheduler.started = true
	}
	defer scheduler.advance(now)

	if scheduler.fetchDue(now) {
		scheduler.refresh(ctx, now)
	}

	view := scheduler.view(now)

	frame, err := scheduler.renderer.Render(view)
	if err != nil {
		scheduler.abandon("render", view.Direction, err)
		return fmt.Errorf("render: %w", err)
	}

	if err := scheduler.sink.Push(frame); err != nil {
		scheduler.abandon("sink", view.Direction, err)
		return err
	}
	scheduler.observe(func(metrics *common.Metrics) {
		metrics.FramesTotal.WithLabelValues(view.Direction.String()).Inc()
	})

	return nil
}

func (scheduler *Scheduler) advance(now time.Time) {
	if scheduler.state.Advance(now, scheduler.options.Dwell) {
		scheduler.log.WithField("direction", scheduler.state.Current).Debug("Switched direction")
		scheduler.observe(func(metrics *common.Metrics) {
			metrics.DirectionSwitches.Inc()
		})
	}
}

func (scheduler *Scheduler) fetchDue(now time.Time) bool {
	return !scheduler.attempted || !now.Before(scheduler.nextFetch)
}

func (scheduler *Scheduler) refresh(ctx context.Context, now time.Time) {
	scheduler.attempted = true

	// The fetch outlives a stop signal so the tick can finish; the timeout
	// still bounds it.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scheduler.options.FetchTimeout)
	defer cancel()

	pair, err := common.RuntimeBenchmark(scheduler.log, "feed-fetch", func() (arrivals.Pair, error) {
		return scheduler.fetcher.Fetch(fetchCtx)
	})
	if err != nil {
		delay := scheduler.backoff.fail()
		scheduler.nextFetch = now.Add(delay)
		scheduler.observe(func(metrics *common.Metrics) {
			metrics.FetchesTotal.WithLabelValues("failure").Inc()
		})

		entry := scheduler.log.WithError(err).WithFields(logrus.Fields{
			"kind":     feed.KindOf(err),
			"failures": scheduler.backoff.failures,
			"retry_in": delay,
		})
		if _, cached := scheduler.cache.Load(); cached {
			entry.Warn("Feed fetch failed, showing cached arrivals")
		} else {
			entry.Warn("Feed fetch failed and nothing is cached yet")
		}
		return
	}

	scheduler.backoff.reset()
	scheduler.nextFetch = now.Add(scheduler.options.Refresh)
	scheduler.observe(func(metrics *common.Metrics) {
		metrics.FetchesTotal.WithLabelValues("success").Inc()
		metrics.SnapshotArrivals.WithLabelValues(arrivals.Uptown.String()).Set(float64(pair.Uptown.Len()))
		metrics.SnapshotArrivals.WithLabelValues(arrivals.Downtown.String()).Set(float64(pair.Downtown.Len()))
	})

	scheduler.log.WithFields(logrus.Fields{
		"uptown":   pair.Uptown.Minutes,
		"downtown": pair.Downtown.Minutes,
	}).Info("Updated arrivals")

	scheduler.record(ctx)
}

func (scheduler *Scheduler) record(ctx context.Context) {
	if scheduler.Recorder == nil {
		return
	}
	entry, ok := scheduler.cache.Load()
	if !ok {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultRecordTimeout)
	defer cancel()

	if err := scheduler.Recorder.Record(recordCtx, entry); err != nil {
		scheduler.log.WithError(err).Warn("Failed to record snapshot history")
	}
}

func (scheduler *Scheduler) view(now time.Time) render.View {
	direction := scheduler.state.Current
	view := render.View{
		Direction: direction,
		Route:     scheduler.options.Route,
	}

	entry, ok := scheduler.cache.Load()
	if !ok {
		return view
	}

	age := entry.Age(now)
	view.HasData = true
	view.Minutes = entry.Pair.Get(direction).Minutes
	view.Stale = scheduler.options.StaleAfter > 0 && age > scheduler.options.StaleAfter
	scheduler.observe(func(metrics *common.Metrics) {
		metrics.CacheAgeSeconds.Set(age.Seconds())
	})

	return view
}

func (scheduler *Scheduler) abandon(stage string, direction arrivals.Direction, err error) {
	scheduler.log.WithError(err).WithFields(logrus.Fields{
		"stage":     stage,
		"direction": direction,
	}).Error("Dropped frame")
	scheduler.observe(func(metrics *common.Metrics) {
		metrics.FrameErrorsTotal.WithLabelValues(stage).Inc()
	})
}

func (scheduler *Scheduler) observe(record func(*common.Metrics)) {
	if scheduler.Metrics != nil {
		record(scheduler.Metrics)
	}
}
