// Package scroll drives a feed page to the bottom one tick at a time,
// extracting and deduplicating records after every scroll until a stop
// heuristic fires.
package scroll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pevans/pagecat/extract"
	"github.com/pevans/pagecat/page"
	"github.com/pevans/pagecat/post"
	"github.com/sirupsen/logrus"
)

// Progress is reported after every tick.
type Progress struct {
	Percent float64 `json:"progress"`
	Message string  `json:"message"`
	Count   int     `json:"count"`
	Tick    int     `json:"tick"`
}

// ProgressFunc receives progress updates. It is called on the driver's
// goroutine and must not block.
type ProgressFunc func(Progress)

// WaitFunc blocks for d or until ctx is done, returning the context's cause
// in the latter case.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Outcome is the result of a completed run.
type Outcome struct {
	Records    []post.Record
	Ticks      int
	StopReason StopReason
	Mismatches int
}

// Driver runs scroll sessions against one page. Runs must not overlap.
type Driver struct {
	page      page.Page
	extractor *extract.Extractor
	cfg       Config
	wait      WaitFunc
	progress  ProgressFunc
	logger    *logrus.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithWait replaces the timer used between ticks.
func WithWait(wait WaitFunc) Option {
	return func(d *Driver) {
		d.wait = wait
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Driver) {
		d.progress = fn
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *logrus.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// NewDriver creates a driver. The configuration is validated here so that a
// run never starts with settings that cannot terminate.
func NewDriver(p page.Page, ex *extract.Extractor, cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scroll config: %w", err)
	}

	d := &Driver{
		page:      p,
		extractor: ex,
		cfg:       cfg,
		wait:      sleep,
		progress:  func(Progress) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logrus.New()
		d.logger.SetOutput(io.Discard)
	}
	return d, nil
}

// Run scrolls until a stop heuristic fires and returns every distinct record
// seen. Any page error, page fault or cancellation of ctx fails the run and
// no partial records are returned.
func (d *Driver) Run(ctx context.Context) (*Outcome, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if reporter, ok := d.page.(page.FaultReporter); ok {
		go watchFaults(ctx, reporter.Faults(), cancel)
	}

	s := NewSession(d.cfg)
	log := d.logger.WithFields(logrus.Fields{
		"max_ticks":  d.cfg.MaxTicks,
		"key_scheme": s.Records.Scheme(),
	})
	log.Info("Starting scroll session")

	for s.State == StateRunning {
		if err := d.wait(ctx, s.Delay); err != nil {
			return nil, d.fail(ctx, s, err)
		}

		if err := d.tick(ctx, s); err != nil {
			return nil, d.fail(ctx, s, err)
		}

		stop, reason := ShouldStop(s, d.cfg)
		if !stop {
			continue
		}

		s.State = StateStoppingSettle
		log.WithFields(logrus.Fields{
			"tick":   s.Tick,
			"reason": reason,
			"count":  s.Records.Len(),
		}).Info("Stopping scroll session")

		if err := d.settle(ctx, s); err != nil {
			return nil, d.fail(ctx, s, err)
		}
		s.State = StateDone

		return d.finish(s, reason)
	}

	return nil, errors.New("scroll session left running state unexpectedly")
}

// tick performs one scroll step and updates the session counters.
func (d *Driver) tick(ctx context.Context, s *Session) error {
	height, err := d.page.ScrollHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to read document height: %w", err)
	}
	if err := d.page.ScrollTo(ctx, height); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	s.Tick++

	added, err := d.collect(ctx, s)
	if err != nil {
		return err
	}

	d.progress(Progress{
		Percent: s.Progress(d.cfg),
		Message: fmt.Sprintf("已加载 %d 条笔记", s.Records.Len()),
		Count:   s.Records.Len(),
		Tick:    s.Tick,
	})

	after, err := d.page.ScrollHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to read document height: %w", err)
	}
	s.ObserveHeight(after, d.cfg)
	s.ObserveNew(added, d.cfg)

	d.logger.WithFields(logrus.Fields{
		"tick":      s.Tick,
		"added":     added,
		"count":     s.Records.Len(),
		"height":    after,
		"delay":     s.Delay.String(),
		"unchanged": s.UnchangedHeightTicks,
		"no_new":    s.NoNewRecordTicks,
	}).Debug("Scroll tick")

	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}

// collect extracts the current snapshot and merges it into the session.
func (d *Driver) collect(ctx context.Context, s *Session) (int, error) {
	snap, err := d.page.Snapshot(ctx, d.extractor.Selectors())
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot page: %w", err)
	}

	result := d.extractor.ExtractNew(snap)
	if result.Diagnostic != nil {
		s.Mismatches++
		s.LastDiagnostic = result.Diagnostic
		d.logger.WithFields(logrus.Fields{
			"tick": s.Tick,
			"url":  result.Diagnostic.URL,
		}).Warn("No container selector matched")
	}

	return s.Records.Merge(result.Records), nil
}

// settle runs the final extraction, returns to the top and gives the page
// time to come to rest.
func (d *Driver) settle(ctx context.Context, s *Session) error {
	if _, err := d.collect(ctx, s); err != nil {
		return err
	}
	if err := d.page.ScrollTo(ctx, 0); err != nil {
		return fmt.Errorf("failed to scroll to top: %w", err)
	}
	if d.cfg.Settle > 0 {
		if err := d.wait(ctx, d.cfg.Settle); err != nil {
			return err
		}
	}
	// Without a settle wait nothing else observes a fault raised during the
	// final pass.
	return context.Cause(ctx)
}

func (d *Driver) finish(s *Session, reason StopReason) (*Outcome, error) {
	// Every pass including the final one failed to match.
	if s.Records.Len() == 0 && s.LastDiagnostic != nil && s.Mismatches == s.Tick+1 {
		return nil, &extract.MismatchError{Diagnostic: s.LastDiagnostic}
	}

	d.logger.WithFields(logrus.Fields{
		"ticks":  s.Tick,
		"count":  s.Records.Len(),
		"reason": reason,
	}).Info("Scroll session complete")

	return &Outcome{
		Records:    s.Records.Values(),
		Ticks:      s.Tick,
		StopReason: reason,
		Mismatches: s.Mismatches,
	}, nil
}

// fail marks the session failed. A page fault that cancelled ctx takes
// precedence over the error the interrupted step returned.
func (d *Driver) fail(ctx context.Context, s *Session, err error) error {
	s.State = StateFailed
	if cause := context.Cause(ctx); cause != nil && !errors.Is(err, cause) {
		if errors.Is(cause, page.ErrOffline) || errors.Is(cause, page.ErrPageScript) {
			err = cause
		}
	}

	d.logger.WithFields(logrus.Fields{
		"tick":  s.Tick,
		"error": err,
	}).Error("Scroll session failed")
	return err
}

func watchFaults(ctx context.Context, faults <-chan error, cancel context.CancelCauseFunc) {
	select {
	case err := <-faults:
		if err != nil {
			cancel(err)
		}
	case <-ctx.Done():
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-t.C:
		return nil
	}
}
