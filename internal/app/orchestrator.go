package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"groups-exporter/internal/scraper"
)

// Reasons an auto-scan ends.
const (
	StopDeadline  = "duration elapsed"
	StopFull      = "max items reached"
	StopIdle      = "no new groups"
	StopRequested = "stopped"
	StopCancelled = "cancelled"
	StopFailed    = "page unavailable"
)

// maxConsecutiveFailures ends an auto-scan whose page stopped answering.
const maxConsecutiveFailures = 3

type AutoScanOptions struct {
	ScanInterval   time.Duration
	ScrollInterval time.Duration
	ScrollStep     int
	// StopAfterIdlePasses ends the run after this many timer passes in a
	// row add nothing. 0 disables.
	StopAfterIdlePasses int
}

func (o *AutoScanOptions) defaults() {
	if o.ScanInterval <= 0 {
		o.ScanInterval = 1500 * time.Millisecond
	}
	if o.ScrollInterval <= 0 {
		o.ScrollInterval = 1500 * time.Millisecond
	}
	if o.ScrollStep == 0 {
		o.ScrollStep = 900
	}
}

type AutoScanStats struct {
	StartedAt     time.Time
	StoppedAt     time.Time
	Passes        int
	MutationScans int
	Scrolls       int
	Added         int
	StoppedReason string
}

type autoScan struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	stats    AutoScanStats
	reason   string
	idle     int
	failures int
	err      error
}

// stop records the first reason given and cancels the run.
func (a *autoScan) stop(reason string) {
	a.mu.Lock()
	if a.reason == "" {
		a.reason = reason
	}
	a.mu.Unlock()
	a.cancel()
}

// StartAutoScan scrolls and scans the page on timers until d elapses, the
// store fills up, the page goes idle or StopAutoScan is called. Pages that
// report DOM mutations also trigger a pass per change while the run lasts.
// It returns immediately; use Wait to block until the run ends.
func (s *Session) StartAutoScan(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = 60 * time.Second
	}

	s.mu.Lock()
	if s.auto != nil {
		s.mu.Unlock()
		return ErrAutoScanRunning
	}
	runCtx, cancel := context.WithTimeout(ctx, d)
	a := &autoScan{
		cancel: cancel,
		done:   make(chan struct{}),
		stats:  AutoScanStats{StartedAt: s.now()},
	}
	s.auto = a
	s.mu.Unlock()

	s.logger.Info("Auto-scan started",
		"duration", d,
		"scan_interval", s.autoOpts.ScanInterval,
		"scroll_interval", s.autoOpts.ScrollInterval,
		"scroll_step", s.autoOpts.ScrollStep,
	)
	s.setStatus(fmt.Sprintf("Auto-scan started (%s). Scroll + scan...", d))

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.scrollLoop(gctx, a) })
	g.Go(func() error { return s.scanLoop(gctx, a) })
	if notifier, ok := s.page.(MutationNotifier); ok {
		changes, err := notifier.Mutations(gctx)
		if err != nil {
			s.logger.Warn("Mutation notifications unavailable", "error", err)
		} else {
			g.Go(func() error { return s.mutationLoop(gctx, a, changes) })
		}
	}

	go func() {
		err := g.Wait()
		s.finishAutoScan(ctx, runCtx, a, err)
	}()
	return nil
}

func (s *Session) finishAutoScan(parent, runCtx context.Context, a *autoScan, err error) {
	a.cancel()

	a.mu.Lock()
	reason := a.reason
	switch {
	case reason != "":
	case err != nil:
		reason = StopFailed
	case parent.Err() != nil:
		reason = StopCancelled
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		reason = StopDeadline
	default:
		reason = StopCancelled
	}
	a.reason = reason
	a.err = err
	a.stats.StoppedReason = reason
	a.stats.StoppedAt = s.now()
	stats := a.stats
	a.mu.Unlock()

	s.logger.Info("Auto-scan finished",
		"reason", reason,
		"passes", stats.Passes,
		"mutation_scans", stats.MutationScans,
		"scrolls", stats.Scrolls,
		"added", stats.Added,
		"total", s.store.Len(),
	)

	switch reason {
	case StopRequested:
		s.setStatus("Auto-scan stopped.")
	case StopFull:
		s.setStatus(fmt.Sprintf("Max items (%s) reached!", humanize.Comma(int64(s.store.Max()))))
	case StopFailed:
		s.setStatus("Auto-scan failed: page unavailable.")
	default:
		s.setStatus(fmt.Sprintf("Auto-scan done. %s groups found.", humanize.Comma(int64(s.store.Len()))))
	}

	s.mu.Lock()
	s.auto = nil
	s.lastAuto = a
	s.mu.Unlock()
	close(a.done)
}

// StopAutoScan cancels a running auto-scan. A pass already in progress
// completes. It reports whether a run was active.
func (s *Session) StopAutoScan() bool {
	s.mu.RLock()
	a := s.auto
	s.mu.RUnlock()
	if a == nil {
		return false
	}
	a.stop(StopRequested)
	return true
}

// AutoScanning reports whether an auto-scan is running.
func (s *Session) AutoScanning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auto != nil
}

// Wait blocks until the current auto-scan ends and returns its stats. With
// no run active it returns the stats of the previous one.
func (s *Session) Wait() (AutoScanStats, error) {
	s.mu.RLock()
	a := s.auto
	if a == nil {
		a = s.lastAuto
	}
	s.mu.RUnlock()
	if a == nil {
		return AutoScanStats{}, nil
	}

	<-a.done
	return a.stats, a.err
}

func (s *Session) scrollLoop(ctx context.Context, a *autoScan) error {
	if s.autoOpts.ScrollStep <= 0 {
		return nil
	}
	ticker := time.NewTicker(s.autoOpts.ScrollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := s.page.ScrollBy(ctx, s.autoOpts.ScrollStep); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Debug("Scroll failed", "error", err)
			continue
		}
		a.mu.Lock()
		a.stats.Scrolls++
		a.mu.Unlock()
	}
}

func (s *Session) scanLoop(ctx context.Context, a *autoScan) error {
	ticker := time.NewTicker(s.autoOpts.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		res, err := s.ScanNow(ctx)
		if err := s.afterPass(ctx, a, res, err, true); err != nil {
			return err
		}
	}
}

func (s *Session) mutationLoop(ctx context.Context, a *autoScan, changes <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
		}

		res, err := s.ScanNow(ctx)
		if err := s.afterPass(ctx, a, res, err, false); err != nil {
			return err
		}
	}
}

// afterPass updates run stats and decides whether the run should end.
// Only timer passes count towards the idle limit.
func (s *Session) afterPass(ctx context.Context, a *autoScan, res scraper.Result, err error, timed bool) error {
	a.mu.Lock()
	if err != nil {
		if ctx.Err() != nil {
			a.mu.Unlock()
			return nil
		}
		a.failures++
		failures := a.failures
		a.mu.Unlock()
		s.logger.Warn("Auto-scan pass failed", "error", err, "consecutive", failures)
		if failures >= maxConsecutiveFailures {
			return err
		}
		return nil
	}

	a.failures = 0
	a.stats.Added += res.Added
	if timed {
		a.stats.Passes++
		if res.Added == 0 {
			a.idle++
		} else {
			a.idle = 0
		}
	} else {
		a.stats.MutationScans++
	}
	idle := a.idle
	added := a.stats.Added
	a.mu.Unlock()

	s.setStatus(fmt.Sprintf("Auto-scan: +%d (%s total)", res.Added, humanize.Comma(int64(s.store.Len()))))
	s.logger.Debug("Auto-scan pass", "added", res.Added, "run_added", added, "idle", idle)

	switch {
	case s.store.Full():
		a.stop(StopFull)
	case s.autoOpts.StopAfterIdlePasses > 0 && idle >= s.autoOpts.StopAfterIdlePasses:
		a.stop(StopIdle)
	}
	return nil
}
