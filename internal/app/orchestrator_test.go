package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"groups-exporter/internal/config"
)

// scrollingPage reveals one more card per scroll, like an infinite feed.
type scrollingPage struct {
	mu        sync.Mutex
	revealed  int
	total     int
	scrolls   int
	failAfter int
	snapshots int
}

func newScrollingPage(total int) *scrollingPage {
	return &scrollingPage{revealed: 1, total: total}
}

func (p *scrollingPage) Snapshot(context.Context) (string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots++
	if p.failAfter > 0 && p.snapshots > p.failAfter {
		return "", "", errors.New("target closed")
	}
	cards := make([]string, 0, p.revealed)
	for i := 1; i <= p.revealed; i++ {
		cards = append(cards, card(fmt.Sprintf("g%d", i), fmt.Sprintf("Group Number %d", i), i*100, "1 day"))
	}
	return listing(cards...), searchURL, nil
}

func (p *scrollingPage) ScrollBy(_ context.Context, px int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls++
	if px > 0 && p.revealed < p.total {
		p.revealed++
	}
	return nil
}

func (p *scrollingPage) reveal() {
	p.mu.Lock()
	if p.revealed < p.total {
		p.revealed++
	}
	p.mu.Unlock()
}

// notifyingPage adds mutation notifications to a scrolling page.
type notifyingPage struct {
	*scrollingPage
	changes chan struct{}
}

func (p *notifyingPage) Mutations(ctx context.Context) (<-chan struct{}, error) {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.changes:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func fastOptions(idle int) AutoScanOptions {
	return AutoScanOptions{
		ScanInterval:        5 * time.Millisecond,
		ScrollInterval:      5 * time.Millisecond,
		ScrollStep:          900,
		StopAfterIdlePasses: idle,
	}
}

func newAutoSession(page Page, maxItems int, opts AutoScanOptions) *Session {
	settings := config.DefaultSettings()
	settings.MaxItems = maxItems
	return NewSession(page, Options{Settings: settings, AutoScan: opts})
}

func TestAutoScanStopsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	page := newScrollingPage(50)
	s := newAutoSession(page, 5, fastOptions(0))

	require.NoError(t, s.StartAutoScan(context.Background(), 10*time.Second))
	stats, err := s.Wait()
	require.NoError(t, err)

	assert.Equal(t, StopFull, stats.StoppedReason)
	assert.Equal(t, 5, s.Count())
	assert.Equal(t, 5, stats.Added)
	assert.Positive(t, stats.Scrolls)
	assert.Positive(t, stats.Passes)
	assert.Equal(t, "Max items (5) reached!", s.Status())
	assert.False(t, s.AutoScanning())
}

func TestAutoScanStopsWhenIdle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	page := newScrollingPage(2)
	page.revealed = 2
	s := newAutoSession(page, 100, fastOptions(3))

	require.NoError(t, s.StartAutoScan(context.Background(), 10*time.Second))
	stats, err := s.Wait()
	require.NoError(t, err)

	assert.Equal(t, StopIdle, stats.StoppedReason)
	assert.Equal(t, 2, s.Count())
	assert.GreaterOrEqual(t, stats.Passes, 3)
	assert.Equal(t, "Auto-scan done. 2 groups found.", s.Status())
}

func TestAutoScanDeadline(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	page := newScrollingPage(3)
	page.revealed = 3
	s := newAutoSession(page, 100, fastOptions(0))

	require.NoError(t, s.StartAutoScan(context.Background(), 100*time.Millisecond))
	stats, err := s.Wait()
	require.NoError(t, err)

	assert.Equal(t, StopDeadline, stats.StoppedReason)
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, "Auto-scan done. 3 groups found.", s.Status())
}

func TestStopAutoScan(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newAutoSession(newScrollingPage(10), 100, fastOptions(0))
	assert.False(t, s.StopAutoScan(), "nothing to stop yet")

	require.NoError(t, s.StartAutoScan(context.Background(), time.Minute))
	assert.True(t, s.AutoScanning())
	assert.ErrorIs(t, s.StartAutoScan(context.Background(), time.Minute), ErrAutoScanRunning)

	assert.True(t, s.StopAutoScan())
	stats, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, StopRequested, stats.StoppedReason)
	assert.Equal(t, "Auto-scan stopped.", s.Status())

	again, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, stats, again, "Wait after the run returns its stats")

	require.NoError(t, s.StartAutoScan(context.Background(), time.Minute), "a finished run can be restarted")
	s.StopAutoScan()
	_, err = s.Wait()
	require.NoError(t, err)
}

func TestAutoScanParentCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	s := newAutoSession(newScrollingPage(10), 100, fastOptions(0))

	require.NoError(t, s.StartAutoScan(ctx, time.Minute))
	time.Sleep(20 * time.Millisecond)
	cancel()

	stats, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, stats.StoppedReason)
}

func TestAutoScanPageFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	page := newScrollingPage(10)
	page.failAfter = 2
	s := newAutoSession(page, 100, fastOptions(0))

	require.NoError(t, s.StartAutoScan(context.Background(), 10*time.Second))
	stats, err := s.Wait()
	require.Error(t, err)
	assert.Equal(t, StopFailed, stats.StoppedReason)
	assert.Equal(t, "Auto-scan failed: page unavailable.", s.Status())
}

func TestAutoScanMutationTriggersPass(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	page := &notifyingPage{scrollingPage: newScrollingPage(5), changes: make(chan struct{})}
	opts := AutoScanOptions{ScanInterval: time.Hour, ScrollInterval: time.Hour, ScrollStep: 900}
	s := newAutoSession(page, 100, opts)

	require.NoError(t, s.StartAutoScan(context.Background(), time.Minute))

	page.reveal()
	page.reveal()
	page.changes <- struct{}{}
	require.Eventually(t, func() bool { return s.Count() == 3 }, 2*time.Second, 5*time.Millisecond)

	s.StopAutoScan()
	stats, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MutationScans)
	assert.Zero(t, stats.Passes)
	assert.Equal(t, 3, stats.Added)
}

func TestMutationsIgnoredWithoutAutoScan(t *testing.T) {
	page := &notifyingPage{scrollingPage: newScrollingPage(5), changes: make(chan struct{}, 1)}
	s := newAutoSession(page, 100, fastOptions(0))

	page.changes <- struct{}{}
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, s.Count())
}

func TestGracefulShutdownReleases(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := GracefulShutdown(context.Background(), nil)
	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
