package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"groups-exporter/internal/canonical"
	"groups-exporter/internal/checksum"
	"groups-exporter/internal/config"
	"groups-exporter/internal/export"
	"groups-exporter/internal/extract"
	"groups-exporter/internal/observability"
	"groups-exporter/internal/scraper"
	"groups-exporter/internal/storage"
	"groups-exporter/internal/store"
)

var (
	ErrAutoScanRunning  = errors.New("auto-scan already running")
	ErrInvalidThreshold = errors.New("invalid activity threshold")
)

type Options struct {
	Settings     config.Settings
	SettingsPath string
	Domain       string
	Selectors    *scraper.Selectors
	// Repository persists records between runs. Nil keeps them in memory.
	Repository storage.Repository
	AutoScan   AutoScanOptions
	Logger     *observability.Logger
	Clock      func() time.Time
}

// Session owns the record store of one page and reacts to the triggers a
// user or the auto-scan timers fire.
type Session struct {
	id           string
	page         Page
	store        *store.Store
	scanner      *scraper.Scanner
	repo         storage.Repository
	checksum     *checksum.Generator
	settingsPath string
	autoOpts     AutoScanOptions
	logger       *observability.Logger
	now          func() time.Time

	// scanMu keeps at most one pass in flight. It also guards saved.
	scanMu sync.Mutex
	// saved maps keys to the checksum last written to the repository.
	saved map[string]string

	mu        sync.RWMutex
	settings  config.Settings
	status    string
	lastAdded int
	auto      *autoScan
	lastAuto  *autoScan
}

func NewSession(page Page, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = observability.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Domain == "" {
		opts.Domain = "facebook.com"
	}
	if opts.Repository == nil {
		opts.Repository = storage.NewMemory()
	}
	if opts.Settings == (config.Settings{}) {
		opts.Settings = config.DefaultSettings()
	}
	if opts.Settings.MaxItems <= 0 {
		opts.Settings.MaxItems = store.DefaultMaxItems
	}
	if opts.Settings.ExportFormat == "" {
		opts.Settings.ExportFormat = export.FormatCSV
	}
	opts.AutoScan.defaults()

	id := uuid.NewString()
	logger := opts.Logger.With("session", id)

	st := store.New(opts.Settings.MaxItems)
	st.SetClock(opts.Clock)

	return &Session{
		id:           id,
		page:         page,
		store:        st,
		scanner:      scraper.NewScanner(opts.Selectors, canonical.New(opts.Domain), st, logger),
		repo:         opts.Repository,
		checksum:     checksum.NewGenerator(),
		settingsPath: opts.SettingsPath,
		autoOpts:     opts.AutoScan,
		logger:       logger,
		now:          opts.Clock,
		settings:     opts.Settings,
		saved:        make(map[string]string),
		status:       "Initialized. Use scan or auto-scan.",
	}
}

func (s *Session) ID() string { return s.id }

// Init restores records persisted by earlier runs and, with autoStart set,
// runs a first pass. Restore failures only change the status.
func (s *Session) Init(ctx context.Context) error {
	records, err := s.repo.LoadGroups(ctx)
	if err != nil {
		s.logger.Warn("Failed to restore records", "error", err)
		s.setStatus("Could not restore saved groups; starting empty.")
	} else if len(records) > 0 {
		s.scanMu.Lock()
		n := s.store.Restore(records)
		for _, rec := range s.store.List() {
			s.saved[rec.Key] = s.checksum.GenerateRecordHash(rec)
		}
		s.scanMu.Unlock()
		s.logger.Info("Restored records", "restored", n, "stored", len(records))
		s.setStatus(fmt.Sprintf("Restored %s groups.", humanize.Comma(int64(n))))
	}

	if s.Settings().AutoStart {
		if _, err := s.ScanNow(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ScanNow runs one pass over the current page snapshot and persists the
// records it touched.
func (s *Session) ScanNow(ctx context.Context) (scraper.Result, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	html, baseURL, err := s.page.Snapshot(ctx)
	if err != nil {
		s.setStatus("Scan failed: could not read page.")
		return scraper.Result{}, fmt.Errorf("failed to snapshot page: %w", err)
	}

	res, err := s.scanner.ScanHTML(html, baseURL, s.Settings().Filters())
	if err != nil {
		s.setStatus("Scan failed: could not parse page.")
		return res, err
	}

	s.persist(ctx, res.Touched)

	total := s.store.Len()
	s.mu.Lock()
	s.lastAdded = res.Added
	s.mu.Unlock()

	s.logger.Debug("Scan pass",
		"candidates", res.Candidates,
		"added", res.Added,
		"merged", res.Merged,
		"skipped", res.Skipped,
		"filtered", res.Filtered,
		"refused", res.Refused,
		"total", total,
	)

	if s.store.Full() {
		s.setStatus(fmt.Sprintf("Max items (%s) reached!", humanize.Comma(int64(s.store.Max()))))
	} else {
		s.setStatus(fmt.Sprintf("Scan complete. +%d new (%s total)", res.Added, humanize.Comma(int64(total))))
	}
	return res, nil
}

// persist writes touched records whose content changed since they were
// last written or restored. Failures are logged and never fail the pass.
func (s *Session) persist(ctx context.Context, keys []string) {
	seen := make(map[string]bool, len(keys))
	var created, updated, failed int
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true

		rec, ok := s.store.Get(key)
		if !ok {
			continue
		}
		if prev, ok := s.saved[key]; ok && s.checksum.VerifyRecordHash(prev, rec) {
			continue
		}
		row := &storage.GroupRow{Record: rec, CheckSum: s.checksum.GenerateRecordHash(rec)}
		isNew, isUpdated, err := s.repo.UpsertGroup(ctx, row)
		if err != nil {
			failed++
			s.logger.Warn("Failed to persist group", "key", key, "error", err)
			continue
		}
		s.saved[key] = row.CheckSum
		if isNew {
			created++
		}
		if isUpdated {
			updated++
		}
	}
	if created+updated+failed > 0 {
		s.logger.Debug("Persisted groups", "new", created, "updated", updated, "failed", failed)
	}
}

// ClearAll drops every record from memory and from the repository.
func (s *Session) ClearAll(ctx context.Context) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	s.store.Clear()
	clear(s.saved)
	if err := s.repo.ClearGroups(ctx); err != nil {
		s.logger.Warn("Failed to clear persisted groups", "error", err)
	}

	s.mu.Lock()
	s.lastAdded = 0
	s.mu.Unlock()
	s.setStatus("Data cleared.")
}

// SetFilter updates the filters used by later passes. threshold is a
// relative age such as "7 days"; empty disables the activity filter.
func (s *Session) SetFilter(minMembers int64, threshold string) error {
	threshold = strings.TrimSpace(threshold)
	if minMembers < 0 {
		return fmt.Errorf("min members must be >= 0")
	}
	if threshold != "" {
		if _, ok := extract.ParseAge(threshold); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidThreshold, threshold)
		}
	}

	s.mu.Lock()
	s.settings.MinMembers = minMembers
	s.settings.ActivityThreshold = threshold
	s.mu.Unlock()

	s.saveSettings()
	return nil
}

func (s *Session) SetExportFormat(format string) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.settings.ExportFormat = f
	s.mu.Unlock()

	s.saveSettings()
	return nil
}

func (s *Session) saveSettings() {
	if s.settingsPath == "" {
		return
	}
	if err := config.SaveSettings(s.settingsPath, s.Settings()); err != nil {
		s.logger.Warn("Failed to save settings", "path", s.settingsPath, "error", err)
		s.setStatus("Settings could not be saved.")
	}
}

// Export renders the records in the configured format, capped at maxItems.
func (s *Session) Export() (content string, filename string, err error) {
	settings := s.Settings()
	records := s.store.List()

	content, err = export.Render(records, settings.ExportFormat, export.Options{
		Limit: settings.MaxItems,
		Now:   s.now,
	})
	if err != nil {
		return "", "", err
	}

	n := len(records)
	if n > settings.MaxItems {
		n = settings.MaxItems
	}
	s.setStatus(fmt.Sprintf("%s ready (%s groups)", strings.ToUpper(string(settings.ExportFormat)), humanize.Comma(int64(n))))
	return content, export.Filename(settings.ExportFormat, s.now()), nil
}

// Records returns a copy of the stored records in insertion order.
func (s *Session) Records() []store.Record {
	return s.store.List()
}

func (s *Session) Count() int { return s.store.Len() }

// LastAdded is the number of records the latest pass inserted.
func (s *Session) LastAdded() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAdded
}

// Progress is the store fill ratio in percent, capped at 100. visible
// mirrors the showProgress setting.
func (s *Session) Progress() (percent float64, visible bool) {
	limit := s.store.Max()
	if limit > 0 {
		percent = float64(s.store.Len()) / float64(limit) * 100
	}
	if percent > 100 {
		percent = 100
	}
	return percent, s.Settings().ShowProgress
}

func (s *Session) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) Settings() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Session) setStatus(msg string) {
	s.mu.Lock()
	s.status = msg
	s.mu.Unlock()
	s.logger.Debug("Status", "message", msg)
}
