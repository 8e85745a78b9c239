package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"groups-exporter/internal/observability"
	"groups-exporter/internal/store"
)

// GroupRow is a record prepared for persistence.
type GroupRow struct {
	store.Record
	// CheckSum is the SHA256 of the record content; unchanged rows are not
	// rewritten.
	CheckSum string
}

// Repository persists group records between sessions.
type Repository interface {
	// UpsertGroup saves or updates a row, returns (isNew, isUpdated, error).
	// Both flags are false when the stored checksum already matches.
	UpsertGroup(ctx context.Context, row *GroupRow) (isNew bool, isUpdated bool, err error)

	// LoadGroups returns stored records in insertion order.
	LoadGroups(ctx context.Context) ([]store.Record, error)

	CountGroups(ctx context.Context) (int, error)

	ClearGroups(ctx context.Context) error

	Close() error
}

// Options configure a repository opened through Open.
type Options struct {
	DSN            string
	CommandTimeout time.Duration
	Logger         *observability.Logger
}

// OpenFunc constructs a repository for a registered driver.
type OpenFunc func(opts Options) (Repository, error)

var ErrUnknownDriver = errors.New("unknown storage driver")

var (
	driversMu sync.RWMutex
	drivers   = map[string]OpenFunc{}
)

// Register makes a driver available to Open. Driver packages call it from
// init.
func Register(name string, open OpenFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if open == nil {
		panic("storage: Register open func is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("storage: Register called twice for driver " + name)
	}
	drivers[name] = open
}

// Drivers lists the registered driver names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns the repository for driver. An empty driver gives an
// in-memory repository that lives as long as the process.
func Open(driver string, opts Options) (Repository, error) {
	if opts.Logger == nil {
		opts.Logger = observability.NewNop()
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Second
	}
	if driver == "" {
		return NewMemory(), nil
	}

	driversMu.RLock()
	open, ok := drivers[driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	return open(opts)
}
