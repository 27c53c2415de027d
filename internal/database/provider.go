package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/punch-kiosk/internal/config"
)

// Opener connects to a backend described by the database config.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (Backend, error)

var (
	openers   = make(map[string]Opener)
	openersMu sync.RWMutex
)

// Register makes a backend available under the given driver name.
// This is called by the backend packages from init to avoid import cycles.
func Register(driver string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[driver] = open
}

// Drivers returns the registered driver names.
func Drivers() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()

	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Backend, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	openersMu.RLock()
	open, ok := openers[cfg.Driver]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown database driver %q (available: %v)", cfg.Driver, Drivers())
	}

	backend, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.Driver, err)
	}
	return backend, nil
}
