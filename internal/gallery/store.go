package gallery

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// Source loads the full gallery in bulk.
type Source interface {
	FetchGallery(ctx context.Context) ([]Entry, error)
}

// Store holds the current snapshot behind a single swappable reference.
type Store struct {
	current atomic.Pointer[Snapshot]
	opts    SnapshotOptions
}

// NewStore creates a store holding an empty snapshot.
func NewStore(opts SnapshotOptions) *Store {
	s := &Store{opts: opts}
	s.current.Store(NewSnapshot(nil, opts))
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Replace builds a snapshot from entries and swaps it in.
func (s *Store) Replace(entries []Entry) *Snapshot {
	snap := NewSnapshot(entries, s.opts)
	s.current.Store(snap)
	return snap
}

// Reload fetches the gallery from src and swaps it in. On error the previous
// snapshot stays in place.
func (s *Store) Reload(ctx context.Context, src Source) (int, error) {
	entries, err := src.FetchGallery(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching gallery: %w", err)
	}
	snap := s.Replace(entries)
	return snap.Len(), nil
}

// RunRefresher reloads the gallery every interval until ctx is cancelled.
// onReload, if set, sees the outcome of every attempt.
func (s *Store) RunRefresher(ctx context.Context, src Source, interval time.Duration, onReload func(int, error)) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Reload(ctx, src)
			if err != nil {
				log.Printf("gallery: refresh failed, keeping %d identities: %v", s.Snapshot().Len(), err)
			} else {
				log.Printf("gallery: refreshed, %d identities loaded", n)
			}
			if onReload != nil {
				onReload(n, err)
			}
		}
	}
}
