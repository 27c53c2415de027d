package gallery

import "time"

// SnapshotOptions controls how snapshots are built.
type SnapshotOptions struct {
	// ANNMinEntries builds an HNSW shortlist once a snapshot holds at least
	// this many entries. Zero keeps every match an exhaustive scan.
	ANNMinEntries int
}

// Snapshot is an immutable view of the gallery. Matches always run against a
// single snapshot, so a reload never exposes a half-updated gallery.
type Snapshot struct {
	entries  []Entry
	index    *annIndex
	loadedAt time.Time
}

// NewSnapshot copies entries into a new snapshot.
func NewSnapshot(entries []Entry, opts SnapshotOptions) *Snapshot {
	copied := make([]Entry, len(entries))
	copy(copied, entries)

	s := &Snapshot{
		entries:  copied,
		loadedAt: time.Now(),
	}
	if opts.ANNMinEntries > 0 && len(copied) >= opts.ANNMinEntries {
		s.index = buildANNIndex(copied)
	}
	return s
}

// Len returns the number of identities in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Entries returns the snapshot's entries. Callers must not modify them.
func (s *Snapshot) Entries() []Entry {
	if s == nil {
		return nil
	}
	return s.entries
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// HasIndex reports whether matches use the HNSW shortlist.
func (s *Snapshot) HasIndex() bool {
	return s != nil && s.index != nil
}
