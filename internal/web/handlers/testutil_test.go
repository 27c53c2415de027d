package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/kozaktomas/punch-kiosk/internal/database"
	"github.com/kozaktomas/punch-kiosk/internal/gallery"
	"github.com/kozaktomas/punch-kiosk/internal/kiosk"
)

// fakeKiosk stands in for the controller.
type fakeKiosk struct {
	mu          sync.Mutex
	status      kiosk.UIStatus
	broadcaster kiosk.Broadcaster
	outcome     database.Outcome
	punchErr    error
	punches     int
}

func newFakeKiosk() *fakeKiosk {
	return &fakeKiosk{status: kiosk.UIStatus{Phase: "scanning", NameColor: "#333333"}}
}

func (k *fakeKiosk) Status() kiosk.UIStatus {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.status
}

func (k *fakeKiosk) Broadcaster() *kiosk.Broadcaster {
	return &k.broadcaster
}

func (k *fakeKiosk) Punch(ctx context.Context) (database.Outcome, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.punches++
	return k.outcome, k.punchErr
}

// fakeGallery wraps a real store so snapshots behave as in production.
type fakeGallery struct {
	store   *gallery.Store
	entries []gallery.Entry
	err     error
	reloads int
}

func newFakeGallery(entries ...gallery.Entry) *fakeGallery {
	g := &fakeGallery{store: gallery.NewStore(gallery.SnapshotOptions{}), entries: entries}
	g.store.Replace(entries)
	return g
}

func (g *fakeGallery) Reload(ctx context.Context) (int, error) {
	g.reloads++
	if g.err != nil {
		return 0, g.err
	}
	return g.store.Replace(g.entries).Len(), nil
}

func (g *fakeGallery) Snapshot() *gallery.Snapshot {
	return g.store.Snapshot()
}

func testEntries(n int) []gallery.Entry {
	entries := make([]gallery.Entry, n)
	for i := range entries {
		entries[i] = gallery.Entry{ID: i + 1, Name: "Employee", Embedding: []float32{float32(i), 0}}
	}
	return entries
}

var errUpstream = errors.New("database unavailable")
