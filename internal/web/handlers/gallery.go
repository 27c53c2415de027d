package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/punch-kiosk/internal/gallery"
)

// GalleryService exposes the in-memory gallery.
type GalleryService interface {
	Reload(ctx context.Context) (int, error)
	Snapshot() *gallery.Snapshot
}

// GalleryHandler serves gallery inspection and reload.
type GalleryHandler struct {
	gallery GalleryService
}

// NewGalleryHandler creates a gallery handler.
func NewGalleryHandler(g GalleryService) *GalleryHandler {
	return &GalleryHandler{gallery: g}
}

type galleryResponse struct {
	Entries  int    `json:"entries"`
	Indexed  bool   `json:"indexed"`
	LoadedAt string `json:"loaded_at,omitempty"`
}

func snapshotResponse(snap *gallery.Snapshot) galleryResponse {
	resp := galleryResponse{Entries: snap.Len(), Indexed: snap.HasIndex()}
	if at := snap.LoadedAt(); !at.IsZero() {
		resp.LoadedAt = at.Format(time.RFC3339)
	}
	return resp
}

// Get describes the current gallery snapshot.
func (h *GalleryHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, snapshotResponse(h.gallery.Snapshot()))
}

// Reload refetches the gallery. The previous snapshot stays active on failure.
func (h *GalleryHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if _, err := h.gallery.Reload(r.Context()); err != nil {
		log.Printf("web: gallery reload failed: %v", err)
		respondError(w, http.StatusBadGateway, "gallery reload failed")
		return
	}
	respondJSON(w, http.StatusOK, snapshotResponse(h.gallery.Snapshot()))
}
