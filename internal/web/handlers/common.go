package handlers

import (
	"encoding/json"
	"net/http"
)

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthHandler reports liveness of the kiosk process.
type HealthHandler struct {
	kiosk   KioskController
	gallery GalleryService
}

// NewHealthHandler creates a health handler. Both arguments may be nil.
func NewHealthHandler(k KioskController, g GalleryService) *HealthHandler {
	return &HealthHandler{kiosk: k, gallery: g}
}

type healthResponse struct {
	Status         string `json:"status"`
	Phase          string `json:"phase,omitempty"`
	GalleryEntries *int   `json:"gallery_entries,omitempty"`
}

// Check handles the health check endpoint.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.kiosk != nil {
		resp.Phase = h.kiosk.Status().Phase
	}
	if h.gallery != nil {
		n := h.gallery.Snapshot().Len()
		resp.GalleryEntries = &n
	}
	respondJSON(w, http.StatusOK, resp)
}
