package handlers

import (
	"context"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/kozaktomas/punch-kiosk/internal/database"
	"github.com/kozaktomas/punch-kiosk/internal/kiosk"
	"github.com/kozaktomas/punch-kiosk/internal/metrics"
)

// KioskController is the part of the kiosk controller the web layer drives.
type KioskController interface {
	Status() kiosk.UIStatus
	Broadcaster() *kiosk.Broadcaster
	Punch(ctx context.Context) (database.Outcome, error)
}

// KioskHandler serves the kiosk page endpoints.
type KioskHandler struct {
	ctrl    KioskController
	hub     *kiosk.FrameHub
	metrics *metrics.Metrics
}

// NewKioskHandler creates a kiosk handler.
func NewKioskHandler(ctrl KioskController, hub *kiosk.FrameHub, m *metrics.Metrics) *KioskHandler {
	return &KioskHandler{ctrl: ctrl, hub: hub, metrics: m}
}

// Status returns the current UI projection.
func (h *KioskHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ctrl.Status())
}

// Events streams UI projection changes as server-sent events.
func (h *KioskHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	b := h.ctrl.Broadcaster()
	ch := b.AddListener()
	h.metrics.AddStatusListener(1)
	defer func() {
		b.RemoveListener(ch)
		h.metrics.AddStatusListener(-1)
	}()

	sendSSEEvent(w, flusher, "status", h.ctrl.Status())

	for {
		select {
		case <-r.Context().Done():
			return
		case status, ok := <-ch:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, "status", status)
		}
	}
}

type punchResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Color   string `json:"color"`
	Time    string `json:"time,omitempty"`
}

// Punch records attendance for the identity currently on screen.
func (h *KioskHandler) Punch(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.ctrl.Punch(r.Context())
	if errors.Is(err, kiosk.ErrNoCandidate) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.Printf("web: punch failed: %v", err)
		respondError(w, http.StatusInternalServerError, "punch failed")
		return
	}

	resp := punchResponse{
		Status:  string(outcome.Status),
		Message: outcome.Message,
		Color:   outcome.Color,
	}
	if !outcome.At.IsZero() {
		resp.Time = outcome.At.Format("15:04:05")
	}
	respondJSON(w, http.StatusOK, resp)
}

// VideoFeed streams annotated frames as multipart JPEG.
func (h *KioskHandler) VideoFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || h.hub == nil {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	frames := h.hub.Subscribe()
	defer h.hub.Unsubscribe(frames)

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary("frame"); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	header := textproto.MIMEHeader{"Content-Type": {"image/jpeg"}}
	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			part, err := mw.CreatePart(header)
			if err != nil {
				return
			}
			if _, err := part.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
