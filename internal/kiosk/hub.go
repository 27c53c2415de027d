package kiosk

import "sync"

// FrameHub hands the latest encoded frame to video viewers.
type FrameHub struct {
	mu      sync.RWMutex
	viewers map[chan []byte]struct{}
}

// NewFrameHub creates an empty hub.
func NewFrameHub() *FrameHub {
	return &FrameHub{viewers: make(map[chan []byte]struct{})}
}

// Subscribe registers a viewer. The channel only ever holds the newest frame.
func (h *FrameHub) Subscribe() chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan []byte, 1)
	h.viewers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a viewer and closes its channel.
func (h *FrameHub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.viewers[ch]; ok {
		delete(h.viewers, ch)
		close(ch)
	}
}

// Viewers returns the number of subscribed viewers.
func (h *FrameHub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Publish replaces any undelivered frame of every viewer with frame.
func (h *FrameHub) Publish(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.viewers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}
