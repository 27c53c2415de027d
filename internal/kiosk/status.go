package kiosk

import (
	"sync"

	"github.com/kozaktomas/punch-kiosk/internal/constants"
)

// UIStatus is the projection of the session shown by the kiosk page.
type UIStatus struct {
	Name        string `json:"name"`
	Subtext     string `json:"subtext"`
	NameColor   string `json:"name_color"`
	ShowButton  bool   `json:"show_button"`
	ButtonText  string `json:"button_text"`
	ButtonColor string `json:"button_color"`
	Phase       string `json:"phase"`
}

func defaultStatus() UIStatus {
	return UIStatus{
		NameColor:   constants.ColorDefaultName,
		ButtonColor: constants.ColorDefaultButton,
		Phase:       PhaseScanning.String(),
	}
}

// Broadcaster fans status updates out to listeners. Slow listeners miss
// updates rather than block the controller.
type Broadcaster struct {
	listeners []chan UIStatus
	mu        sync.RWMutex
}

// AddListener adds a status listener.
func (b *Broadcaster) AddListener() chan UIStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan UIStatus, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes a status listener and closes its channel.
func (b *Broadcaster) RemoveListener(ch chan UIStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Listeners returns the number of connected listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Send delivers status to every listener.
func (b *Broadcaster) Send(status UIStatus) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- status:
		default:
			// Listener buffer full, skip.
		}
	}
}
