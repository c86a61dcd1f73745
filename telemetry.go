package overdrive

import (
	"github.com/google/uuid"
	"github.com/jd3nn1s/overdrive/protocol"
	log "github.com/sirupsen/logrus"
	"sync"
)

// TelemetryHub fans position and transition updates of one vehicle out to
// in-process subscribers. It is not exposed to application code; that gets
// events through an EventSink.
type TelemetryHub struct {
	bufferSize int

	mu          sync.Mutex
	subscribers map[string]chan protocol.Message
}

func newTelemetryHub(bufferSize int) *TelemetryHub {
	return &TelemetryHub{
		bufferSize:  bufferSize,
		subscribers: make(map[string]chan protocol.Message),
	}
}

// Subscribe returns an id for Unsubscribe and a channel receiving every
// telemetry message published from now on.
func (h *TelemetryHub) Subscribe() (string, <-chan protocol.Message) {
	id := uuid.NewString()
	ch := make(chan protocol.Message, h.bufferSize)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes the subscriber's channel. Unknown ids are ignored.
func (h *TelemetryHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

func (h *TelemetryHub) unsubscribeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}

func (h *TelemetryHub) publish(msg protocol.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
			// a slow subscriber must not hold up the notification stream
			log.WithField("subscriber", id).Debug("telemetry subscriber full, dropping message")
		}
	}
}

func (h *TelemetryHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
