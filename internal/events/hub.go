package events

import "sync"

// Hub fans events out to SSE subscribers and, when configured, mirrors
// them onto the broker. Slow subscribers lose events rather than block
// the pipeline.
type Hub struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
	broker  *Publisher // nil when AMQP is disabled
}

func NewHub(broker *Publisher) *Hub {
	return &Hub{clients: make(map[chan string]struct{}), broker: broker}
}

func (h *Hub) Subscribe() chan string {
	ch := make(chan string, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan string) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// Emit builds a typed event and publishes it everywhere.
func (h *Hub) Emit(typ string, data any) {
	h.publish(typ, Make("", typ, data))
}

func (h *Hub) publish(typ, evt string) {
	if h.broker != nil {
		h.broker.Publish(typ, evt)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// drop if slow
		}
	}
}
