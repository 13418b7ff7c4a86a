package push

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is how many messages a subscriber may lag behind.
const DefaultBuffer = 64

// Subscription receives encoded updates until it is closed.
type Subscription struct {
	ID  uuid.UUID
	out chan []byte
	hub *Hub
}

// Messages yields JSON-encoded updates. It is closed with the subscription.
func (s *Subscription) Messages() <-chan []byte { return s.out }

// Close detaches the subscription from its hub.
func (s *Subscription) Close() { s.hub.remove(s) }

// Hub broadcasts updates to every subscriber without blocking the publisher.
type Hub struct {
	logger *logrus.Logger
	buffer int
	gauge  prometheus.Gauge

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewHub creates a hub. gauge, if non-nil, tracks the subscriber count.
func NewHub(logger *logrus.Logger, buffer int, gauge prometheus.Gauge) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{logger: logger, buffer: buffer, gauge: gauge, subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber whose first messages are the given dump.
// Callers hold whatever lock guards the state the dump was taken from, so no
// publish can slip in between.
func (h *Hub) Subscribe(dump []Update) *Subscription {
	s := &Subscription{ID: uuid.New(), out: make(chan []byte, h.buffer+len(dump)), hub: h}
	for _, u := range dump {
		if data, err := json.Marshal(u); err == nil {
			s.out <- data
		} else {
			h.logger.WithError(err).Error("failed to encode dump update")
		}
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.setGauge(n)
	return s
}

// Publish sends u to every subscriber. A subscriber whose buffer is full has
// missed an update and can no longer trust its view, so it is dropped and its
// channel closed; it resyncs by subscribing again for a fresh dump.
func (h *Hub) Publish(u Update) {
	data, err := json.Marshal(u)
	if err != nil {
		h.logger.WithError(err).Error("failed to encode update")
		return
	}
	h.mu.Lock()
	dropped := false
	for s := range h.subs {
		select {
		case s.out <- data:
		default:
			h.logger.Warnf("push subscriber %s fell behind, closing it", s.ID)
			delete(h.subs, s)
			close(s.out)
			dropped = true
		}
	}
	n := len(h.subs)
	h.mu.Unlock()
	if dropped {
		h.setGauge(n)
	}
}

// Len is the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, s)
	close(s.out)
	n := len(h.subs)
	h.mu.Unlock()
	h.setGauge(n)
}

func (h *Hub) setGauge(n int) {
	if h.gauge != nil {
		h.gauge.Set(float64(n))
	}
}
