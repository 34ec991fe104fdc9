package events

import (
	"ms-bidding/internal/models"
)

// Sink receives domain events. The realtime hub and the kafka producer both
// implement it.
type Sink interface {
	Publish(event models.Event)
}

// Dispatcher fans one emit out to every sink, in order, on the caller's
// goroutine. Services publish inside the per-gig critical section, so sinks
// see events exactly in commit order.
type Dispatcher struct {
	sinks []Sink
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

func (d *Dispatcher) Publish(event models.Event) {
	for _, sink := range d.sinks {
		sink.Publish(event)
	}
}
