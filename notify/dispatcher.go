/*
Package notify delivers lifecycle events to interested sinks.

PURPOSE:
  Decouples "transition committed" from "people informed". The
  lifecycle service publishes an event after each commit; a background
  worker fans it out to the configured sinks. Delivery is best-effort:
  a slow or failing sink never blocks or rolls back the engine.

BACKPRESSURE:
  Publish never blocks. When the buffer is full the event is dropped
  and counted; a points approval email arriving late beats an approval
  API call hanging on a mail server.
*/
package notify

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/vantage/points-engine/rewards"
)

// Sink receives events. Implementations wrap a concrete transport
// (mail relay, chat webhook, in-app inbox).
type Sink interface {
	Deliver(e rewards.Event) error
}

// LogSink writes events to the process log. The default sink in dev.
type LogSink struct {
	Logger *log.Logger
}

func (s *LogSink) Deliver(e rewards.Event) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("notify: %s user=%s payload=%v", e.Type, e.TargetUserID, e.Payload)
	return nil
}

// Dispatcher implements rewards.Notifier over a buffered channel and a
// single delivery worker.
type Dispatcher struct {
	sinks   []Sink
	events  chan rewards.Event
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the delivery worker. bufferSize bounds how many
// undelivered events queue before Publish starts dropping.
func NewDispatcher(bufferSize int, sinks ...Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	d := &Dispatcher{
		sinks:  sinks,
		events: make(chan rewards.Event, bufferSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues an event without blocking. A full buffer or a
// closed dispatcher drops.
func (d *Dispatcher) Publish(e rewards.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.events <- e:
	default:
		d.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded on a full buffer.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting events, drains the buffer, and waits for the
// worker to finish. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.events {
		for _, sink := range d.sinks {
			if err := sink.Deliver(e); err != nil {
				log.Printf("notify: deliver %s failed: %v", e.Type, err)
			}
		}
	}
}
