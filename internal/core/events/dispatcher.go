package events

import (
	"sync"

	"github.com/bankcore/transaction-service/internal/core/logger"
)

// Publisher is the boundary the transaction service pushes events through.
type Publisher interface {
	Publish(event Event)
}

// Handler consumes dispatched events. Handlers run on the dispatcher worker,
// off the request path; a panic inside a handler is recovered and logged.
type Handler interface {
	Handle(event Event)
}

// Dispatcher fans events out to registered handlers from a single worker
// goroutine. Publish never blocks the caller: when the buffer is full the
// event is dropped with a warning.
type Dispatcher struct {
	ch       chan Event
	handlers []Handler
	log      logger.Logger

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

func NewDispatcher(bufferSize int, log logger.Logger, handlers ...Handler) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Dispatcher{
		ch:       make(chan Event, bufferSize),
		handlers: handlers,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Register adds a handler. Must be called before Start.
func (d *Dispatcher) Register(h Handler) {
	d.handlers = append(d.handlers, h)
}

func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

func (d *Dispatcher) Publish(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- event:
	default:
		d.log.Warn("event buffer full, dropping event",
			logger.StringField("event", event.EventName()),
		)
	}
}

// Close stops accepting events, drains the buffer and waits for the worker
// to finish.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.ch)
		d.mu.Unlock()
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.ch {
		for _, h := range d.handlers {
			d.dispatch(h, event)
		}
	}
}

func (d *Dispatcher) dispatch(h Handler, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("event handler panicked",
				logger.StringField("event", event.EventName()),
				logger.AnyField("panic", rec),
			)
		}
	}()
	h.Handle(event)
}
