package machine

import (
	"context"
	"sync"

	"github.com/frankieli/base_tombala/pkg/logger"
)

// dispatcher delivers events to handlers one at a time, in the order they
// were queued. Queueing never blocks, so it is safe under the machine lock.
type dispatcher struct {
	mu       sync.Mutex
	idle     *sync.Cond
	handlers []EventHandler
	queue    []GameEvent
	inflight int
	running  bool
}

func newDispatcher() *dispatcher {
	d := &dispatcher{}
	d.idle = sync.NewCond(&d.mu)
	return d
}

func (d *dispatcher) register(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, handler)
}

func (d *dispatcher) enqueue(events ...GameEvent) {
	if len(events) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.queue = append(d.queue, events...)
	d.inflight += len(events)
	if !d.running {
		d.running = true
		go d.drain()
	}
}

// drain runs until the queue is empty. A later enqueue starts a new drain.
func (d *dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.running = false
			d.mu.Unlock()
			return
		}
		event := d.queue[0]
		d.queue = d.queue[1:]
		handlers := make([]EventHandler, len(d.handlers))
		copy(handlers, d.handlers)
		d.mu.Unlock()

		for _, handler := range handlers {
			deliver(handler, event)
		}

		d.mu.Lock()
		d.inflight--
		if d.inflight == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}
}

func deliver(handler EventHandler, event GameEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(context.Background()).
				Interface("panic", r).
				Str("event", string(event.Type)).
				Int64("game_id", event.GameID).
				Msg("❌ [Tombala] event handler panicked")
		}
	}()
	handler(event)
}

// wait blocks until every queued event has been handled
func (d *dispatcher) wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.inflight > 0 {
		d.idle.Wait()
	}
}
