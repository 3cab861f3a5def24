package supervisor

import (
	"context"
	"sync"
)

// eventClass partitions loop events for coalescing. Consecutive queued
// events of the same telemetry class collapse to the newest; everything
// else is kept in order.
type eventClass int

const (
	classOther eventClass = iota
	classSessionTelemetry
	classProcessTelemetry
)

// loopEvent is one unit of work for an agent's serialized loop.
type loopEvent struct {
	class eventClass
	run   func()
}

// agentLoop serializes all event processing for one agent. Ordering is
// guaranteed within a loop, never across loops.
type agentLoop struct {
	agentID string

	mu      sync.Mutex
	queue   []loopEvent
	stopped bool

	wake chan struct{}
	done chan struct{}
}

func newAgentLoop(agentID string) *agentLoop {
	return &agentLoop{
		agentID: agentID,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// enqueue appends an event, coalescing consecutive telemetry of the same
// class (keep newest). A telemetry event is only replaced while it is still
// queued, so quota-relevant transitions derived from it are never skipped:
// the replacing snapshot carries the same live state.
func (l *agentLoop) enqueue(ev loopEvent) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	if ev.class != classOther && len(l.queue) > 0 {
		if last := &l.queue[len(l.queue)-1]; last.class == ev.class {
			*last = ev
			l.mu.Unlock()
			l.signal()
			return true
		}
	}
	l.queue = append(l.queue, ev)
	l.mu.Unlock()
	l.signal()
	return true
}

func (l *agentLoop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// run drains the queue until ctx is cancelled or stop is called. The queue
// is fully drained before a stop takes effect.
func (l *agentLoop) run(ctx context.Context) {
	defer close(l.done)
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			stopped := l.stopped
			l.mu.Unlock()
			if stopped {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-l.wake:
				continue
			}
		}
		ev := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		ev.run()
	}
}

// stop asks the loop to exit after draining its queue.
func (l *agentLoop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.signal()
}
