// Package vpn provides VPN connection management functionality.
// This file contains the events the Supervisor publishes and the
// per-subscriber delivery queues.
package vpn

import (
	"context"
	"sync"
	"time"

	"github.com/yllada/wiresock-manager/common"
)

// EventKind distinguishes state changes from client output.
type EventKind int

const (
	// EventState reports a phase transition.
	EventState EventKind = iota
	// EventOutput carries one line of client output.
	EventOutput
)

// String returns a short name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Reason explains why an attempt ended. Set on Failed and Disconnected events.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonUserRequest    Reason = "disconnected"
	ReasonLaunchFailed   Reason = "launch_failed"
	ReasonUnexpectedExit Reason = "unexpected_exit"
	ReasonSpawnError     Reason = "spawn_error"
	ReasonCancelled      Reason = "cancelled"
)

// Event is a single notification from the Supervisor.
type Event struct {
	Kind  EventKind
	Phase common.Phase
	// Profile names the attempt the event belongs to. On Disconnected it is
	// the profile that was just released; the active profile is then empty.
	Profile   string
	AttemptID string
	Line      string
	Reason    Reason
	// ExitCode is set on Failed events, -1 otherwise.
	ExitCode int
	Time     time.Time
}

// ActiveProfile returns the profile that is active after this event.
func (e Event) ActiveProfile() string {
	if e.Kind == EventState && e.Phase == common.PhaseDisconnected {
		return ""
	}
	return e.Profile
}

// Handler receives supervisor notifications through Dispatch.
type Handler interface {
	OnStateChanged(phase common.Phase, activeProfile string)
	OnOutputLine(profile, text string)
}

// Dispatch drains events into h until the channel closes or ctx is done.
func Dispatch(ctx context.Context, events <-chan Event, h Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case EventState:
				h.OnStateChanged(ev.Phase, ev.ActiveProfile())
			case EventOutput:
				h.OnOutputLine(ev.Profile, ev.Line)
			}
		}
	}
}

// LogHandler writes supervisor events to the application log.
type LogHandler struct{}

func (LogHandler) OnStateChanged(phase common.Phase, activeProfile string) {
	if activeProfile == "" {
		common.LogInfo("Connection state: %s", phase)
		return
	}
	common.LogInfo("Connection state: %s (%s)", phase, activeProfile)
}

func (LogHandler) OnOutputLine(profile, text string) {
	common.LogDebug("wiresock[%s]: %s", profile, text)
}

// subscriber buffers events for one consumer. Publishing never blocks:
// the queue is unbounded for state events, and output lines beyond
// the backlog limit are dropped.
type subscriber struct {
	mu      sync.Mutex
	queue   []Event
	outputs int
	dropped int
	limit   int
	closing bool

	notify chan struct{}
	done   chan struct{}
	out    chan Event
	once   sync.Once
}

func newSubscriber(limit int) *subscriber {
	sub := &subscriber{
		limit:  limit,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Event),
	}
	go sub.run()
	return sub
}

func (sub *subscriber) push(ev Event) {
	sub.mu.Lock()
	if sub.closing {
		sub.mu.Unlock()
		return
	}
	if ev.Kind == EventOutput {
		if sub.outputs >= sub.limit {
			sub.dropped++
			sub.mu.Unlock()
			return
		}
		sub.outputs++
	}
	sub.queue = append(sub.queue, ev)
	sub.mu.Unlock()

	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

// close delivers what is already queued, then closes the channel.
func (sub *subscriber) close() {
	sub.mu.Lock()
	sub.closing = true
	sub.mu.Unlock()

	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

// cancel stops delivery immediately.
func (sub *subscriber) cancel() {
	sub.once.Do(func() { close(sub.done) })
}

func (sub *subscriber) run() {
	defer close(sub.out)
	for {
		sub.mu.Lock()
		if len(sub.queue) == 0 {
			closing := sub.closing
			sub.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-sub.notify:
				continue
			case <-sub.done:
				return
			}
		}
		ev := sub.queue[0]
		sub.queue[0] = Event{}
		sub.queue = sub.queue[1:]
		if ev.Kind == EventOutput {
			sub.outputs--
		}
		sub.mu.Unlock()

		select {
		case sub.out <- ev:
		case <-sub.done:
			return
		}
	}
}

// droppedLines returns how many output lines were discarded for this subscriber.
func (sub *subscriber) droppedLines() int {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.dropped
}
