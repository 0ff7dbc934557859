package vpn

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yllada/wiresock-manager/common"
)

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("channel not closed, got %d events", len(events))
		}
	}
}

func TestSubscriber_Order(t *testing.T) {
	sub := newSubscriber(10)
	sub.push(Event{Kind: EventState, Phase: connecting})
	sub.push(Event{Kind: EventOutput, Line: "one"})
	sub.push(Event{Kind: EventState, Phase: connected})
	sub.push(Event{Kind: EventOutput, Line: "two"})
	sub.close()

	events := drain(t, sub.out)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0].Phase != connecting || events[1].Line != "one" ||
		events[2].Phase != connected || events[3].Line != "two" {
		t.Errorf("events out of order: %+v", events)
	}
}

func TestSubscriber_BacklogDropsOutputOnly(t *testing.T) {
	sub := newSubscriber(3)

	sub.push(Event{Kind: EventState, Phase: connecting})
	for i := 0; i < 10; i++ {
		sub.push(Event{Kind: EventOutput, Line: fmt.Sprintf("line %d", i)})
	}
	sub.push(Event{Kind: EventState, Phase: connected})
	sub.push(Event{Kind: EventState, Phase: disconnected})

	if got := sub.droppedLines(); got != 7 {
		t.Errorf("droppedLines() = %d, want 7", got)
	}
	sub.close()

	var states, lines int
	for _, ev := range drain(t, sub.out) {
		switch ev.Kind {
		case EventState:
			states++
		case EventOutput:
			lines++
		}
	}
	if states != 3 {
		t.Errorf("delivered %d state events, want 3", states)
	}
	if lines != 3 {
		t.Errorf("delivered %d output lines, want 3", lines)
	}
}

func TestSubscriber_CancelStopsDelivery(t *testing.T) {
	sub := newSubscriber(10)
	sub.push(Event{Kind: EventState, Phase: connecting})
	sub.cancel()

	// Cancel discards what is queued; the channel must still close.
	drain(t, sub.out)

	// Pushing after cancel must not block.
	sub.push(Event{Kind: EventState, Phase: connected})
}

func TestSubscriber_PushAfterClose(t *testing.T) {
	sub := newSubscriber(10)
	sub.close()
	sub.push(Event{Kind: EventState, Phase: connecting})

	if events := drain(t, sub.out); len(events) != 0 {
		t.Errorf("got %d events after close, want 0", len(events))
	}
}

func TestEvent_ActiveProfile(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Kind: EventState, Phase: connecting, Profile: "Office"}, "Office"},
		{Event{Kind: EventState, Phase: connected, Profile: "Office"}, "Office"},
		{Event{Kind: EventState, Phase: failed, Profile: "Office"}, "Office"},
		{Event{Kind: EventState, Phase: disconnected, Profile: "Office"}, ""},
		{Event{Kind: EventOutput, Phase: disconnected, Profile: "Office"}, "Office"},
	}

	for _, tt := range tests {
		if got := tt.ev.ActiveProfile(); got != tt.want {
			t.Errorf("%v/%v ActiveProfile() = %q, want %q", tt.ev.Kind, tt.ev.Phase, got, tt.want)
		}
	}
}

func TestEventKind_String(t *testing.T) {
	if EventState.String() != "state" || EventOutput.String() != "output" {
		t.Error("unexpected EventKind names")
	}
	if EventKind(9).String() != "unknown" {
		t.Error("out of range EventKind should be unknown")
	}
}

type recordingHandler struct {
	mu     sync.Mutex
	states []string
	lines  []string
}

func (h *recordingHandler) OnStateChanged(phase common.Phase, activeProfile string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, fmt.Sprintf("%s:%s", phase, activeProfile))
}

func (h *recordingHandler) OnOutputLine(profile, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, profile+":"+text)
}

func TestDispatch(t *testing.T) {
	ch := make(chan Event, 4)
	ch <- Event{Kind: EventState, Phase: connecting, Profile: "Office"}
	ch <- Event{Kind: EventOutput, Profile: "Office", Line: "hello"}
	ch <- Event{Kind: EventState, Phase: disconnected, Profile: "Office"}
	close(ch)

	h := &recordingHandler{}
	Dispatch(context.Background(), ch, h)

	wantStates := []string{"Connecting...:Office", "Disconnected:"}
	if fmt.Sprint(h.states) != fmt.Sprint(wantStates) {
		t.Errorf("states = %v, want %v", h.states, wantStates)
	}
	if len(h.lines) != 1 || h.lines[0] != "Office:hello" {
		t.Errorf("lines = %v", h.lines)
	}
}

func TestDispatch_ContextCancel(t *testing.T) {
	ch := make(chan Event)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Dispatch(ctx, ch, &recordingHandler{})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch did not return after cancel")
	}
}

func TestSupervisor_SlowSubscriberKeepsStates(t *testing.T) {
	lines := make(chan struct{})
	sp := &fakeSpawner{onSpawn: func(p *fakeProcess) {
		for i := 0; i < 50; i++ {
			p.print(fmt.Sprintf("line %d", i))
		}
		close(lines)
	}}
	opts := testOptions(sp)
	opts.Backlog = 5
	s := NewSupervisor(testResolver(), opts)

	// Nobody reads this subscription until the end.
	ch, _ := s.Subscribe()

	if err := s.Connect(context.Background(), "Office"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	<-lines
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	var states []common.Phase
	var outputs int
	for _, ev := range drain(t, ch) {
		if ev.Kind == EventState {
			states = append(states, ev.Phase)
		} else {
			outputs++
		}
	}

	if want := []common.Phase{connecting, connected, disconnected}; fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", states, want)
	}
	if outputs > 50 {
		t.Errorf("delivered %d lines, more than were printed", outputs)
	}
}
