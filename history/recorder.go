package history

import (
	"context"
	"time"

	"github.com/yllada/wiresock-manager/common"
	"github.com/yllada/wiresock-manager/vpn"
)

// Recorder writes supervisor events into a Store.
type Recorder struct {
	store *Store
	keep  int

	// per attempt, cleared when it ends
	lastLine map[string]string
	exitCode map[string]int
}

// NewRecorder creates a Recorder. When keep is positive, older attempts
// are pruned each time one ends.
func NewRecorder(store *Store, keep int) *Recorder {
	return &Recorder{
		store:    store,
		keep:     keep,
		lastLine: make(map[string]string),
		exitCode: make(map[string]int),
	}
}

// Run records events until the channel closes or ctx is done. Store
// failures are logged; they never stop the recorder.
func (r *Recorder) Run(ctx context.Context, events <-chan vpn.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := r.Record(ctx, ev); err != nil {
				common.LogWarn("History: %v", err)
			}
		}
	}
}

// Record applies a single event.
func (r *Recorder) Record(ctx context.Context, ev vpn.Event) error {
	if ev.AttemptID == "" {
		return nil
	}
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}

	if ev.Kind == vpn.EventOutput {
		r.lastLine[ev.AttemptID] = common.Truncate(ev.Line, 500)
		return nil
	}

	switch ev.Phase {
	case common.PhaseConnecting:
		return r.store.Start(ctx, ev.AttemptID, ev.Profile, at)

	case common.PhaseConnected:
		return r.store.MarkConnected(ctx, ev.AttemptID, at)

	case common.PhaseFailed:
		r.exitCode[ev.AttemptID] = ev.ExitCode
		return nil

	case common.PhaseDisconnected:
		code, ok := r.exitCode[ev.AttemptID]
		if !ok {
			code = ev.ExitCode
		}
		line := r.lastLine[ev.AttemptID]
		delete(r.exitCode, ev.AttemptID)
		delete(r.lastLine, ev.AttemptID)

		if err := r.store.Finish(ctx, ev.AttemptID, OutcomeFor(ev.Reason), code, line, at); err != nil {
			return err
		}
		if r.keep > 0 {
			if _, err := r.store.Prune(ctx, r.keep); err != nil {
				return err
			}
		}
	}
	return nil
}

// OutcomeFor maps a Disconnected event's reason to an Outcome.
func OutcomeFor(reason vpn.Reason) Outcome {
	switch reason {
	case vpn.ReasonLaunchFailed:
		return OutcomeLaunchFailed
	case vpn.ReasonSpawnError:
		return OutcomeSpawnError
	case vpn.ReasonUnexpectedExit:
		return OutcomeUnexpectedExit
	case vpn.ReasonCancelled:
		return OutcomeCancelled
	default:
		return OutcomeDisconnected
	}
}
