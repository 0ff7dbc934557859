// Package vpn provides VPN connection management functionality.
// This file contains the Supervisor, which owns the single WireSock client
// process and the connection state machine.
package vpn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yllada/wiresock-manager/common"
	"github.com/yllada/wiresock-manager/procutil"
)

// Resolver is the read-only view of the profile store the Supervisor needs.
type Resolver interface {
	// Resolve returns the config file path for a profile name.
	Resolve(name string) (string, error)
	// BinaryPath returns the configured client binary.
	BinaryPath() string
}

// Options tunes a Supervisor. Zero values select the defaults from common.
type Options struct {
	GraceInterval      time.Duration
	TerminationTimeout time.Duration
	KillTimeout        time.Duration
	DrainTimeout       time.Duration
	// Backlog is the per-subscriber output line limit.
	Backlog int
	Spawner Spawner
}

func (o Options) withDefaults() Options {
	if o.GraceInterval <= 0 {
		o.GraceInterval = common.GraceInterval
	}
	if o.TerminationTimeout <= 0 {
		o.TerminationTimeout = common.TerminationTimeout
	}
	if o.KillTimeout <= 0 {
		o.KillTimeout = common.KillTimeout
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = common.OutputDrainTimeout
	}
	if o.Backlog <= 0 {
		o.Backlog = common.SubscriberBacklog
	}
	if o.Spawner == nil {
		o.Spawner = ExecSpawner{}
	}
	return o
}

// Status is a point-in-time view of the supervisor state.
type Status struct {
	Phase      common.Phase
	Profile    string
	PID        int
	AttemptID  string
	StartedAt  time.Time
	LastOutput time.Time
}

// Uptime returns how long the current attempt has been running.
func (s Status) Uptime() time.Duration {
	if s.Phase != common.PhaseConnected || s.StartedAt.IsZero() {
		return 0
	}
	return time.Since(s.StartedAt)
}

// attempt is one launch of the client. Fields other than the channels are
// guarded by Supervisor.mu.
type attempt struct {
	id         string
	profile    string
	proc       Process
	startedAt  time.Time
	lastOutput time.Time
	tail       *common.TailBuffer
	exitCode   int
	stopping   bool

	exited   chan struct{} // closed once the process is gone and output drained
	stopReq  chan struct{} // closed when a stop is requested
	stopDone chan struct{} // closed when the attempt is fully finished
	doneOnce sync.Once
}

func (a *attempt) finish() {
	a.doneOnce.Do(func() { close(a.stopDone) })
}

// Supervisor runs at most one WireSock client at a time and publishes
// every state transition, in order, to its subscribers.
//
// All state lives behind mu; Connect calls are additionally serialized by
// connectMu so only one launch is ever in flight. Disconnect never takes
// connectMu, so it can interrupt a launch that is waiting out the grace
// interval.
type Supervisor struct {
	resolver Resolver
	opts     Options

	connectMu sync.Mutex

	mu      sync.Mutex
	phase   common.Phase
	profile string
	current *attempt
	subs    map[int]*subscriber
	nextSub int
	closed  bool
}

// NewSupervisor creates a Supervisor that resolves profiles through resolver.
func NewSupervisor(resolver Resolver, opts Options) *Supervisor {
	return &Supervisor{
		resolver: resolver,
		opts:     opts.withDefaults(),
		phase:    common.PhaseDisconnected,
		subs:     make(map[int]*subscriber),
	}
}

var errSupervisorClosed = fmt.Errorf("supervisor closed: %w", common.ErrCancelled)

// Connect starts the client for profile name and blocks for the grace
// interval to find out whether it stays up.
//
// A connection to a different profile is disconnected first. Connecting to
// the profile that is already active returns ErrAlreadyConnected. If the
// client exits within the grace interval a *common.LaunchError is returned.
// If Disconnect is called while the launch is pending, Connect returns
// ErrCancelled once the state is back to Disconnected.
func (s *Supervisor) Connect(ctx context.Context, name string) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return errSupervisorClosed
		}
		cur := s.current
		if cur == nil {
			s.mu.Unlock()
			break
		}
		if cur.stopping {
			s.mu.Unlock()
			<-cur.stopDone
			continue
		}
		if cur.profile == name {
			s.mu.Unlock()
			return fmt.Errorf("%w: %q", common.ErrAlreadyConnected, name)
		}
		s.mu.Unlock()

		common.LogInfo("Disconnecting %q before connecting %q", cur.profile, name)
		if err := s.Disconnect(); err != nil && !errors.Is(err, common.ErrNotConnected) {
			return err
		}
	}

	configPath, err := s.resolver.Resolve(name)
	if err != nil {
		return err
	}

	binary := s.resolver.BinaryPath()
	resolved, err := s.opts.Spawner.LookPath(binary)
	if err != nil {
		return classifySpawnError(binary, err)
	}

	att := &attempt{
		id:       uuid.NewString(),
		profile:  name,
		tail:     common.NewTailBuffer(common.OutputTailLines),
		exitCode: -1,
		exited:   make(chan struct{}),
		stopReq:  make(chan struct{}),
		stopDone: make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSupervisorClosed
	}
	s.current = att
	s.setPhase(att, common.PhaseConnecting, ReasonNone)
	s.mu.Unlock()

	common.LogInfo("Starting %s for profile %q (config %s)", resolved, name, configPath)
	proc, err := s.opts.Spawner.Spawn(resolved, clientArgs(configPath))
	if err != nil {
		err = classifySpawnError(resolved, err)
		common.LogError("Could not start client for %q: %v", name, err)
		s.mu.Lock()
		s.release(att, ReasonSpawnError)
		s.mu.Unlock()
		att.finish()
		return err
	}

	s.mu.Lock()
	att.proc = proc
	att.startedAt = time.Now()
	stopping := att.stopping
	s.mu.Unlock()

	common.LogInfo("Client started with PID %d", proc.PID())
	common.SafeGo("monitor "+name, func() { s.monitor(att) })

	if stopping {
		// Disconnect arrived before the process existed; it is waiting on us.
		s.teardown(att, ReasonCancelled)
		return fmt.Errorf("connect %q: %w", name, common.ErrCancelled)
	}

	return s.awaitGrace(ctx, att)
}

// awaitGrace waits out the grace interval and resolves the attempt to
// Connected or Disconnected.
func (s *Supervisor) awaitGrace(ctx context.Context, att *attempt) error {
	timer := time.NewTimer(s.opts.GraceInterval)
	defer timer.Stop()

	var ctxErr error
	select {
	case <-att.exited:
	case <-timer.C:
	case <-att.stopReq:
	case <-ctx.Done():
		ctxErr = ctx.Err()
	}

	s.mu.Lock()
	if att.stopping {
		s.mu.Unlock()
		<-att.stopDone
		return fmt.Errorf("connect %q: %w", att.profile, common.ErrCancelled)
	}

	select {
	case <-att.exited:
		lines := att.tail.Lines()
		code := att.exitCode
		s.publishFailed(att, ReasonLaunchFailed)
		s.release(att, ReasonLaunchFailed)
		s.mu.Unlock()
		att.finish()
		common.LogError("Client for %q exited during startup with code %d", att.profile, code)
		return &common.LaunchError{Profile: att.profile, ExitCode: code, Output: lines}
	default:
	}

	if ctxErr != nil {
		att.stopping = true
		close(att.stopReq)
		s.mu.Unlock()
		s.teardown(att, ReasonCancelled)
		return ctxErr
	}

	s.setPhase(att, common.PhaseConnected, ReasonNone)
	s.mu.Unlock()
	common.LogInfo("Connected to %q", att.profile)
	return nil
}

// Disconnect stops the running client. It returns ErrNotConnected, and
// emits nothing, when there is no connection. Otherwise it always ends in
// Disconnected within the termination and kill timeouts.
func (s *Supervisor) Disconnect() error {
	s.mu.Lock()
	att := s.current
	if att == nil {
		s.mu.Unlock()
		return common.ErrNotConnected
	}
	if att.stopping {
		s.mu.Unlock()
		<-att.stopDone
		return nil
	}
	att.stopping = true
	close(att.stopReq)
	proc := att.proc
	s.mu.Unlock()

	if proc == nil {
		// Connect is still spawning and will tear the attempt down.
		<-att.stopDone
		return nil
	}

	s.teardown(att, ReasonUserRequest)
	return nil
}

// teardown stops the attempt's process and moves to Disconnected.
// The caller must have set att.stopping.
func (s *Supervisor) teardown(att *attempt, reason Reason) {
	common.LogInfo("Stopping client for %q", att.profile)

	err := att.proc.Terminate()
	graceful := err == nil
	if err != nil && !errors.Is(err, procutil.ErrGracefulUnsupported) {
		common.LogWarn("Terminate failed for %q: %v", att.profile, err)
	}

	exited := false
	if graceful {
		select {
		case <-att.exited:
			exited = true
		case <-time.After(s.opts.TerminationTimeout):
			common.LogWarn("Client for %q did not stop within %v, killing it", att.profile, s.opts.TerminationTimeout)
		}
	}

	if !exited {
		if err := att.proc.Kill(); err != nil {
			common.LogWarn("Kill failed for %q: %v", att.profile, err)
		}
		select {
		case <-att.exited:
		case <-time.After(s.opts.KillTimeout):
			common.LogError("Client for %q still running %v after kill", att.profile, s.opts.KillTimeout)
		}
	}

	s.mu.Lock()
	s.release(att, reason)
	s.mu.Unlock()
	att.finish()
	common.LogInfo("Disconnected from %q", att.profile)
}

// monitor forwards the client's output and records its exit. An exit
// nobody asked for while Connected is reported as Failed then Disconnected.
func (s *Supervisor) monitor(att *attempt) {
	readerDone := make(chan struct{})
	common.SafeGo("output "+att.profile, func() {
		defer close(readerDone)
		s.readOutput(att)
	})

	code, err := att.proc.Wait()
	if err != nil {
		common.LogDebug("Client for %q exited: %v", att.profile, err)
	}

	select {
	case <-readerDone:
	case <-time.After(s.opts.DrainTimeout):
		// A grandchild may still hold the pipe open.
		att.proc.Output().Close()
		<-readerDone
	}
	att.proc.Output().Close()

	s.mu.Lock()
	att.exitCode = code
	close(att.exited)
	unsolicited := s.current == att && !att.stopping && s.phase == common.PhaseConnected
	if unsolicited {
		s.publishFailed(att, ReasonUnexpectedExit)
		s.release(att, ReasonUnexpectedExit)
	}
	s.mu.Unlock()

	if unsolicited {
		att.finish()
		common.LogWarn("Client for %q exited unexpectedly with code %d", att.profile, code)
	}
}

// readOutput forwards client output line by line until the pipe closes.
// Lines longer than OutputLineLimit are cut, and the rest of such a line
// is read and discarded so the client never blocks on a full pipe.
func (s *Supervisor) readOutput(att *attempt) {
	r := bufio.NewReaderSize(att.proc.Output(), 64*1024)
	var buf []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if len(buf) > 0 {
				s.emitLine(att, buf)
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
				common.LogWarn("Output reader for %q stopped: %v", att.profile, err)
			}
			return
		}
		if room := common.OutputLineLimit + 1 - len(buf); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			buf = append(buf, chunk...)
		}
		if isPrefix {
			continue
		}
		s.emitLine(att, buf)
		buf = buf[:0]
	}
}

func (s *Supervisor) emitLine(att *attempt, raw []byte) {
	line := strings.TrimRight(string(raw), "\r")
	if len(line) > common.OutputLineLimit {
		line = common.Truncate(line, common.OutputLineLimit)
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	att.tail.Add(line)
	att.lastOutput = now
	s.publish(Event{
		Kind:      EventOutput,
		Phase:     s.phase,
		Profile:   att.profile,
		AttemptID: att.id,
		Line:      line,
		ExitCode:  -1,
		Time:      now,
	})
}

// setPhase records a transition and publishes it. Caller must hold s.mu.
func (s *Supervisor) setPhase(att *attempt, phase common.Phase, reason Reason) {
	s.phase = phase
	if phase == common.PhaseDisconnected {
		s.profile = ""
	} else {
		s.profile = att.profile
	}
	s.publish(Event{
		Kind:      EventState,
		Phase:     phase,
		Profile:   att.profile,
		AttemptID: att.id,
		Reason:    reason,
		ExitCode:  -1,
		Time:      time.Now(),
	})
}

// publishFailed emits the transient Failed signal. Caller must hold s.mu.
func (s *Supervisor) publishFailed(att *attempt, reason Reason) {
	s.publish(Event{
		Kind:      EventState,
		Phase:     common.PhaseFailed,
		Profile:   att.profile,
		AttemptID: att.id,
		Reason:    reason,
		ExitCode:  att.exitCode,
		Time:      time.Now(),
	})
}

// release drops the attempt and moves to Disconnected if it is still the
// current one. Caller must hold s.mu.
func (s *Supervisor) release(att *attempt, reason Reason) {
	if s.current != att {
		return
	}
	s.current = nil
	s.setPhase(att, common.PhaseDisconnected, reason)
}

// publish hands ev to every subscriber. Caller must hold s.mu.
func (s *Supervisor) publish(ev Event) {
	for _, sub := range s.subs {
		sub.push(ev)
	}
}

// Subscribe returns a channel receiving every event from now on, in
// order, and a function that cancels the subscription.
func (s *Supervisor) Subscribe() (<-chan Event, func()) {
	sub := newSubscriber(s.opts.Backlog)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.close()
		return sub.out, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.mu.Unlock()

	return sub.out, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.cancel()
	}
}

// Status returns the current state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Phase: s.phase, Profile: s.profile}
	if att := s.current; att != nil {
		st.AttemptID = att.id
		st.StartedAt = att.startedAt
		st.LastOutput = att.lastOutput
		if att.proc != nil {
			st.PID = att.proc.PID()
		}
	}
	return st
}

// Phase returns the current phase.
func (s *Supervisor) Phase() common.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Close disconnects any running client and closes all subscriptions after
// delivering the events already queued. Connect fails afterwards.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.Disconnect(); err != nil && !errors.Is(err, common.ErrNotConnected) {
		return err
	}

	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[int]*subscriber)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	return nil
}
