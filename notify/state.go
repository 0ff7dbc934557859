package notify

import (
	"context"
	"sync"

	"github.com/yllada/wiresock-manager/common"
)

// StateNotifier turns supervisor state changes into notifications. It
// implements vpn.Handler.
type StateNotifier struct {
	sender Sender

	mu      sync.Mutex
	profile string
	last    common.Phase
}

// NewStateNotifier creates a StateNotifier sending through sender.
func NewStateNotifier(sender Sender) *StateNotifier {
	return &StateNotifier{sender: sender, last: common.PhaseDisconnected}
}

// OnStateChanged sends the notification for a transition.
func (s *StateNotifier) OnStateChanged(phase common.Phase, activeProfile string) {
	s.mu.Lock()
	prev := s.last
	profile := activeProfile
	if profile == "" {
		profile = s.profile
	}
	s.last = phase
	s.profile = activeProfile
	s.mu.Unlock()

	n, ok := notificationFor(prev, phase, profile)
	if !ok {
		return
	}
	if err := s.sender.Send(context.Background(), n); err != nil {
		common.LogWarn("Could not show notification: %v", err)
	}
}

// OnOutputLine ignores client output.
func (s *StateNotifier) OnOutputLine(string, string) {}

// notificationFor picks what to show for a transition. A Disconnected
// that follows Failed is not announced again.
func notificationFor(prev, phase common.Phase, profile string) (Notification, bool) {
	switch phase {
	case common.PhaseConnecting:
		return Notification{
			Title:   "Connecting VPN",
			Message: "Connecting to " + profile + "...",
			Type:    TypeInfo,
			Icon:    "network-vpn-acquiring",
		}, true
	case common.PhaseConnected:
		return Notification{
			Title:   "VPN Connected",
			Message: "Connected to " + profile,
			Type:    TypeSuccess,
			Icon:    "network-vpn",
		}, true
	case common.PhaseFailed:
		msg := "the connection was lost"
		if prev == common.PhaseConnecting {
			msg = "the client exited during startup"
		}
		return Notification{
			Title:   "Connection Error",
			Message: profile + ": " + msg,
			Type:    TypeError,
			Icon:    "network-vpn-error",
		}, true
	case common.PhaseDisconnected:
		if prev == common.PhaseFailed || prev == common.PhaseDisconnected {
			return Notification{}, false
		}
		return Notification{
			Title:   "VPN Disconnected",
			Message: "Disconnected from " + profile,
			Type:    TypeInfo,
			Icon:    "network-vpn-disconnected",
		}, true
	}
	return Notification{}, false
}
