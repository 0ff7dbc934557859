// Package notify delivers desktop notifications for connection changes.
//
// On Linux and BSD desktops notifications go to the session bus through
// org.freedesktop.Notifications. Where no session bus is available the
// LogNotifier writes them to the application log instead.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/yllada/wiresock-manager/common"
)

// Type represents the kind of notification.
type Type int

const (
	TypeInfo Type = iota
	TypeSuccess
	TypeWarning
	TypeError
)

// Notification is a single desktop notification.
type Notification struct {
	Title   string
	Message string
	Type    Type
	Icon    string
}

// icon returns the notification icon, falling back on the type.
func (n Notification) icon() string {
	if n.Icon != "" {
		return n.Icon
	}
	switch n.Type {
	case TypeWarning:
		return "dialog-warning"
	case TypeError:
		return "dialog-error"
	default:
		return "network-vpn"
	}
}

// urgency maps the type to the freedesktop urgency levels (0 low, 1 normal, 2 critical).
func (n Notification) urgency() byte {
	switch n.Type {
	case TypeError:
		return 2
	case TypeWarning:
		return 1
	default:
		return 0
	}
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

const (
	busName       = "org.freedesktop.Notifications"
	busPath       = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod  = busName + ".Notify"
	expireTimeout = 5 * time.Second
	callTimeout   = 2 * time.Second
)

// DBusNotifier sends notifications over the session bus. Successive
// notifications replace each other so only the latest state is shown.
type DBusNotifier struct {
	conn    *dbus.Conn
	appName string

	mu     sync.Mutex
	lastID uint32
}

// NewDBusNotifier connects to the session bus.
func NewDBusNotifier(appName string) (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &DBusNotifier{conn: conn, appName: appName}, nil
}

// Send shows n.
func (d *DBusNotifier) Send(ctx context.Context, n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(n.urgency()),
	}

	obj := d.conn.Object(busName, busPath)
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		d.appName,
		d.lastID,
		n.icon(),
		n.Title,
		n.Message,
		[]string{},
		hints,
		int32(expireTimeout.Milliseconds()),
	)
	if call.Err != nil {
		return fmt.Errorf("notification failed: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notification failed: %w", err)
	}
	d.lastID = id
	return nil
}

// Notify implements common.Notifier.
func (d *DBusNotifier) Notify(title, message string) error {
	return d.NotifyWithIcon(title, message, "")
}

// NotifyWithIcon implements common.Notifier.
func (d *DBusNotifier) NotifyWithIcon(title, message, icon string) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return d.Send(ctx, Notification{Title: title, Message: message, Icon: icon})
}

// Close disconnects from the session bus.
func (d *DBusNotifier) Close() error {
	return d.conn.Close()
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct{}

// Send logs n.
func (LogNotifier) Send(_ context.Context, n Notification) error {
	if n.Type == TypeError {
		common.LogError("%s: %s", n.Title, n.Message)
		return nil
	}
	common.LogInfo("%s: %s", n.Title, n.Message)
	return nil
}

// Notify implements common.Notifier.
func (l LogNotifier) Notify(title, message string) error {
	return l.Send(context.Background(), Notification{Title: title, Message: message})
}

// NotifyWithIcon implements common.Notifier.
func (l LogNotifier) NotifyWithIcon(title, message, _ string) error {
	return l.Notify(title, message)
}

var (
	_ common.Notifier = (*DBusNotifier)(nil)
	_ common.Notifier = LogNotifier{}
)

// New returns a DBusNotifier when a session bus is reachable and a
// LogNotifier otherwise.
func New(appName string) Sender {
	d, err := NewDBusNotifier(appName)
	if err != nil {
		common.LogDebug("Desktop notifications unavailable: %v", err)
		return LogNotifier{}
	}
	return d
}
