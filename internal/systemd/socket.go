// Package systemd integrates with systemd socket activation and
// readiness notification.
package systemd

import (
	"fmt"
	"net"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// Listeners holds systemd-activated listeners for the service's sockets.
type Listeners struct {
	HTTP      net.Listener
	Metrics   net.Listener
	Activated bool
}

// GetListeners retrieves socket-activated file descriptors. It returns a
// zero Listeners value when the process was not started by a socket unit.
// The names match the FileDescriptorName= directives in lumin.socket:
// "http" and "metrics".
func GetListeners() (*Listeners, error) {
	listeners := &Listeners{}

	fds := activation.Files(false)
	if len(fds) == 0 {
		return listeners, nil
	}

	listeners.Activated = true

	byName, err := activation.ListenersWithNames()
	if err != nil {
		return nil, fmt.Errorf("get systemd listeners: %w", err)
	}

	if lns, ok := byName["http"]; ok && len(lns) > 0 {
		listeners.HTTP = lns[0]
	}
	if lns, ok := byName["metrics"]; ok && len(lns) > 0 {
		listeners.Metrics = lns[0]
	}

	return listeners, nil
}

// NotifyReady tells systemd the service has finished starting up.
func NotifyReady() error {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		return fmt.Errorf("send sd_notify: %w", err)
	}
	if !sent {
		// Not running under systemd; nothing to do.
		return nil
	}
	return nil
}

// NotifyStopping tells systemd the service has begun shutting down.
func NotifyStopping() error {
	_, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		return fmt.Errorf("send sd_notify: %w", err)
	}
	return nil
}
