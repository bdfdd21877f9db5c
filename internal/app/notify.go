package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	"mcphub/pkg/logging"
)

// Service manager states sent by Run.
const (
	StateReady    = daemon.SdNotifyReady
	StateStopping = daemon.SdNotifyStopping
)

// Notifier reports a state change to the service manager.
type Notifier func(state string) error

// SystemdNotifier sends state over $NOTIFY_SOCKET. Without a socket it does nothing.
func SystemdNotifier(state string) error {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return err
	}
	if sent {
		logging.Debug("Bootstrap", "Sent %s to service manager", state)
	}
	return nil
}
