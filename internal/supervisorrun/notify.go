package supervisorrun

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"

	"pdcdesk/internal/logging"
)

// notifyService tells a supervising service manager about a lifecycle
// change. Outside systemd (no NOTIFY_SOCKET) this does nothing.
func notifyService(logger *slog.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Debug("service manager notification failed",
			logging.String("state", state),
			logging.Error(err),
		)
		return
	}
	if sent {
		logger.Debug("service manager notified", logging.String("state", state))
	}
}
