package infra

import (
	"fmt"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/dkpark22-ai/TurnOffApp/internal/domain"
)

const notifyTitle = "TurnOffApp"

// DesktopSurface shows block signals as desktop notifications. Delivery is
// best effort: a failed notification is logged and dropped, it never blocks
// or fails the monitoring loop.
type DesktopSurface struct {
	dir    domain.AppDirectory
	logger *zap.Logger
}

// NewDesktopSurface creates a notification-backed block surface.
func NewDesktopSurface(dir domain.AppDirectory, logger *zap.Logger) *DesktopSurface {
	return &DesktopSurface{dir: dir, logger: logger}
}

// ShowBlocked notifies the user that a blocked app or website is in use.
func (d *DesktopSurface) ShowBlocked(reason domain.BlockReason) {
	var msg string
	switch {
	case reason.App != "":
		name := reason.App
		if d.dir != nil {
			if display, err := d.dir.DisplayName(reason.App); err == nil {
				name = display
			}
		}
		msg = fmt.Sprintf("%s is blocked right now", name)
	case reason.Website != "":
		msg = fmt.Sprintf("%s is blocked right now", reason.Website)
	default:
		return
	}

	if err := beeep.Notify(notifyTitle, msg, ""); err != nil {
		d.logger.Debug("failed to show block notification",
			zap.String("app", reason.App),
			zap.String("website", reason.Website),
			zap.Error(err))
	}
}

// DesktopNotifier announces focus session transitions.
type DesktopNotifier struct {
	logger *zap.Logger
}

// NewDesktopNotifier creates a notification-backed session notifier.
func NewDesktopNotifier(logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{logger: logger}
}

// NotifySessionState announces a session state change.
func (d *DesktopNotifier) NotifySessionState(text string) {
	if text == "" {
		return
	}
	if err := beeep.Notify(notifyTitle, text, ""); err != nil {
		d.logger.Debug("failed to show session notification",
			zap.String("text", text),
			zap.Error(err))
	}
}

var (
	_ domain.BlockSurface = (*DesktopSurface)(nil)
	_ domain.Notifier     = (*DesktopNotifier)(nil)
)
