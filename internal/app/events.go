package app

import (
	"github.com/dshills/pterminal/internal/ids"
	"github.com/dshills/pterminal/internal/terminal"
)

// eventPublisher receives terminal events from the pane arena. It runs on
// parser goroutines and must not block.
type eventPublisher struct {
	app *Application
}

func (p *eventPublisher) Publish(eventType string, data map[string]any) {
	app := p.app
	pane, _ := data["pane_id"].(ids.Pane)

	switch eventType {
	case terminal.EventTypeBell:
		cfg := app.Config()
		if cfg.Notification.Enabled && cfg.Notification.DetectBell {
			app.notifications.Push(app.paneTitle(pane), "Bell", pane.String())
		}
	case terminal.EventTypeNotify:
		cfg := app.Config()
		if !cfg.Notification.Enabled || !cfg.Notification.DetectOSC {
			return
		}
		title, _ := data["title"].(string)
		body, _ := data["body"].(string)
		if title == "" {
			title = app.paneTitle(pane)
		}
		app.notifications.Push(title, body, pane.String())
	default:
		app.logger.Debug("terminal event", "type", eventType, "pane", pane.String())
	}
}

// paneTitle is the title the child set, or the pane id when it set none.
func (app *Application) paneTitle(pane ids.Pane) string {
	if term, ok := app.terminals.Get(pane); ok {
		if t := term.Title(); t != "" {
			return t
		}
	}
	return pane.String()
}
