// Package notify fans user-facing notifications out to external channels
// (Telegram, Discord). Operators choose which event types are forwarded.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event types understood by the Notifier.
const (
	EventRoundDue        = "round_due"
	EventDashboardFailed = "dashboard_failed"
	EventSessionExpired  = "session_expired"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches notifications to every Sender. Notify only forwards
// event types from the allowed set; an empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether event would be forwarded.
func (n *Notifier) Enabled(event string) bool {
	return len(n.senders) > 0 && (len(n.events) == 0 || n.events[event])
}

// Notify sends title and message to all senders if event is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// dispatch sends to every sender; one failure does not stop the others and
// all failures are combined into the returned error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
