package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/present"
)

// Reminder sends one round_due notification per round, however many times
// the round is seen by successive dashboard refreshes.
type Reminder struct {
	notifier *Notifier

	mu   sync.Mutex
	sent map[string]bool
}

// NewReminder creates a Reminder delivering through n.
func NewReminder(n *Notifier) *Reminder {
	return &Reminder{notifier: n, sent: make(map[string]bool)}
}

// Remind notifies each round not notified before and returns the rounds it
// sent. A round whose delivery failed is retried on the next call.
func (r *Reminder) Remind(ctx context.Context, rounds []domain.UpcomingRound) ([]domain.UpcomingRound, error) {
	var (
		notified []domain.UpcomingRound
		errs     []error
	)
	for _, ur := range rounds {
		key := ur.GroupID + "/" + ur.ID
		r.mu.Lock()
		done := r.sent[key]
		r.mu.Unlock()
		if done {
			continue
		}

		if err := r.notifier.Notify(ctx, EventRoundDue, "Échéance proche", RoundDueMessage(ur)); err != nil {
			errs = append(errs, err)
			continue
		}
		r.mu.Lock()
		r.sent[key] = true
		r.mu.Unlock()
		notified = append(notified, ur)
	}
	if len(errs) > 0 {
		return notified, fmt.Errorf("notify: remind: %w", errs[0])
	}
	return notified, nil
}

// RoundDueMessage is the text of a due-round notification.
func RoundDueMessage(ur domain.UpcomingRound) string {
	return fmt.Sprintf("%s : tour %d le %s (%s)",
		ur.GroupName, ur.Number, present.Date(ur.Date), present.Currency(ur.Amount))
}
