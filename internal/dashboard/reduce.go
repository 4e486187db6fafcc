package dashboard

import (
	"cmp"
	"slices"
	"time"

	"github.com/alanyoungcy/tontine/internal/domain"
)

// Nested resources fetched per group.
const (
	ResourceMembers = "members"
	ResourceRounds  = "rounds"
)

// GroupResult is everything fetched for one group in a run. A nil error
// means the corresponding slice is authoritative.
type GroupResult struct {
	Group      domain.Group
	Members    []domain.Member
	MembersErr error
	Rounds     []domain.Round
	RoundsErr  error
}

// Reduce folds per-group results into the headline statistics. It is a sum
// over groups, so the order of results does not matter. Groups whose nested
// fetch failed are left out of the statistics depending on it and reported
// in the returned errors, sorted by group and resource.
func Reduce(results []GroupResult) (domain.Stats, []domain.GroupError) {
	var stats domain.Stats
	var errs []domain.GroupError

	for _, r := range results {
		if r.Group.Status == domain.GroupActive {
			stats.ActiveGroupCount++
		}

		if r.MembersErr != nil {
			errs = append(errs, domain.GroupError{GroupID: r.Group.ID, Resource: ResourceMembers, Error: r.MembersErr.Error()})
		} else {
			n := len(r.Members)
			stats.TotalMemberCount += n
			stats.TotalContributions += r.Group.AmountPerMember * float64(n)
		}

		if r.RoundsErr != nil {
			errs = append(errs, domain.GroupError{GroupID: r.Group.ID, Resource: ResourceRounds, Error: r.RoundsErr.Error()})
		} else {
			for _, round := range r.Rounds {
				if round.Status == domain.RoundPending {
					stats.PendingRoundCount++
				}
			}
		}
	}

	slices.SortFunc(errs, func(a, b domain.GroupError) int {
		return cmp.Or(cmp.Compare(a.GroupID, b.GroupID), cmp.Compare(a.Resource, b.Resource))
	})
	return stats, errs
}

// RecentGroups returns the first limit groups in backend order.
func RecentGroups(groups []domain.Group, limit int) []domain.Group {
	n := min(len(groups), max(limit, 0))
	return slices.Clone(groups[:n])
}

// UpcomingRounds collects pending rounds from every group whose rounds
// loaded, sorted by ascending date and truncated to limit. Rounds without a
// date sort last; ties break on group and round number.
func UpcomingRounds(results []GroupResult, limit int) []domain.UpcomingRound {
	out := []domain.UpcomingRound{}
	for _, r := range results {
		if r.RoundsErr != nil {
			continue
		}
		for _, round := range r.Rounds {
			if round.Status != domain.RoundPending {
				continue
			}
			if round.GroupID == "" {
				round.GroupID = r.Group.ID
			}
			out = append(out, domain.UpcomingRound{Round: round, GroupName: r.Group.Name})
		}
	}

	slices.SortFunc(out, compareUpcoming)
	if len(out) > limit {
		out = out[:max(limit, 0)]
	}
	return out
}

func compareUpcoming(a, b domain.UpcomingRound) int {
	if az, bz := a.Date.IsZero(), b.Date.IsZero(); az != bz {
		if az {
			return 1
		}
		return -1
	}
	return cmp.Or(
		a.Date.Compare(b.Date),
		cmp.Compare(a.GroupID, b.GroupID),
		cmp.Compare(a.Number, b.Number),
		cmp.Compare(a.ID, b.ID),
	)
}

// Due returns the rounds whose date falls before now+within, overdue ones
// included.
func Due(rounds []domain.UpcomingRound, now time.Time, within time.Duration) []domain.UpcomingRound {
	limit := now.Add(within)
	var out []domain.UpcomingRound
	for _, r := range rounds {
		if !r.Date.IsZero() && !r.Date.After(limit) {
			out = append(out, r)
		}
	}
	return out
}
