package present

import (
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/tontine/internal/domain"
)

// Placeholder texts for empty and failed panels.
const (
	EmptyRecentGroups = "Aucune tontine active"
	EmptyUpcoming     = "Aucune échéance prochaine"
	EmptyActivity     = "Aucune activité récente"
	PanelFailed       = "Erreur de chargement"
	RefreshDone       = "Données actualisées"
	RefreshFailed     = "Erreur lors du chargement des données"
	NoDescription     = "Aucune description"
)

// StatsView holds the four headline counters as display strings.
type StatsView struct {
	ActiveGroups       string `json:"active_groups"`
	TotalContributions string `json:"total_contributions"`
	PendingRounds      string `json:"pending_rounds"`
	TotalMembers       string `json:"total_members"`
}

// GroupLine is one entry of the recent groups panel.
type GroupLine struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
	Status string `json:"status"`
}

// RoundLine is one entry of the upcoming rounds panel.
type RoundLine struct {
	Title  string `json:"title"`
	Group  string `json:"group"`
	Detail string `json:"detail"`
	Status string `json:"status"`
}

// ActivityLine is one entry of the recent activity panel.
type ActivityLine struct {
	Message string `json:"message"`
	When    string `json:"when"`
}

// PanelView carries a panel's lines or, when it has none, the text to show
// in their place.
type PanelView[T any] struct {
	Lines       []T    `json:"lines"`
	Placeholder string `json:"placeholder,omitempty"`
}

// DashboardView is the fully formatted dashboard.
type DashboardView struct {
	Welcome        string                  `json:"welcome,omitempty"`
	Stats          StatsView               `json:"stats"`
	RecentGroups   PanelView[GroupLine]    `json:"recent_groups"`
	UpcomingRounds PanelView[RoundLine]    `json:"upcoming_rounds"`
	RecentActivity PanelView[ActivityLine] `json:"recent_activity"`
	GeneratedAt    string                  `json:"generated_at"`
	Partial        bool                    `json:"partial"`
}

// RefreshNotice is the notification shown after a refresh. It reports
// failure only when no panel loaded.
func RefreshNotice(s domain.DashboardSummary) (string, bool) {
	for _, p := range domain.Panels {
		if s.PanelOK(p) {
			return RefreshDone, true
		}
	}
	return RefreshFailed, false
}

// Welcome greets the signed-in user.
func Welcome(u domain.User) string {
	if u.FullName == "" {
		return ""
	}
	return fmt.Sprintf("Bienvenue, %s !", u.FullName)
}

// Dashboard formats a summary. Failed panels show PanelFailed; failed
// statistics show zero counts.
func Dashboard(s domain.DashboardSummary, user domain.User) DashboardView {
	v := DashboardView{
		Welcome:     Welcome(user),
		GeneratedAt: DateTime(s.GeneratedAt),
		Partial:     s.Partial,
	}

	stats := domain.Stats{}
	if s.PanelOK(domain.PanelStats) {
		stats = s.Stats
	}
	v.Stats = StatsView{
		ActiveGroups:       strconv.Itoa(stats.ActiveGroupCount),
		TotalContributions: Currency(stats.TotalContributions),
		PendingRounds:      strconv.Itoa(stats.PendingRoundCount),
		TotalMembers:       strconv.Itoa(stats.TotalMemberCount),
	}

	v.RecentGroups = panel(s.PanelOK(domain.PanelRecentGroups), s.RecentGroups, EmptyRecentGroups,
		func(g domain.Group) GroupLine {
			return GroupLine{
				Name:   g.Name,
				Detail: Currency(g.AmountPerMember) + " / " + FrequencyLabel(g.Frequency),
				Status: StatusLabel(g.Status),
			}
		})

	v.UpcomingRounds = panel(s.PanelOK(domain.PanelUpcomingRounds), s.UpcomingRounds, EmptyUpcoming,
		func(r domain.UpcomingRound) RoundLine {
			return RoundLine{
				Title:  fmt.Sprintf("Round %d", r.Number),
				Group:  r.GroupName,
				Detail: Currency(r.Amount) + " - " + Date(r.Date),
				Status: RoundStatusLabel(r.Status),
			}
		})

	v.RecentActivity = panel(s.PanelOK(domain.PanelActivity), s.RecentActivity, EmptyActivity,
		func(a domain.Activity) ActivityLine {
			return ActivityLine{Message: a.Message, When: DateTime(a.CreatedAt)}
		})

	return v
}

func panel[S, T any](ok bool, items []S, empty string, fn func(S) T) PanelView[T] {
	if !ok {
		return PanelView[T]{Lines: []T{}, Placeholder: PanelFailed}
	}
	lines := make([]T, 0, len(items))
	for _, it := range items {
		lines = append(lines, fn(it))
	}
	if len(lines) == 0 {
		return PanelView[T]{Lines: lines, Placeholder: empty}
	}
	return PanelView[T]{Lines: lines}
}

// GroupCard is a tontine as shown in the tontine list.
type GroupCard struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	PerMember    string `json:"per_member"`
	MaxMembers   string `json:"max_members"`
	Total        string `json:"total"`
	Frequency    string `json:"frequency"`
	CurrentRound string `json:"current_round"`
	CreatedAt    string `json:"created_at"`
	Status       string `json:"status"`
}

// Card formats a group for the tontine list. Total is the full-group
// amount per round.
func Card(g domain.Group) GroupCard {
	desc := g.Description
	if desc == "" {
		desc = NoDescription
	}
	round := g.CurrentRound
	if round == 0 {
		round = 1
	}
	return GroupCard{
		ID:           g.ID,
		Name:         g.Name,
		Description:  desc,
		PerMember:    Currency(g.AmountPerMember),
		MaxMembers:   strconv.Itoa(g.MaxMembers),
		Total:        Currency(g.Capacity()),
		Frequency:    FrequencyLabel(g.Frequency),
		CurrentRound: strconv.Itoa(round),
		CreatedAt:    Date(g.CreatedAt),
		Status:       StatusLabel(g.Status),
	}
}

// Cards formats a list of groups.
func Cards(groups []domain.Group) []GroupCard {
	out := make([]GroupCard, 0, len(groups))
	for _, g := range groups {
		out = append(out, Card(g))
	}
	return out
}

// ActivityRelative formats an activity's age relative to now.
func ActivityRelative(a domain.Activity, now time.Time) string {
	return Relative(a.CreatedAt, now)
}
