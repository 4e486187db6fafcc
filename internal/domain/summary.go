package domain

import "time"

// Panel names one independently loaded section of the dashboard.
type Panel string

const (
	PanelStats          Panel = "stats"
	PanelRecentGroups   Panel = "recent_groups"
	PanelUpcomingRounds Panel = "upcoming_rounds"
	PanelActivity       Panel = "activity"
)

// Panels lists every dashboard panel in display order.
var Panels = []Panel{PanelStats, PanelRecentGroups, PanelUpcomingRounds, PanelActivity}

// PanelState reports whether a panel loaded. A failed panel keeps its zero
// value data so the view can render a fallback.
type PanelState struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Stats are the headline counters of the dashboard.
type Stats struct {
	ActiveGroupCount int `json:"active_group_count"`
	// TotalContributions is an estimate: amount per member times member count,
	// summed over groups. It is not a ledger of recorded payments.
	TotalContributions float64 `json:"total_contributions"`
	PendingRoundCount  int     `json:"pending_round_count"`
	TotalMemberCount   int     `json:"total_member_count"`
}

// UpcomingRound is a pending round together with the name of its group.
type UpcomingRound struct {
	Round
	GroupName string `json:"group_name"`
}

// GroupError records a nested fetch that failed for one group.
type GroupError struct {
	GroupID  string `json:"group_id"`
	Resource string `json:"resource"`
	Error    string `json:"error"`
}

// DashboardSummary is the derived view of a user's groups. It is recomputed
// on every load and never persisted beyond a short-lived cache.
type DashboardSummary struct {
	UserID         string               `json:"user_id"`
	Generation     uint64               `json:"generation"`
	GeneratedAt    time.Time            `json:"generated_at"`
	Stats          Stats                `json:"stats"`
	RecentGroups   []Group              `json:"recent_groups"`
	UpcomingRounds []UpcomingRound      `json:"upcoming_rounds"`
	RecentActivity []Activity           `json:"recent_activity"`
	Panels         map[Panel]PanelState `json:"panels"`
	Partial        bool                 `json:"partial"`
	GroupErrors    []GroupError         `json:"group_errors,omitempty"`
}

// PanelOK reports whether the named panel loaded.
func (s DashboardSummary) PanelOK(p Panel) bool {
	return s.Panels[p].OK
}
