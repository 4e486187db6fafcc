package domain

import "time"

// ActivityKind classifies a journal entry.
type ActivityKind string

const (
	ActivityContribution   ActivityKind = "contribution"
	ActivityTontineCreated ActivityKind = "tontine_created"
	ActivityTontineDeleted ActivityKind = "tontine_deleted"
	ActivityMemberJoined   ActivityKind = "member_joined"
	ActivityRegistration   ActivityKind = "registration"
	ActivityLogin          ActivityKind = "login"
	ActivityRoundDue       ActivityKind = "round_due"
	ActivityArchive        ActivityKind = "archive"
)

// Activity is one entry of a user's recent-activity journal.
type Activity struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Kind      ActivityKind   `json:"kind"`
	Message   string         `json:"message"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
