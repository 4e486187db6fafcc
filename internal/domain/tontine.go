package domain

import "time"

// GroupStatus is the lifecycle state of a tontine.
type GroupStatus string

const (
	GroupActive    GroupStatus = "active"
	GroupPending   GroupStatus = "pending"
	GroupCompleted GroupStatus = "completed"
	GroupCancelled GroupStatus = "cancelled"
)

// Frequency is how often members contribute.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// RoundStatus is the state of a single contribution/payout cycle.
type RoundStatus string

const (
	RoundPending   RoundStatus = "pending"
	RoundCompleted RoundStatus = "completed"
)

// Group is a read snapshot of a tontine as returned by the backend.
type Group struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	AmountPerMember float64     `json:"amount_per_member"`
	MaxMembers      int         `json:"max_members"`
	Frequency       Frequency   `json:"frequency"`
	Status          GroupStatus `json:"status"`
	CurrentRound    int         `json:"current_round"`
	AutoApprove     bool        `json:"auto_approve"`
	Public          bool        `json:"public"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Capacity is the amount collected per round when the group is full.
func (g Group) Capacity() float64 {
	return g.AmountPerMember * float64(g.MaxMembers)
}

// Member is the association of a user with a group. Only its existence is
// consumed by the dashboard.
type Member struct {
	ID       string    `json:"id"`
	GroupID  string    `json:"tontine_id"`
	UserID   string    `json:"user_id"`
	FullName string    `json:"full_name,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// Round is one scheduled cycle within a group. Round numbers increase
// monotonically within a group.
type Round struct {
	ID      string      `json:"id"`
	GroupID string      `json:"tontine_id"`
	Number  int         `json:"round_number"`
	Date    time.Time   `json:"round_date"`
	Amount  float64     `json:"amount"`
	Status  RoundStatus `json:"status"`
}

// User is the cached profile returned at login.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	FullName string `json:"full_name"`
}

// Registration is the payload sent to create an account.
type Registration struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// Credentials is the payload sent to log in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the backend's answer to a successful login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// GroupInput is the payload used to create or update a tontine.
type GroupInput struct {
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	AmountPerMember float64   `json:"amount_per_member"`
	MaxMembers      int       `json:"max_members"`
	Frequency       Frequency `json:"frequency"`
	AutoApprove     bool      `json:"auto_approve"`
	Public          bool      `json:"public"`
}
