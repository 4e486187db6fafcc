package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TontineRepository is the backend capability consumed by the forms and the
// dashboard. It is implemented once by the HTTP gateway.
type TontineRepository interface {
	UserGroups(ctx context.Context, userID string) ([]Group, error)
	GroupMembers(ctx context.Context, groupID string) ([]Member, error)
	GroupRounds(ctx context.Context, groupID string) ([]Round, error)

	Groups(ctx context.Context) ([]Group, error)
	Group(ctx context.Context, id string) (Group, error)
	CreateGroup(ctx context.Context, in GroupInput) (Group, error)
	UpdateGroup(ctx context.Context, id string, in GroupInput) (Group, error)
	DeleteGroup(ctx context.Context, id string) error

	Register(ctx context.Context, reg Registration) (User, error)
	Login(ctx context.Context, creds Credentials) (LoginResult, error)
}

// ActivityStore persists the append-only activity journal.
type ActivityStore interface {
	Append(ctx context.Context, a Activity) error
	List(ctx context.Context, userID string, opts ListOpts) ([]Activity, error)
	ListBefore(ctx context.Context, before time.Time) ([]Activity, error)
}

// Session is an authenticated backend session: bearer token plus the cached
// user profile.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	// ExpiresAt is zero when the token carries no expiry.
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore persists sessions by ID.
type SessionStore interface {
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}
