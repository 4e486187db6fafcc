package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tontine/internal/domain"
)

var null = []byte("null")

// flexString accepts JSON strings and numbers, so ids work whether the
// backend sends 12 or "12".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, null) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts JSON numbers and numeric strings ("25000.00" from
// DECIMAL columns).
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, null) {
		*f = 0
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flexFloat: %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var v flexFloat
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = flexInt(v)
	return nil
}

// flexBool unmarshals from JSON bool or string ("true"/"false").
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, null) {
		*f = false
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// flexTime accepts RFC 3339 timestamps, naive SQL timestamps and bare
// dates. Unparseable or empty values decode to the zero time.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	*f = flexTime{}
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Backend DTOs
// --------------------------------------------------------------------------

type apiGroup struct {
	ID              flexString `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	AmountPerMember flexFloat  `json:"amount_per_member"`
	MaxMembers      flexInt    `json:"max_members"`
	Frequency       string     `json:"frequency"`
	Status          string     `json:"status"`
	CurrentRound    flexInt    `json:"current_round"`
	AutoApprove     flexBool   `json:"auto_approve"`
	Public          flexBool   `json:"public"`
	CreatedAt       flexTime   `json:"created_at"`
}

func (a apiGroup) toDomain() domain.Group {
	return domain.Group{
		ID:              string(a.ID),
		Name:            a.Name,
		Description:     a.Description,
		AmountPerMember: float64(a.AmountPerMember),
		MaxMembers:      int(a.MaxMembers),
		Frequency:       domain.Frequency(a.Frequency),
		Status:          domain.GroupStatus(a.Status),
		CurrentRound:    int(a.CurrentRound),
		AutoApprove:     bool(a.AutoApprove),
		Public:          bool(a.Public),
		CreatedAt:       time.Time(a.CreatedAt),
	}
}

type apiMember struct {
	ID       flexString `json:"id"`
	GroupID  flexString `json:"tontine_id"`
	UserID   flexString `json:"user_id"`
	FullName string     `json:"full_name"`
	JoinedAt flexTime   `json:"joined_at"`
}

func (a apiMember) toDomain() domain.Member {
	return domain.Member{
		ID:       string(a.ID),
		GroupID:  string(a.GroupID),
		UserID:   string(a.UserID),
		FullName: a.FullName,
		JoinedAt: time.Time(a.JoinedAt),
	}
}

type apiRound struct {
	ID      flexString `json:"id"`
	GroupID flexString `json:"tontine_id"`
	Number  flexInt    `json:"round_number"`
	Date    flexTime   `json:"round_date"`
	Amount  flexFloat  `json:"amount"`
	Status  string     `json:"status"`
}

func (a apiRound) toDomain() domain.Round {
	return domain.Round{
		ID:      string(a.ID),
		GroupID: string(a.GroupID),
		Number:  int(a.Number),
		Date:    time.Time(a.Date),
		Amount:  float64(a.Amount),
		Status:  domain.RoundStatus(a.Status),
	}
}

type apiUser struct {
	ID       flexString `json:"id"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone"`
	FullName string     `json:"full_name"`
}

func (a apiUser) toDomain() domain.User {
	return domain.User{
		ID:       string(a.ID),
		Email:    a.Email,
		Phone:    a.Phone,
		FullName: a.FullName,
	}
}

type apiLogin struct {
	AccessToken string  `json:"access_token"`
	User        apiUser `json:"user"`
}

func convert[A any, D any](in []A, fn func(A) D) []D {
	out := make([]D, 0, len(in))
	for _, a := range in {
		out = append(out, fn(a))
	}
	return out
}
