package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/alanyoungcy/tontine/internal/domain"
)

// Repository implements domain.TontineRepository over the backend REST API.
type Repository struct {
	client *Client
}

// NewRepository wraps client.
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

var _ domain.TontineRepository = (*Repository)(nil)

// UserGroups returns the groups userID belongs to, in backend order.
func (r *Repository) UserGroups(ctx context.Context, userID string) ([]domain.Group, error) {
	var out []apiGroup
	path := "/tontines/user/" + url.PathEscape(userID)
	if err := r.client.do(ctx, http.MethodGet, "/tontines/user/{id}", path, nil, &out); err != nil {
		return nil, err
	}
	return convert(out, apiGroup.toDomain), nil
}

// GroupMembers returns the memberships of groupID.
func (r *Repository) GroupMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	var out []apiMember
	path := "/tontine-members/tontine/" + url.PathEscape(groupID)
	if err := r.client.do(ctx, http.MethodGet, "/tontine-members/tontine/{id}", path, nil, &out); err != nil {
		return nil, err
	}
	return convert(out, apiMember.toDomain), nil
}

// GroupRounds returns the scheduled rounds of groupID.
func (r *Repository) GroupRounds(ctx context.Context, groupID string) ([]domain.Round, error) {
	var out []apiRound
	path := "/tontine-rounds/tontine/" + url.PathEscape(groupID)
	if err := r.client.do(ctx, http.MethodGet, "/tontine-rounds/tontine/{id}", path, nil, &out); err != nil {
		return nil, err
	}
	rounds := convert(out, apiRound.toDomain)
	for i := range rounds {
		if rounds[i].GroupID == "" {
			rounds[i].GroupID = groupID
		}
	}
	return rounds, nil
}

func (r *Repository) Groups(ctx context.Context) ([]domain.Group, error) {
	var out []apiGroup
	if err := r.client.do(ctx, http.MethodGet, "/tontines", "/tontines", nil, &out); err != nil {
		return nil, err
	}
	return convert(out, apiGroup.toDomain), nil
}

func (r *Repository) Group(ctx context.Context, id string) (domain.Group, error) {
	var out apiGroup
	if err := r.client.do(ctx, http.MethodGet, "/tontines/{id}", "/tontines/"+url.PathEscape(id), nil, &out); err != nil {
		return domain.Group{}, err
	}
	return out.toDomain(), nil
}

func (r *Repository) CreateGroup(ctx context.Context, in domain.GroupInput) (domain.Group, error) {
	var out apiGroup
	if err := r.client.do(ctx, http.MethodPost, "/tontines", "/tontines", in, &out); err != nil {
		return domain.Group{}, err
	}
	return out.toDomain(), nil
}

func (r *Repository) UpdateGroup(ctx context.Context, id string, in domain.GroupInput) (domain.Group, error) {
	var out apiGroup
	if err := r.client.do(ctx, http.MethodPut, "/tontines/{id}", "/tontines/"+url.PathEscape(id), in, &out); err != nil {
		return domain.Group{}, err
	}
	return out.toDomain(), nil
}

func (r *Repository) DeleteGroup(ctx context.Context, id string) error {
	return r.client.do(ctx, http.MethodDelete, "/tontines/{id}", "/tontines/"+url.PathEscape(id), nil, nil)
}

// Register creates an account.
func (r *Repository) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	var out apiUser
	if err := r.client.do(ctx, http.MethodPost, "/users", "/users", reg, &out); err != nil {
		return domain.User{}, err
	}
	return out.toDomain(), nil
}

// Login exchanges credentials for a bearer token.
func (r *Repository) Login(ctx context.Context, creds domain.Credentials) (domain.LoginResult, error) {
	var out apiLogin
	if err := r.client.do(ctx, http.MethodPost, "/auth/login", "/auth/login", creds, &out); err != nil {
		return domain.LoginResult{}, err
	}
	if out.AccessToken == "" {
		return domain.LoginResult{}, fmt.Errorf("gateway: login: %w: missing access_token", domain.ErrServer)
	}
	return domain.LoginResult{AccessToken: out.AccessToken, User: out.User.toDomain()}, nil
}
