package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tontine/internal/dashboard"
	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/form"
	"github.com/alanyoungcy/tontine/internal/present"
	"github.com/alanyoungcy/tontine/internal/session"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeRepo struct {
	domain.TontineRepository
	groups []domain.Group
	err    error
}

func (f *fakeRepo) Login(_ context.Context, creds domain.Credentials) (domain.LoginResult, error) {
	if f.err != nil {
		return domain.LoginResult{}, f.err
	}
	return domain.LoginResult{AccessToken: "backend-token", User: domain.User{ID: "u-1", Email: creds.Email, FullName: "Awa Diop"}}, nil
}

func (f *fakeRepo) Register(_ context.Context, reg domain.Registration) (domain.User, error) {
	if f.err != nil {
		return domain.User{}, f.err
	}
	return domain.User{ID: "u-2", Email: reg.Email}, nil
}

func (f *fakeRepo) Groups(context.Context) ([]domain.Group, error) { return f.groups, f.err }

func (f *fakeRepo) Group(_ context.Context, id string) (domain.Group, error) {
	for _, g := range f.groups {
		if g.ID == id {
			return g, nil
		}
	}
	return domain.Group{}, domain.ErrNotFound
}

func (f *fakeRepo) CreateGroup(_ context.Context, in domain.GroupInput) (domain.Group, error) {
	if f.err != nil {
		return domain.Group{}, f.err
	}
	return domain.Group{ID: "g-new", Name: in.Name}, nil
}

func (f *fakeRepo) UpdateGroup(_ context.Context, id string, in domain.GroupInput) (domain.Group, error) {
	return domain.Group{ID: id, Name: in.Name}, f.err
}

func (f *fakeRepo) DeleteGroup(context.Context, string) error { return f.err }

func post(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func withUser(r *http.Request, id string) *http.Request {
	s := domain.Session{ID: "s-1", User: domain.User{ID: id, FullName: "Awa Diop"}}
	return r.WithContext(session.WithSession(r.Context(), s))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{domain.ErrInvalidForm, http.StatusUnprocessableEntity},
		{domain.ErrAuthExpired, http.StatusUnauthorized},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrLockHeld, http.StatusConflict},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrNetwork, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

func TestDecodeFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"fields":{"email":"a@b.co","max_members":5,"acceptTerms":true,"description":null}}`))
	values, err := decodeFields(httptest.NewRecorder(), req)
	require.NoError(t, err)

	assert.Equal(t, "a@b.co", values["email"].Text)
	assert.Equal(t, "5", values["max_members"].Text)
	assert.True(t, values["acceptTerms"].Checked)
	assert.Equal(t, "", values["description"].Text)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"fields":{"x":[1]}}`))
	_, err = decodeFields(httptest.NewRecorder(), req)
	assert.Error(t, err)
}

func TestParseListOpts(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=3", nil)
	assert.Equal(t, domain.ListOpts{Limit: 100, Offset: 3}, parseListOpts(req))

	req = httptest.NewRequest(http.MethodGet, "/?limit=-1", nil)
	assert.Equal(t, domain.ListOpts{Limit: 20}, parseListOpts(req))
}

func TestLoginHidesBackendToken(t *testing.T) {
	mgr := session.NewManager(session.NewMemoryStore(), session.WithLogger(testLogger))
	h := NewAuthHandler(form.Deps{Repo: &fakeRepo{}, Sessions: mgr, Logger: testLogger}, mgr, testLogger)

	rec := post(t, h.Login, "/api/auth/login", `{"fields":{"email":"awa@example.com","password":"secret"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "backend-token")

	out := decode(t, rec)
	data := out["data"].(map[string]any)
	assert.NotEmpty(t, data["session_id"])
	assert.Equal(t, "u-1", data["user"].(map[string]any)["id"])
	assert.Equal(t, "Connexion réussie !", out["message"].(map[string]any)["text"])
}

func TestLoginInvalidShowsFirstError(t *testing.T) {
	mgr := session.NewManager(session.NewMemoryStore(), session.WithLogger(testLogger))
	h := NewAuthHandler(form.Deps{Repo: &fakeRepo{}, Sessions: mgr, Logger: testLogger}, mgr, testLogger)

	rec := post(t, h.Login, "/api/auth/login", `{"fields":{"email":"nope","password":""}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Veuillez entrer un email valide", decode(t, rec)["message"].(map[string]any)["text"])
}

func TestLogoutEndsSession(t *testing.T) {
	store := session.NewMemoryStore()
	mgr := session.NewManager(store, session.WithLogger(testLogger))
	s, err := mgr.Begin(context.Background(), domain.LoginResult{AccessToken: "tok", User: domain.User{ID: "u-1"}})
	require.NoError(t, err)

	h := NewAuthHandler(form.Deps{Repo: &fakeRepo{}}, mgr, testLogger)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req = req.WithContext(session.WithID(req.Context(), s.ID))
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err = store.Get(context.Background(), s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegisterBackendConflict(t *testing.T) {
	repo := &fakeRepo{err: domain.ErrAlreadyExists}
	h := NewAuthHandler(form.Deps{Repo: repo, Logger: testLogger}, nil, testLogger)

	rec := post(t, h.Register, "/api/users", `{"fields":{
		"fullName":"Awa Diop","email":"awa@example.com","phone":"+221 77 123 45 67",
		"password":"longenough","confirmPassword":"longenough","acceptTerms":true}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, decode(t, rec)["ok"])
}

func TestValidateForm(t *testing.T) {
	h := NewFormHandler(form.Deps{Repo: &fakeRepo{}, Logger: testLogger}, testLogger)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/forms/{form}/validate", h.Validate)

	tests := []struct {
		name         string
		path         string
		body         string
		wantStatus   int
		wantValid    bool
		wantStrength bool
	}{
		{
			name:       "unknown form",
			path:       "/api/forms/nope/validate",
			body:       `{"fields":{}}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:         "register mismatch",
			path:         "/api/forms/register/validate",
			body:         `{"fields":{"confirmPassword":"abcdefgh","password":"abcdefgX"}}`,
			wantStatus:   http.StatusOK,
			wantStrength: true,
		},
		{
			name:       "login valid",
			path:       "/api/forms/login/validate",
			body:       `{"fields":{"email":"a@b.co","password":"x"}}`,
			wantStatus: http.StatusOK,
			wantValid:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			out := decode(t, rec)
			assert.Equal(t, tt.wantValid, out["valid"])
			_, hasStrength := out["strength"]
			assert.Equal(t, tt.wantStrength, hasStrength)
		})
	}
}

func TestValidateDependentField(t *testing.T) {
	h := NewFormHandler(form.Deps{Repo: &fakeRepo{}, Logger: testLogger}, testLogger)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/forms/{form}/validate", h.Validate)

	req := httptest.NewRequest(http.MethodPost, "/api/forms/register/validate",
		strings.NewReader(`{"fields":{"confirmPassword":"abcdefgh","password":"abcdefgh"}}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	fields := decode(t, rec)["fields"].(map[string]any)
	assert.Equal(t, true, fields["confirmPassword"].(map[string]any)["valid"])
}

func TestTontineCRUD(t *testing.T) {
	repo := &fakeRepo{groups: []domain.Group{{ID: "g-1", Name: "Famille", AmountPerMember: 1000, MaxMembers: 4}}}
	h := NewTontineHandler(form.Deps{Repo: repo, Logger: testLogger}, testLogger)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tontines", h.List)
	mux.HandleFunc("POST /api/tontines", h.Create)
	mux.HandleFunc("GET /api/tontines/{id}", h.Get)
	mux.HandleFunc("PUT /api/tontines/{id}", h.Update)
	mux.HandleFunc("DELETE /api/tontines/{id}", h.Delete)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/api/tontines", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, present.NoDescription, list[0]["card"].(map[string]any)["description"])

	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/tontines/missing", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/tontines/g-1", "").Code)

	valid := `{"fields":{"name":"Amis","amount_per_member":"5000","max_members":"6","frequency":"monthly"}}`
	rec = do(http.MethodPost, "/api/tontines", valid)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tontine créée avec succès !", decode(t, rec)["message"].(map[string]any)["text"])

	rec = do(http.MethodPost, "/api/tontines", `{"fields":{"name":"","max_members":"1"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(http.MethodPut, "/api/tontines/g-1", valid)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, do(http.MethodDelete, "/api/tontines/g-1", "").Code)
	repo.err = domain.ErrServer
	assert.Equal(t, http.StatusBadGateway, do(http.MethodDelete, "/api/tontines/g-1", "").Code)
}

type fakeAggregator struct {
	latest    *domain.DashboardSummary
	summary   domain.DashboardSummary
	err       error
	refreshes int
}

func (f *fakeAggregator) Latest(string) (domain.DashboardSummary, bool) {
	if f.latest == nil {
		return domain.DashboardSummary{}, false
	}
	return *f.latest, true
}

func (f *fakeAggregator) Refresh(context.Context, string) (domain.DashboardSummary, error) {
	f.refreshes++
	return f.summary, f.err
}

type fakeCache struct {
	domain.SummaryCache
	sum *domain.DashboardSummary
}

func (f *fakeCache) Get(context.Context, string) (domain.DashboardSummary, error) {
	if f.sum == nil {
		return domain.DashboardSummary{}, domain.ErrNotFound
	}
	return *f.sum, nil
}

type fakeLocks struct{ held bool }

func (f *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if f.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

type notice struct{ user, kind, text string }

type fakeNotifier struct{ sent []notice }

func (f *fakeNotifier) PublishNotification(_ context.Context, userID, kind, text string) error {
	f.sent = append(f.sent, notice{userID, kind, text})
	return nil
}

func okSummary(gen uint64) domain.DashboardSummary {
	panels := make(map[domain.Panel]domain.PanelState)
	for _, p := range domain.Panels {
		panels[p] = domain.PanelState{OK: true}
	}
	return domain.DashboardSummary{UserID: "u-1", Generation: gen, Panels: panels}
}

func TestDashboardGetSources(t *testing.T) {
	mem := okSummary(3)
	cached := okSummary(2)
	tests := []struct {
		name       string
		agg        *fakeAggregator
		cache      *fakeCache
		wantSource string
		wantStatus int
	}{
		{"memory first", &fakeAggregator{latest: &mem}, &fakeCache{sum: &cached}, "memory", http.StatusOK},
		{"cache second", &fakeAggregator{}, &fakeCache{sum: &cached}, "cache", http.StatusOK},
		{"live last", &fakeAggregator{summary: okSummary(1)}, &fakeCache{}, "live", http.StatusOK},
		{"superseded still answers", &fakeAggregator{summary: okSummary(1), err: dashboard.ErrSuperseded}, &fakeCache{}, "live", http.StatusOK},
		{"cancelled", &fakeAggregator{err: context.Canceled}, &fakeCache{}, "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewDashboardHandler(tt.agg, tt.cache, nil, nil, nil, testLogger)
			req := withUser(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil), "u-1")
			rec := httptest.NewRecorder()
			h.Get(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantSource != "" {
				out := decode(t, rec)
				assert.Equal(t, tt.wantSource, out["source"])
				assert.Equal(t, "Bienvenue, Awa Diop !", out["view"].(map[string]any)["welcome"])
			}
		})
	}
}

func TestDashboardRefresh(t *testing.T) {
	t.Run("notifies success", func(t *testing.T) {
		n := &fakeNotifier{}
		h := NewDashboardHandler(&fakeAggregator{summary: okSummary(1)}, nil, &fakeLocks{}, n, nil, testLogger)
		rec := httptest.NewRecorder()
		h.Refresh(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/dashboard/refresh", nil), "u-1"))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, present.RefreshDone, decode(t, rec)["notice"])
		assert.Equal(t, []notice{{"u-1", "success", present.RefreshDone}}, n.sent)
	})

	t.Run("all panels failed", func(t *testing.T) {
		n := &fakeNotifier{}
		failed := domain.DashboardSummary{Panels: map[domain.Panel]domain.PanelState{}}
		h := NewDashboardHandler(&fakeAggregator{summary: failed}, nil, nil, n, nil, testLogger)
		rec := httptest.NewRecorder()
		h.Refresh(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/dashboard/refresh", nil), "u-1"))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, decode(t, rec)["ok"])
		assert.Equal(t, "error", n.sent[0].kind)
	})

	t.Run("lock held", func(t *testing.T) {
		agg := &fakeAggregator{summary: okSummary(1)}
		h := NewDashboardHandler(agg, nil, &fakeLocks{held: true}, nil, nil, testLogger)
		rec := httptest.NewRecorder()
		h.Refresh(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/dashboard/refresh", nil), "u-1"))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Zero(t, agg.refreshes)
	})
}

type fakeJournal struct {
	domain.ActivityStore
	gotUser string
	gotOpts domain.ListOpts
}

func (f *fakeJournal) List(_ context.Context, userID string, opts domain.ListOpts) ([]domain.Activity, error) {
	f.gotUser, f.gotOpts = userID, opts
	return nil, nil
}

func TestActivityList(t *testing.T) {
	j := &fakeJournal{}
	h := NewDashboardHandler(&fakeAggregator{}, nil, nil, nil, j, testLogger)
	rec := httptest.NewRecorder()
	h.Activity(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/activity?limit=5", nil), "u-9"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, "u-9", j.gotUser)
	assert.Equal(t, 5, j.gotOpts.Limit)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestStatus(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	h := NewHealthHandler("server", started, map[string]Pinger{"redis": pinger{}}, func() int { return 2 }, testLogger)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "server", out["mode"])
	assert.EqualValues(t, 2, out["ws_clients"])

	h = NewHealthHandler("server", started, map[string]Pinger{"redis": pinger{err: errors.New("down")}}, nil, testLogger)
	rec = httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
