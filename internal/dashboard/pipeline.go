// Package dashboard builds a DashboardSummary from a user's groups. The four
// panels load independently, per-group fetches fan out with bounded
// concurrency, and the newest refresh always wins.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tontine/internal/domain"
)

const tracerName = "github.com/alanyoungcy/tontine/internal/dashboard"

// ErrSuperseded is returned by Refresh when a newer refresh for the same
// user started before this one finished.
var ErrSuperseded = errors.New("dashboard: run superseded")

// ErrNoCommit is returned by a superseded Refresh when the runs that
// replaced it all ended without committing a summary.
var ErrNoCommit = errors.New("dashboard: superseded and nothing committed")

// Options tunes a Pipeline. Zero values fall back to the defaults.
type Options struct {
	Concurrency   int // per-group fetches in flight, default 8
	RecentLimit   int // default 5
	UpcomingLimit int // default 3
	ActivityLimit int // default 5
	Registerer    prometheus.Registerer
	Logger        *slog.Logger
	Now           func() time.Time
}

// CommitHook observes every committed summary.
type CommitHook func(ctx context.Context, s domain.DashboardSummary)

type userState struct {
	issued    uint64
	inflight  uint64
	cancel    context.CancelFunc
	committed *domain.DashboardSummary
	// settled is closed and replaced whenever a run finishes.
	settled chan struct{}
}

func (st *userState) settle() {
	close(st.settled)
	st.settled = make(chan struct{})
}

// Pipeline aggregates dashboards. It is safe for concurrent use by several
// users.
type Pipeline struct {
	repo    domain.TontineRepository
	journal domain.ActivityStore
	opts    Options
	tracer  trace.Tracer
	metrics *metrics
	logger  *slog.Logger

	mu    sync.Mutex
	users map[string]*userState
	hooks []CommitHook
}

// New creates a Pipeline. journal may be nil, in which case the activity
// panel is always empty.
func New(repo domain.TontineRepository, journal domain.ActivityStore, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 8
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 5
	}
	if opts.UpcomingLimit <= 0 {
		opts.UpcomingLimit = 3
	}
	if opts.ActivityLimit <= 0 {
		opts.ActivityLimit = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		repo:    repo,
		journal: journal,
		opts:    opts,
		tracer:  otel.Tracer(tracerName),
		metrics: newMetrics(opts.Registerer),
		logger:  logger.With(slog.String("component", "dashboard")),
		users:   make(map[string]*userState),
	}
}

// OnCommit registers a hook run after each committed refresh.
func (p *Pipeline) OnCommit(h CommitHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, h)
}

// Latest returns the last committed summary for userID.
func (p *Pipeline) Latest(userID string) (domain.DashboardSummary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.users[userID]
	if !ok || st.committed == nil {
		return domain.DashboardSummary{}, false
	}
	return *st.committed, true
}

// Refresh starts a new generation for userID, cancels any run it supersedes
// and commits the result unless a newer run committed first. A superseded
// run returns the latest committed summary with ErrSuperseded. When nothing
// has committed yet it waits, bounded by ctx, for the run that replaced it.
func (p *Pipeline) Refresh(ctx context.Context, userID string) (domain.DashboardSummary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	st := p.state(userID)
	st.issued++
	gen := st.issued
	if st.cancel != nil {
		st.cancel()
	}
	st.cancel, st.inflight = cancel, gen
	p.mu.Unlock()

	s := p.run(runCtx, userID, gen)

	p.mu.Lock()
	if st.inflight == gen {
		st.cancel, st.inflight = nil, 0
	}
	superseded := gen < st.issued || (st.committed != nil && st.committed.Generation >= gen)
	if superseded {
		p.metrics.superseded.Inc()
		p.logger.DebugContext(ctx, "run superseded",
			slog.String("user_id", userID),
			slog.Uint64("generation", gen),
		)
		defer p.mu.Unlock()
		st.settle()
		return p.awaitCommitLocked(ctx, st)
	}
	if err := ctx.Err(); err != nil {
		latest := p.latestLocked(st)
		st.settle()
		p.mu.Unlock()
		return latest, err
	}
	st.committed = &s
	st.settle()
	hooks := append([]CommitHook(nil), p.hooks...)
	p.mu.Unlock()

	for _, h := range hooks {
		h(ctx, s)
	}
	return s, nil
}

// Load runs one aggregation without committing it.
func (p *Pipeline) Load(ctx context.Context, userID string) domain.DashboardSummary {
	return p.run(ctx, userID, 0)
}

func (p *Pipeline) state(userID string) *userState {
	st, ok := p.users[userID]
	if !ok {
		st = &userState{settled: make(chan struct{})}
		p.users[userID] = st
	}
	return st
}

// awaitCommitLocked is called with p.mu held by a superseded run. It returns
// the committed summary, waiting for newer runs while none has committed.
func (p *Pipeline) awaitCommitLocked(ctx context.Context, st *userState) (domain.DashboardSummary, error) {
	for st.committed == nil && st.inflight != 0 {
		settled := st.settled
		p.mu.Unlock()
		select {
		case <-settled:
		case <-ctx.Done():
		}
		p.mu.Lock()
		if err := ctx.Err(); err != nil {
			return p.latestLocked(st), err
		}
	}
	if st.committed == nil {
		return domain.DashboardSummary{}, ErrNoCommit
	}
	return *st.committed, ErrSuperseded
}

func (p *Pipeline) latestLocked(st *userState) domain.DashboardSummary {
	if st.committed == nil {
		return domain.DashboardSummary{}
	}
	return *st.committed
}

// run loads the four panels concurrently. Each panel captures its own
// failure; no error ever escapes to the caller.
func (p *Pipeline) run(ctx context.Context, userID string, gen uint64) domain.DashboardSummary {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "dashboard.run", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Int64("dashboard.generation", int64(gen)),
	))
	defer span.End()

	groups := sync.OnceValues(func() ([]domain.Group, error) {
		ctx, span := p.tracer.Start(ctx, "dashboard.groups")
		defer span.End()
		g, err := p.repo.UserGroups(ctx, userID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "groups")
		}
		return g, err
	})
	details := sync.OnceValues(func() ([]GroupResult, error) {
		g, err := groups()
		if err != nil {
			return nil, err
		}
		return p.fetchDetails(ctx, g), nil
	})

	s := domain.DashboardSummary{
		UserID:         userID,
		Generation:     gen,
		RecentGroups:   []domain.Group{},
		UpcomingRounds: []domain.UpcomingRound{},
		RecentActivity: []domain.Activity{},
		Panels:         make(map[domain.Panel]domain.PanelState, len(domain.Panels)),
	}
	var (
		mu          sync.Mutex
		groupErrors []domain.GroupError
	)
	set := func(panel domain.Panel, err error, apply func()) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			s.Panels[panel] = domain.PanelState{Error: err.Error()}
			return
		}
		apply()
		s.Panels[panel] = domain.PanelState{OK: true}
	}

	var g errgroup.Group
	g.Go(func() error {
		results, err := details()
		var stats domain.Stats
		var errs []domain.GroupError
		if err == nil {
			stats, errs = Reduce(results)
		}
		set(domain.PanelStats, err, func() {
			s.Stats = stats
			groupErrors = errs
		})
		return nil
	})
	g.Go(func() error {
		all, err := groups()
		set(domain.PanelRecentGroups, err, func() {
			s.RecentGroups = RecentGroups(all, p.opts.RecentLimit)
		})
		return nil
	})
	g.Go(func() error {
		results, err := details()
		set(domain.PanelUpcomingRounds, err, func() {
			s.UpcomingRounds = UpcomingRounds(results, p.opts.UpcomingLimit)
		})
		return nil
	})
	g.Go(func() error {
		activity, err := p.activity(ctx, userID)
		set(domain.PanelActivity, err, func() {
			s.RecentActivity = activity
		})
		return nil
	})
	_ = g.Wait()

	s.GroupErrors = groupErrors
	s.GeneratedAt = p.opts.Now().UTC()

	failed := 0
	for _, panel := range domain.Panels {
		if !s.PanelOK(panel) {
			failed++
			p.metrics.panelFailures.WithLabelValues(string(panel)).Inc()
			p.logger.WarnContext(ctx, "panel failed to load",
				slog.String("user_id", userID),
				slog.String("panel", string(panel)),
				slog.String("error", s.Panels[panel].Error),
			)
		}
	}
	s.Partial = failed > 0 || len(s.GroupErrors) > 0

	outcome := "complete"
	switch {
	case ctx.Err() != nil:
		outcome = "cancelled"
	case s.Partial:
		outcome = "partial"
		span.SetStatus(codes.Error, "partial")
	}
	span.SetAttributes(
		attribute.Int("dashboard.recent_groups", len(s.RecentGroups)),
		attribute.Int("dashboard.group_errors", len(s.GroupErrors)),
		attribute.Int("dashboard.failed_panels", failed),
	)
	p.metrics.runs.WithLabelValues(outcome).Inc()
	p.metrics.runDuration.Observe(time.Since(start).Seconds())
	return s
}

// fetchDetails loads members and rounds of every group. Results are
// written by index, so completion order is irrelevant; one failing fetch
// does not cancel the others.
func (p *Pipeline) fetchDetails(ctx context.Context, groups []domain.Group) []GroupResult {
	ctx, span := p.tracer.Start(ctx, "dashboard.details",
		trace.WithAttributes(attribute.Int("dashboard.groups", len(groups))))
	defer span.End()

	results := make([]GroupResult, len(groups))
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)

	for i, group := range groups {
		results[i].Group = group
		g.Go(func() error {
			results[i].Members, results[i].MembersErr = p.repo.GroupMembers(ctx, group.ID)
			return nil
		})
		g.Go(func() error {
			results[i].Rounds, results[i].RoundsErr = p.repo.GroupRounds(ctx, group.ID)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) activity(ctx context.Context, userID string) ([]domain.Activity, error) {
	if p.journal == nil {
		return []domain.Activity{}, nil
	}
	entries, err := p.journal.List(ctx, userID, domain.ListOpts{Limit: p.opts.ActivityLimit})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.Activity{}
	}
	return entries, nil
}
