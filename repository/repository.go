// Package repository is the read side of the client: it loads projects,
// submissions and rejected milestones for the connected account and keeps
// one snapshot per query.
package repository

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"procurement-client/chain"
	"procurement-client/core/procurement"
	"procurement-client/metrics"
	"procurement-client/session"
)

// Source is the subset of the chain gateway the repository reads from.
type Source interface {
	ContractorsProjects(ctx context.Context, contractor common.Address) ([]procurement.Project, error)
	SubmittedProjects(ctx context.Context, agency common.Address) ([]procurement.Project, error)
	RejectedMilestones(ctx context.Context, contractor common.Address) ([]procurement.Milestone, error)
	AllContractors(ctx context.Context) ([]common.Address, error)
}

// LoadState separates "not loaded yet" from "loaded and empty".
type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
	StateLoaded  LoadState = "loaded"
	StateFailed  LoadState = "failed"
)

// Query is the cached result of one read.
type Query[T any] struct {
	State    LoadState      `json:"state"`
	Data     T              `json:"data"`
	Err      error          `json:"-"`
	Error    string         `json:"error,omitempty"`
	Account  common.Address `json:"account"`
	LoadedAt time.Time      `json:"loaded_at,omitempty"`
}

func (q Query[T]) Loaded() bool { return q.State == StateLoaded }

// Snapshot holds every query for one account.
type Snapshot struct {
	Account            common.Address                 `json:"account"`
	Epoch              uint64                         `json:"epoch"`
	ContractorProjects Query[[]procurement.Project]   `json:"contractor_projects"`
	SubmittedProjects  Query[[]procurement.Project]   `json:"submitted_projects"`
	RejectedMilestones Query[[]procurement.Milestone] `json:"rejected_milestones"`
	Contractors        Query[[]common.Address]        `json:"contractors"`
}

// Repository caches query results for the session's current account.
type Repository struct {
	source  Source
	session *session.Controller
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.Mutex
	snap   Snapshot
	gen    uint64
	cancel context.CancelFunc
	unsub  func()
}

func New(source Source, sess *session.Controller, m *metrics.Metrics) *Repository {
	s := sess.Snapshot()
	r := &Repository{
		source:  source,
		session: sess,
		metrics: m,
		now:     time.Now,
		snap:    emptySnapshot(s),
	}
	r.unsub = sess.Subscribe(r.onSession)
	return r
}

// Close detaches from the session and cancels in-flight queries.
func (r *Repository) Close() {
	r.unsub()
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
}

func emptySnapshot(s session.State) Snapshot {
	snap := Snapshot{Account: s.Account, Epoch: s.Epoch}
	snap.ContractorProjects.State = StateIdle
	snap.SubmittedProjects.State = StateIdle
	snap.RejectedMilestones.State = StateIdle
	snap.Contractors.State = StateIdle
	return snap
}

func (r *Repository) onSession(s session.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Epoch <= r.snap.Epoch {
		return
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.gen++
	r.snap = emptySnapshot(s)
}

// Snapshot returns the cached queries.
func (r *Repository) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Stats recomputes dashboard figures from the contractor snapshot. ok is
// false until the projects query has loaded.
func (r *Repository) Stats() (stats procurement.Stats, ok bool) {
	snap := r.Snapshot()
	if !snap.ContractorProjects.Loaded() {
		return procurement.Stats{}, false
	}
	return procurement.ComputeStats(snap.ContractorProjects.Data, snap.RejectedMilestones.Data, r.now()), true
}

// FindProject looks id up in the loaded contractor and review snapshots.
func (r *Repository) FindProject(id string) (procurement.Project, error) {
	snap := r.Snapshot()
	if !snap.ContractorProjects.Loaded() && !snap.SubmittedProjects.Loaded() {
		return procurement.Project{}, procurement.ErrNotLoaded
	}
	for _, list := range [][]procurement.Project{snap.ContractorProjects.Data, snap.SubmittedProjects.Data} {
		for _, p := range list {
			if p.ID == id {
				return p, nil
			}
		}
	}
	return procurement.Project{}, procurement.ErrProjectNotFound
}

func (r *Repository) ListForContractor(ctx context.Context, addr common.Address) ([]procurement.Project, error) {
	return r.source.ContractorsProjects(ctx, addr)
}

func (r *Repository) ListSubmittedForReview(ctx context.Context, addr common.Address) ([]procurement.Project, error) {
	projects, err := r.source.SubmittedProjects(ctx, addr)
	if err != nil {
		return nil, err
	}
	out := projects[:0:0]
	for _, p := range projects {
		if p.Submission.Submitted() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Repository) ListRejectedMilestones(ctx context.Context, addr common.Address) ([]procurement.Milestone, error) {
	return r.source.RejectedMilestones(ctx, addr)
}

func (r *Repository) ListContractors(ctx context.Context) ([]common.Address, error) {
	return r.source.AllContractors(ctx)
}

// Refresh reloads every query for the current account concurrently. A
// failing query does not affect the others. Results that arrive after the
// account changed are dropped.
func (r *Repository) Refresh(ctx context.Context) Snapshot {
	r.mu.Lock()
	// Read under r.mu so a concurrent account switch cannot be undone here.
	state := r.session.Snapshot()
	if state.Epoch > r.snap.Epoch {
		r.snap = emptySnapshot(state)
	}
	if r.cancel != nil {
		r.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.gen++
	t := token{epoch: state.Epoch, gen: r.gen}
	r.mu.Unlock()
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	addr := state.Account
	g.Go(func() error {
		load(gctx, r, t, addr, func(s *Snapshot) *Query[[]procurement.Project] { return &s.ContractorProjects },
			func(ctx context.Context) ([]procurement.Project, error) { return r.ListForContractor(ctx, addr) })
		return nil
	})
	g.Go(func() error {
		load(gctx, r, t, addr, func(s *Snapshot) *Query[[]procurement.Project] { return &s.SubmittedProjects },
			func(ctx context.Context) ([]procurement.Project, error) { return r.ListSubmittedForReview(ctx, addr) })
		return nil
	})
	g.Go(func() error {
		load(gctx, r, t, addr, func(s *Snapshot) *Query[[]procurement.Milestone] { return &s.RejectedMilestones },
			func(ctx context.Context) ([]procurement.Milestone, error) { return r.ListRejectedMilestones(ctx, addr) })
		return nil
	})
	g.Go(func() error {
		load(gctx, r, t, addr, func(s *Snapshot) *Query[[]common.Address] { return &s.Contractors },
			r.ListContractors)
		return nil
	})
	_ = g.Wait()

	return r.Snapshot()
}

// token identifies one Refresh call for one account.
type token struct {
	epoch uint64
	gen   uint64
}

func load[T any](ctx context.Context, r *Repository, t token, addr common.Address, slot func(*Snapshot) *Query[T], fetch func(context.Context) (T, error)) {
	if !r.update(t, func(s *Snapshot) {
		q := slot(s)
		q.State = StateLoading
		q.Account = addr
	}) {
		return
	}

	data, err := fetch(ctx)

	var qerr *chain.ChainQueryError
	skipped := errors.As(err, &qerr) && qerr.Skipped()
	if err != nil && !skipped && ctx.Err() == nil {
		log.Printf("Query for %s failed: %v", addr.Hex(), err)
	}

	applied := r.update(t, func(s *Snapshot) {
		q := slot(s)
		switch {
		case skipped:
			*q = Query[T]{State: StateIdle, Account: addr}
		case err != nil:
			q.State = StateFailed
			q.Err = err
			q.Error = err.Error()
		default:
			*q = Query[T]{State: StateLoaded, Data: data, Account: addr, LoadedAt: r.now()}
		}
	})
	if !applied {
		r.metrics.ObserveStaleResult()
	}
}

// update applies fn only while t is the latest refresh of the session's
// current account.
func (r *Repository) update(t token, fn func(*Snapshot)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != t.gen || r.snap.Epoch != t.epoch || !r.session.IsCurrent(t.epoch) {
		return false
	}
	fn(&r.snap)
	return true
}
