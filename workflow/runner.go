// Package workflow drives the write side of the client: validating forms,
// uploading evidence, sending contract transactions and waiting for them
// to confirm.
package workflow

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"procurement-client/chain"
	"procurement-client/core/procurement"
	"procurement-client/metrics"
	"procurement-client/repository"
)

// State is the position of a workflow attempt.
type State string

const (
	StateIdle                  State = "idle"
	StateValidating            State = "validating"
	StateApprovingToken        State = "approving_token"
	StateUploadingEvidence     State = "uploading_evidence"
	StateSubmittingTransaction State = "submitting_transaction"
	StateAwaitingConfirmation  State = "awaiting_confirmation"
	StateDone                  State = "done"
	StateFailed                State = "failed"
)

func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Account is the connected-wallet guard; session.Controller satisfies it.
type Account interface {
	RequireAccount() (common.Address, error)
}

// Tracker follows one transaction; chain.Tracker satisfies it.
type Tracker interface {
	Track(ctx context.Context, handle *chain.TransactionHandle)
	Wait(ctx context.Context) (chain.TransactionRecord, error)
	Stop()
	Subscribe(fn func(chain.TransactionRecord)) func()
}

// Refresher reloads read-side state after a confirmed write.
type Refresher interface {
	Refresh(ctx context.Context) repository.Snapshot
}

// Progress is the observable state of the current attempt.
type Progress struct {
	AttemptID   string                  `json:"attempt_id,omitempty"`
	Kind        string                  `json:"kind"`
	State       State                   `json:"state"`
	EvidenceCID string                  `json:"evidence_cid,omitempty"`
	Transaction chain.TransactionRecord `json:"transaction"`
	Err         error                   `json:"-"`
	Error       string                  `json:"error,omitempty"`
	Message     string                  `json:"message,omitempty"`
	StartedAt   time.Time               `json:"started_at,omitempty"`
	UpdatedAt   time.Time               `json:"updated_at,omitempty"`
}

// runner holds what both workflows share: one attempt at a time, its
// progress, and the tracker that confirms its transactions.
type runner struct {
	kind      string
	tracker   Tracker
	refresher Refresher
	metrics   *metrics.Metrics

	mu       sync.Mutex
	progress Progress
	running  bool
	subs     map[int]func(Progress)
	nextSub  int

	// pending is a sent transaction whose outcome is still unknown because
	// tracking stopped or timed out. Retry tracks it again instead of
	// sending a second write.
	pending *chain.TransactionHandle
}

func (r *runner) init(kind string, tracker Tracker, refresher Refresher, m *metrics.Metrics) {
	r.kind = kind
	r.tracker = tracker
	r.refresher = refresher
	r.metrics = m
	r.progress = Progress{Kind: kind, State: StateIdle, Transaction: chain.TransactionRecord{Phase: chain.PhaseNotStarted}}
	r.subs = make(map[int]func(Progress))
}

// Snapshot returns the current progress.
func (r *runner) Snapshot() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Subscribe registers fn for every progress change.
func (r *runner) Subscribe(fn func(Progress)) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Abandon stops waiting on the active transaction. The attempt ends Failed.
func (r *runner) Abandon() {
	if r.tracker != nil {
		r.tracker.Stop()
	}
}

// begin claims the runner for a new attempt.
func (r *runner) begin(onStart func()) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrBusy
	}
	r.running = true
	now := time.Now()
	r.progress = Progress{
		AttemptID:   uuid.NewString(),
		Kind:        r.kind,
		State:       StateValidating,
		Transaction: chain.TransactionRecord{Phase: chain.PhaseNotStarted},
		StartedAt:   now,
		UpdatedAt:   now,
	}
	if onStart != nil {
		onStart()
	}
	p, subs := r.progress, r.subscribersLocked()
	r.mu.Unlock()
	notify(subs, p)
	return nil
}

func (r *runner) set(mutate func(*Progress)) {
	r.mu.Lock()
	mutate(&r.progress)
	r.progress.UpdatedAt = time.Now()
	p, subs := r.progress, r.subscribersLocked()
	r.mu.Unlock()
	notify(subs, p)
}

func (r *runner) enter(state State) {
	r.set(func(p *Progress) { p.State = state })
}

// fail ends the attempt. The caller's form is left untouched.
func (r *runner) fail(err error) (Progress, error) {
	r.set(func(p *Progress) {
		p.State = StateFailed
		p.Err = err
		p.Error = err.Error()
		p.Message = Message(err)
	})
	p := r.release()
	log.Printf("%s attempt %s failed: %v", r.kind, p.AttemptID, err)
	r.metrics.ObserveWorkflow(r.kind, string(StateFailed))
	return p, err
}

// done ends the attempt successfully and refreshes the read side once.
// The refresh outlives the caller's context.
func (r *runner) done(ctx context.Context) (Progress, error) {
	ctx = context.WithoutCancel(ctx)
	r.enter(StateDone)
	p := r.release()
	r.metrics.ObserveWorkflow(r.kind, string(StateDone))
	log.Printf("%s attempt %s confirmed in %s", r.kind, p.AttemptID, p.Transaction.Hash)
	if r.refresher != nil {
		r.refresher.Refresh(ctx)
	}
	return p, nil
}

func (r *runner) release() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	return r.progress
}

// takePending returns and clears the unsettled transaction, if any.
func (r *runner) takePending() *chain.TransactionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.pending
	r.pending = nil
	return h
}

// confirm tracks handle until it is terminal and returns nil only for
// Confirmed. Polling is detached from ctx: once a transaction is sent only
// Abandon or the tracker timeout end it, never the caller going away.
// Unless the receipt settled the outcome, handle is kept for Retry.
func (r *runner) confirm(ctx context.Context, handle *chain.TransactionHandle) error {
	r.mu.Lock()
	r.pending = handle
	r.mu.Unlock()

	r.enter(StateAwaitingConfirmation)
	unsub := r.tracker.Subscribe(func(rec chain.TransactionRecord) {
		r.set(func(p *Progress) { p.Transaction = rec })
	})
	defer unsub()

	trackCtx := context.WithoutCancel(ctx)
	r.tracker.Track(trackCtx, handle)
	rec, _ := r.tracker.Wait(trackCtx)

	err := rec.Err
	if rec.Phase == chain.PhaseConfirmed {
		err = nil
	} else if err == nil {
		err = procurement.ErrTrackingStopped
	}
	if err == nil || errors.Is(err, procurement.ErrTransactionFailed) {
		r.mu.Lock()
		if r.pending == handle {
			r.pending = nil
		}
		r.mu.Unlock()
	}
	return err
}

func (r *runner) subscribersLocked() []func(Progress) {
	subs := make([]func(Progress), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Progress), p Progress) {
	for _, fn := range subs {
		fn(p)
	}
}
