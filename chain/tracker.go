package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"procurement-client/core/procurement"
	"procurement-client/metrics"
)

// Phase is the lifecycle position of a tracked transaction.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseSubmitted  Phase = "submitted"
	PhaseConfirming Phase = "confirming"
	PhaseConfirmed  Phase = "confirmed"
	PhaseFailed     Phase = "failed"
)

func (p Phase) rank() int {
	switch p {
	case PhaseSubmitted:
		return 1
	case PhaseConfirming:
		return 2
	case PhaseConfirmed, PhaseFailed:
		return 3
	default:
		return 0
	}
}

// Terminal reports whether no further transitions can happen.
func (p Phase) Terminal() bool { return p == PhaseConfirmed || p == PhaseFailed }

// TransactionRecord is the observable state of one tracked transaction.
type TransactionRecord struct {
	Hash          string    `json:"hash,omitempty"`
	Function      string    `json:"function,omitempty"`
	Phase         Phase     `json:"phase"`
	Confirmations uint64    `json:"confirmations"`
	BlockNumber   uint64    `json:"block_number,omitempty"`
	Error         string    `json:"error,omitempty"`
	Err           error     `json:"-"`
	SubmittedAt   time.Time `json:"submitted_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// ReceiptSource is what the tracker polls.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// TrackerConfig bounds polling.
type TrackerConfig struct {
	PollInterval          time.Duration
	Timeout               time.Duration
	RequiredConfirmations uint64
}

// DefaultTrackerConfig waits up to three minutes for one confirmation.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		PollInterval:          4 * time.Second,
		Timeout:               3 * time.Minute,
		RequiredConfirmations: 1,
	}
}

// Tracker follows at most one transaction at a time and publishes every
// phase change to its subscribers.
type Tracker struct {
	source  ReceiptSource
	cfg     TrackerConfig
	metrics *metrics.Metrics

	mu      sync.Mutex
	record  TransactionRecord
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	subs    map[int]func(TransactionRecord)
	nextSub int
}

// NewTracker creates an idle tracker.
func NewTracker(source ReceiptSource, cfg TrackerConfig, m *metrics.Metrics) *Tracker {
	def := DefaultTrackerConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequiredConfirmations == 0 {
		cfg.RequiredConfirmations = def.RequiredConfirmations
	}
	closed := make(chan struct{})
	close(closed)
	return &Tracker{
		source:  source,
		cfg:     cfg,
		metrics: m,
		record:  TransactionRecord{Phase: PhaseNotStarted},
		done:    closed,
		subs:    make(map[int]func(TransactionRecord)),
	}
}

// Snapshot returns the current record.
func (t *Tracker) Snapshot() TransactionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record
}

// Subscribe registers fn for every subsequent change. The returned func
// removes the subscription.
func (t *Tracker) Subscribe(fn func(TransactionRecord)) func() {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Track starts following handle. Any previously tracked transaction is
// abandoned first. The Submitted phase is published before Track returns.
func (t *Tracker) Track(ctx context.Context, handle *TransactionHandle) {
	t.Stop()

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.cancel = cancel
	t.done = done
	now := time.Now()
	t.record = TransactionRecord{
		Hash:        handle.Hash.Hex(),
		Function:    handle.Function,
		Phase:       PhaseSubmitted,
		SubmittedAt: handle.SubmittedAt,
		UpdatedAt:   now,
	}
	rec, subs := t.record, t.subscribersLocked()
	t.mu.Unlock()
	notify(subs, rec)

	go t.poll(pollCtx, gen, handle.Hash, done)
}

// Stop abandons the active transaction, if any, and waits for its polling
// goroutine to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-done
}

// Wait blocks until the active transaction is terminal or ctx ends.
func (t *Tracker) Wait(ctx context.Context) (TransactionRecord, error) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	select {
	case <-done:
		return t.Snapshot(), nil
	case <-ctx.Done():
		return t.Snapshot(), ctx.Err()
	}
}

func (t *Tracker) poll(ctx context.Context, gen uint64, hash common.Hash, done chan struct{}) {
	defer close(done)

	t.transition(gen, PhaseConfirming, func(r *TransactionRecord) {})

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(t.cfg.Timeout)
	defer deadline.Stop()

	for {
		if t.check(ctx, gen, hash) {
			return
		}
		select {
		case <-ctx.Done():
			t.fail(gen, fmt.Errorf("%w: %v", procurement.ErrTrackingStopped, ctx.Err()))
			return
		case <-deadline.C:
			t.fail(gen, &TransactionTimeoutError{Hash: hash.Hex(), After: t.cfg.Timeout})
			return
		case <-ticker.C:
		}
	}
}

// check polls once and reports whether a terminal phase was reached.
func (t *Tracker) check(ctx context.Context, gen uint64, hash common.Hash) bool {
	receipt, err := t.source.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return false
	}
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Failed to fetch receipt for %s: %v", hash.Hex(), err)
		}
		return false
	}
	if receipt.Status == types.ReceiptStatusFailed {
		t.fail(gen, ErrReverted(hash))
		return true
	}

	included := blockNumber(receipt.BlockNumber)
	head, err := t.source.BlockNumber(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Failed to fetch block number: %v", err)
		}
		return false
	}
	var confs uint64
	if head >= included {
		confs = head - included + 1
	}

	if confs >= t.cfg.RequiredConfirmations {
		return t.transition(gen, PhaseConfirmed, func(r *TransactionRecord) {
			r.Confirmations = confs
			r.BlockNumber = included
		})
	}
	t.transition(gen, PhaseConfirming, func(r *TransactionRecord) {
		r.Confirmations = confs
		r.BlockNumber = included
	})
	return false
}

// ErrReverted builds the failure for a receipt with status 0.
func ErrReverted(hash common.Hash) error {
	return fmt.Errorf("%w: %s", procurement.ErrTransactionFailed, hash.Hex())
}

func (t *Tracker) fail(gen uint64, err error) {
	t.transition(gen, PhaseFailed, func(r *TransactionRecord) {
		r.Err = err
		r.Error = err.Error()
	})
}

// transition applies a phase change if it belongs to the current
// transaction and does not move backwards. Same-phase updates are allowed
// for Confirming so confirmation counts can advance.
func (t *Tracker) transition(gen uint64, phase Phase, mutate func(*TransactionRecord)) bool {
	t.mu.Lock()
	if gen != t.gen || t.record.Phase.Terminal() {
		t.mu.Unlock()
		return false
	}
	cur := t.record.Phase
	if phase.rank() < cur.rank() || (phase == cur && phase != PhaseConfirming) {
		t.mu.Unlock()
		return false
	}
	next := t.record
	next.Phase = phase
	next.UpdatedAt = time.Now()
	mutate(&next)
	if phase == cur && next.Confirmations == t.record.Confirmations && next.BlockNumber == t.record.BlockNumber {
		t.mu.Unlock()
		return false
	}
	t.record = next
	rec, subs := t.record, t.subscribersLocked()
	t.mu.Unlock()

	if phase.Terminal() {
		t.metrics.ObserveTransaction(rec.Function, string(phase), time.Since(rec.SubmittedAt))
		log.Printf("Transaction %s reached %s", rec.Hash, phase)
	}
	notify(subs, rec)
	return true
}

func (t *Tracker) subscribersLocked() []func(TransactionRecord) {
	subs := make([]func(TransactionRecord), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(TransactionRecord), rec TransactionRecord) {
	for _, fn := range subs {
		fn(rec)
	}
}

func blockNumber(n *big.Int) uint64 {
	if n == nil {
		return 0
	}
	return n.Uint64()
}
