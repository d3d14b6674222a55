package workflow

import (
	"context"
	"math/big"
	"strings"

	"procurement-client/chain"
	"procurement-client/ipfs"
	"procurement-client/metrics"
)

const KindSubmission = "submission"

// SubmissionForm is what a contractor fills in to submit project evidence.
type SubmissionForm struct {
	ProjectID   string      `json:"project_id"`
	Description string      `json:"description"`
	Files       []ipfs.File `json:"-"`
}

// Submitter sends the SubmitProject transaction; chain.Gateway satisfies it.
type Submitter interface {
	SubmitProject(ctx context.Context, projectID, description, evidenceCID string) (*chain.TransactionHandle, error)
}

type SubmissionDeps struct {
	Account   Account
	Uploader  Uploader
	Chain     Submitter
	Tracker   Tracker
	Refresher Refresher
	Metrics   *metrics.Metrics
}

// SubmissionWorkflow runs one evidence submission at a time:
// validate, upload, send SubmitProject, wait for confirmation.
type SubmissionWorkflow struct {
	runner
	deps SubmissionDeps

	// guarded by runner.mu
	form    SubmissionForm
	lastCID string
}

func NewSubmission(deps SubmissionDeps) *SubmissionWorkflow {
	w := &SubmissionWorkflow{deps: deps}
	w.init(KindSubmission, deps.Tracker, deps.Refresher, deps.Metrics)
	return w
}

// Form returns the last submitted form, kept after failures for Retry.
func (w *SubmissionWorkflow) Form() SubmissionForm {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// Validate checks the form and the wallet without any network call and
// reports every problem at once.
func (w *SubmissionWorkflow) Validate(form SubmissionForm) error {
	verr := newValidationError("submission is incomplete")
	id := strings.TrimSpace(form.ProjectID)
	switch {
	case id == "":
		verr.add("project_id", "project id is required", form.ProjectID, true)
	case !isUint(id):
		verr.add("project_id", "project id must be a whole number", form.ProjectID, true)
	}
	if strings.TrimSpace(form.Description) == "" {
		verr.add("description", "description is required", form.Description, true)
	}
	if len(form.Files) == 0 {
		verr.add("evidence", "attach at least one evidence image", nil, true)
	}
	if w.deps.Account == nil {
		verr.add("account", "connect your wallet", nil, true)
	} else if _, err := w.deps.Account.RequireAccount(); err != nil {
		verr.add("account", "connect your wallet", nil, true)
	}
	return verr.orNil()
}

// Submit runs a full attempt and blocks until it is Done or Failed. The
// returned error is also recorded in the progress.
func (w *SubmissionWorkflow) Submit(ctx context.Context, form SubmissionForm) (Progress, error) {
	return w.run(ctx, form, "", nil)
}

// Retry repeats the last failed attempt with the preserved form. Evidence
// already pinned by that attempt is reused, and a SubmitProject transaction
// whose tracking stopped or timed out is tracked again rather than resent.
func (w *SubmissionWorkflow) Retry(ctx context.Context) (Progress, error) {
	w.mu.Lock()
	failed := w.progress.State == StateFailed
	form, cid := w.form, w.lastCID
	w.mu.Unlock()
	if !failed {
		return w.Snapshot(), ErrNotRetryable
	}
	return w.run(ctx, form, cid, w.takePending())
}

func (w *SubmissionWorkflow) run(ctx context.Context, form SubmissionForm, knownCID string, sent *chain.TransactionHandle) (Progress, error) {
	if err := w.begin(func() {
		w.form = form
		w.lastCID = knownCID
		w.pending = nil
	}); err != nil {
		if sent != nil {
			w.mu.Lock()
			w.pending = sent
			w.mu.Unlock()
		}
		return w.Snapshot(), err
	}

	if sent != nil {
		w.set(func(p *Progress) { p.EvidenceCID = knownCID })
		if err := w.confirm(ctx, sent); err != nil {
			return w.fail(err)
		}
		return w.done(ctx)
	}

	if err := w.Validate(form); err != nil {
		return w.fail(err)
	}

	cid := knownCID
	if cid == "" {
		w.enter(StateUploadingEvidence)
		var err error
		cid, err = uploadFirst(ctx, w.deps.Uploader, form.Files)
		if err != nil {
			return w.fail(err)
		}
		w.mu.Lock()
		w.lastCID = cid
		w.mu.Unlock()
	}

	w.set(func(p *Progress) {
		p.State = StateSubmittingTransaction
		p.EvidenceCID = cid
	})
	handle, err := w.deps.Chain.SubmitProject(ctx, strings.TrimSpace(form.ProjectID), form.Description, cid)
	if err != nil {
		return w.fail(err)
	}

	if err := w.confirm(ctx, handle); err != nil {
		return w.fail(err)
	}
	return w.done(ctx)
}

func isUint(s string) bool {
	n, ok := new(big.Int).SetString(s, 10)
	return ok && n.Sign() >= 0
}
