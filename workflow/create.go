package workflow

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"procurement-client/chain"
	"procurement-client/metrics"
)

const KindCreateProject = "create_project"

// CreateProjectForm is the agency's "assign contract" form.
type CreateProjectForm struct {
	Description       string    `json:"description"`
	Budget            string    `json:"budget"`
	ContractorAddress string    `json:"contractor_address"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
}

// ProjectCreator sends createProject; chain.Gateway satisfies it.
type ProjectCreator interface {
	CreateProject(ctx context.Context, args chain.CreateProjectArgs) (*chain.TransactionHandle, error)
}

// Approver raises the token allowance before a funded project is created;
// chain.TokenApprover satisfies it.
type Approver interface {
	HasAllowance(ctx context.Context, owner common.Address, required *big.Int) (bool, error)
	Approve(ctx context.Context, required *big.Int) (*chain.TransactionHandle, error)
}

type CreateProjectDeps struct {
	Account   Account
	Chain     ProjectCreator
	Approver  Approver // optional
	Tracker   Tracker
	Refresher Refresher
	Metrics   *metrics.Metrics
}

// CreateProjectWorkflow assigns a new project to a contractor.
type CreateProjectWorkflow struct {
	runner
	deps CreateProjectDeps

	// guarded by runner.mu
	form CreateProjectForm
}

func NewCreateProject(deps CreateProjectDeps) *CreateProjectWorkflow {
	w := &CreateProjectWorkflow{deps: deps}
	w.init(KindCreateProject, deps.Tracker, deps.Refresher, deps.Metrics)
	return w
}

func (w *CreateProjectWorkflow) Form() CreateProjectForm {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// Validate reports every invalid field at once and, on success, returns
// the contract arguments.
func (w *CreateProjectWorkflow) Validate(form CreateProjectForm) (chain.CreateProjectArgs, error) {
	verr := newValidationError("project form is incomplete")
	var args chain.CreateProjectArgs

	args.Description = strings.TrimSpace(form.Description)
	if args.Description == "" {
		verr.add("description", "description is required", form.Description, true)
	}

	budget, ok := new(big.Int).SetString(strings.TrimSpace(form.Budget), 10)
	switch {
	case strings.TrimSpace(form.Budget) == "":
		verr.add("budget", "budget is required", form.Budget, true)
	case !ok || budget.Sign() <= 0:
		verr.add("budget", "budget must be a whole number of at least 1", form.Budget, true)
	default:
		args.Budget = budget
	}

	addr := strings.TrimSpace(form.ContractorAddress)
	switch {
	case addr == "":
		verr.add("contractor_address", "contractor address is required", form.ContractorAddress, true)
	case !common.IsHexAddress(addr) || common.HexToAddress(addr) == (common.Address{}):
		verr.add("contractor_address", "contractor address must be a 0x-prefixed 20-byte hex address", form.ContractorAddress, true)
	default:
		args.ContractorAddress = common.HexToAddress(addr)
	}

	if form.StartDate.IsZero() {
		verr.add("start_date", "start date is required", nil, true)
	}
	switch {
	case form.EndDate.IsZero():
		verr.add("end_date", "end date is required", nil, true)
	case !form.StartDate.IsZero() && !form.EndDate.After(form.StartDate):
		verr.add("end_date", fmt.Sprintf("end date must be after %s", form.StartDate.Format(time.DateOnly)), form.EndDate, true)
	}
	args.StartDate = form.StartDate.Unix()
	args.EndDate = form.EndDate.Unix()

	if w.deps.Account == nil {
		verr.add("account", "connect your wallet", nil, true)
	} else if _, err := w.deps.Account.RequireAccount(); err != nil {
		verr.add("account", "connect your wallet", nil, true)
	}
	return args, verr.orNil()
}

// Submit validates form, approves the budget if an Approver is configured
// and the allowance is short, then sends createProject and waits.
func (w *CreateProjectWorkflow) Submit(ctx context.Context, form CreateProjectForm) (Progress, error) {
	return w.run(ctx, form, nil)
}

// Retry repeats the last failed attempt with the preserved form. A sent
// approval or createProject whose tracking stopped or timed out is tracked
// again rather than resent.
func (w *CreateProjectWorkflow) Retry(ctx context.Context) (Progress, error) {
	w.mu.Lock()
	failed := w.progress.State == StateFailed
	form := w.form
	w.mu.Unlock()
	if !failed {
		return w.Snapshot(), ErrNotRetryable
	}
	return w.run(ctx, form, w.takePending())
}

func (w *CreateProjectWorkflow) run(ctx context.Context, form CreateProjectForm, sent *chain.TransactionHandle) (Progress, error) {
	if err := w.begin(func() {
		w.form = form
		w.pending = nil
	}); err != nil {
		if sent != nil {
			w.mu.Lock()
			w.pending = sent
			w.mu.Unlock()
		}
		return w.Snapshot(), err
	}

	args, err := w.Validate(form)
	if err != nil {
		return w.fail(err)
	}

	switch {
	case sent != nil && sent.Function == chain.FnCreateProject:
		if err := w.confirm(ctx, sent); err != nil {
			return w.fail(err)
		}
		return w.done(ctx)
	case sent != nil:
		w.enter(StateApprovingToken)
		if err := w.confirm(ctx, sent); err != nil {
			return w.fail(err)
		}
	case w.deps.Approver != nil:
		owner, _ := w.deps.Account.RequireAccount()
		ok, err := w.deps.Approver.HasAllowance(ctx, owner, args.Budget)
		if err != nil {
			return w.fail(err)
		}
		if !ok {
			w.enter(StateApprovingToken)
			handle, err := w.deps.Approver.Approve(ctx, args.Budget)
			if err != nil {
				return w.fail(err)
			}
			if err := w.confirm(ctx, handle); err != nil {
				return w.fail(err)
			}
		}
	}

	w.enter(StateSubmittingTransaction)
	handle, err := w.deps.Chain.CreateProject(ctx, args)
	if err != nil {
		return w.fail(err)
	}
	if err := w.confirm(ctx, handle); err != nil {
		return w.fail(err)
	}
	return w.done(ctx)
}
