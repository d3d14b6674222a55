package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"procurement-client/core/procurement"
	"procurement-client/metrics"
)

// Backend is the subset of an Ethereum JSON-RPC client the gateway uses.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// TransactionHandle identifies a submitted write.
type TransactionHandle struct {
	Hash        common.Hash    `json:"hash"`
	Function    string         `json:"function"`
	From        common.Address `json:"from"`
	Nonce       uint64         `json:"nonce"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// Gateway issues reads and writes against one deployed contract.
type Gateway struct {
	backend  Backend
	address  common.Address
	abi      abi.ABI
	signer   Signer
	metrics  *metrics.Metrics
	gasLimit uint64
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithSigner enables writes.
func WithSigner(s Signer) Option {
	return func(g *Gateway) { g.signer = s }
}

// WithABI binds the gateway to a different contract interface.
func WithABI(parsed abi.ABI) Option {
	return func(g *Gateway) { g.abi = parsed }
}

// WithMetrics records call outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithGasLimit skips gas estimation and uses a fixed limit.
func WithGasLimit(limit uint64) Option {
	return func(g *Gateway) { g.gasLimit = limit }
}

// NewGateway binds the procurement ABI at address.
func NewGateway(backend Backend, address common.Address, opts ...Option) *Gateway {
	g := &Gateway{
		backend: backend,
		address: address,
		abi:     procurementABI,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Address returns the bound contract address.
func (g *Gateway) Address() common.Address { return g.address }

// Account returns the signer's address, or the zero address when the
// gateway is read-only.
func (g *Gateway) Account() common.Address {
	if g.signer == nil {
		return common.Address{}
	}
	return g.signer.Address()
}

// Query performs a read call and returns the decoded outputs.
func (g *Gateway) Query(ctx context.Context, fn string, args ...any) ([]any, error) {
	out, err := g.call(ctx, fn, args...)
	if err != nil {
		return nil, err
	}
	values, err := g.abi.Unpack(fn, out)
	if err != nil {
		return nil, &ChainQueryError{Function: fn, Kind: QueryDecode, Err: err}
	}
	return values, nil
}

func (g *Gateway) queryInto(ctx context.Context, fn string, dst any, args ...any) error {
	out, err := g.call(ctx, fn, args...)
	if err != nil {
		return err
	}
	if err := g.abi.UnpackIntoInterface(dst, fn, out); err != nil {
		return &ChainQueryError{Function: fn, Kind: QueryDecode, Err: err}
	}
	return nil
}

func (g *Gateway) call(ctx context.Context, fn string, args ...any) ([]byte, error) {
	method, ok := g.abi.Methods[fn]
	if !ok {
		return nil, &ChainQueryError{Function: fn, Kind: QueryDecode, Err: fmt.Errorf("unknown function %q", fn)}
	}
	if missingAccount(method, args) {
		g.metrics.ObserveQuery(fn, "skipped", 0)
		return nil, &ChainQueryError{Function: fn, Kind: QueryMissingAccount, Err: procurement.ErrNoAccount}
	}
	data, err := g.abi.Pack(fn, args...)
	if err != nil {
		return nil, &ChainQueryError{Function: fn, Kind: QueryDecode, Err: err}
	}

	start := time.Now()
	to := g.address
	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{From: g.Account(), To: &to, Data: data}, nil)
	if err != nil {
		g.metrics.ObserveQuery(fn, "error", time.Since(start))
		return nil, &ChainQueryError{Function: fn, Kind: QueryRPC, Err: err}
	}
	g.metrics.ObserveQuery(fn, "ok", time.Since(start))
	return out, nil
}

// missingAccount reports whether any address input is the zero address.
// Such calls are never sent: the contract would answer for 0x0.
func missingAccount(method abi.Method, args []any) bool {
	for i, input := range method.Inputs {
		if input.Type.T != abi.AddressTy || i >= len(args) {
			continue
		}
		switch v := args[i].(type) {
		case common.Address:
			if v == (common.Address{}) {
				return true
			}
		case *common.Address:
			if v == nil || *v == (common.Address{}) {
				return true
			}
		case nil:
			return true
		}
	}
	return false
}

// Execute submits a write. It is not idempotent: every call sends a new
// transaction, so callers must not retry blindly.
func (g *Gateway) Execute(ctx context.Context, fn string, args ...any) (*TransactionHandle, error) {
	if g.signer == nil {
		return nil, classifyWriteError(fn, procurement.ErrNoAccount)
	}
	data, err := g.abi.Pack(fn, args...)
	if err != nil {
		return nil, &ChainWriteError{Function: fn, Kind: WriteRPC, Err: fmt.Errorf("encode arguments: %w", err)}
	}

	from := g.signer.Address()
	to := g.address
	nonce, err := g.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, classifyWriteError(fn, fmt.Errorf("fetch nonce: %w", err))
	}
	gasPrice, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classifyWriteError(fn, fmt.Errorf("suggest gas price: %w", err))
	}
	gas := g.gasLimit
	if gas == 0 {
		gas, err = g.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
		if err != nil {
			return nil, classifyWriteError(fn, fmt.Errorf("estimate gas: %w", err))
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := g.signer.SignTx(ctx, tx)
	if err != nil {
		werr := classifyWriteError(fn, err)
		g.metrics.ObserveWrite(fn, string(werr.Kind))
		return nil, werr
	}
	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		werr := classifyWriteError(fn, err)
		g.metrics.ObserveWrite(fn, string(werr.Kind))
		return nil, werr
	}
	g.metrics.ObserveWrite(fn, "submitted")

	log.Printf("Submitted %s transaction %s (nonce %d)", fn, signed.Hash().Hex(), nonce)
	return &TransactionHandle{
		Hash:        signed.Hash(),
		Function:    fn,
		From:        from,
		Nonce:       nonce,
		SubmittedAt: time.Now(),
	}, nil
}

// ContractorsProjects lists projects assigned to a contractor.
func (g *Gateway) ContractorsProjects(ctx context.Context, contractor common.Address) ([]procurement.Project, error) {
	return g.projects(ctx, FnGetContractorsProject, contractor)
}

// SubmittedProjects lists projects awaiting review by an agency.
func (g *Gateway) SubmittedProjects(ctx context.Context, agency common.Address) ([]procurement.Project, error) {
	return g.projects(ctx, FnGetSubmittedProject, agency)
}

func (g *Gateway) projects(ctx context.Context, fn string, account common.Address) ([]procurement.Project, error) {
	var tuples []projectTuple
	if err := g.queryInto(ctx, fn, &tuples, account); err != nil {
		return nil, err
	}
	projects := make([]procurement.Project, 0, len(tuples))
	for _, t := range tuples {
		projects = append(projects, t.toProject())
	}
	return projects, nil
}

// RejectedMilestones lists milestones an agency sent back for revision.
func (g *Gateway) RejectedMilestones(ctx context.Context, contractor common.Address) ([]procurement.Milestone, error) {
	var tuples []milestoneTuple
	if err := g.queryInto(ctx, FnGetRejectedProject, &tuples, contractor); err != nil {
		return nil, err
	}
	milestones := make([]procurement.Milestone, 0, len(tuples))
	for _, t := range tuples {
		milestones = append(milestones, t.toMilestone())
	}
	return milestones, nil
}

// AllContractors lists every registered contractor address.
func (g *Gateway) AllContractors(ctx context.Context) ([]common.Address, error) {
	var addrs []common.Address
	if err := g.queryInto(ctx, FnGetAllContractors, &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

// CreateProjectArgs are the inputs of createProject.
type CreateProjectArgs struct {
	Description       string
	Budget            *big.Int
	ContractorAddress common.Address
	StartDate         int64
	EndDate           int64
}

// CreateProject assigns a new project to a contractor.
func (g *Gateway) CreateProject(ctx context.Context, args CreateProjectArgs) (*TransactionHandle, error) {
	return g.Execute(ctx, FnCreateProject,
		args.Description,
		args.Budget,
		args.ContractorAddress,
		big.NewInt(args.StartDate),
		big.NewInt(args.EndDate),
	)
}

// SubmitProject records a contractor's deliverable.
func (g *Gateway) SubmitProject(ctx context.Context, projectID, description, evidenceCID string) (*TransactionHandle, error) {
	id, ok := new(big.Int).SetString(projectID, 10)
	if !ok || id.Sign() < 0 {
		return nil, &ChainWriteError{Function: FnSubmitProject, Kind: WriteRPC, Err: fmt.Errorf("project id %q is not an unsigned integer", projectID)}
	}
	return g.Execute(ctx, FnSubmitProject, id, description, evidenceCID)
}
