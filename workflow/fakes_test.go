package workflow

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"procurement-client/chain"
	"procurement-client/core/procurement"
	"procurement-client/ipfs"
	"procurement-client/repository"
)

var contractor = common.HexToAddress("0x00000000000000000000000000000000000000c1")

type fakeAccount struct{ addr common.Address }

func (a fakeAccount) RequireAccount() (common.Address, error) {
	if a.addr == (common.Address{}) {
		return common.Address{}, procurement.ErrNoAccount
	}
	return a.addr, nil
}

// receipts mines every transaction immediately with the configured status,
// or reports it not yet mined while pending is set.
type receipts struct {
	mu      sync.Mutex
	status  uint64
	pending bool
}

func (r *receipts) setStatus(s uint64) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *receipts) setPending(p bool) {
	r.mu.Lock()
	r.pending = p
	r.mu.Unlock()
}

func (r *receipts) TransactionReceipt(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: r.status, BlockNumber: big.NewInt(10)}, nil
}

func (r *receipts) BlockNumber(context.Context) (uint64, error) { return 10, nil }

func newTracker(status uint64) (*chain.Tracker, *receipts) {
	src := &receipts{status: status}
	return chain.NewTracker(src, chain.TrackerConfig{PollInterval: 2 * time.Millisecond, Timeout: time.Second}, nil), src
}

type submitCall struct {
	projectID, description, cid string
}

type fakeChain struct {
	mu      sync.Mutex
	calls   []submitCall
	creates []chain.CreateProjectArgs
	err     error
	nonce   uint64
}

func (c *fakeChain) handle(fn string) *chain.TransactionHandle {
	c.nonce++
	return &chain.TransactionHandle{
		Hash:        common.BigToHash(new(big.Int).SetUint64(c.nonce)),
		Function:    fn,
		From:        contractor,
		Nonce:       c.nonce,
		SubmittedAt: time.Now(),
	}
}

func (c *fakeChain) SubmitProject(_ context.Context, projectID, description, cid string) (*chain.TransactionHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, submitCall{projectID, description, cid})
	if c.err != nil {
		return nil, c.err
	}
	return c.handle(chain.FnSubmitProject), nil
}

func (c *fakeChain) CreateProject(_ context.Context, args chain.CreateProjectArgs) (*chain.TransactionHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creates = append(c.creates, args)
	if c.err != nil {
		return nil, c.err
	}
	return c.handle(chain.FnCreateProject), nil
}

func (c *fakeChain) submitCalls() []submitCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]submitCall(nil), c.calls...)
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
}

func (r *fakeRefresher) Refresh(context.Context) repository.Snapshot {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return repository.Snapshot{}
}

func (r *fakeRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// scriptedUploader returns per-file results; a file with block set waits
// for cancellation.
type scriptedUploader struct {
	mu        sync.Mutex
	results   map[string]uploadResult
	block     map[string]bool
	calls     int
	cancelled []string
	started   chan string
}

func (u *scriptedUploader) Upload(ctx context.Context, f ipfs.File) (string, error) {
	u.mu.Lock()
	u.calls++
	res, blocked, started := u.results[f.Name], u.block[f.Name], u.started
	u.mu.Unlock()
	if started != nil {
		started <- f.Name
	}
	if blocked {
		<-ctx.Done()
		u.mu.Lock()
		u.cancelled = append(u.cancelled, f.Name)
		u.mu.Unlock()
		return "", ctx.Err()
	}
	return res.cid, res.err
}

func (u *scriptedUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func jpeg(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0xff, 0xd8, 0xff, 0xe0})
	return data
}
