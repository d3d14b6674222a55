package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend answers JSON-RPC calls from canned values.
type fakeBackend struct {
	mu sync.Mutex

	callResult []byte
	callErr    error
	calls      []ethereum.CallMsg

	nonce    uint64
	gasPrice *big.Int
	gas      uint64
	sendErr  error
	sent     []*types.Transaction

	receipts map[common.Hash][]receiptStep
	head     uint64
}

type receiptStep struct {
	receipt *types.Receipt
	err     error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nonce:    7,
		gasPrice: big.NewInt(1_000_000_000),
		gas:      90_000,
		receipts: make(map[common.Hash][]receiptStep),
	}
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	return f.callResult, f.callErr
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.gas, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

// TransactionReceipt replays the scripted steps for hash; the last step
// repeats forever.
func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	steps := f.receipts[hash]
	if len(steps) == 0 {
		return nil, ethereum.NotFound
	}
	step := steps[0]
	if len(steps) > 1 {
		f.receipts[hash] = steps[1:]
	}
	return step.receipt, step.err
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeBackend) script(hash common.Hash, steps ...receiptStep) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[hash] = steps
}

func (f *fakeBackend) setHead(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = n
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func minedReceipt(block int64, status uint64) *types.Receipt {
	return &types.Receipt{Status: status, BlockNumber: big.NewInt(block)}
}

// rejectingSigner simulates a wallet where the user pressed "reject".
type rejectingSigner struct {
	addr common.Address
	err  error
}

func (s rejectingSigner) Address() common.Address { return s.addr }

func (s rejectingSigner) SignTx(context.Context, *types.Transaction) (*types.Transaction, error) {
	return nil, s.err
}

type codedError struct {
	code int
	msg  string
}

func (e codedError) Error() string  { return e.msg }
func (e codedError) ErrorCode() int { return e.code }

var errBoom = errors.New("connection refused")
