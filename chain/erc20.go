package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC20ABI covers the allowance handshake used before funding a project.
const ERC20ABI = `[
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[
	{"name":"spender","type":"address"},
	{"name":"amount","type":"uint256"}
],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[
	{"name":"owner","type":"address"},
	{"name":"spender","type":"address"}
],"outputs":[{"name":"","type":"uint256"}]}
]`

var erc20ABI = mustParseABI(ERC20ABI)

// approvalMultiplier over-approves so a second funding call does not need
// another wallet prompt.
const approvalMultiplier = 2

// TokenApprover checks and raises the procurement contract's token allowance.
type TokenApprover struct {
	token   *Gateway
	spender common.Address
}

// NewTokenApprover binds the ERC-20 token at tokenAddress.
func NewTokenApprover(backend Backend, tokenAddress, spender common.Address, opts ...Option) *TokenApprover {
	opts = append(opts, WithABI(erc20ABI))
	return &TokenApprover{
		token:   NewGateway(backend, tokenAddress, opts...),
		spender: spender,
	}
}

// Allowance returns how much the spender may move on behalf of owner.
func (a *TokenApprover) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	var allowance *big.Int
	if err := a.token.queryInto(ctx, "allowance", &allowance, owner, a.spender); err != nil {
		return nil, err
	}
	if allowance == nil {
		return new(big.Int), nil
	}
	return allowance, nil
}

// HasAllowance reports whether owner already approved at least required.
func (a *TokenApprover) HasAllowance(ctx context.Context, owner common.Address, required *big.Int) (bool, error) {
	allowance, err := a.Allowance(ctx, owner)
	if err != nil {
		return false, err
	}
	return allowance.Cmp(required) >= 0, nil
}

// Approve submits an approval for twice the required amount.
func (a *TokenApprover) Approve(ctx context.Context, required *big.Int) (*TransactionHandle, error) {
	if required == nil || required.Sign() <= 0 {
		return nil, &ChainWriteError{Function: "approve", Kind: WriteRPC, Err: fmt.Errorf("approval amount must be positive")}
	}
	amount := new(big.Int).Mul(required, big.NewInt(approvalMultiplier))
	return a.token.Execute(ctx, "approve", a.spender, amount)
}
