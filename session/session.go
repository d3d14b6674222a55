// Package session holds the process-wide connected account and role. The
// Controller is their only writer; everything else reads snapshots.
package session

import (
	"context"
	"log"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"procurement-client/core/procurement"
)

// State is one immutable view of the session. Epoch increases whenever
// the account changes so in-flight work can tell it is stale.
type State struct {
	Account common.Address   `json:"account"`
	Role    procurement.Role `json:"role"`
	Epoch   uint64           `json:"epoch"`
}

// Connected reports whether a wallet account is present.
func (s State) Connected() bool { return s.Account != (common.Address{}) }

type Controller struct {
	roles *RoleResolver

	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewController starts disconnected with the persisted role.
func NewController(ctx context.Context, roles *RoleResolver) *Controller {
	if roles == nil {
		roles = NewRoleResolver(nil, nil)
	}
	role, err := roles.Current(ctx)
	if err != nil {
		log.Printf("Using default role: %v", err)
	}
	return &Controller{
		roles: roles,
		state: State{Role: role},
		subs:  make(map[int]func(State)),
	}
}

func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Account returns the connected account or the zero address.
func (c *Controller) Account() common.Address { return c.Snapshot().Account }

// IsCurrent reports whether epoch still matches the connected account.
func (c *Controller) IsCurrent(epoch uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Epoch == epoch
}

// RequireAccount guards wallet-only operations.
func (c *Controller) RequireAccount() (common.Address, error) {
	s := c.Snapshot()
	if !s.Connected() {
		return common.Address{}, procurement.ErrNoAccount
	}
	return s.Account, nil
}

// Connect switches the active account. Passing the zero address
// disconnects. Subscribers are notified only on change.
func (c *Controller) Connect(addr common.Address) State {
	c.mu.Lock()
	if c.state.Account == addr {
		s := c.state
		c.mu.Unlock()
		return s
	}
	c.state.Account = addr
	c.state.Epoch++
	s, subs := c.state, c.subscribersLocked()
	c.mu.Unlock()

	if s.Connected() {
		log.Printf("Account changed to %s (epoch %d)", s.Account.Hex(), s.Epoch)
	} else {
		log.Printf("Account disconnected (epoch %d)", s.Epoch)
	}
	notify(subs, s)
	return s
}

func (c *Controller) Disconnect() State { return c.Connect(common.Address{}) }

// Navigate resolves the role for path and publishes it when it changes.
func (c *Controller) Navigate(ctx context.Context, path string) (procurement.Role, error) {
	role, err := c.roles.Resolve(ctx, path)

	c.mu.Lock()
	if c.state.Role == role {
		c.mu.Unlock()
		return role, err
	}
	c.state.Role = role
	s, subs := c.state, c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, s)
	return role, err
}

// Subscribe registers fn for session changes and returns its canceller.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) subscribersLocked() []func(State) {
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(State), s State) {
	for _, fn := range subs {
		fn(s)
	}
}
