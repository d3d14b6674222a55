// Package rolestore persists the last resolved role between sessions.
package rolestore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"procurement-client/core/procurement"
)

// DefaultKey is the single client-persisted key.
const DefaultKey = "userRole"

// Store loads and saves one role value. Load reports ok=false when nothing
// has been saved yet.
type Store interface {
	Load(ctx context.Context) (role procurement.Role, ok bool, err error)
	Save(ctx context.Context, role procurement.Role) error
}

// Memory keeps the role in process. It is the store used when nothing
// survives restarts.
type Memory struct {
	mu    sync.Mutex
	role  procurement.Role
	set   bool
	saves int
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(context.Context) (procurement.Role, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role, m.set, nil
}

func (m *Memory) Save(_ context.Context, role procurement.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.role, m.set = role, true
	m.saves++
	return nil
}

// Saves counts writes, for callers that need to verify persist-on-change.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Options selects and configures a backend.
type Options struct {
	Driver    string // file|redis|postgres|memory
	Path      string
	RedisAddr string
	PGDSN     string
	Key       string
}

// Open builds the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	switch strings.ToLower(opts.Driver) {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFileStore(opts.Path, key), nil
	case "redis":
		return NewRedisStore(ctx, opts.RedisAddr, key)
	case "postgres":
		return NewPGStore(ctx, opts.PGDSN, key)
	default:
		return nil, fmt.Errorf("unknown role store driver %q", opts.Driver)
	}
}
