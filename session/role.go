package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"procurement-client/core/procurement"
	"procurement-client/metrics"
	"procurement-client/storage/rolestore"
)

// CreateProjectPath is the agency-only route that does not contain "agency".
const CreateProjectPath = "/assignContract"

var contractorPaths = map[string]bool{
	"/dashboard":     true,
	"/projects":      true,
	"/milestones":    true,
	"/milestoneform": true,
	"/payment":       true,
}

// RoleForPath applies the route rules. ok is false when the path says
// nothing about the role and the previous one should be kept.
func RoleForPath(path string) (role procurement.Role, ok bool) {
	switch {
	case strings.Contains(path, "agency") || path == CreateProjectPath:
		return procurement.RoleAgency, true
	case strings.Contains(path, "contractor") || contractorPaths[path]:
		return procurement.RoleContractor, true
	default:
		return "", false
	}
}

// RoleResolver derives the active role from navigation and persists it
// whenever it changes.
type RoleResolver struct {
	store   rolestore.Store
	metrics *metrics.Metrics

	mu      sync.Mutex
	current procurement.Role
	loaded  bool
}

func NewRoleResolver(store rolestore.Store, m *metrics.Metrics) *RoleResolver {
	if store == nil {
		store = rolestore.NewMemory()
	}
	return &RoleResolver{store: store, metrics: m}
}

// Current returns the persisted role, Contractor on first use.
func (r *RoleResolver) Current(ctx context.Context) (procurement.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(ctx); err != nil {
		return procurement.RoleContractor, err
	}
	return r.current, nil
}

func (r *RoleResolver) loadLocked(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	role, ok, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load role: %w", err)
	}
	if !ok {
		role = procurement.RoleContractor
	}
	r.current, r.loaded = role, true
	return nil
}

// Resolve returns the role for path. The store is written only when the
// role differs from the previous one.
func (r *RoleResolver) Resolve(ctx context.Context, path string) (procurement.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(ctx); err != nil {
		log.Printf("Failed to read persisted role, using contractor: %v", err)
		r.current, r.loaded = procurement.RoleContractor, true
	}

	next, ok := RoleForPath(path)
	if !ok || next == r.current {
		return r.current, nil
	}
	if err := r.store.Save(ctx, next); err != nil {
		// the role still applies to this session even if it cannot be saved
		r.current = next
		return next, fmt.Errorf("persist role: %w", err)
	}
	r.current = next
	r.metrics.ObserveRoleChange(next.String())
	return next, nil
}
