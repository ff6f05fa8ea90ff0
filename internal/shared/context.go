package shared

import (
	"context"

	"github.com/google/uuid"
)

// Role enumerates actor roles recognised by the core.
type Role string

const (
	// RoleOwner is the business owner; the only role that satisfies owner-only actions.
	RoleOwner Role = "OWNER"
	// RoleManager may perform day-to-day operations and non-critical overrides.
	RoleManager Role = "MANAGER"
	// RoleStaff records sales but holds no override capability.
	RoleStaff Role = "STAFF"
)

// Actor identifies who is performing a business event.
type Actor struct {
	ID   int64
	Name string
	Role Role
}

type tenantContextKey struct{}

type actorContextKey struct{}

// ContextWithTenant stores the tenant id in context.
func ContextWithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// TenantFromContext extracts the tenant id from context.
func TenantFromContext(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(tenantContextKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrTenantMissing
	}
	return id, nil
}

// ContextWithActor stores the acting user in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting user from context.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
