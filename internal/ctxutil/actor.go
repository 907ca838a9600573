// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// ActorKey is the context key for actor ID.
// Exported so it can be used consistently across packages.
type ActorKey struct{}

// RoleKey is the context key for the actor's marketplace role.
type RoleKey struct{}

type lifecycleScopeKey struct{}

// WithActorID returns a context with the actor ID embedded.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorKey{}, actorID)
}

// ActorFromContext returns the actor ID from context, or empty string if not set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ActorKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRole returns a context carrying the actor's role ("requester" or "provider").
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, RoleKey{}, role)
}

// RoleFromContext returns the actor role from context, or empty string if not set.
func RoleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RoleKey{}).(string); ok {
		return v
	}
	return ""
}

// WithLifecycleScope marks the context as originating from the lifecycle engine.
// Request status writes are refused without this marker.
func WithLifecycleScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, lifecycleScopeKey{}, true)
}

// InLifecycleScope reports whether the context was marked by WithLifecycleScope.
func InLifecycleScope(ctx context.Context) bool {
	v, _ := ctx.Value(lifecycleScopeKey{}).(bool)
	return v
}
