package domain

import "context"

// ActorRole differentiates who is calling the core.
type ActorRole string

const (
	ActorRoleRequester ActorRole = "REQUESTER"
	ActorRoleAnalyst   ActorRole = "ANALYST"
	ActorRoleAdmin     ActorRole = "ADMIN"
)

// Actor identifies the user performing an operation.
type Actor struct {
	ID   int64
	Role ActorRole
}

// CanWorkTickets reports whether the actor may claim, conclude or reject.
func (a Actor) CanWorkTickets() bool {
	return a.Role == ActorRoleAnalyst || a.Role == ActorRoleAdmin
}

// Valid reports whether the role is one the service understands.
func (r ActorRole) Valid() bool {
	switch r {
	case ActorRoleRequester, ActorRoleAnalyst, ActorRoleAdmin:
		return true
	}
	return false
}

type actorContextKey struct{}

// ContextWithActor attaches the authenticated actor to ctx.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor stored by ContextWithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
