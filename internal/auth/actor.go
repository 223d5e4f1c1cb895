package auth

import (
	"context"

	"ms-workflow/internal/models"
)

type contextKey string

const actorKey contextKey = "actor"

// Actor identifies the authenticated caller of a workflow operation. It is
// passed explicitly into every service call; services never read ambient
// session state.
type Actor struct {
	UserID string
	Role   models.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// WithActor stores the actor in the request context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the actor placed by the middleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}
