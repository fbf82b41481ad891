package shared

import "context"

type contextKey string

const actorKey contextKey = "actor"

// ContextWithActor stores the authenticated actor id in the context.
// Authentication itself happens upstream; handlers only consume the result.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFromContext returns the actor id stored in the context, or zero.
func ActorFromContext(ctx context.Context) int64 {
	if v, ok := ctx.Value(actorKey).(int64); ok {
		return v
	}
	return 0
}
