package httpapi

import "context"

type ctxKey int

const (
	ctxKeyAgentID ctxKey = iota
	ctxKeyAdminUserID
)

func withAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, ctxKeyAgentID, agentID)
}

func agentIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyAgentID).(string)
	return v, ok
}

func withAdminUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyAdminUserID, userID)
}

func adminUserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyAdminUserID).(string)
	return v, ok
}
