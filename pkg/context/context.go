package context

import "context"

type contextKey int

const (
	requestKey contextKey = iota
	systemScopeKey
)

// SystemActor is reported by Actor for work running under the system scope.
const SystemActor = "system"

// Request is the per-request metadata the HTTP middleware attaches.
type Request struct {
	ID       string
	Method   string
	Route    string
	RemoteIP string
	UserID   string
}

func WithRequest(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, requestKey, req)
}

// RequestFrom returns the request attached to ctx, or the zero Request.
func RequestFrom(ctx context.Context) Request {
	req, _ := ctx.Value(requestKey).(Request)
	return req
}

func GetRequestID(ctx context.Context) string {
	return RequestFrom(ctx).ID
}

func GetUserID(ctx context.Context) string {
	return RequestFrom(ctx).UserID
}

// SetUserID replaces the user on the attached request, creating one if needed.
func SetUserID(ctx context.Context, userID string) context.Context {
	req := RequestFrom(ctx)
	req.UserID = userID
	return WithRequest(ctx, req)
}

// WithSystemScope marks ctx as a maintenance operation acting on behalf of the system
// rather than a user. Privileged record writes require it.
func WithSystemScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemScopeKey, true)
}

func IsSystemScope(ctx context.Context) bool {
	value, ok := ctx.Value(systemScopeKey).(bool)
	return ok && value
}

// Actor names who is acting: the system under system scope, else the request user.
func Actor(ctx context.Context) string {
	if IsSystemScope(ctx) {
		return SystemActor
	}
	return GetUserID(ctx)
}

// LogFields returns the request metadata worth attaching to a log line.
func LogFields(ctx context.Context) map[string]any {
	req := RequestFrom(ctx)
	fields := map[string]any{}
	if req.ID != "" {
		fields["request_id"] = req.ID
	}
	if req.Route != "" {
		fields["route"] = req.Route
	}
	if actor := Actor(ctx); actor != "" {
		fields["actor"] = actor
	}
	return fields
}
