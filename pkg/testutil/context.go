package testutil

import (
	"net/http"
	"time"

	id "rumbo/pkg/domain"
	"rumbo/pkg/requestcontext"
)

// WithActor attaches an acting party to the request context, the same way
// the auth middleware would after validating a bearer token.
func WithActor(req *http.Request, actorID id.ActorID, role id.Role) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.ActorInfo{ID: actorID, Role: role})
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock, bypassing the requesttime
// middleware. Handlers and services read time via requestcontext.Now.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithRequestID attaches a request ID for log correlation assertions.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
