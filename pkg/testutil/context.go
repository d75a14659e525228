package testutil

import (
	"net/http"
	"time"

	id "propie/pkg/domain"
	"propie/pkg/requestcontext"
)

// WithActor puts actor on the request context the way the auth middleware does.
func WithActor(req *http.Request, actor id.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithTime pins the request time.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
