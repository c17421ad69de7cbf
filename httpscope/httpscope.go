// Package httpscope opens a container scope for every HTTP request, so that scoped
// services resolved while handling the request are shared by the request and shut
// down when it completes.
package httpscope

import (
	"context"
	"net/http"

	"github.com/centraunit/aop"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestIDKey is the ContainerContext key holding the chi request id, when the
// RequestID middleware runs before this one.
const RequestIDKey = "request_id"

type requestScopeKey struct{}

type requestScope struct {
	container *aop.Container
	ctx       *aop.ContainerContext
}

// Option configures the middleware.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger scope lifecycle events are written to.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Middleware returns chi-compatible middleware creating a scope of c per request.
// The scope is closed after the next handler returns.
func Middleware(c *aop.Container, opts ...Option) func(http.Handler) http.Handler {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parent := aop.NewContainerContext(r.Context())
			reqID := chimiddleware.GetReqID(r.Context())
			if reqID != "" {
				parent = parent.WithValue(RequestIDKey, reqID)
			}
			scope := c.NewScope(parent)
			scopeID, _ := scope.ScopeID()

			defer func() {
				if err := c.CloseScope(scope); err != nil {
					o.logger.Error("failed to close request scope",
						zap.String("request_id", reqID),
						zap.String(aop.ScopeIDKey, scopeID),
						zap.Error(err),
					)
				}
			}()

			ctx := context.WithValue(r.Context(), requestScopeKey{}, &requestScope{container: c, ctx: scope})
			o.logger.Debug("request scope opened",
				zap.String("request_id", reqID),
				zap.String(aop.ScopeIDKey, scopeID),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the scope opened for the request carrying ctx.
func FromContext(ctx context.Context) (*aop.ContainerContext, bool) {
	rs, ok := ctx.Value(requestScopeKey{}).(*requestScope)
	if !ok {
		return nil, false
	}
	return rs.ctx, true
}

// FromRequest returns the scope opened for r.
func FromRequest(r *http.Request) (*aop.ContainerContext, bool) {
	return FromContext(r.Context())
}

// Resolve resolves T in the scope of r.
func Resolve[T any](r *http.Request) (T, error) {
	rs, ok := r.Context().Value(requestScopeKey{}).(*requestScope)
	if !ok {
		var zero T
		return zero, &aop.MissingContextValueError{Key: aop.ScopeIDKey}
	}
	return aop.ResolveScoped[T](rs.container, rs.ctx)
}
