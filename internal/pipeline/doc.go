// Package pipeline provides the request pipeline execution engine.
//
// Every outgoing request passes through a fixed, ordered set of stages
// exactly once. Handlers are registered per stage while the client is built;
// Build freezes the registry into an Executor that is read-only afterwards.
//
// # Stages
//
//   - pre-resolve: runs before the URL is final. Handlers may change the
//     target and query (default parameters, path rewrites).
//   - resolve: built-in step that fixes the final URL (base URL resolution).
//   - post-resolve: runs with the final URL and before transmission. This is
//     the only stage where decisions based on the destination are sound.
//
// # Handler contract
//
// Each handler receives the request context and a next function:
//
//	func(ctx context.Context, rc *domain.RequestContext, next ports.Proceed) (*http.Response, error) {
//	    rc.Header.Set("X-Example", "1")
//	    return next(ctx)
//	}
//
// Calling next hands control to the following step. A handler that returns
// without calling next short-circuits the rest of the pipeline and the
// transport is never reached.
package pipeline
