// Package client talks to the field-visit REST backend.
//
// # Overview
//
// The package provides:
//  1. The API contract used by the services (see the Client interface).
//  2. HTTPClient, a net/http implementation whose transport attaches the
//     stored access token to every request and, on a 401, obtains a fresh
//     token from the shared refresh coordinator and replays the request
//     exactly once.
//  3. RefreshClient, the bare call that exchanges a reference token for a
//     new pair. It bypasses the authenticating transport.
//  4. InitDatabase, which opens the local SQLite database and applies the
//     embedded goose migrations.
//
// # Error Handling
//
// Responses are mapped to sentinel errors that callers match with errors.Is:
// ErrUnauthorized for 401/403, ErrUnavailable for transport failures and
// 502/503/504, ErrRejected when a 2xx reply does not confirm the operation.
// Other non-2xx replies are returned as *StatusError. A failed token refresh
// surfaces as *auth.RefreshFailure and is never remapped.
//
// # Concurrency & Contexts
//
// HTTPClient and RefreshClient are safe for concurrent use. All calls honor
// ctx cancellation; the configured request timeout bounds each attempt.
package client
