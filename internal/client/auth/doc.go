// Package auth coordinates access-token refresh for the API client.
//
// # Overview
//
// A Coordinator guarantees that at most one refresh call is in flight for
// the whole process. The first caller that observes an expired access token
// becomes the leader and performs the refresh with the stored reference
// token; every caller arriving while the refresh runs is queued and receives
// the leader's outcome (the new access token, or the failure) exactly once.
//
// State machine
//
//	IDLE --Refresh()--> REFRESHING   caller becomes leader
//	REFRESHING --Refresh()--> (queued)
//	REFRESHING --success--> IDLE      new pair saved, waiters get the token
//	REFRESHING --failure--> IDLE      store cleared, waiters get *RefreshFailure
//
// The flag is reset and the queue drained under one lock acquisition, so a
// 401 arriving right after starts a fresh cycle instead of joining a finished
// one.
//
// # Cancellation
//
// The refresh itself runs detached from the leader's context: a leader that
// gives up must not wipe the credentials of every queued caller. The HTTP
// client timeout bounds the call. Queued callers may stop waiting when their
// own context ends; their queue slot is still resolved and discarded.
package auth
