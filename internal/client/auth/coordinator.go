package auth

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/fieldvisit/internal/client/credentials"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
)

// Refresher exchanges a reference token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (credentials.Credentials, error)
}

// State is the coordinator state.
type State int

const (
	StateIdle State = iota
	StateRefreshing
)

func (s State) String() string {
	if s == StateRefreshing {
		return "REFRESHING"
	}
	return "IDLE"
}

type result struct {
	token string
	err   error
}

// Coordinator serializes token refreshes. Construct one per process with
// NewCoordinator and share it between all API clients.
type Coordinator struct {
	store     credentials.Store
	refresher Refresher
	log       logging.Logger
	metrics   *Metrics

	mu         sync.Mutex
	refreshing bool
	waiters    []chan result

	// storeMu orders Clear against the save at the end of a refresh.
	storeMu    sync.Mutex
	generation uint64
}

func NewCoordinator(store credentials.Store, refresher Refresher, log logging.Logger, metrics *Metrics) *Coordinator {
	return &Coordinator{
		store:     store,
		refresher: refresher,
		log:       log.With("component", "refresh"),
		metrics:   metrics,
	}
}

// State reports whether a refresh is currently in flight.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshing {
		return StateRefreshing
	}
	return StateIdle
}

// Refresh returns a fresh access token. The first caller performs the
// refresh; callers arriving while it runs wait for its outcome. On failure
// the error wraps *RefreshFailure, except for a queued caller whose ctx ends
// first, which gets ctx.Err().
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan result, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		c.metrics.waiterQueued()

		select {
		case r := <-ch:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	res := result{err: &RefreshFailure{Err: errRefreshAborted}}
	defer func() { c.finish(ctx, res) }()

	res.token, res.err = c.lead(ctx)
	return res.token, res.err
}

func (c *Coordinator) lead(ctx context.Context) (string, error) {
	ctx = context.WithoutCancel(ctx)
	gen := c.currentGeneration()

	c.metrics.refreshStarted()
	c.log.Info(ctx, "token refresh started")

	current, ok := c.store.Load(ctx)
	if !ok {
		return "", c.fail(ctx, ErrNoRefreshToken)
	}

	next, err := c.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return "", c.fail(ctx, err)
	}
	if !next.Valid() {
		return "", c.fail(ctx, ErrIncompleteTokens)
	}

	saved, err := c.saveUnless(ctx, gen, next)
	switch {
	case err != nil:
		c.log.Warn(ctx, "refreshed tokens not persisted", "error", err)
	case !saved:
		c.log.Info(ctx, "credentials cleared during refresh, new tokens discarded")
	}
	return next.AccessToken, nil
}

// saveUnless stores next only if no Clear happened since generation gen.
func (c *Coordinator) saveUnless(ctx context.Context, gen uint64, next credentials.Credentials) (bool, error) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	if gen != c.generation {
		return false, nil
	}
	return true, c.store.Save(ctx, next)
}

func (c *Coordinator) currentGeneration() uint64 {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	return c.generation
}

// Clear removes the stored credentials and makes a refresh already in flight
// discard its tokens instead of saving them. Callers queued on that refresh
// still receive its outcome. Session logout clears credentials through here.
func (c *Coordinator) Clear(ctx context.Context) error {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	c.generation++
	return c.store.Clear(ctx)
}

func (c *Coordinator) fail(ctx context.Context, cause error) error {
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn(ctx, "credentials not cleared after failed refresh", "error", err)
	}
	return &RefreshFailure{Err: cause}
}

// finish returns the coordinator to IDLE and resolves every queued caller
// within one critical section.
func (c *Coordinator) finish(ctx context.Context, res result) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	for _, ch := range waiters {
		ch <- res
	}
	c.mu.Unlock()

	c.metrics.refreshFinished(res.err)
	if res.err != nil {
		c.log.Warn(ctx, "token refresh failed", "waiters", len(waiters), "error", res.err)
		return
	}
	c.log.Info(ctx, "token refresh succeeded", "waiters", len(waiters))
}

// pending is the number of queued callers; used by tests.
func (c *Coordinator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
