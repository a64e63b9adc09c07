package client

import (
	"context"
	"io"
	"net/http"

	"github.com/dmitrijs2005/fieldvisit/internal/client/auth"
	"github.com/dmitrijs2005/fieldvisit/internal/client/credentials"
	"github.com/dmitrijs2005/fieldvisit/internal/common"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
)

// TokenRefresher hands out a fresh access token; *auth.Coordinator is the
// production implementation.
type TokenRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

// TokenSource is the part of the credential store the transport reads.
type TokenSource interface {
	Load(ctx context.Context) (credentials.Credentials, bool)
}

// authTransport attaches the stored access token and recovers from a single
// 401 per call by refreshing and replaying.
type authTransport struct {
	base      http.RoundTripper
	tokens    TokenSource
	refresher TokenRefresher
	scheme    string
	log       logging.Logger
	metrics   *auth.Metrics
}

func newAuthTransport(base http.RoundTripper, tokens TokenSource, refresher TokenRefresher, scheme string, log logging.Logger, metrics *auth.Metrics) *authTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{
		base:      base,
		tokens:    tokens,
		refresher: refresher,
		scheme:    scheme,
		log:       log,
		metrics:   metrics,
	}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var token string
	if c, ok := t.tokens.Load(ctx); ok {
		token = c.AccessToken
	}

	for attempt := 0; ; attempt++ {
		out := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			out.Body = body
		}
		if token != "" {
			out.Header.Set(common.AuthorizationHeaderName, t.scheme+token)
		}

		resp, err := t.base.RoundTrip(out)
		if attempt > 0 {
			t.observeReplay(resp, err)
			return resp, err
		}
		if err != nil || resp.StatusCode != http.StatusUnauthorized {
			return resp, err
		}

		if !replayable(req) {
			t.log.Warn(ctx, "401 on non-replayable request", "method", req.Method, "path", req.URL.Path)
			return resp, nil
		}
		drain(resp)

		token, err = t.refresher.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		t.log.Debug(ctx, "replaying after refresh", "method", req.Method, "path", req.URL.Path)
	}
}

func (t *authTransport) observeReplay(resp *http.Response, err error) {
	switch {
	case err != nil:
		t.metrics.ObserveReplay("error")
	case resp.StatusCode == http.StatusUnauthorized:
		t.metrics.ObserveReplay("unauthorized")
	default:
		t.metrics.ObserveReplay("ok")
	}
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
