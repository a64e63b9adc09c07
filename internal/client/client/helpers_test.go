package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/auth"
	"github.com/dmitrijs2005/fieldvisit/internal/client/credentials"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
)

type memStore struct {
	mu    sync.Mutex
	creds *credentials.Credentials
}

func newMemStore(access, refresh string) *memStore {
	s := &memStore{}
	if access != "" || refresh != "" {
		s.creds = &credentials.Credentials{AccessToken: access, RefreshToken: refresh}
	}
	return s
}

func (s *memStore) Save(_ context.Context, c credentials.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = &c
	return nil
}

func (s *memStore) Load(context.Context) (credentials.Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return credentials.Credentials{}, false
	}
	return *s.creds, true
}

func (s *memStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}

type stubRefresher struct {
	calls atomic.Int32
	token string
	err   error
}

func (r *stubRefresher) Refresh(context.Context) (string, error) {
	r.calls.Add(1)
	return r.token, r.err
}

func newTestClient(t *testing.T, h http.Handler, store credentials.Store, r TokenRefresher, mutate ...func(*Options)) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts := Options{
		PortalBaseURL:       srv.URL + "/api/",
		ProfileImageBaseURL: "https://img.example.test/",
		DeviceType:          "Web",
		DeviceToken:         "dev-token",
		DeviceID:            "dev-id",
		Timeout:             5 * time.Second,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewHTTPClient(opts, store, r)
}

// wire builds the production graph (refresh client, coordinator, API client)
// against one test server.
func wire(t *testing.T, h http.Handler, store credentials.Store, metrics *auth.Metrics) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	rc := NewRefreshClient(srv.URL+"/live/", 5*time.Second, nil, nil)
	coord := auth.NewCoordinator(store, rc, logging.NewNop(), metrics)
	return NewHTTPClient(Options{
		PortalBaseURL: srv.URL + "/api/",
		Timeout:       5 * time.Second,
		Metrics:       metrics,
	}, store, coord)
}
