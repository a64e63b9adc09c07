package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/credentials"
	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
	"github.com/dmitrijs2005/fieldvisit/internal/client/session"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
)

// ---- fake client ----

type loginReply struct {
	id  models.Identity
	err error
}

type fakeClient struct {
	logins      map[string]loginReply
	loginCalls  []string
	linked      []models.Identity
	linkedErr   error
	linkedUser  string
	logoutErr   error
	logoutCalls []int64

	visits     []models.Visit
	locations  []models.Location
	providers  []models.Provider
	addVisit   []models.VisitRequest
	addErr     error
	dutyOnID   string
	dutyOnErr  error
	dutyOff    []string
	dutyOffErr error
}

func (f *fakeClient) Login(_ context.Context, userName, _ string) (models.Identity, error) {
	f.loginCalls = append(f.loginCalls, userName)
	r, ok := f.logins[userName]
	if !ok {
		return models.Identity{}, errUnauthorized
	}
	return r.id, r.err
}

func (f *fakeClient) Logout(_ context.Context, accountID int64) error {
	f.logoutCalls = append(f.logoutCalls, accountID)
	return f.logoutErr
}

func (f *fakeClient) LinkedIdentities(_ context.Context, userName string) ([]models.Identity, error) {
	f.linkedUser = userName
	return f.linked, f.linkedErr
}

func (f *fakeClient) RecentVisits(context.Context, int64) ([]models.Visit, error) {
	return append([]models.Visit(nil), f.visits...), nil
}

func (f *fakeClient) Locations(context.Context) ([]models.Location, error) {
	return f.locations, nil
}

func (f *fakeClient) Providers(context.Context) ([]models.Provider, error) {
	return f.providers, nil
}

func (f *fakeClient) AddVisit(_ context.Context, v models.VisitRequest) error {
	f.addVisit = append(f.addVisit, v)
	return f.addErr
}

func (f *fakeClient) DutyOn(context.Context, int64, string) (string, error) {
	return f.dutyOnID, f.dutyOnErr
}

func (f *fakeClient) DutyOff(_ context.Context, _ int64, _ string, tracker string) error {
	f.dutyOff = append(f.dutyOff, tracker)
	return f.dutyOffErr
}

func (f *fakeClient) ProfileImageURL(thumbnail string) (string, error) {
	return "https://img/" + thumbnail, nil
}

// ---- storage fakes ----

type memKV struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemKV() *memKV { return &memKV{m: map[string][]byte{}} }

func (k *memKV) Get(_ context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.m[key], nil
}

func (k *memKV) Set(_ context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[key] = append([]byte(nil), value...)
	return nil
}

func (k *memKV) Delete(_ context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.m, key)
	}
	return nil
}

type memTokens struct {
	creds *credentials.Credentials
}

func (m *memTokens) Load(context.Context) (credentials.Credentials, bool) {
	if m.creds == nil {
		return credentials.Credentials{}, false
	}
	return *m.creds, true
}

func (m *memTokens) Clear(context.Context) error {
	m.creds = nil
	return nil
}

type fixture struct {
	client *fakeClient
	kv     *memKV
	tokens *memTokens
	sess   *session.Manager
	auth   AuthService
	visits *visitService
}

func newFixture(t *testing.T, c *fakeClient) *fixture {
	t.Helper()
	kv := newMemKV()
	tokens := &memTokens{creds: &credentials.Credentials{AccessToken: "A1", RefreshToken: "R1"}}
	log := logging.NewNop()
	sess := session.NewManager(kv, tokens, time.Second, log)

	vs := NewVisitService(c, sess, kv, log).(*visitService)
	return &fixture{
		client: c,
		kv:     kv,
		tokens: tokens,
		sess:   sess,
		auth:   NewAuthService(c, sess, tokens, kv, log),
		visits: vs,
	}
}
