// Package session keeps the currently authenticated identity, the identities
// linked to the login, and the cached login result, in memory and in app
// storage so they survive restarts.
//
// In-memory state always changes first: a failing storage write is reported
// to the caller but never leaves the UI with a stale identity.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
)

// Storage keys, shared with any tooling that inspects app storage.
const (
	KeyCurrentUser = "currentUser"
	KeyAllUsers    = "allUsers"
	KeyLoginResult = "loginResult"
)

// DefaultRestoreTimeout bounds how long Restore waits for storage.
const DefaultRestoreTimeout = 5 * time.Second

// ErrCorrupt is logged when persisted session data cannot be decoded.
var ErrCorrupt = errors.New("persisted session is corrupt")

// KV is the app storage used for session data.
type KV interface {
	// Get returns nil, nil when key is missing.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// CredentialClearer is the part of the credential store logout needs.
type CredentialClearer interface {
	Clear(ctx context.Context) error
}

type Manager struct {
	mu          sync.RWMutex
	current     *models.Identity
	linked      []models.Identity
	loginResult *models.Identity

	kv             KV
	creds          CredentialClearer
	restoreTimeout time.Duration
	log            logging.Logger
}

func NewManager(kv KV, creds CredentialClearer, restoreTimeout time.Duration, log logging.Logger) *Manager {
	if restoreTimeout <= 0 {
		restoreTimeout = DefaultRestoreTimeout
	}
	return &Manager{
		kv:             kv,
		creds:          creds,
		restoreTimeout: restoreTimeout,
		log:            log.With("component", "session"),
	}
}

// Login makes id the current identity and persists it.
func (m *Manager) Login(ctx context.Context, id models.Identity) error {
	m.mu.Lock()
	m.current = &id
	m.mu.Unlock()

	return m.persist(ctx, KeyCurrentUser, id)
}

// Switch changes the current identity among linked accounts. It has the same
// effect as Login and exists so callers can express intent.
func (m *Manager) Switch(ctx context.Context, id models.Identity) error {
	m.log.Info(ctx, "switching identity", "account_id", id.AccountID)
	return m.Login(ctx, id)
}

// SetLinkedIdentities records the identities available after a multi-account login.
func (m *Manager) SetLinkedIdentities(ctx context.Context, ids []models.Identity) error {
	cp := append([]models.Identity(nil), ids...)

	m.mu.Lock()
	m.linked = cp
	m.mu.Unlock()

	return m.persist(ctx, KeyAllUsers, cp)
}

// SetLoginResult caches the identity part of the login response. Tokens are
// not part of models.Identity and therefore never reach app storage.
func (m *Manager) SetLoginResult(ctx context.Context, id models.Identity) error {
	m.mu.Lock()
	m.loginResult = &id
	m.mu.Unlock()

	return m.persist(ctx, KeyLoginResult, id)
}

// Logout clears memory first, then app storage, then the credential store.
// Every step is attempted; failures are joined.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.linked = nil
	m.loginResult = nil
	m.mu.Unlock()

	var errs []error
	if err := m.kv.Delete(ctx, KeyCurrentUser, KeyAllUsers, KeyLoginResult); err != nil {
		errs = append(errs, fmt.Errorf("clear session storage: %w", err))
	}
	if err := m.creds.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear credentials: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		m.log.Warn(ctx, "logout finished with errors", "error", err)
	}
	return err
}

type snapshot struct {
	current     *models.Identity
	linked      []models.Identity
	loginResult *models.Identity
}

// Restore repopulates state from app storage. It reports whether a current
// identity was restored. Storage failures, corrupt data and timeouts all
// resolve to "no session".
func (m *Manager) Restore(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.restoreTimeout)
	defer cancel()

	type result struct {
		snap snapshot
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		snap, err := m.read(ctx)
		ch <- result{snap: snap, err: err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if res.err != nil {
		m.log.Warn(ctx, "session restore failed, starting without session", "error", res.err)
		m.current, m.linked, m.loginResult = nil, nil, nil
		return false
	}

	m.current, m.linked, m.loginResult = res.snap.current, res.snap.linked, res.snap.loginResult
	return m.current != nil
}

func (m *Manager) read(ctx context.Context) (snapshot, error) {
	var snap snapshot

	current, err := readIdentity(ctx, m.kv, KeyCurrentUser)
	if err != nil {
		return snapshot{}, err
	}
	snap.current = current

	loginResult, err := readIdentity(ctx, m.kv, KeyLoginResult)
	if err != nil {
		return snapshot{}, err
	}
	snap.loginResult = loginResult

	b, err := m.kv.Get(ctx, KeyAllUsers)
	if err != nil {
		return snapshot{}, err
	}
	if b != nil {
		if err := json.Unmarshal(b, &snap.linked); err != nil {
			return snapshot{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, KeyAllUsers, err)
		}
	}
	return snap, nil
}

func readIdentity(ctx context.Context, kv KV, key string) (*models.Identity, error) {
	b, err := kv.Get(ctx, key)
	if err != nil || b == nil {
		return nil, err
	}
	var id models.Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	if id.AccountID == 0 {
		return nil, fmt.Errorf("%w: %s: missing accountId", ErrCorrupt, key)
	}
	return &id, nil
}

func (m *Manager) persist(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := m.kv.Set(ctx, key, b); err != nil {
		m.log.Warn(ctx, "session not persisted", "key", key, "error", err)
		return err
	}
	return nil
}

// Current returns the current identity.
func (m *Manager) Current() (models.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return models.Identity{}, false
	}
	return *m.current, true
}

// Linked returns a copy of the linked identities.
func (m *Manager) Linked() []models.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Identity(nil), m.linked...)
}

// LoginResult returns the cached login result.
func (m *Manager) LoginResult() (models.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loginResult == nil {
		return models.Identity{}, false
	}
	return *m.loginResult, true
}
