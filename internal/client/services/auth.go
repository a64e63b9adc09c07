// Package services contains the application flows of the fieldvisit client.
// This file defines the authentication service: the admin/patient login
// fallback, identity selection among linked accounts, logout and restore.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldvisit/internal/client/client"
	"github.com/dmitrijs2005/fieldvisit/internal/client/credentials"
	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
)

// patientPrefix is prepended to the user name for the patient login.
const patientPrefix = "1:"

var (
	ErrNoLinkedIdentities = errors.New("no linked users found")
	ErrIdentityNotFound   = errors.New("identity is not linked to this login")
	ErrNotLoggedIn        = errors.New("not logged in")
)

// Session is the slice of the session manager the services rely on.
type Session interface {
	Login(ctx context.Context, id models.Identity) error
	Switch(ctx context.Context, id models.Identity) error
	SetLinkedIdentities(ctx context.Context, ids []models.Identity) error
	SetLoginResult(ctx context.Context, id models.Identity) error
	Logout(ctx context.Context) error
	Restore(ctx context.Context) bool
	Current() (models.Identity, bool)
	Linked() []models.Identity
}

// TokenReader reports whether credentials are stored.
type TokenReader interface {
	Load(ctx context.Context) (credentials.Credentials, bool)
}

// LoginOutcome is the result of a successful Login. An admin is logged in
// straight away; a patient login returns the linked identities to choose
// from with Select.
type LoginOutcome struct {
	Admin    bool
	Identity models.Identity
	Linked   []models.Identity
}

// AuthService defines authentication operations for the CLI.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Login(ctx context.Context, userName, password string) (LoginOutcome, error)
	Select(ctx context.Context, accountID int64) (models.Identity, error)
	Switch(ctx context.Context, accountID int64) (models.Identity, error)
	Logout(ctx context.Context) error
	Restore(ctx context.Context) (models.Identity, bool)
}

type authService struct {
	client  client.Client
	session Session
	tokens  TokenReader
	state   KV
	log     logging.Logger
}

// NewAuthService constructs an AuthService. state is the app storage that
// also holds the field state cleared on logout.
func NewAuthService(c client.Client, s Session, tokens TokenReader, state KV, log logging.Logger) AuthService {
	return &authService{client: c, session: s, tokens: tokens, state: state, log: log.With("component", "auth")}
}

func (a *authService) Login(ctx context.Context, userName, password string) (LoginOutcome, error) {
	admin, err := a.client.Login(ctx, userName, password)
	switch {
	case err == nil && admin.IsAdmin():
		if err := a.session.SetLoginResult(ctx, admin); err != nil {
			a.log.Warn(ctx, "login result not persisted", "error", err)
		}
		if err := a.session.Login(ctx, admin); err != nil {
			a.log.Warn(ctx, "session not persisted", "error", err)
		}
		return LoginOutcome{Admin: true, Identity: admin}, nil
	case fatalLoginError(err):
		return LoginOutcome{}, fmt.Errorf("login: %w", err)
	}

	patientUser := patientPrefix + userName
	patient, err := a.client.Login(ctx, patientUser, password)
	if err != nil {
		return LoginOutcome{}, fmt.Errorf("login: %w", err)
	}
	if err := a.session.SetLoginResult(ctx, patient); err != nil {
		a.log.Warn(ctx, "login result not persisted", "error", err)
	}

	linked, err := a.client.LinkedIdentities(ctx, patientUser)
	if err != nil {
		return LoginOutcome{}, fmt.Errorf("fetch linked users: %w", err)
	}
	if len(linked) == 0 {
		return LoginOutcome{}, ErrNoLinkedIdentities
	}
	if err := a.session.SetLinkedIdentities(ctx, linked); err != nil {
		a.log.Warn(ctx, "linked users not persisted", "error", err)
	}
	return LoginOutcome{Identity: patient, Linked: linked}, nil
}

// fatalLoginError reports errors that make the patient fallback pointless.
func fatalLoginError(err error) bool {
	return errors.Is(err, client.ErrUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (a *authService) Select(ctx context.Context, accountID int64) (models.Identity, error) {
	id, err := a.linked(accountID)
	if err != nil {
		return models.Identity{}, err
	}
	if err := a.session.Login(ctx, id); err != nil {
		a.log.Warn(ctx, "session not persisted", "error", err)
	}
	return id, nil
}

func (a *authService) Switch(ctx context.Context, accountID int64) (models.Identity, error) {
	if _, ok := a.session.Current(); !ok {
		return models.Identity{}, ErrNotLoggedIn
	}
	id, err := a.linked(accountID)
	if err != nil {
		return models.Identity{}, err
	}
	if err := a.session.Switch(ctx, id); err != nil {
		a.log.Warn(ctx, "session not persisted", "error", err)
	}
	return id, nil
}

func (a *authService) linked(accountID int64) (models.Identity, error) {
	for _, id := range a.session.Linked() {
		if id.AccountID == accountID {
			return id, nil
		}
	}
	return models.Identity{}, ErrIdentityNotFound
}

// Logout tells the backend when there is a session to end, then always
// clears local state. Backend failures are logged, never returned.
func (a *authService) Logout(ctx context.Context) error {
	current, hasUser := a.session.Current()
	_, hasTokens := a.tokens.Load(ctx)
	if hasUser && hasTokens {
		if err := a.client.Logout(ctx, current.AccountID); err != nil {
			a.log.Warn(ctx, "backend logout failed", "account", current.AccountID, "error", err)
		}
	}

	return errors.Join(
		a.session.Logout(ctx),
		a.state.Delete(ctx, KeyAppState),
	)
}

func (a *authService) Restore(ctx context.Context) (models.Identity, bool) {
	if !a.session.Restore(ctx) {
		return models.Identity{}, false
	}
	return a.session.Current()
}
