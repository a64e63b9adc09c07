package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
	"github.com/dmitrijs2005/fieldvisit/internal/client/services"
	"github.com/dmitrijs2005/fieldvisit/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errUsage = errors.New("usage")

// Login prompts for credentials. An administrator is logged in directly;
// anyone else picks one of the linked identities.
//
// The password is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.auth.Login(ctx, userName, string(password))
	if err != nil {
		return err
	}
	if res.Admin {
		fmt.Fprintf(a.out, "Logged in as %s (administrator)\n", displayName(res.Identity))
		return nil
	}

	a.printIdentities(res.Linked, 0)
	choice, err := getSimpleText(a.reader, "Select account id", a.out)
	if err != nil {
		return err
	}
	return a.Select(ctx, []string{choice})
}

func (a *App) Select(ctx context.Context, args []string) error {
	accountID, err := accountArg(args, "select")
	if err != nil {
		return err
	}
	id, err := a.auth.Select(ctx, accountID)
	if err != nil {
		return err
	}
	a.loggedInAs(id)
	return nil
}

func (a *App) Switch(ctx context.Context, args []string) error {
	accountID, err := accountArg(args, "switch")
	if err != nil {
		return err
	}
	id, err := a.auth.Switch(ctx, accountID)
	if err != nil {
		return err
	}
	a.loggedInAs(id)
	return nil
}

func accountArg(args []string, cmd string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: %s <accountId>", errUsage, cmd)
	}
	return parseID(args[0])
}

// loggedInAs forgets the provider listing of the previous identity.
func (a *App) loggedInAs(id models.Identity) {
	a.providers = nil
	fmt.Fprintf(a.out, "Logged in as %s\n", displayName(id))
}

// Linked lists the identities linked to the login; the current one is starred.
func (a *App) Linked(ctx context.Context) error {
	ids := a.session.Linked()
	if len(ids) == 0 {
		fmt.Fprintln(a.out, "No linked identities")
		return nil
	}
	var current int64
	if id, ok := a.session.Current(); ok {
		current = id.AccountID
	}
	a.printIdentities(ids, current)
	return nil
}

func (a *App) printIdentities(ids []models.Identity, current int64) {
	for _, id := range ids {
		mark := " "
		if id.AccountID == current {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s %6d  %-24s %s\n", mark, id.AccountID, displayName(id), id.RoleName)
	}
}

func (a *App) Whoami(ctx context.Context) error {
	id, ok := a.session.Current()
	if !ok {
		return services.ErrNotLoggedIn
	}
	fmt.Fprintf(a.out, "%s (account %d, %s)\n", displayName(id), id.AccountID, id.RoleName)
	if id.UMRNo != "" {
		fmt.Fprintf(a.out, "UMR: %s\n", id.UMRNo)
	}
	return nil
}

// Token shows when the stored access token expires. The token is decoded
// without verification; only the backend can check its signature.
func (a *App) Token(ctx context.Context) error {
	creds, ok := a.tokens.Load(ctx)
	if !ok {
		fmt.Fprintln(a.out, "No stored credentials")
		return nil
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(creds.AccessToken, claims); err != nil {
		fmt.Fprintln(a.out, "Access token is opaque")
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		fmt.Fprintln(a.out, "Access token has no expiry")
		return nil
	}

	left := exp.Sub(a.now()).Round(time.Second)
	if left <= 0 {
		fmt.Fprintf(a.out, "Access token expired at %s; it will be refreshed on the next request\n",
			exp.Local().Format(time.DateTime))
		return nil
	}
	fmt.Fprintf(a.out, "Access token expires at %s (in %s)\n", exp.Local().Format(time.DateTime), left)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.providers = nil
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
