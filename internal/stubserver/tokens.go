package stubserver

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access token claims: the standard set plus the account and
// the revocation generation the token was minted in.
type Claims struct {
	jwt.RegisteredClaims
	AccountID  int64 `json:"accountId"`
	Generation int64 `json:"gen"`
}

// GenerateToken signs an HS256 access token for accountID.
func GenerateToken(accountID, generation int64, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		AccountID:  accountID,
		Generation: generation,
	})
	return token.SignedString(secretKey)
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// bearer strips an optional "Bearer " prefix; the backend accepts both.
func bearer(header string) string {
	if len(header) > len(common.BearerScheme) && strings.EqualFold(header[:len(common.BearerScheme)], common.BearerScheme) {
		return header[len(common.BearerScheme):]
	}
	return header
}

type refreshEntry struct {
	accountID int64
	expires   time.Time
}

// tokenIssuer mints token pairs and rotates reference tokens: every
// reference token is single use.
type tokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	mu         sync.Mutex
	refresh    map[string]refreshEntry
	generation int64
}

func newTokenIssuer(secret []byte, accessTTL, refreshTTL time.Duration) *tokenIssuer {
	return &tokenIssuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		refresh:    make(map[string]refreshEntry),
	}
}

func (t *tokenIssuer) issue(accountID int64) (access, reference string, err error) {
	t.mu.Lock()
	gen := t.generation
	t.mu.Unlock()

	access, err = GenerateToken(accountID, gen, t.secret, t.accessTTL)
	if err != nil {
		return "", "", common.ErrorInternal
	}
	reference, err = common.MakeRandHexString(32)
	if err != nil {
		return "", "", common.ErrorInternal
	}

	t.mu.Lock()
	t.refresh[reference] = refreshEntry{accountID: accountID, expires: time.Now().Add(t.refreshTTL)}
	t.mu.Unlock()
	return access, reference, nil
}

// rotate consumes reference and returns a new pair for the same account.
func (t *tokenIssuer) rotate(reference string) (access, next string, err error) {
	t.mu.Lock()
	entry, ok := t.refresh[reference]
	delete(t.refresh, reference)
	t.mu.Unlock()

	if !ok {
		return "", "", common.ErrorNotFound
	}
	if entry.expires.Before(time.Now()) {
		return "", "", common.ErrRefreshTokenExpired
	}
	return t.issue(entry.accountID)
}

// authenticate returns the account of a valid, current access token.
func (t *tokenIssuer) authenticate(header string) (int64, error) {
	if header == "" {
		return 0, common.ErrorUnauthorized
	}
	claims, err := ParseToken(bearer(header), t.secret)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	gen := t.generation
	t.mu.Unlock()
	if claims.Generation != gen {
		return 0, common.ErrTokenExpired
	}
	return claims.AccountID, nil
}

// revokeAccess invalidates every access token issued so far. Reference
// tokens stay valid.
func (t *tokenIssuer) revokeAccess() {
	t.mu.Lock()
	t.generation++
	t.mu.Unlock()
}

func (t *tokenIssuer) dropReferences(accountID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, e := range t.refresh {
		if e.accountID == accountID {
			delete(t.refresh, k)
		}
	}
}
