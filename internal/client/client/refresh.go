package client

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/auth"
	"github.com/dmitrijs2005/fieldvisit/internal/client/credentials"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
)

// RefreshClient exchanges a reference token for a new pair on the refresh
// ("live") base URL. It never carries an Authorization header.
type RefreshClient struct {
	baseURL string
	hc      *http.Client
	log     logging.Logger
}

var _ auth.Refresher = (*RefreshClient)(nil)

func NewRefreshClient(baseURL string, timeout time.Duration, transport http.RoundTripper, log logging.Logger) *RefreshClient {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &RefreshClient{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout, Transport: transport},
		log:     log.With("component", "refresh-api"),
	}
}

type refreshRequest struct {
	Token string `json:"Token"`
}

// Refresh returns whatever pair the backend issued; the coordinator decides
// whether it is usable.
func (r *RefreshClient) Refresh(ctx context.Context, refreshToken string) (credentials.Credentials, error) {
	endpoint, err := joinURL(r.baseURL, "account/refresh-authentication", nil)
	if err != nil {
		return credentials.Credentials{}, err
	}
	body, err := doJSON(ctx, r.hc, http.MethodPut, endpoint, refreshRequest{Token: refreshToken}, nil, r.log)
	if err != nil {
		return credentials.Credentials{}, err
	}

	var c credentials.Credentials
	if err := decode(body, &c); err != nil {
		return credentials.Credentials{}, err
	}
	return c, nil
}
