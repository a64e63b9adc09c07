package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/auth"
	"github.com/dmitrijs2005/fieldvisit/internal/client/credentials"
	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
	"github.com/dmitrijs2005/fieldvisit/internal/common"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	accountTypePatient = "Patient"
	consultationName   = "Physical Consultation"
	logoutLocationID   = "1"
	defaultGPS         = "Unknown"
	maxResponseBody    = 4 << 20
)

// Options configures an HTTPClient.
type Options struct {
	PortalBaseURL       string
	ProfileImageBaseURL string

	DeviceType  string
	DeviceToken string
	DeviceID    string

	// AuthScheme prefixes the access token in the Authorization header, on
	// the first send and on the replay alike. Empty sends the raw token.
	AuthScheme string
	Timeout    time.Duration

	// Transport is the underlying round tripper; nil means http.DefaultTransport.
	Transport http.RoundTripper
	Logger    logging.Logger
	Metrics   *auth.Metrics
}

// HTTPClient implements Client over the portal REST API.
type HTTPClient struct {
	opts   Options
	store  credentials.Store
	log    logging.Logger
	authed *http.Client
	public *http.Client
	now    func() time.Time
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds the API client. Requests other than login go through
// the authenticating transport, which reads tokens from store and refreshes
// them through refresher.
func NewHTTPClient(opts Options, store credentials.Store, refresher TokenRefresher) *HTTPClient {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	log = log.With("component", "api")

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &HTTPClient{
		opts:  opts,
		store: store,
		log:   log,
		authed: &http.Client{
			Timeout:   opts.Timeout,
			Transport: newAuthTransport(base, store, refresher, opts.AuthScheme, log, opts.Metrics),
		},
		public: &http.Client{Timeout: opts.Timeout, Transport: base},
		now:    time.Now,
	}
}

type loginRequest struct {
	UserName     string   `json:"userName"`
	Password     string   `json:"password"`
	AccountTypes []string `json:"accountTypes"`
	DeviceType   string   `json:"deviceType"`
	DeviceToken  string   `json:"deviceToken"`
	DeviceID     string   `json:"deviceId"`
}

type loginResponse struct {
	models.Identity
	credentials.Credentials
}

// Login authenticates userName and stores the issued token pair. It does not
// use the authenticating transport, so a wrong password is reported as
// ErrUnauthorized rather than triggering a refresh.
func (c *HTTPClient) Login(ctx context.Context, userName, password string) (models.Identity, error) {
	req := loginRequest{
		UserName:     userName,
		Password:     password,
		AccountTypes: []string{accountTypePatient},
		DeviceType:   c.opts.DeviceType,
		DeviceToken:  c.opts.DeviceToken,
		DeviceID:     c.opts.DeviceID,
	}

	body, err := c.send(ctx, c.public, http.MethodPost, "account/patient-authenticate", nil, req, nil)
	if err != nil {
		return models.Identity{}, err
	}

	var resp loginResponse
	if err := decode(body, &resp); err != nil {
		return models.Identity{}, err
	}
	if err := validate.Struct(resp.Identity); err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}

	if resp.Credentials.Valid() {
		if err := c.store.Save(ctx, resp.Credentials); err != nil {
			c.log.Warn(ctx, "login tokens not persisted", "error", err)
		}
	} else {
		c.log.Warn(ctx, "login response without a complete token pair", "account", resp.AccountID)
	}
	return resp.Identity, nil
}

type logoutRequest struct {
	AccountID  int64  `json:"accountId"`
	DeviceType string `json:"deviceType"`
	DeviceID   string `json:"deviceId"`
}

func (c *HTTPClient) Logout(ctx context.Context, accountID int64) error {
	req := logoutRequest{AccountID: accountID, DeviceType: c.opts.DeviceType, DeviceID: c.opts.DeviceID}
	hdr := http.Header{}
	hdr.Set(common.LocationIDHeaderName, logoutLocationID)

	_, err := c.send(ctx, c.authed, http.MethodPost, "account/logout", nil, req, hdr)
	return err
}

type userListRequest struct {
	UserName     string   `json:"username"`
	AccountTypes []string `json:"accountTypes"`
}

// LinkedIdentities returns every identity linked to userName. The backend
// groups them in an object of arrays; groups are concatenated in document
// order and null entries are skipped.
func (c *HTTPClient) LinkedIdentities(ctx context.Context, userName string) ([]models.Identity, error) {
	req := userListRequest{UserName: userName, AccountTypes: []string{accountTypePatient}}
	body, err := c.send(ctx, c.authed, http.MethodPut, "patients/check-user-list", nil, req, nil)
	if err != nil {
		return nil, err
	}

	ids, err := flattenGroups(body)
	if err != nil {
		return nil, err
	}
	if err := validateEach(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func flattenGroups(body []byte) ([]models.Identity, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	if tok == nil {
		return nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: user list is not an object", ErrInvalidReply)
	}

	var out []models.Identity
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReply, err)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReply, err)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}
		var group []*models.Identity
		if err := json.Unmarshal(raw, &group); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReply, err)
		}
		for _, id := range group {
			if id != nil {
				out = append(out, *id)
			}
		}
	}
	return out, nil
}

func (c *HTTPClient) RecentVisits(ctx context.Context, accountID int64) ([]models.Visit, error) {
	q := url.Values{}
	q.Set("AccountId", strconv.FormatInt(accountID, 10))

	body, err := c.send(ctx, c.authed, http.MethodGet, "SalesVisit/FetchVisits", q, nil, nil)
	if err != nil {
		return nil, err
	}
	var visits []models.Visit
	if err := decode(body, &visits); err != nil {
		return nil, err
	}
	return visits, nil
}

func (c *HTTPClient) Locations(ctx context.Context) ([]models.Location, error) {
	body, err := c.send(ctx, c.authed, http.MethodGet, "resources/locations", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	var locs []models.Location
	if err := decode(body, &locs); err != nil {
		return nil, err
	}
	if err := validateEach(locs); err != nil {
		return nil, err
	}
	return locs, nil
}

type providersRequest struct {
	ConsultationName string `json:"consultationName"`
}

func (c *HTTPClient) Providers(ctx context.Context) ([]models.Provider, error) {
	body, err := c.send(ctx, c.authed, http.MethodPost, "providers/fetch-provider-list-items", nil,
		providersRequest{ConsultationName: consultationName}, nil)
	if err != nil {
		return nil, err
	}
	var providers []models.Provider
	if err := decode(body, &providers); err != nil {
		return nil, err
	}
	if err := validateEach(providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// AddVisit submits a finished visit. The backend confirms with the literal
// "success", either as a JSON string or as plain text.
func (c *HTTPClient) AddVisit(ctx context.Context, v models.VisitRequest) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid visit: %w", err)
	}
	if v.GPSLocation == "" {
		v.GPSLocation = defaultGPS
	}

	body, err := c.send(ctx, c.authed, http.MethodPost, "SalesVisit/AddVisit", nil, v, nil)
	if err != nil {
		return err
	}
	if !strings.EqualFold(scalar(body), "success") {
		return fmt.Errorf("%w: add visit replied %q", ErrRejected, truncate(body))
	}
	return nil
}

type dutyOnRequest struct {
	AccountID        int64     `json:"AccountId"`
	CreatedBy        int64     `json:"CreatedBy"`
	CreatedDate      time.Time `json:"CreatedDate"`
	LoginTime        time.Time `json:"LoginTime"`
	LoginGPSLocation string    `json:"LoginGpsLocation"`
	IsLogin          bool      `json:"IsLogin"`
}

// DutyOn starts a working day and returns the day tracker id the backend
// assigned to it.
func (c *HTTPClient) DutyOn(ctx context.Context, accountID int64, gps string) (string, error) {
	now := c.now().UTC()
	req := dutyOnRequest{
		AccountID:        accountID,
		CreatedBy:        accountID,
		CreatedDate:      now,
		LoginTime:        now,
		LoginGPSLocation: orDefault(gps),
		IsLogin:          true,
	}

	body, err := c.send(ctx, c.authed, http.MethodPost, "SalesVisit/SalesVisitLogin", nil, req, nil)
	if err != nil {
		return "", err
	}
	id := scalar(body)
	if id == "" || id == "0" || id == "null" || id == "false" {
		return "", fmt.Errorf("%w: no day tracker id", ErrRejected)
	}
	return id, nil
}

type dutyOffRequest struct {
	AccountID           int64     `json:"AccountId"`
	LogoutTime          time.Time `json:"LogoutTime"`
	LogoutGPSLocation   string    `json:"LogoutGpsLocation"`
	DayTrackerRequestID string    `json:"DayTrackerRequestId"`
}

func (c *HTTPClient) DutyOff(ctx context.Context, accountID int64, gps, dayTrackerID string) error {
	req := dutyOffRequest{
		AccountID:           accountID,
		LogoutTime:          c.now().UTC(),
		LogoutGPSLocation:   orDefault(gps),
		DayTrackerRequestID: dayTrackerID,
	}
	_, err := c.send(ctx, c.authed, http.MethodPut, "SalesVisit/UpdateSalesVisitLogin", nil, req, nil)
	return err
}

func (c *HTTPClient) ProfileImageURL(thumbnail string) (string, error) {
	if thumbnail == "" {
		return "", ErrNoThumbnail
	}
	return c.opts.ProfileImageBaseURL + thumbnail, nil
}

// send performs one API call and returns the response body of a 2xx reply.
func (c *HTTPClient) send(ctx context.Context, hc *http.Client, method, path string, q url.Values, in any, hdr http.Header) ([]byte, error) {
	endpoint, err := joinURL(c.opts.PortalBaseURL, path, q)
	if err != nil {
		return nil, err
	}
	return doJSON(ctx, hc, method, endpoint, in, hdr, c.log)
}

func doJSON(ctx context.Context, hc *http.Client, method, endpoint string, in any, hdr http.Header, log logging.Logger) ([]byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range hdr {
		req.Header[k] = vs
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, mapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	log.Debug(ctx, "api call", "method", method, "url", req.URL.Path, "status", resp.StatusCode, "took", time.Since(start))

	if err := mapStatus(resp.StatusCode, data); err != nil {
		return nil, err
	}
	return data, nil
}

func mapTransportError(ctx context.Context, err error) error {
	var rf *auth.RefreshFailure
	if errors.As(err, &rf) {
		return rf
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func mapStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusBadGateway, code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
		return ErrUnavailable
	default:
		return &StatusError{Code: code, Body: truncate(body)}
	}
}

func joinURL(base, path string, q url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	u = u.JoinPath(path)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func decode(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	return nil
}

func validateEach[T any](items []T) error {
	for i := range items {
		if err := validate.Struct(items[i]); err != nil {
			return fmt.Errorf("%w: item %d: %v", ErrInvalidReply, i, err)
		}
	}
	return nil
}

// scalar returns body as a trimmed string, unquoting a JSON string.
func scalar(body []byte) string {
	b := bytes.TrimSpace(body)
	var s string
	if len(b) > 0 && b[0] == '"' && json.Unmarshal(b, &s) == nil {
		return strings.TrimSpace(s)
	}
	return string(b)
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

func orDefault(gps string) string {
	if strings.TrimSpace(gps) == "" {
		return defaultGPS
	}
	return gps
}
