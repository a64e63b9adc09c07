package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
	"github.com/dmitrijs2005/fieldvisit/internal/common"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ctxKey string

const accountIDKey ctxKey = "accountID"

func accountFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(accountIDKey).(int64)
	return id
}

// requireAuth rejects requests without a valid, unrevoked access token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.tokens.authenticate(r.Header.Get(common.AuthorizationHeaderName))
		if err != nil {
			s.log.Debug(r.Context(), "rejected access token", "path", r.URL.Path, "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountIDKey, id)))
	})
}

type authenticateRequest struct {
	UserName     string   `json:"userName" validate:"required"`
	Password     string   `json:"password" validate:"required"`
	AccountTypes []string `json:"accountTypes"`
	DeviceType   string   `json:"deviceType"`
	DeviceID     string   `json:"deviceId"`
}

type authenticateResponse struct {
	models.Identity
	Token          string `json:"token"`
	ReferenceToken string `json:"referenceToken"`
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if !decodeValid(w, r, &req) {
		return
	}
	id, ok := s.data.login(req.UserName, req.Password)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	access, reference, err := s.tokens.issue(id.AccountID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info(r.Context(), "login", "user", req.UserName, "account", id.AccountID)
	writeJSON(w, authenticateResponse{Identity: id, Token: access, ReferenceToken: reference})
}

type refreshRequest struct {
	Token string `json:"Token" validate:"required"`
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	s.refreshes.Add(1)

	var req refreshRequest
	if !decodeValid(w, r, &req) {
		s.metrics.refreshes.WithLabelValues("invalid").Inc()
		return
	}
	access, next, err := s.tokens.rotate(req.Token)
	switch {
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrRefreshTokenExpired):
		s.metrics.refreshes.WithLabelValues("rejected").Inc()
		w.WriteHeader(http.StatusUnauthorized)
		return
	case err != nil:
		s.metrics.refreshes.WithLabelValues("error").Inc()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.metrics.refreshes.WithLabelValues("ok").Inc()
	writeJSON(w, map[string]string{"token": access, "referenceToken": next})
}

type logoutRequest struct {
	AccountID int64 `json:"accountId" validate:"required"`
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(common.LocationIDHeaderName) == "" {
		http.Error(w, "LocationId header is required", http.StatusBadRequest)
		return
	}
	var req logoutRequest
	if !decodeValid(w, r, &req) {
		return
	}
	s.tokens.dropReferences(accountFrom(r.Context()))
	writeJSON(w, "Logged out")
}

type userListRequest struct {
	UserName string `json:"username" validate:"required"`
}

func (s *Server) checkUserList(w http.ResponseWriter, r *http.Request) {
	var req userListRequest
	if !decodeValid(w, r, &req) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.data.linkedFor(req.UserName))
}

func (s *Server) fetchVisits(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("AccountId"), 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "AccountId is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, s.data.visitsOf(id))
}

func (s *Server) locations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.data.locations)
}

type providerListRequest struct {
	ConsultationName string `json:"consultationName" validate:"required"`
}

func (s *Server) providerList(w http.ResponseWriter, r *http.Request) {
	var req providerListRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if !strings.EqualFold(req.ConsultationName, "Physical Consultation") {
		writeJSON(w, []models.Provider{})
		return
	}
	writeJSON(w, s.data.providers)
}

func (s *Server) addVisit(w http.ResponseWriter, r *http.Request) {
	var req models.VisitRequest
	if !decodeValid(w, r, &req) {
		return
	}
	v := s.data.addVisit(req)
	s.log.Info(r.Context(), "visit added", "visit", v.ID, "account", req.CreatedBy)
	writeJSON(w, "success")
}

type dutyOnRequest struct {
	AccountID        int64     `json:"AccountId" validate:"required"`
	LoginTime        time.Time `json:"LoginTime" validate:"required"`
	LoginGPSLocation string    `json:"LoginGpsLocation"`
	IsLogin          bool      `json:"IsLogin"`
}

func (s *Server) dutyOn(w http.ResponseWriter, r *http.Request) {
	var req dutyOnRequest
	if !decodeValid(w, r, &req) {
		return
	}
	writeJSON(w, s.data.dutyOn(req.AccountID, req.LoginTime, req.LoginGPSLocation))
}

type dutyOffRequest struct {
	AccountID           int64     `json:"AccountId" validate:"required"`
	LogoutTime          time.Time `json:"LogoutTime" validate:"required"`
	LogoutGPSLocation   string    `json:"LogoutGpsLocation"`
	DayTrackerRequestID string    `json:"DayTrackerRequestId" validate:"required,number"`
}

func (s *Server) dutyOff(w http.ResponseWriter, r *http.Request) {
	var req dutyOffRequest
	if !decodeValid(w, r, &req) {
		return
	}
	tracker, _ := strconv.ParseInt(req.DayTrackerRequestID, 10, 64)
	if !s.data.dutyOff(req.AccountID, tracker, req.LogoutTime, req.LogoutGPSLocation) {
		http.Error(w, "unknown day tracker", http.StatusNotFound)
		return
	}
	writeJSON(w, "success")
}

func decodeValid(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
