package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/client"
	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
)

// KeyAppState is the app storage key of the persisted field state.
const KeyAppState = "appState"

var (
	ErrVisitInProgress = errors.New("a visit is in progress; stop it first")
	ErrNoVisit         = errors.New("no visit in progress")
	ErrOffDuty         = errors.New("not on duty")
	ErrNoDayTracker    = errors.New("missing day tracker id")
)

// KV is app storage; Get returns nil, nil for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// CurrentIdentity exposes the logged-in identity.
type CurrentIdentity interface {
	Current() (models.Identity, bool)
}

type VisitService interface {
	Recent(ctx context.Context, day *time.Time) ([]models.Visit, error)
	Locations(ctx context.Context) ([]models.Location, error)
	ProvidersAt(ctx context.Context, location string) ([]models.Provider, error)
	State(ctx context.Context) (models.FieldState, error)
	Start(ctx context.Context, p models.Provider) (models.FieldState, error)
	Stop(ctx context.Context, gps string) (models.FieldState, error)
	DutyOn(ctx context.Context, gps string) (models.FieldState, error)
	DutyOff(ctx context.Context, gps string) (models.FieldState, error)
}

type visitService struct {
	client  client.Client
	session CurrentIdentity
	kv      KV
	log     logging.Logger
	now     func() time.Time

	// mu serializes read-modify-write cycles of the field state.
	mu sync.Mutex
}

func NewVisitService(c client.Client, s CurrentIdentity, kv KV, log logging.Logger) VisitService {
	return &visitService{client: c, session: s, kv: kv, log: log.With("component", "visits"), now: time.Now}
}

// Recent returns the current identity's visits, newest check-in first. A
// non-nil day keeps only visits that checked in on that calendar day, in
// day's location.
func (s *visitService) Recent(ctx context.Context, day *time.Time) ([]models.Visit, error) {
	id, ok := s.session.Current()
	if !ok {
		return nil, ErrNotLoggedIn
	}
	visits, err := s.client.RecentVisits(ctx, id.AccountID)
	if err != nil {
		return nil, err
	}

	if day != nil {
		filtered := visits[:0]
		for _, v := range visits {
			if sameDay(v.CheckinTime.Time, *day) {
				filtered = append(filtered, v)
			}
		}
		visits = filtered
	}
	sort.SliceStable(visits, func(i, j int) bool {
		return visits[i].CheckinTime.After(visits[j].CheckinTime.Time)
	})
	return visits, nil
}

func sameDay(t, day time.Time) bool {
	y1, m1, d1 := t.In(day.Location()).Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (s *visitService) Locations(ctx context.Context) ([]models.Location, error) {
	return s.client.Locations(ctx)
}

// ProvidersAt returns the providers whose location matches name, ignoring
// case and surrounding spaces.
func (s *visitService) ProvidersAt(ctx context.Context, name string) ([]models.Provider, error) {
	all, err := s.client.Providers(ctx)
	if err != nil {
		return nil, err
	}
	want := strings.TrimSpace(name)
	var out []models.Provider
	for _, p := range all {
		if p.Location != "" && strings.EqualFold(strings.TrimSpace(p.Location), want) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *visitService) State(ctx context.Context) (models.FieldState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *visitService) Start(ctx context.Context, p models.Provider) (models.FieldState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return st, err
	}
	switch {
	case !st.OnDuty:
		return st, ErrOffDuty
	case st.VisitInProgress():
		return st, ErrVisitInProgress
	}

	st.Visit = &models.ActiveVisit{Provider: p, CheckinTime: s.now().UTC()}
	return st, s.save(ctx, st)
}

// Stop submits the running visit. On success the visit is cleared and the
// agent goes off duty locally; the day tracker id is kept.
func (s *visitService) Stop(ctx context.Context, gps string) (models.FieldState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.session.Current()
	if !ok {
		return models.FieldState{}, ErrNotLoggedIn
	}
	st, err := s.load(ctx)
	if err != nil {
		return st, err
	}
	if !st.VisitInProgress() {
		return st, ErrNoVisit
	}

	req := models.VisitRequest{
		CheckinTime:  st.Visit.CheckinTime,
		CheckoutTime: s.now().UTC(),
		LocationID:   st.Visit.Provider.LocationID,
		CreatedBy:    id.AccountID,
		ProviderID:   st.Visit.Provider.ProviderID,
		GPSLocation:  gps,
	}
	if err := s.client.AddVisit(ctx, req); err != nil {
		return st, fmt.Errorf("add visit: %w", err)
	}

	st.Visit = nil
	st.OnDuty = false
	return st, s.save(ctx, st)
}

func (s *visitService) DutyOn(ctx context.Context, gps string) (models.FieldState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.session.Current()
	if !ok {
		return models.FieldState{}, ErrNotLoggedIn
	}
	st, err := s.load(ctx)
	if err != nil {
		return st, err
	}
	if st.VisitInProgress() {
		return st, ErrVisitInProgress
	}

	tracker, err := s.client.DutyOn(ctx, id.AccountID, gps)
	if err != nil {
		return st, fmt.Errorf("duty on: %w", err)
	}
	st.OnDuty = true
	st.DayTrackerID = tracker
	return st, s.save(ctx, st)
}

func (s *visitService) DutyOff(ctx context.Context, gps string) (models.FieldState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.session.Current()
	if !ok {
		return models.FieldState{}, ErrNotLoggedIn
	}
	st, err := s.load(ctx)
	if err != nil {
		return st, err
	}
	switch {
	case st.VisitInProgress():
		return st, ErrVisitInProgress
	case st.DayTrackerID == "":
		return st, ErrNoDayTracker
	}

	if err := s.client.DutyOff(ctx, id.AccountID, gps, st.DayTrackerID); err != nil {
		return st, fmt.Errorf("duty off: %w", err)
	}
	st.OnDuty = false
	st.DayTrackerID = ""
	return st, s.save(ctx, st)
}

// load reads the field state; unreadable state is logged and reset.
func (s *visitService) load(ctx context.Context) (models.FieldState, error) {
	var st models.FieldState
	raw, err := s.kv.Get(ctx, KeyAppState)
	if err != nil {
		return st, fmt.Errorf("read field state: %w", err)
	}
	if raw == nil {
		return st, nil
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		s.log.Warn(ctx, "discarding corrupt field state", "error", err)
		return models.FieldState{}, nil
	}
	return st, nil
}

func (s *visitService) save(ctx context.Context, st models.FieldState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyAppState, raw); err != nil {
		return fmt.Errorf("persist field state: %w", err)
	}
	return nil
}
