package stubserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
)

type account struct {
	password string
	identity models.Identity
}

type tracker struct {
	id        int64
	accountID int64
	loginAt   time.Time
	loginGPS  string
	logoutAt  time.Time
	logoutGPS string
}

// backend is the in-memory state behind the stub endpoints.
type backend struct {
	mu        sync.Mutex
	accounts  map[string]account
	linked    map[string]json.RawMessage
	locations []models.Location
	providers []models.Provider
	visits    map[int64][]models.Visit
	trackers  map[int64]*tracker
	nextID    int64
}

// Demo logins: "admin"/"admin" is an administrator, "9000000000"/"secret"
// is a patient login ("1:" prefixed) with two linked identities.
func newBackend() *backend {
	return &backend{
		accounts: map[string]account{
			"admin": {password: "admin", identity: models.Identity{
				AccountID: 1, RoleID: 1, RoleName: "ADMIN", FullName: "Site Admin",
			}},
			"1:9000000000": {password: "secret", identity: models.Identity{
				AccountID: 100, RoleID: 4, RoleName: "Patient", FullName: "Field Login", UMRNo: "UMR100",
			}},
		},
		linked: map[string]json.RawMessage{
			"1:9000000000": json.RawMessage(`{
				"patients": [
					{"accountId": 101, "roleName": "Patient", "fullName": "Asha Rao", "umrNo": "UMR101", "thumbnailUrl": "101.png"},
					{"accountId": 102, "roleName": "Patient", "fullName": "Ravi Iyer", "umrNo": "UMR102"}
				],
				"guardians": null
			}`),
		},
		locations: []models.Location{
			{ID: 1, Name: "Central", Value: "CEN"},
			{ID: 2, Name: "North Wing", Value: "NTH"},
		},
		providers: []models.Provider{
			{ProviderID: 11, ProviderName: "Rao", SalutationName: "Dr.", LocationID: 1, Location: "Central"},
			{ProviderID: 12, ProviderName: "Iyer", SalutationName: "Dr.", LocationID: 1, Location: "central "},
			{ProviderID: 13, ProviderName: "Khan", SalutationName: "Dr.", LocationID: 2, Location: "North Wing"},
		},
		visits:   make(map[int64][]models.Visit),
		trackers: make(map[int64]*tracker),
		nextID:   1000,
	}
}

func (b *backend) login(userName, password string) (models.Identity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[userName]
	if !ok || a.password != password {
		return models.Identity{}, false
	}
	return a.identity, true
}

func (b *backend) linkedFor(userName string) json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if raw, ok := b.linked[userName]; ok {
		return raw
	}
	return json.RawMessage(`{}`)
}

func (b *backend) addVisit(v models.VisitRequest) models.Visit {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	visit := models.Visit{
		ID:           b.nextID,
		CheckinTime:  models.Timestamp{Time: v.CheckinTime},
		CheckoutTime: models.Timestamp{Time: v.CheckoutTime},
		LocationID:   v.LocationID,
		ProviderID:   v.ProviderID,
		GPSLocation:  v.GPSLocation,
		CreatedBy:    v.CreatedBy,
	}
	for _, p := range b.providers {
		if p.ProviderID == v.ProviderID {
			visit.ProviderName = p.DisplayName()
		}
	}
	b.visits[v.CreatedBy] = append(b.visits[v.CreatedBy], visit)
	return visit
}

func (b *backend) visitsOf(accountID int64) []models.Visit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Visit{}, b.visits[accountID]...)
}

func (b *backend) dutyOn(accountID int64, at time.Time, gps string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.trackers[b.nextID] = &tracker{id: b.nextID, accountID: accountID, loginAt: at, loginGPS: gps}
	return b.nextID
}

func (b *backend) dutyOff(accountID, trackerID int64, at time.Time, gps string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.trackers[trackerID]
	if !ok || t.accountID != accountID || !t.logoutAt.IsZero() {
		return false
	}
	t.logoutAt, t.logoutGPS = at, gps
	return true
}
