package client

import (
	"context"

	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
)

// Client is the backend API consumed by the services.
type Client interface {
	Login(ctx context.Context, userName, password string) (models.Identity, error)
	Logout(ctx context.Context, accountID int64) error
	LinkedIdentities(ctx context.Context, userName string) ([]models.Identity, error)
	RecentVisits(ctx context.Context, accountID int64) ([]models.Visit, error)
	Locations(ctx context.Context) ([]models.Location, error)
	Providers(ctx context.Context) ([]models.Provider, error)
	AddVisit(ctx context.Context, v models.VisitRequest) error
	DutyOn(ctx context.Context, accountID int64, gps string) (string, error)
	DutyOff(ctx context.Context, accountID int64, gps, dayTrackerID string) error
	ProfileImageURL(thumbnail string) (string, error)
}
