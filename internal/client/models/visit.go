package models

import "time"

// Visit is a recorded client visit as returned by the backend.
type Visit struct {
	ID           int64     `json:"id,omitempty"`
	CheckinTime  Timestamp `json:"checkinTime"`
	CheckoutTime Timestamp `json:"checkoutTime"`
	LocationID   int64     `json:"locationId"`
	ProviderID   int64     `json:"providerId"`
	ProviderName string    `json:"providerName,omitempty"`
	GPSLocation  string    `json:"gpsLocation"`
	CreatedBy    int64     `json:"createdBy,omitempty"`
}

// VisitRequest is the payload of a new visit.
type VisitRequest struct {
	CheckinTime  time.Time `json:"checkinTime" validate:"required"`
	CheckoutTime time.Time `json:"checkoutTime" validate:"required,gtefield=CheckinTime"`
	LocationID   int64     `json:"locationId" validate:"required"`
	CreatedBy    int64     `json:"createdBy" validate:"required"`
	ProviderID   int64     `json:"providerId" validate:"required"`
	GPSLocation  string    `json:"gpsLocation"`
}

// Location is a site the agent can visit.
type Location struct {
	ID           int64  `json:"id"`
	Name         string `json:"name" validate:"required"`
	Value        string `json:"value,omitempty"`
	OptionalText string `json:"optionalText,omitempty"`
}

// Provider is a doctor available for a consultation at a location.
type Provider struct {
	ProviderID     int64  `json:"providerId" validate:"required"`
	ProviderName   string `json:"providerName"`
	SalutationName string `json:"salutationName,omitempty"`
	LocationID     int64  `json:"locationId"`
	Location       string `json:"location"`
}

// DisplayName joins salutation and name the way the app shows providers.
func (p Provider) DisplayName() string {
	if p.SalutationName == "" {
		return p.ProviderName
	}
	return p.SalutationName + " " + p.ProviderName
}
