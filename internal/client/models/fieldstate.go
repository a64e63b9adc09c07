package models

import "time"

// ActiveVisit is a visit that has been started but not yet submitted.
type ActiveVisit struct {
	Provider    Provider  `json:"selectedProvider"`
	CheckinTime time.Time `json:"checkinTime"`
}

// FieldState is the agent's persisted duty/visit state.
type FieldState struct {
	OnDuty       bool         `json:"isOnDuty"`
	DayTrackerID string       `json:"dayTrackerId,omitempty"`
	Visit        *ActiveVisit `json:"visit,omitempty"`
}

// VisitInProgress reports whether a visit timer is running.
func (s FieldState) VisitInProgress() bool {
	return s.Visit != nil
}

// Elapsed returns how long the active visit has been running at now.
func (s FieldState) Elapsed(now time.Time) time.Duration {
	if s.Visit == nil || now.Before(s.Visit.CheckinTime) {
		return 0
	}
	return now.Sub(s.Visit.CheckinTime)
}
