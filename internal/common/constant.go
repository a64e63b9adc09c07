// Package common contains shared constants and sentinel errors used across
// fieldvisit components.
package common

const (
	// AuthorizationHeaderName carries the access token on outbound requests.
	AuthorizationHeaderName = "Authorization"

	// LocationIDHeaderName is sent by the logout call; the backend expects it
	// to be present even though the value is fixed.
	LocationIDHeaderName = "LocationId"

	// BearerScheme is the optional prefix of the Authorization header value.
	BearerScheme = "Bearer "
)
