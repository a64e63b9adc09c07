// Package metadata stores small non-secret key/value facts about this client
// install (for example the generated device id) in the local SQLite database.
package metadata

import (
	"context"
)

// KeyDeviceID holds the device id sent with login and logout calls.
const KeyDeviceID = "device_id"

type Repository interface {
	// Get returns nil, nil when key is not present.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
