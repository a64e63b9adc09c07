package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/fieldvisit/internal/common"
	"github.com/dmitrijs2005/fieldvisit/internal/cryptox"
)

const secretSize = 32

// LoadOrCreateSecret reads the install secret from path, creating it with
// 0600 permissions on first use.
func LoadOrCreateSecret(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		if len(b) != secretSize {
			return nil, fmt.Errorf("secret file %s: unexpected length %d", path, len(b))
		}
		return b, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read secret file: %w", err)
	}

	b = common.GenerateRandByteArray(secretSize)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create secret file: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write secret file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close secret file: %w", err)
	}
	return b, nil
}

// StorageKey loads (or creates) the install secret and derives the AES key
// bound to deviceID.
func StorageKey(secretPath, deviceID string) ([]byte, error) {
	secret, err := LoadOrCreateSecret(secretPath)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(secret)

	return cryptox.DeriveStorageKey(secret, deviceID)
}
