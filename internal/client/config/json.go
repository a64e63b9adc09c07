package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/fieldvisit/internal/flagx"
	"github.com/dmitrijs2005/fieldvisit/internal/timex"
)

// jsonConfig is the on-disk form. Durations accept "15s" or nanoseconds.
// Absent keys leave the current value untouched.
type jsonConfig struct {
	PortalBaseURL       *string         `json:"portal_base_url"`
	RefreshBaseURL      *string         `json:"refresh_base_url"`
	ProfileImageBaseURL *string         `json:"profile_image_base_url"`
	DataDir             *string         `json:"data_dir"`
	DeviceType          *string         `json:"device_type"`
	DeviceToken         *string         `json:"device_token"`
	DeviceID            *string         `json:"device_id"`
	AuthScheme          *string         `json:"auth_scheme"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	RestoreTimeout      *timex.Duration `json:"restore_timeout"`
	MetricsAddr         *string         `json:"metrics_addr"`
}

func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.PortalBaseURL, jc.PortalBaseURL)
	setString(&cfg.RefreshBaseURL, jc.RefreshBaseURL)
	setString(&cfg.ProfileImageBaseURL, jc.ProfileImageBaseURL)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.DeviceType, jc.DeviceType)
	setString(&cfg.DeviceToken, jc.DeviceToken)
	setString(&cfg.DeviceID, jc.DeviceID)
	setString(&cfg.AuthScheme, jc.AuthScheme)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RestoreTimeout != nil {
		cfg.RestoreTimeout = jc.RestoreTimeout.Duration
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
