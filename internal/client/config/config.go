package config

import "time"

// Config holds runtime settings for the fieldvisit CLI.
type Config struct {
	PortalBaseURL       string
	RefreshBaseURL      string
	ProfileImageBaseURL string

	// DataDir holds the SQLite database, the key file and app storage.
	DataDir string

	DeviceType  string
	DeviceToken string
	// DeviceID is generated and persisted on first start when empty.
	DeviceID string

	// AuthScheme prefixes the access token in the Authorization header.
	AuthScheme string

	RequestTimeout time.Duration
	RestoreTimeout time.Duration

	// MetricsAddr, when set, serves Prometheus metrics on host:port.
	MetricsAddr string
}

// LoadDefaults populates c with defaults that talk to a local stub server.
func (c *Config) LoadDefaults() {
	c.PortalBaseURL = "http://127.0.0.1:8080/api/"
	c.RefreshBaseURL = "http://127.0.0.1:8080/live/"
	c.ProfileImageBaseURL = "http://127.0.0.1:8080/images/"
	c.DataDir = ".fieldvisit"
	c.DeviceType = "Web"
	c.DeviceToken = ""
	c.DeviceID = ""
	c.AuthScheme = ""
	c.RequestTimeout = 15 * time.Second
	c.RestoreTimeout = 5 * time.Second
	c.MetricsAddr = ""
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config in args (if any), then flags in args. Later sources win.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
