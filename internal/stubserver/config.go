package stubserver

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/flagx"
	"github.com/dmitrijs2005/fieldvisit/internal/timex"
)

// Config holds runtime settings for the stub backend.
//
// Fields:
//   - ListenAddr: bind address of the HTTP listener.
//   - SecretKey: HMAC secret for signing access tokens (HS256).
//   - AccessTokenTTL / RefreshTokenTTL: token lifetimes.
type Config struct {
	ListenAddr      string
	SecretKey       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret is not suitable for anything but local testing.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.SecretKey = "stub-secret"
	c.AccessTokenTTL = 1 * time.Minute
	c.RefreshTokenTTL = 24 * time.Hour
}

type jsonConfig struct {
	ListenAddr      *string         `json:"listen_addr"`
	SecretKey       *string         `json:"secret_key"`
	AccessTokenTTL  *timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL *timex.Duration `json:"refresh_token_ttl"`
}

// LoadConfig applies defaults, then the JSON file named by -c/-config, then
// the -a, -ttl and -s flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := flagx.ConfigPath(args); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var jc jsonConfig
		if err := json.Unmarshal(data, &jc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if jc.ListenAddr != nil {
			cfg.ListenAddr = *jc.ListenAddr
		}
		if jc.SecretKey != nil {
			cfg.SecretKey = *jc.SecretKey
		}
		if jc.AccessTokenTTL != nil {
			cfg.AccessTokenTTL = jc.AccessTokenTTL.Duration
		}
		if jc.RefreshTokenTTL != nil {
			cfg.RefreshTokenTTL = jc.RefreshTokenTTL.Duration
		}
	}

	fs := flag.NewFlagSet("stubserver", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "listen address")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "JWT signing secret")
	ttl := fs.Int("ttl", int(cfg.AccessTokenTTL.Seconds()), "access token TTL (in seconds)")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-a", "-s", "-ttl"})); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "ttl" {
			cfg.AccessTokenTTL = time.Duration(*ttl) * time.Second
		}
	})
	return cfg, nil
}
