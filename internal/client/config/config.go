package config

import "time"

// Config holds runtime settings for the wallet client.
//
// Fields:
//   - ServerBaseURL: base URL of the remote collection service.
//   - DataDir: directory for the local sqlite database and the secret store.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - LoginTimeout: wall-clock budget for one authenticate attempt.
//   - LoginMaxRetries: how many times a timed-out login is retried.
//   - RequestTimeout: transport-level timeout for every other request.
type Config struct {
	ServerBaseURL       string
	DataDir             string
	OnlineCheckInterval time.Duration
	LoginTimeout        time.Duration
	LoginMaxRetries     int
	RequestTimeout      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8090"
	c.DataDir = "."
	c.OnlineCheckInterval = 3 * time.Second
	c.LoginTimeout = 10 * time.Second
	c.LoginMaxRetries = 3
	c.RequestTimeout = 15 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
