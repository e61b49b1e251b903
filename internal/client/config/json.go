package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ilyakarpov/paycodes/internal/flagx"
	"github.com/ilyakarpov/paycodes/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s"
// or as integer nanoseconds.
type JsonConfig struct {
	ServerBaseURL       string         `json:"server_base_url"`
	DataDir             string         `json:"data_dir"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	LoginTimeout        timex.Duration `json:"login_timeout"`
	LoginMaxRetries     int            `json:"login_max_retries"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
}

// parseJson overlays Config with values loaded from a JSON file. The path
// comes from the -c/-config flags; when absent, nothing is loaded. Zero
// values in the file leave the corresponding Config field untouched.
// Panics on read or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerBaseURL != "" {
		cfg.ServerBaseURL = jc.ServerBaseURL
	}
	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.LoginTimeout.Duration != 0 {
		cfg.LoginTimeout = time.Duration(jc.LoginTimeout.Duration)
	}
	if jc.LoginMaxRetries != 0 {
		cfg.LoginMaxRetries = jc.LoginMaxRetries
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
}
