// Package config holds the shared configuration for all almadc tools.
// Values come from the environment, with a .env file in the working
// directory honored for local use, matching how the original desktop tool
// was configured.
package config

import (
	"errors"
	"os"
	"path"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"

	"github.com/grinnell-libraries/almadc"
	"github.com/grinnell-libraries/almadc/alma"
)

// ErrMissingAPIKey means ALMA_API_KEY is not set anywhere.
var ErrMissingAPIKey = errors.New("ALMA_API_KEY not configured, set it in the environment or a .env file")

// Config for almadc tools.
type Config struct {
	// APIKey is the Alma API key, read scope for dry runs, write scope
	// for real ones.
	APIKey string
	// BaseURL is the regional API host, derived from ALMA_API_REGION and
	// overridable with ALMA_API_URL.
	BaseURL string
	// DataDir is where reports and backup captures go.
	DataDir string
	// MaxRetries and Timeout apply to every API request.
	MaxRetries int
	Timeout    time.Duration
}

// FromEnv loads configuration from the environment, consulting a local
// .env file when present.
func FromEnv() (*Config, error) {
	// A missing .env file is fine, the environment may carry everything.
	_ = godotenv.Load()
	key := os.Getenv("ALMA_API_KEY")
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := os.Getenv("ALMA_API_URL")
	if baseURL == "" {
		baseURL = alma.BaseURL(os.Getenv("ALMA_API_REGION"))
	}
	dataDir := os.Getenv("ALMADC_DATA_DIR")
	if dataDir == "" {
		dataDir = path.Join(xdg.DataHome, almadc.AppName)
	}
	return &Config{
		APIKey:     key,
		BaseURL:    baseURL,
		DataDir:    dataDir,
		MaxRetries: 3,
		Timeout:    60 * time.Second,
	}, nil
}
