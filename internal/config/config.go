package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains fetcher configuration parameters.
type Config struct {
	LogLevel  int       `env:"LOG_LEVEL" envDefault:"0"`
	Store     Store     `envPrefix:"STORE_"`
	Transport Transport `envPrefix:"TRANSPORT_"`
	Diag      Diag      `envPrefix:"DIAG_"`
	Archive   Archive   `envPrefix:"MINIO_"`
}

// Store contains snapshot store parameters.
type Store struct {
	DataDir string `env:"DATA_DIR" envDefault:"./data"`
}

// Transport contains outbound HTTP parameters.
type Transport struct {
	UserAgent      string `env:"USER_AGENT" envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"`
	TimeoutSeconds int    `env:"TIMEOUT_SECONDS" envDefault:"15"`
	Retries        int    `env:"RETRIES" envDefault:"2"`
}

// Timeout returns the per-attempt timeout as a duration.
func (t Transport) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Diag contains diagnostic sink parameters.
type Diag struct {
	LogFile string `env:"LOG_FILE" envDefault:"./data/diagnostics.log"`
}

// Archive contains optional object storage parameters for archiving raw
// bodies of protocol-unknown responses. Disabled unless Enabled is set.
type Archive struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"weibofetch-access-key"`
	SecretKey string `env:"SECRET_KEY" envDefault:"weibofetch-secret-key"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"weibofetch-diagnostics"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
