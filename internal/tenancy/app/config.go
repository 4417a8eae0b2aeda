package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseFile string `env:"TENANT_DATABASE_FILE" envDefault:"tenant.db"`

	// AcceptBaseURL is where invitation accept links point, typically the
	// embedding frontend's accept page.
	AcceptBaseURL string `env:"TENANT_ACCEPT_BASE_URL"`

	// InviteTokenSecret signs invitation accept-link tokens. Links are
	// omitted from notifications when unset.
	InviteTokenSecret string `env:"TENANT_INVITE_TOKEN_SECRET"`
	Issuer            string `env:"TENANT_ISSUER" envDefault:"tenantkit"`

	InvitationTTL time.Duration `env:"TENANT_INVITATION_TTL" envDefault:"48h"`
	SweepInterval time.Duration `env:"TENANT_SWEEP_INTERVAL" envDefault:"1h"`

	// NotifyPerSecond / NotifyBurst throttle outgoing invitation emails.
	NotifyPerSecond float64 `env:"TENANT_NOTIFY_PER_SECOND" envDefault:"5"`
	NotifyBurst     int     `env:"TENANT_NOTIFY_BURST" envDefault:"10"`

	TeamsEnabled bool `env:"TENANT_TEAMS_ENABLED" envDefault:"false"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
