package internal

import "time"

// Config defines the environment variables of the groupmeet client.
type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=info"`

	BadgerFilepath      string `env:"BADGER_FILEPATH,required=true"`
	CredentialsFilepath string `env:"CREDENTIALS_FILEPATH,required=true"`
	BlacklistFilepath   string `env:"BLACKLIST_FILEPATH"`

	NatsURL    string `env:"NATS_URL,default=nats://localhost:4222"`
	ClientName string `env:"CLIENT_NAME,default=groupmeet"`

	TokenSecret       string        `env:"TOKEN_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS,default=3"`
	RetryBaseDelay   time.Duration `env:"RETRY_BASE_DELAY,default=1s"`

	// EntryPath simulates the URL path the client was addressed with;
	// an /invite/<token> value triggers join-on-start.
	EntryPath string `env:"ENTRY_PATH,default=/"`

	// InspectPort serves the storage inspector when non-zero.
	InspectPort int `env:"INSPECT_PORT"`
}
