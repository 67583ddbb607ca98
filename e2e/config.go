package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_COLOURS enables colorized scenario output for readability.
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_MESSAGE_COUNT sizes the chat exchange in the scenario.
	MessageCount int `envconfig:"E2E_MESSAGE_COUNT" default:"5"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
