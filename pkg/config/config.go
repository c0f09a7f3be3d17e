package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joshuashevchuk1/gm-media-api-sub001/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Join is everything needed to reach the Meet join endpoint for a single
// conference and authenticate the request.
type Join struct {
	// Base URL of the Meet Media API server, e.g. "https://meet.googleapis.com".
	Endpoint string `yaml:"endpoint"`
	// Space/conference identifier, used to build the
	// "{endpoint}/spaces/{conferenceId}:connectActiveConference" URL.
	ConferenceID string `yaml:"conferenceId"`
	// OAuth access token, sent as "Authorization: Bearer {accessToken}".
	AccessToken string `yaml:"accessToken"`
	// Optional path to a CA bundle to trust in addition to the system roots.
	CACertPath string `yaml:"caCertPath"`
}

// Channels controls which of the optional resource data channels are
// opened when the session connects. session-control and media-stats are
// always opened regardless of this configuration; the MediaStats field is
// not consulted when choosing channels.
type Channels struct {
	MediaStats       bool `yaml:"mediaStats"`
	Participants     bool `yaml:"participants"`
	MediaEntries     bool `yaml:"mediaEntries"`
	VideoAssignment  bool `yaml:"videoAssignment"`
}

// Config is the session configuration.
type Config struct {
	Join      Join              `yaml:"join"`
	Channels  Channels          `yaml:"channels"`
	Telemetry telemetry.Config  `yaml:"telemetry"`
	// Starting from which level to log stuff.
	LogLevel string `yaml:"log"`
}

// ErrNoConfigEnvVar is returned when the CONFIG environment variable is not set.
var ErrNoConfigEnvVar = errors.New("environment variable not set or invalid")

// LoadConfig tries to load a config from the `CONFIG` environment variable.
// If the environment variable is not set, tries to load a config from the
// provided path to the config file (YAML). Returns an error if the config
// could not be loaded.
func LoadConfig(path string) (*Config, error) {
	config, err := LoadConfigFromEnv()
	if err != nil {
		if !errors.Is(err, ErrNoConfigEnvVar) {
			return nil, err
		}

		return LoadConfigFromPath(path)
	}

	return config, nil
}

// LoadConfigFromEnv tries to load the config from the CONFIG environment
// variable. Returns ErrNoConfigEnvVar if it is not set.
func LoadConfigFromEnv() (*Config, error) {
	configEnv := os.Getenv("CONFIG")
	if configEnv == "" {
		return nil, ErrNoConfigEnvVar
	}

	return LoadConfigFromString(configEnv)
}

// LoadConfigFromPath tries to load a config from the provided path.
func LoadConfigFromPath(path string) (*Config, error) {
	logrus.WithField("path", path).Info("loading config")

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return LoadConfigFromString(string(file))
}

// LoadConfigFromString loads the config from the provided YAML string.
// Returns an error if the string is not valid YAML or a required field is
// missing.
func LoadConfigFromString(configString string) (*Config, error) {
	logrus.Info("loading config from string")

	var config Config
	if err := yaml.Unmarshal([]byte(configString), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML file: %w", err)
	}

	if config.Join.Endpoint == "" ||
		config.Join.ConferenceID == "" ||
		config.Join.AccessToken == "" {
		return nil, errors.New("invalid config values: join.endpoint, join.conferenceId and join.accessToken are required")
	}

	return &config, nil
}
