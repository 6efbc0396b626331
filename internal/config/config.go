package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "LUMEN"
	defaultOwnedPath     = "lumen-owned.db"
	defaultSharedPath    = "lumen-shared.db"
	defaultAuthorTag     = "app"
	defaultLocalIdentity = "local"
	defaultLogLevel      = "info"
	defaultPollInterval  = 15 * time.Second
)

// AppConfig captures runtime configuration for the sync daemon.
type AppConfig struct {
	OwnedDatabasePath  string
	SharedDatabasePath string
	AuthorTag          string
	LocalIdentity      string
	LogLevel           string
	LogFile            string
	PollInterval       time.Duration
	RemoteMaxZones     int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("database.owned_path", defaultOwnedPath)
	configViper.SetDefault("database.shared_path", defaultSharedPath)
	configViper.SetDefault("author.tag", defaultAuthorTag)
	configViper.SetDefault("author.identity", defaultLocalIdentity)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", "")
	configViper.SetDefault("replay.poll_interval", defaultPollInterval)
	configViper.SetDefault("remote.max_zones", 0)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		OwnedDatabasePath:  configViper.GetString("database.owned_path"),
		SharedDatabasePath: configViper.GetString("database.shared_path"),
		AuthorTag:          configViper.GetString("author.tag"),
		LocalIdentity:      configViper.GetString("author.identity"),
		LogLevel:           configViper.GetString("log.level"),
		LogFile:            configViper.GetString("log.file"),
		PollInterval:       configViper.GetDuration("replay.poll_interval"),
		RemoteMaxZones:     configViper.GetInt("remote.max_zones"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.OwnedDatabasePath) == "" {
		return fmt.Errorf("database.owned_path is required")
	}
	if strings.TrimSpace(c.SharedDatabasePath) == "" {
		return fmt.Errorf("database.shared_path is required")
	}
	if c.OwnedDatabasePath == c.SharedDatabasePath {
		return fmt.Errorf("owned and shared partitions must use separate database files")
	}
	if strings.TrimSpace(c.AuthorTag) == "" {
		return fmt.Errorf("author.tag is required")
	}
	if strings.TrimSpace(c.LocalIdentity) == "" {
		return fmt.Errorf("author.identity is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("replay.poll_interval must be positive")
	}
	return nil
}
