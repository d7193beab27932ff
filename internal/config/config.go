package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreNATS     = "nats"
	StoreMemory   = "memory"
)

type Config struct {
	Store            string `mapstructure:"store"`
	DatabaseURL      string `mapstructure:"database_url"`
	NATSURL          string `mapstructure:"nats_url"`
	NATSBucketPrefix string `mapstructure:"nats_bucket_prefix"`
	LegacySQLitePath string `mapstructure:"legacy_sqlite"`
	LegacyJSONPath   string `mapstructure:"legacy_json"`
	HTTPAddr         string `mapstructure:"http_addr"`
	Locale           string `mapstructure:"locale"`
	LogLevel         string `mapstructure:"log_level"`
	DiscordToken     string `mapstructure:"discord_token"`
	DiscordChannelID string `mapstructure:"discord_channel_id"`
	MigrateOnStart   bool   `mapstructure:"migrate_on_start"`
}

// env lists the variable bound to each key.
var env = map[string]string{
	"store":              "REGISTRY_STORE",
	"database_url":       "DATABASE_URL",
	"nats_url":           "NATS_URL",
	"nats_bucket_prefix": "REGISTRY_NATS_BUCKET_PREFIX",
	"legacy_sqlite":      "REGISTRY_LEGACY_SQLITE",
	"legacy_json":        "REGISTRY_LEGACY_JSON",
	"http_addr":          "REGISTRY_HTTP_ADDR",
	"locale":             "REGISTRY_LOCALE",
	"log_level":          "REGISTRY_LOG_LEVEL",
	"discord_token":      "DISCORD_TOKEN",
	"discord_channel_id": "DISCORD_CHANNEL_ID",
	"migrate_on_start":   "REGISTRY_MIGRATE_ON_START",
}

// Load charge la configuration (.env, variables d'environnement, fichier TOML
// optionnel) et la valide. overrides, issus des flags, l'emportent sur tout.
func Load(file string, overrides map[string]any) (*Config, error) {
	// .env est optionnel lorsque les variables sont fournies par l'environnement (Docker, CI, etc.).
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("store", StorePostgres)
	v.SetDefault("nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("nats_bucket_prefix", "lerngruppe")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("locale", "de")
	v.SetDefault("log_level", "info")
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: lecture de %s impossible: %w", file, err)
		}
	}
	for key, value := range overrides {
		v.Set(key, value)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate applique toutes les règles métier sur la configuration chargée.
func (c *Config) validate() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			// Valeur par défaut utile en local lorsque DATABASE_URL n'est pas fournie.
			c.DatabaseURL = "postgres://localhost:5432/lerngruppe?sslmode=disable"
		}
		parsed, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return fmt.Errorf("config: DATABASE_URL invalide (%q): %w", c.DatabaseURL, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("config: DATABASE_URL invalide (%q): scheme ou host manquant", c.DatabaseURL)
		}
	case StoreNATS:
		parsed, err := url.Parse(c.NATSURL)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("config: NATS_URL invalide (%q)", c.NATSURL)
		}
		if !validBucketPrefix(c.NATSBucketPrefix) {
			return fmt.Errorf("config: REGISTRY_NATS_BUCKET_PREFIX invalide (%q): lettres, chiffres, - et _ uniquement", c.NATSBucketPrefix)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config: REGISTRY_STORE doit valoir postgres, nats ou memory (reçu %q)", c.Store)
	}

	if c.LegacySQLitePath != "" && c.LegacyJSONPath != "" {
		return fmt.Errorf("config: REGISTRY_LEGACY_SQLITE et REGISTRY_LEGACY_JSON sont exclusifs")
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	if strings.TrimSpace(c.DiscordToken) != "" {
		if strings.TrimSpace(c.DiscordChannelID) == "" {
			return fmt.Errorf("config: DISCORD_CHANNEL_ID est requis lorsque DISCORD_TOKEN est fourni")
		}
		for _, r := range c.DiscordChannelID {
			if r < '0' || r > '9' {
				return fmt.Errorf("config: DISCORD_CHANNEL_ID doit être un ID de salon Discord (chiffres uniquement)")
			}
		}
	}

	return nil
}

// DiscordEnabled reports whether the announcer should run.
func (c *Config) DiscordEnabled() bool {
	return strings.TrimSpace(c.DiscordToken) != ""
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("config: REGISTRY_LOG_LEVEL invalide (%q)", s)
	}
	return level, nil
}

func validBucketPrefix(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}
