package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAvatarURL is the placeholder avatar used whenever a profile has none.
const DefaultAvatarURL = "https://storage.zego.im/IMKit/avatar/avatar-0.png"

type Config struct {
	Environment string `yaml:"env"`
	Port        string `yaml:"port"`
	PublicURL   string `yaml:"public_url"` // base URL used in verification links

	MongoURI    string `yaml:"mongodb_uri"`
	PostgresURI string `yaml:"postgres_uri"`
	RedisURI    string `yaml:"redis_uri"`

	CloudinaryName         string `yaml:"cloudinary_cloud_name"`
	CloudinaryAPIKey       string `yaml:"cloudinary_api_key"`
	CloudinaryAPISecret    string `yaml:"-"`
	CloudinaryUploadPreset string `yaml:"cloudinary_upload_preset"`

	ChatAppID     string `yaml:"chat_app_id"`
	ChatAppSecret string `yaml:"-"`

	DefaultAvatarURL string   `yaml:"default_avatar_url"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	TrustProxy       bool     `yaml:"trust_proxy"` // honor X-Forwarded-For for client IPs
}

// Load reads configuration from the environment. When CONFIG_FILE points at a
// YAML document its non-empty values take precedence over the defaults but not
// over explicitly set environment variables.
func Load() (*Config, error) {
	cfg := defaults()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Environment:            "development",
		Port:                   "8080",
		PublicURL:              "http://localhost:8080",
		MongoURI:               "mongodb://localhost:27017/chatooz",
		PostgresURI:            "postgres://localhost:5432/chatooz?sslmode=disable",
		RedisURI:               "redis://localhost:6379/0",
		CloudinaryUploadPreset: "ml_default",
		DefaultAvatarURL:       DefaultAvatarURL,
		AllowedOrigins:         []string{"http://localhost:3000"},
	}
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	overlay(&c.Environment, file.Environment)
	overlay(&c.Port, file.Port)
	overlay(&c.PublicURL, file.PublicURL)
	overlay(&c.MongoURI, file.MongoURI)
	overlay(&c.PostgresURI, file.PostgresURI)
	overlay(&c.RedisURI, file.RedisURI)
	overlay(&c.CloudinaryName, file.CloudinaryName)
	overlay(&c.CloudinaryAPIKey, file.CloudinaryAPIKey)
	overlay(&c.CloudinaryUploadPreset, file.CloudinaryUploadPreset)
	overlay(&c.ChatAppID, file.ChatAppID)
	overlay(&c.DefaultAvatarURL, file.DefaultAvatarURL)
	c.TrustProxy = c.TrustProxy || file.TrustProxy
	if len(file.AllowedOrigins) > 0 {
		c.AllowedOrigins = file.AllowedOrigins
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Environment = strings.ToLower(strings.TrimSpace(getEnv("ENV", c.Environment)))
	c.Port = getEnv("PORT", c.Port)
	c.PublicURL = strings.TrimRight(getEnv("PUBLIC_URL", c.PublicURL), "/")
	c.MongoURI = getEnv("MONGODB_URI", getEnv("MONGO_URI", c.MongoURI))
	c.PostgresURI = getEnv("POSTGRES_URI", c.PostgresURI)
	c.RedisURI = getEnv("REDIS_URI", c.RedisURI)
	c.CloudinaryName = getEnv("CLOUDINARY_CLOUD_NAME", c.CloudinaryName)
	c.CloudinaryAPIKey = getEnv("CLOUDINARY_API_KEY", c.CloudinaryAPIKey)
	c.CloudinaryAPISecret = getEnv("CLOUDINARY_API_SECRET", c.CloudinaryAPISecret)
	c.CloudinaryUploadPreset = getEnv("CLOUDINARY_UPLOAD_PRESET", c.CloudinaryUploadPreset)
	c.ChatAppID = getEnv("CHAT_APP_ID", c.ChatAppID)
	c.ChatAppSecret = getEnv("CHAT_APP_SECRET", c.ChatAppSecret)
	c.DefaultAvatarURL = getEnv("DEFAULT_AVATAR_URL", c.DefaultAvatarURL)
	if v := getEnv("TRUST_PROXY", ""); v != "" {
		c.TrustProxy = v == "1" || strings.EqualFold(v, "true")
	}
	if origins := parseOrigins(getEnv("ALLOWED_ORIGINS", "")); len(origins) > 0 {
		c.AllowedOrigins = origins
	}
}

// CloudinaryConfigured reports whether all Cloudinary credentials are present.
func (c *Config) CloudinaryConfigured() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func overlay(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
