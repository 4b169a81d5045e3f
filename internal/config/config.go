// Package config provides configuration types for Stream Gate.
//
// Stream Gate is configured from a YAML file, environment variables with
// the STREAM_GATE_ prefix, and CLI flags, in that order of precedence.
// The core relay needs only four values (bind host, bind port, upstream
// URL, authorization header template); everything else configures the
// supporting surfaces: logging, audit trail, admin API, and metrics.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for Stream Gate.
type Config struct {
	// Server configures the inbound WebSocket listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Upstream configures the fixed outbound streaming endpoint.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// Auth configures the first-message handshake.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Audit configures the relay lifecycle audit trail.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Admin configures the read-only admin API.
	Admin AdminConfig `yaml:"admin" mapstructure:"admin"`

	// Metrics configures the Prometheus /metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// ServerConfig configures the inbound listener.
// Stream Gate serves plain WebSocket; put a reverse proxy in front for TLS.
type ServerConfig struct {
	// Host is the bind address. Defaults to "0.0.0.0" (all interfaces);
	// the relay is only useful when clients can reach it.
	Host string `yaml:"host" mapstructure:"host" validate:"omitempty,ip|hostname"`

	// Port is the listen port. Defaults to 8080.
	Port int `yaml:"port" mapstructure:"port" validate:"required,min=1,max=65535"`
}

// UpstreamConfig configures the outbound leg of every session.
type UpstreamConfig struct {
	// URL is the fixed upstream WebSocket endpoint every session dials.
	URL string `yaml:"url" mapstructure:"url" validate:"required,ws_url"`

	// AuthHeaderTemplate builds the Authorization header value from the
	// client-supplied bearer token. Must contain exactly one %s verb.
	AuthHeaderTemplate string `yaml:"auth_header_template" mapstructure:"auth_header_template" validate:"required,header_template"`

	// ContentType is sent on the upstream connect handshake.
	ContentType string `yaml:"content_type" mapstructure:"content_type" validate:"required"`

	// DialTimeout bounds the upstream connect handshake (e.g. "10s").
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout" validate:"omitempty,min=0"`
}

// AuthConfig configures the inbound handshake.
type AuthConfig struct {
	// HandshakeTimeout bounds the wait for the first client message.
	// Connections that stay silent longer are closed with 1011.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout" validate:"omitempty,min=0"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Format selects the slog handler: "text" or "json".
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// AuditConfig configures the relay lifecycle audit trail.
type AuditConfig struct {
	// Enabled controls whether audit records are produced at all.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Output selects the sink: "stdout" or "file".
	Output string `yaml:"output" mapstructure:"output" validate:"omitempty,oneof=stdout file"`

	// Dir is where JSONL audit files are written when output is "file".
	// Defaults to ~/.streamgate/audit.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// RetentionDays is how long rotated audit files are kept.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`

	// BufferSize is the async audit channel capacity.
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size" validate:"omitempty,min=1"`

	// RecentSize is the in-memory ring buffer capacity for admin queries.
	RecentSize int `yaml:"recent_size" mapstructure:"recent_size" validate:"omitempty,min=1"`
}

// AdminConfig configures the read-only admin API mounted at /admin/.
type AdminConfig struct {
	// Enabled controls whether the admin API is served.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// APIKeyHash is the argon2id hash of the admin key, as produced by
	// "stream-gate hash-key". Required when the admin API is enabled.
	APIKeyHash string `yaml:"api_key_hash" mapstructure:"api_key_hash"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled controls whether /metrics is served.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// DefaultUpstreamURL is the bidirectional generative API endpoint the
// relay was built for. Overridable via upstream.url.
const DefaultUpstreamURL = "wss://us-central1-aiplatform.googleapis.com/ws/google.cloud.aiplatform.v1beta1.LlmBidiService/BidiGenerateContent"

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}

	if c.Upstream.URL == "" {
		c.Upstream.URL = DefaultUpstreamURL
	}
	if c.Upstream.AuthHeaderTemplate == "" {
		c.Upstream.AuthHeaderTemplate = "Bearer %s"
	}
	if c.Upstream.ContentType == "" {
		c.Upstream.ContentType = "application/json"
	}
	if c.Upstream.DialTimeout == 0 {
		c.Upstream.DialTimeout = 10 * time.Second
	}

	if c.Auth.HandshakeTimeout == 0 {
		c.Auth.HandshakeTimeout = 5 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	// Audit and metrics default to on. viper.IsSet distinguishes
	// "not set" from an explicit enabled: false.
	if !viper.IsSet("audit.enabled") {
		c.Audit.Enabled = true
	}
	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Audit.Dir = filepath.Join(home, ".streamgate", "audit")
		}
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 30
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = 1000
	}
	if c.Audit.RecentSize == 0 {
		c.Audit.RecentSize = 1000
	}

	if !viper.IsSet("metrics.enabled") {
		c.Metrics.Enabled = true
	}
}

// ListenAddr returns the host:port string the listener binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Redacted returns a copy safe for display: secrets are masked.
// The admin /config endpoint renders this copy, never the original.
func (c *Config) Redacted() Config {
	out := *c
	if out.Admin.APIKeyHash != "" {
		out.Admin.APIKeyHash = "<redacted>"
	}
	return out
}
