// Package config provides configuration structs and utilities for the streamchat application.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the root configuration for the streamchat application.
type Config struct {
	Endpoint     string             `yaml:"endpoint"`
	Conversation ConversationConfig `yaml:"conversation"`
	Tokenizer    TokenizerConfig    `yaml:"tokenizer"`
	Pinning      PinningConfig      `yaml:"pinning"`
	Transport    TransportConfig    `yaml:"transport"`
	Logging      LoggingConfig      `yaml:"logging"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Storage      StorageConfig      `yaml:"storage"`
}

// ConversationConfig holds prompt construction settings.
type ConversationConfig struct {
	Budget     int    `yaml:"budget"`      // Prompt token budget
	SystemText string `yaml:"system_text"` // Default system message
	Limit      int    `yaml:"limit"`       // Forwarded to the server; 0 omits it
}

// TokenizerConfig selects the token encoding used to measure prompts. An
// empty encoding uses the four-characters-per-token heuristic.
type TokenizerConfig struct {
	Encoding string `yaml:"encoding"`
}

// PinningConfig holds certificate pinning settings.
type PinningConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Directory string   `yaml:"directory"` // Holds <name>.der files
	Names     []string `yaml:"names"`
}

// TransportConfig holds HTTP transport settings.
type TransportConfig struct {
	Timeout     time.Duration `yaml:"timeout"`       // Wait for response headers
	MaxLineSize int           `yaml:"max_line_size"` // Longest accepted stream line in bytes
}

// LoggingConfig holds configuration for application logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`       // Whether tracing is enabled
	ExporterType string  `yaml:"exporter_type"` // none, stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint"` // OTLP collector endpoint
	SampleRate   float64 `yaml:"sample_rate"`   // Sampling rate (0.0 to 1.0)
	ServiceName  string  `yaml:"service_name"`  // Service name for traces
}

// StorageConfig holds transcript persistence settings.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // SQLite file; empty selects the default
}

// Default configuration values.
const (
	DefaultEndpoint         = "https://streamingwords-53f47dwjva-uc.a.run.app"
	DefaultBudget           = 4096
	DefaultSystemText       = "You're a helpful assistant"
	DefaultEncoding         = "cl100k_base"
	DefaultPinningDirectory = "~/.streamchat/pins"
	DefaultPinName          = "g1sr"
	DefaultTimeout          = 30 * time.Second
	DefaultMaxLineSize      = 1024 * 1024
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultStoragePath      = "~/.streamchat/streamchat.db"

	DefaultTracingEnabled      = false
	DefaultTracingExporterType = "none"
	DefaultTracingSampleRate   = 1.0
	DefaultTracingServiceName  = "streamchat"
)

// Valid log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid log formats.
var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

// Valid tracing exporter types.
var validTracingExporterTypes = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

// Encodings tiktoken ships.
var validEncodings = map[string]bool{
	"cl100k_base": true,
	"o200k_base":  true,
	"p50k_base":   true,
	"p50k_edit":   true,
	"r50k_base":   true,
}

// NewDefaultConfig creates a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint: DefaultEndpoint,
		Conversation: ConversationConfig{
			Budget:     DefaultBudget,
			SystemText: DefaultSystemText,
		},
		Tokenizer: TokenizerConfig{
			Encoding: DefaultEncoding,
		},
		Pinning: PinningConfig{
			Enabled:   true,
			Directory: DefaultPinningDirectory,
			Names:     []string{DefaultPinName},
		},
		Transport: TransportConfig{
			Timeout:     DefaultTimeout,
			MaxLineSize: DefaultMaxLineSize,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Tracing: TracingConfig{
			Enabled:      DefaultTracingEnabled,
			ExporterType: DefaultTracingExporterType,
			SampleRate:   DefaultTracingSampleRate,
			ServiceName:  DefaultTracingServiceName,
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    DefaultStoragePath,
		},
	}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	var errs []error

	if err := validateEndpoint(c.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("endpoint: %w", err))
	}

	if err := c.Conversation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("conversation: %w", err))
	}

	if err := c.Tokenizer.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tokenizer: %w", err))
	}

	if err := c.Pinning.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pinning: %w", err))
	}

	if err := c.Transport.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("transport: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return errors.New("is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("must use http or https scheme")
	}
	if parsed.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// Validate checks if the ConversationConfig is valid.
func (c *ConversationConfig) Validate() error {
	var errs []error

	if c.Budget < 0 {
		errs = append(errs, errors.New("budget must be non-negative"))
	}
	if c.Limit < 0 {
		errs = append(errs, errors.New("limit must be non-negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the TokenizerConfig is valid.
func (t *TokenizerConfig) Validate() error {
	if t.Encoding != "" && !validEncodings[t.Encoding] {
		return fmt.Errorf("unknown encoding %q", t.Encoding)
	}
	return nil
}

// Validate checks if the PinningConfig is valid.
func (p *PinningConfig) Validate() error {
	if !p.Enabled {
		return nil
	}

	var errs []error

	if p.Directory == "" {
		errs = append(errs, errors.New("directory is required when pinning is enabled"))
	}
	for i, name := range p.Names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("names[%d] is empty", i))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the TransportConfig is valid.
func (t *TransportConfig) Validate() error {
	var errs []error

	if t.Timeout < 0 {
		errs = append(errs, errors.New("timeout must be non-negative"))
	}
	if t.MaxLineSize < 0 {
		errs = append(errs, errors.New("max_line_size must be non-negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the LoggingConfig is valid.
func (l *LoggingConfig) Validate() error {
	var errs []error

	if l.Level != "" && !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", l.Level))
	}

	if l.Format != "" && !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be one of json, text", l.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks if the TracingConfig is valid.
func (t *TracingConfig) Validate() error {
	var errs []error

	if t.Enabled {
		if t.ExporterType != "" && !validTracingExporterTypes[t.ExporterType] {
			errs = append(errs, fmt.Errorf("invalid exporter_type %q: must be one of none, stdout, otlp", t.ExporterType))
		}
		if t.ExporterType == "otlp" && t.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp_endpoint is required when exporter_type is 'otlp'"))
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			errs = append(errs, errors.New("sample_rate must be between 0.0 and 1.0"))
		}
		if t.ServiceName == "" {
			errs = append(errs, errors.New("service_name is required when tracing is enabled"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}
