// Package config provides configuration management for gofsh.
// Values come from defaults, then command line arguments, then environment
// variables.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/frjcomp/gofsh/pkg/protocol"
)

// ServerConfig holds configuration for the gofshd server.
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            string        `yaml:"port" json:"port"`
	Root            string        `yaml:"root" json:"root"`
	Framing         string        `yaml:"framing" json:"framing"`
	MaxSessions     int           `yaml:"max_sessions" json:"max_sessions"`
	MaxMessageSize  int           `yaml:"max_message_size" json:"max_message_size"`
	MaxTransferSize int64         `yaml:"max_transfer_size" json:"max_transfer_size"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	MetricsAddr     string        `yaml:"metrics_addr" json:"metrics_addr"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	LogFormat       string        `yaml:"log_format" json:"log_format"`
}

// ClientConfig holds configuration for the gofsh client.
type ClientConfig struct {
	Target         string `yaml:"target" json:"target"`
	Framing        string `yaml:"framing" json:"framing"`
	MaxRetries     int    `yaml:"max_retries" json:"max_retries"`
	MaxMessageSize int    `yaml:"max_message_size" json:"max_message_size"`
	// WarnTransferSize is the size above which the client notes that an
	// older server would have truncated the transfer. Zero disables it.
	WarnTransferSize int64  `yaml:"warn_transfer_size" json:"warn_transfer_size"`
	LogLevel         string `yaml:"log_level" json:"log_level"`
}

// DefaultServerConfig returns server configuration with sensible defaults.
// Based on values from protocol/constants.go
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           protocol.DefaultHost,
		Port:           protocol.DefaultPort,
		Framing:        protocol.FramingLength,
		MaxMessageSize: protocol.MaxMessageSize,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// DefaultClientConfig returns client configuration with sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Target:           net.JoinHostPort(protocol.DefaultHost, protocol.DefaultPort),
		Framing:          protocol.FramingLength,
		MaxRetries:       0,
		MaxMessageSize:   protocol.MaxMessageSize,
		WarnTransferSize: protocol.LegacyTransferBound,
		LogLevel:         "info",
	}
}

// LoadServerConfig loads server configuration with environment variable overrides.
// Priority: env vars > passed values > defaults. An empty root means the
// current working directory.
func LoadServerConfig(host, port, root string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	if host != "" {
		cfg.Host = host
	}
	if port != "" {
		cfg.Port = port
	}
	if root != "" {
		cfg.Root = root
	}

	if err := applyServerConfigEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.Root = wd
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadClientConfig loads client configuration with environment variable overrides.
// Priority: env vars > passed values > defaults. A negative maxRetries keeps
// the default.
func LoadClientConfig(target string, maxRetries int) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	if target != "" {
		cfg.Target = target
	}
	if maxRetries >= 0 {
		cfg.MaxRetries = maxRetries
	}

	if err := applyClientConfigEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		if v != "" {
			*dst = v
		}
		return nil
	}
}

func setInt(name string, dst *int) func(string) error {
	return func(v string) error {
		if v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = n
		}
		return nil
	}
}

func setInt64(name string, dst *int64) func(string) error {
	return func(v string) error {
		if v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = n
		}
		return nil
	}
}

func setDuration(name string, dst *time.Duration) func(string) error {
	return func(v string) error {
		if v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = d
		}
		return nil
	}
}

func applyEnv(envMap map[string]func(string) error) error {
	for envVar, apply := range envMap {
		if err := apply(os.Getenv(envVar)); err != nil {
			return err
		}
	}
	return nil
}

// applyServerConfigEnv applies environment variable overrides to server config.
func applyServerConfigEnv(cfg *ServerConfig) error {
	return applyEnv(map[string]func(string) error{
		"GOFSH_HOST":              setString(&cfg.Host),
		"GOFSH_PORT":              setString(&cfg.Port),
		"GOFSH_ROOT":              setString(&cfg.Root),
		"GOFSH_FRAMING":           setString(&cfg.Framing),
		"GOFSH_MAX_SESSIONS":      setInt("GOFSH_MAX_SESSIONS", &cfg.MaxSessions),
		"GOFSH_MAX_MESSAGE_SIZE":  setInt("GOFSH_MAX_MESSAGE_SIZE", &cfg.MaxMessageSize),
		"GOFSH_MAX_TRANSFER_SIZE": setInt64("GOFSH_MAX_TRANSFER_SIZE", &cfg.MaxTransferSize),
		"GOFSH_IDLE_TIMEOUT":      setDuration("GOFSH_IDLE_TIMEOUT", &cfg.IdleTimeout),
		"GOFSH_METRICS_ADDR":      setString(&cfg.MetricsAddr),
		"GOFSH_LOG_LEVEL":         setString(&cfg.LogLevel),
		"GOFSH_LOG_FORMAT":        setString(&cfg.LogFormat),
	})
}

// applyClientConfigEnv applies environment variable overrides to client config.
func applyClientConfigEnv(cfg *ClientConfig) error {
	return applyEnv(map[string]func(string) error{
		"GOFSH_TARGET":           setString(&cfg.Target),
		"GOFSH_FRAMING":          setString(&cfg.Framing),
		"GOFSH_MAX_RETRIES":      setInt("GOFSH_MAX_RETRIES", &cfg.MaxRetries),
		"GOFSH_MAX_MESSAGE_SIZE": setInt("GOFSH_MAX_MESSAGE_SIZE", &cfg.MaxMessageSize),
		"GOFSH_LOG_LEVEL":        setString(&cfg.LogLevel),
	})
}

func validateFraming(mode string) error {
	switch mode {
	case protocol.FramingLength, protocol.FramingToken:
		return nil
	default:
		return fmt.Errorf("invalid framing %q: must be %q or %q", mode, protocol.FramingLength, protocol.FramingToken)
	}
}

// Addr returns host:port.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}

	if c.Port == "" {
		return fmt.Errorf("port is required")
	}

	// Verify port is numeric
	p, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if p < 0 || p > 65535 {
		return fmt.Errorf("port %d out of range", p)
	}

	if c.Root == "" {
		return fmt.Errorf("root is required")
	}

	if err := validateFraming(c.Framing); err != nil {
		return err
	}

	if c.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must be non-negative")
	}

	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max_message_size must be positive")
	}
	if c.MaxMessageSize > protocol.MaxAccumulated {
		return fmt.Errorf("max_message_size must not exceed %d", protocol.MaxAccumulated)
	}

	if c.MaxTransferSize < 0 {
		return fmt.Errorf("max_transfer_size must be non-negative")
	}

	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must be non-negative")
	}

	return nil
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("target is required")
	}

	if _, _, err := net.SplitHostPort(c.Target); err != nil {
		return fmt.Errorf("invalid target %q: %w", c.Target, err)
	}

	if err := validateFraming(c.Framing); err != nil {
		return err
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}

	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max_message_size must be positive")
	}
	if c.MaxMessageSize > protocol.MaxAccumulated {
		return fmt.Errorf("max_message_size must not exceed %d", protocol.MaxAccumulated)
	}

	return nil
}
