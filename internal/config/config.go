package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Env names read by Load.
const (
	EnvConfigPath     = "PHASEFOLD_CONFIG_PATH"
	EnvLogLevel       = "PHASEFOLD_LOG_LEVEL"
	EnvLogPath        = "PHASEFOLD_LOG_PATH"
	EnvDBPath         = "PHASEFOLD_DB_PATH"
	EnvTransportMode  = "PHASEFOLD_TRANSPORT_MODE"
	EnvServerHost     = "PHASEFOLD_SERVER_HOST"
	EnvServerPort     = "PHASEFOLD_SERVER_PORT"
	EnvAuthToken      = "PHASEFOLD_AUTH_TOKEN"
	EnvAllowedOrigins = "PHASEFOLD_ALLOWED_ORIGINS"
	EnvEngineCommand  = "PHASEFOLD_ENGINE_COMMAND"
	EnvEngineDryRun   = "PHASEFOLD_ENGINE_DRY_RUN"
)

// Transport modes.
const (
	ModeStdio = "stdio"
	ModeHTTP  = "http"
)

// Config defines phasefold configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

// AuthConfig maps client names to bearer tokens. HTTP mode requires at
// least one token.
type AuthConfig struct {
	Tokens map[string]string `yaml:"tokens"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// EngineConfig selects the fit engine a batch drives.
type EngineConfig struct {
	// Command is the helper started once per bin. Ignored when DryRun is set.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
	DryRun  bool     `yaml:"dry_run"`
	// ProcessWorkspace changes the process working directory into each bin
	// for engines that resolve paths against it.
	ProcessWorkspace bool `yaml:"process_workspace"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Transport: TransportConfig{Mode: ModeStdio},
		DB: DBConfig{
			Path: "phasefold.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv(EnvServerHost); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv(EnvServerPort); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvServerPort, err)
		}
		cfg.Server.Port = port
	}
	if origins := os.Getenv(EnvAllowedOrigins); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	if mode := os.Getenv(EnvTransportMode); mode != "" {
		cfg.Transport.Mode = mode
	}
	if token := os.Getenv(EnvAuthToken); token != "" {
		if cfg.Auth.Tokens == nil {
			cfg.Auth.Tokens = map[string]string{}
		}
		cfg.Auth.Tokens["default"] = token
	}
	if dbPath := os.Getenv(EnvDBPath); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv(EnvLogPath); logPath != "" {
		cfg.Log.Path = logPath
	}
	if command := os.Getenv(EnvEngineCommand); command != "" {
		cfg.Engine.Command = command
	}
	if dry := os.Getenv(EnvEngineDryRun); dry != "" {
		v, err := strconv.ParseBool(dry)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvEngineDryRun, err)
		}
		cfg.Engine.DryRun = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case ModeStdio, ModeHTTP:
	default:
		return fmt.Errorf("invalid transport mode %q (want %s or %s)", c.Transport.Mode, ModeStdio, ModeHTTP)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
