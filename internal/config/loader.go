package config

import (
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"github.com/pelletier/go-toml/v2"
)

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point: load → validate → return.
func Initialize(path string) (*Config, error) {
	log := slog.With("config_path", path)
	log.Info("initializing configuration")

	cfg, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized", "mcp_servers", len(cfg.MCPServers), "rag_enabled", cfg.RAG.Enable)
	return cfg, nil
}

func load(path string) (*Config, error) {
	raw, err := loadTOML(path)
	if err != nil {
		return nil, NewLoadError(path, err)
	}

	server := DefaultServerSection()
	if err := mergo.Merge(&server, raw.Server, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge server config: %w", err)
	}

	ragDefaults := DefaultRAGSection()
	rag := ragDefaults
	if raw.RAG != nil {
		if err := mergo.Merge(&rag, *raw.RAG, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge rag config: %w", err)
		}
	}

	interval := DefaultHealthCheckIntervalSeconds
	if v := os.Getenv("HEALTH_CHECK_INTERVAL"); v != "" {
		if n, perr := fmt.Sscanf(v, "%d", &interval); perr != nil || n != 1 {
			slog.Warn("invalid HEALTH_CHECK_INTERVAL, using default", "value", v, "default", DefaultHealthCheckIntervalSeconds)
			interval = DefaultHealthCheckIntervalSeconds
		}
	}

	return &Config{
		Server:              server,
		RAG:                 rag,
		ServerInfoPushURL:   raw.ServerInfoPushURL,
		ServerHealthPushURL: raw.ServerHealthPushURL,
		MCPServers:          raw.MCP.Server.Tool,
		HealthCheckInterval: interval,
	}, nil
}

// loadTOML reads the config file, expands environment variable references,
// and unmarshals it into fileConfig.
func loadTOML(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var cfg fileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTOML, err)
	}
	return &cfg, nil
}

// validate runs every validation rule against the loaded config.
func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}
