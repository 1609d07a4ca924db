package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load reads configuration starting from Default(), then a YAML file at
// path (if non-empty and present), then environment-variable overrides
// (highest precedence). An empty path skips the YAML layer.
func Load(path string) (Config, error) {
	_ = godotenv.Overload()

	cfg := Default()

	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if cfg.Query.Weights == nil {
		cfg.Query.Weights = DefaultModeWeights()
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_LOG_FILE")); v != "" {
		cfg.LogFile = v
	}

	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_EMBEDDING_PROVIDER")); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_EMBEDDING_ENDPOINT")); v != "" {
		cfg.Embedding.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_EMBEDDING_API_KEY")); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_EMBEDDING_MODEL")); v != "" {
		cfg.Embedding.Model = v
	}
	if n, ok := intFromEnv("PTOLEMIES_EMBEDDING_DIMENSION"); ok {
		cfg.Embedding.Dimension = n
	}

	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_VECTOR_BACKEND")); v != "" {
		cfg.Vector.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_VECTOR_DSN")); v != "" {
		cfg.Vector.DSN = v
	}
	if n, ok := intFromEnv("PTOLEMIES_VECTOR_DIMENSION"); ok {
		cfg.Vector.Dimension = n
	}
	if f, ok := floatFromEnv("PTOLEMIES_VECTOR_THRESHOLD"); ok {
		cfg.Vector.Threshold = f
	}

	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_GRAPH_BACKEND")); v != "" {
		cfg.Graph.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_GRAPH_DSN")); v != "" {
		cfg.Graph.DSN = v
	}

	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_CACHE_BACKEND")); v != "" {
		cfg.Cache.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_CACHE_ADDR")); v != "" {
		cfg.Cache.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_CACHE_PASSWORD")); v != "" {
		cfg.Cache.Password = v
	}
	if n, ok := intFromEnv("PTOLEMIES_CACHE_TTL_SECONDS"); ok {
		cfg.Cache.TTLSeconds = n
	}

	if n, ok := intFromEnv("PTOLEMIES_QUERY_DEFAULT_DEADLINE_MS"); ok {
		cfg.Query.DefaultDeadlineMS = n
	}
	if n, ok := intFromEnv("PTOLEMIES_QUERY_DEFAULT_TOP_K"); ok {
		cfg.Query.DefaultTopK = n
	}

	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_OTEL_SERVICE_NAME")); v != "" {
		cfg.Obs.ServiceName = v
	}
	if v := strings.TrimSpace(os.Getenv("PTOLEMIES_ENVIRONMENT")); v != "" {
		cfg.Obs.Environment = v
	}
}

func intFromEnv(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func floatFromEnv(key string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
