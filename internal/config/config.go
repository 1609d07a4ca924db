// Package config defines the configuration record for Ptolemies and a
// loader that layers a YAML file under environment-variable overrides,
// using yaml.v3 for parsing and godotenv to pick up local .env files.
package config

// SourceConfig is one crawl origin, matching §6's input shape.
type SourceConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	RootURL       string `yaml:"root_url"`
	Category      string `yaml:"category"`
	MaxDepth      int    `yaml:"max_depth"`
	MaxPages      int    `yaml:"max_pages"`
	DelayMS       int    `yaml:"delay_ms"`
	RespectRobots bool   `yaml:"respect_robots_txt"`
}

// ChunkingConfig bounds the chunker's packing behavior (§4.2).
type ChunkingConfig struct {
	MinTokens     int      `yaml:"min_tokens"`
	MaxTokens     int      `yaml:"max_tokens"`
	OverlapTokens int      `yaml:"overlap_tokens"`
	MaxTopics     int      `yaml:"max_topics"`
	Frameworks    []string `yaml:"frameworks"`
}

// EmbeddingConfig configures the C1 adapter.
type EmbeddingConfig struct {
	// Provider is "http" for the networked adapter or "deterministic" for
	// the offline hash-based embedder (tests, CI, demos).
	Provider          string  `yaml:"provider"`
	Endpoint          string  `yaml:"endpoint"`
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	Dimension         int     `yaml:"dimension"`
	BatchSize         int     `yaml:"batch_size"`
	MaxConcurrency    int     `yaml:"max_concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// VectorStoreConfig selects and configures the C3 backend.
type VectorStoreConfig struct {
	// Backend is "memory", "memory-hnsw", "postgres", or "qdrant".
	Backend   string  `yaml:"backend"`
	DSN       string  `yaml:"dsn"`
	Table     string  `yaml:"table"`
	Metric    string  `yaml:"metric"` // cos | l2 | ip
	Dimension int     `yaml:"dimension"`
	Threshold float64 `yaml:"threshold"`
}

// GraphStoreConfig selects and configures the C4 backend.
type GraphStoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

// CacheConfig configures C2.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend    string `yaml:"backend"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	MaxItems   int    `yaml:"max_items"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// ModeWeights are the fusion weights for one query mode (§4.8).
type ModeWeights struct {
	Vector  float64 `yaml:"vector"`
	Graph   float64 `yaml:"graph"`
	Quality float64 `yaml:"quality"`
}

// QueryConfig configures C8's planner and fusion defaults.
type QueryConfig struct {
	DefaultTopK       int                    `yaml:"default_top_k"`
	AlphaOversample   float64                `yaml:"alpha_oversample"`
	MaxGraphDepth     int                    `yaml:"max_graph_depth"`
	DefaultDeadlineMS int                    `yaml:"default_deadline_ms"`
	Weights           map[string]ModeWeights `yaml:"weights"`
}

// IngestionConfig holds ingestion pipeline settings. These fields are
// loaded but not read by internal/ingest: the orchestrator ingests one
// document per call with no queue, and retries with retry.DefaultOptions.
type IngestionConfig struct {
	QueueDepth       int `yaml:"queue_depth"`
	MaxRetries       int `yaml:"max_retries"`
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms"`
}

// ObsConfig configures the observability surface.
type ObsConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
}

// Config is the root configuration record. Every recognized option is an
// explicit field, per §9's "string-indexed configuration" re-architecture
// note.
type Config struct {
	Sources   []SourceConfig    `yaml:"sources"`
	Chunking  ChunkingConfig    `yaml:"chunking"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	Vector    VectorStoreConfig `yaml:"vector"`
	Graph     GraphStoreConfig  `yaml:"graph"`
	Cache     CacheConfig       `yaml:"cache"`
	Query     QueryConfig       `yaml:"query"`
	Ingestion IngestionConfig   `yaml:"ingestion"`
	Obs       ObsConfig         `yaml:"obs"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// DefaultModeWeights returns the fallback per-mode weight tables used when
// a config file does not override them, per §4.8's per-mode weight
// requirement.
func DefaultModeWeights() map[string]ModeWeights {
	return map[string]ModeWeights{
		"SEMANTIC_ONLY":     {Vector: 0.8, Graph: 0.0, Quality: 0.2},
		"GRAPH_ONLY":        {Vector: 0.0, Graph: 0.8, Quality: 0.2},
		"HYBRID_BALANCED":   {Vector: 0.45, Graph: 0.45, Quality: 0.1},
		"CONCEPT_EXPANSION": {Vector: 0.4, Graph: 0.5, Quality: 0.1},
	}
}

// Default returns a Config with every field populated by a safe default,
// the in-process/in-memory backends, and the deterministic embedder --
// suitable for tests and first runs with no external services.
func Default() Config {
	return Config{
		Chunking: ChunkingConfig{
			MinTokens:     120,
			MaxTokens:     480,
			OverlapTokens: 40,
			MaxTopics:     8,
		},
		Embedding: EmbeddingConfig{
			Provider:          "deterministic",
			Dimension:         256,
			BatchSize:         16,
			MaxConcurrency:    4,
			RequestsPerSecond: 10,
		},
		Vector: VectorStoreConfig{
			Backend:   "memory",
			Metric:    "cos",
			Dimension: 256,
			Threshold: 0.2,
		},
		Graph: GraphStoreConfig{
			Backend: "memory",
		},
		Cache: CacheConfig{
			Backend:    "memory",
			MaxItems:   10000,
			TTLSeconds: 300,
		},
		Query: QueryConfig{
			DefaultTopK:       10,
			AlphaOversample:   3,
			MaxGraphDepth:     3,
			DefaultDeadlineMS: 200,
			Weights:           DefaultModeWeights(),
		},
		Ingestion: IngestionConfig{
			QueueDepth:       64,
			MaxRetries:       3,
			RetryBaseDelayMS: 100,
		},
		Obs: ObsConfig{
			ServiceName:    "ptolemies",
			ServiceVersion: "dev",
			Environment:    "development",
		},
		LogLevel: "info",
	}
}
