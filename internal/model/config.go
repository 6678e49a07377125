package model

import "time"

// Config is the complete runtime configuration. Values come from (highest
// priority first) CLI flags, CRISISGUARD_* environment variables, the
// config file, and the defaults below.
type Config struct {
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding" mapstructure:"embedding"`
	Detection   DetectionConfig   `yaml:"detection" mapstructure:"detection"`
	Evidence    EvidenceConfig    `yaml:"evidence" mapstructure:"evidence"`
	Reliability ReliabilityConfig `yaml:"reliability" mapstructure:"reliability"`
	Verdict     VerdictConfig     `yaml:"verdict" mapstructure:"verdict"`
	Cluster     ClusterConfig     `yaml:"cluster" mapstructure:"cluster"`
	Alert       AlertConfig       `yaml:"alert" mapstructure:"alert"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// LLMConfig configures the text-reasoning capability.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// EmbeddingConfig configures the embedding capability and vector index.
type EmbeddingConfig struct {
	Model      string `yaml:"model" mapstructure:"model"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
	Workers    int    `yaml:"workers" mapstructure:"workers"`       // reconcile pool size
	IndexPath  string `yaml:"index_path" mapstructure:"index_path"` // empty = in-memory only
}

// DetectionConfig bounds the claim extractor.
type DetectionConfig struct {
	MaxInputChars   int     `yaml:"max_input_chars" mapstructure:"max_input_chars"`
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`
}

// EvidenceConfig configures the evidence retriever and its sources.
type EvidenceConfig struct {
	NewsAPIKey      string        `yaml:"news_api_key" mapstructure:"news_api_key"`
	FactCheckAPIKey string        `yaml:"factcheck_api_key" mapstructure:"factcheck_api_key"`
	MaxSources      int           `yaml:"max_sources" mapstructure:"max_sources"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"` // whole fan-out
	RequestsPerSec  float64       `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst           int           `yaml:"burst" mapstructure:"burst"`
	FetchExcerpts   bool          `yaml:"fetch_excerpts" mapstructure:"fetch_excerpts"`
	UserAgent       string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// ReliabilityConfig drives the domain-reputation lookup.
type ReliabilityConfig struct {
	HighDomains   []string           `yaml:"high_domains" mapstructure:"high_domains"`
	MediumDomains []string           `yaml:"medium_domains" mapstructure:"medium_domains"`
	DomainMap     map[string]float64 `yaml:"domain_map" mapstructure:"domain_map"`
	Default       float64            `yaml:"default" mapstructure:"default"`
}

// VerdictConfig bounds the verdict reasoner.
type VerdictConfig struct {
	UnverifiedCeiling float64 `yaml:"unverified_ceiling" mapstructure:"unverified_ceiling"`
	MaxCitations      int     `yaml:"max_citations" mapstructure:"max_citations"`
}

// ClusterConfig configures the cluster engine.
type ClusterConfig struct {
	WindowHours       int     `yaml:"window_hours" mapstructure:"window_hours"`
	MinClusterSize    int     `yaml:"min_cluster_size" mapstructure:"min_cluster_size"`
	Epsilon           float64 `yaml:"epsilon" mapstructure:"epsilon"` // cosine distance radius
	TrendThreshold    float64 `yaml:"trend_threshold" mapstructure:"trend_threshold"`
	TrendHalfLifeHrs  float64 `yaml:"trend_half_life_hours" mapstructure:"trend_half_life_hours"`
}

// AlertConfig configures alert thresholds.
type AlertConfig struct {
	HarmFloor int `yaml:"harm_floor" mapstructure:"harm_floor"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory, sqlite
	Path   string `yaml:"path" mapstructure:"path"`
}

// CacheConfig bounds verdict reuse and verification leases.
type CacheConfig struct {
	VerdictTTL time.Duration `yaml:"verdict_ttl" mapstructure:"verdict_ttl"`
	LeaseTTL   time.Duration `yaml:"lease_ttl" mapstructure:"lease_ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			Timeout:     30,
			Temperature: 0.2,
			MaxTokens:   2000,
		},
		Embedding: EmbeddingConfig{
			Model:      "text-embedding-3-large",
			Dimensions: 3072,
			Workers:    4,
		},
		Detection: DetectionConfig{
			MaxInputChars:   8000,
			ConfidenceFloor: 0.5,
		},
		Evidence: EvidenceConfig{
			MaxSources:     10,
			Timeout:        15 * time.Second,
			RequestsPerSec: 2,
			Burst:          5,
			UserAgent:      "CrisisGuard/0.1 (+https://github.com/crisisguard/crisisguard)",
		},
		Reliability: ReliabilityConfig{
			HighDomains: []string{
				"who.int", "cdc.gov", "nih.gov", "nature.com", "science.org",
				"reuters.com", "apnews.com", "bbc.com", "npr.org",
				"snopes.com", "factcheck.org", "politifact.com",
			},
			MediumDomains: []string{
				"nytimes.com", "washingtonpost.com", "theguardian.com",
				"cnn.com", "abcnews.go.com", "cbsnews.com",
			},
			Default: 0.5,
		},
		Verdict: VerdictConfig{
			UnverifiedCeiling: 0.3,
			MaxCitations:      10,
		},
		Cluster: ClusterConfig{
			WindowHours:      24,
			MinClusterSize:   3,
			Epsilon:          0.30,
			TrendThreshold:   40,
			TrendHalfLifeHrs: 12,
		},
		Alert: AlertConfig{
			HarmFloor: 70,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Cache: CacheConfig{
			VerdictTTL: 10 * time.Minute,
			LeaseTTL:   2 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
