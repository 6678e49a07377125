package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/crisisguard/crisisguard/internal/alert"
	"github.com/crisisguard/crisisguard/internal/cluster"
	"github.com/crisisguard/crisisguard/internal/detect"
	"github.com/crisisguard/crisisguard/internal/embed"
	"github.com/crisisguard/crisisguard/internal/evidence"
	"github.com/crisisguard/crisisguard/internal/llm"
	"github.com/crisisguard/crisisguard/internal/logging"
	"github.com/crisisguard/crisisguard/internal/model"
	"github.com/crisisguard/crisisguard/internal/pipeline"
	"github.com/crisisguard/crisisguard/internal/reliability"
	"github.com/crisisguard/crisisguard/internal/store"
	"github.com/crisisguard/crisisguard/internal/verdict"
	"github.com/crisisguard/crisisguard/internal/worker"
)

// loadConfig merges defaults, the config file, and environment variables.
// API keys fall back to their conventional environment variables so a
// config file never has to hold secrets.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Evidence.NewsAPIKey == "" {
		cfg.Evidence.NewsAPIKey = os.Getenv("NEWS_API_KEY")
	}
	if cfg.Evidence.FactCheckAPIKey == "" {
		cfg.Evidence.FactCheckAPIKey = os.Getenv("FACTCHECK_API_KEY")
	}

	if verbose {
		cfg.Log.Level = "debug"
	}
	logging.SetLevel(cfg.Log.Level)
	return cfg, nil
}

// app holds the assembled pipeline and whatever needs closing on exit.
type app struct {
	pipeline *pipeline.Pipeline
	store    store.Store
	index    *embed.Index
	cfg      *model.Config
}

func (a *app) close() {
	if a.cfg.Embedding.IndexPath != "" && a.index.Len() > 0 {
		if err := a.index.Save(a.cfg.Embedding.IndexPath); err != nil {
			logging.Warn("index snapshot failed", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		logging.Warn("store close failed", "error", err)
	}
}

// buildApp wires the full pipeline from configuration.
func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	index := openIndex(cfg.Embedding)

	var embedder embed.Embedder
	if cfg.LLM.APIKey != "" {
		embedder, err = embed.NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)
		if err != nil {
			st.Close()
			return nil, err
		}
	} else {
		logging.Warn("no embedding API key, claims will not be indexed or clustered")
	}

	reputation := reliability.NewLookup(&cfg.Reliability)
	limiter := worker.NewLimiter(cfg.Evidence.RequestsPerSec, cfg.Evidence.Burst)

	sources := []evidence.Source{
		evidence.NewFactCheckSource(cfg.Evidence.FactCheckAPIKey, limiter, reputation, cfg.Evidence.Timeout),
		evidence.NewNewsSource(cfg.Evidence.NewsAPIKey, limiter, reputation, cfg.Evidence.Timeout),
	}

	var opts []evidence.Option
	if cfg.Evidence.FetchExcerpts {
		opts = append(opts, evidence.WithPageFetcher(
			evidence.NewPageFetcher(cfg.Evidence.UserAgent, cfg.Evidence.Timeout)))
	}
	retriever := evidence.NewRetriever(sources, limiter, cfg.Evidence.MaxSources, cfg.Evidence.Timeout, opts...)

	p := pipeline.New(
		st,
		detect.NewDetector(provider, cfg.Detection),
		retriever,
		verdict.NewReasoner(provider, cfg.Verdict),
		embedder,
		index,
		cluster.NewEngine(provider, cfg.Cluster),
		alert.NewEngine(cfg.Alert, cfg.Cluster.TrendThreshold),
		pipeline.Config{
			ClusterWindow: time.Duration(cfg.Cluster.WindowHours) * time.Hour,
			VerdictTTL:    cfg.Cache.VerdictTTL,
			LeaseTTL:      cfg.Cache.LeaseTTL,
			EmbedWorkers:  cfg.Embedding.Workers,
		},
	)

	return &app{pipeline: p, store: st, index: index, cfg: cfg}, nil
}

func openStore(cfg model.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemory(), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			path = home + "/.crisisguard/crisisguard.db"
		}
		return store.OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store driver: %s (supported: memory, sqlite)", cfg.Driver)
	}
}

func openIndex(cfg model.EmbeddingConfig) *embed.Index {
	if cfg.IndexPath != "" {
		if ix, err := embed.LoadIndex(cfg.IndexPath, cfg.Dimensions); err == nil {
			logging.Debug("index snapshot loaded", "path", cfg.IndexPath, "vectors", ix.Len())
			return ix
		} else if !os.IsNotExist(err) {
			logging.Warn("index snapshot unreadable, starting empty", "path", cfg.IndexPath, "error", err)
		}
	}
	return embed.NewIndex(cfg.Dimensions)
}

// printJSON renders a record to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
