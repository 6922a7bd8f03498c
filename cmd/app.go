package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cloutcash-matcher/internal/ai"
	"github.com/spigell/cloutcash-matcher/internal/ai/gemini"
	"github.com/spigell/cloutcash-matcher/internal/exclusion"
	"github.com/spigell/cloutcash-matcher/internal/interactions"
	"github.com/spigell/cloutcash-matcher/internal/logger"
	"github.com/spigell/cloutcash-matcher/internal/matching"
	"github.com/spigell/cloutcash-matcher/internal/profiles"
	"github.com/spigell/cloutcash-matcher/internal/scoring"
	"github.com/spigell/cloutcash-matcher/internal/secrets"
)

const (
	exclusionsDir    = "exclusions"
	interactionsFile = "interactions.db"
)

// application holds the opened stores and the engine built on top of them.
type application struct {
	config   *Config
	logger   *zap.Logger
	catalog  *profiles.Catalog
	badger   *badger.DB
	tracker  *exclusion.BadgerTracker
	history  *interactions.DB
	recorder *interactions.Recorder
	engine   *matching.Engine
}

// setup builds the logger and reads the config. Both failures are fatal.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Debug("starting with config",
		zap.String("profiles_file", config.ProfilesFile),
		zap.String("data_dir", config.DataDir),
		zap.Any("matching", config.Matching),
		zap.Any("scoring", config.Scoring),
	)
	return logger, config
}

// openStores opens the exclusion store and the interaction log under the data dir.
func openStores(config *Config, logger *zap.Logger) (*application, error) {
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := exclusion.Open(filepath.Join(config.DataDir, exclusionsDir), logger.Named("badger"))
	if err != nil {
		return nil, err
	}

	history, err := interactions.OpenDB(filepath.Join(config.DataDir, interactionsFile))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening interaction log: %w", err)
	}

	return &application{
		config:   config,
		logger:   logger,
		badger:   db,
		tracker:  exclusion.NewBadgerTracker(db, logger.Named("exclusion")),
		history:  history,
		recorder: interactions.NewRecorder(history, logger.Named("interactions")),
	}, nil
}

// newApplication opens the stores, loads the profiles and builds the engine.
func newApplication(config *Config, logger *zap.Logger) (*application, error) {
	a, err := openStores(config, logger)
	if err != nil {
		return nil, err
	}

	a.catalog, err = profiles.LoadFile(config.ProfilesFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%w (run '%s seed' to generate demo profiles)", err, app)
	}
	creators, campaigns := a.catalog.Len()
	logger.Info("profiles loaded",
		zap.String("file", config.ProfilesFile),
		zap.Int("creators", creators),
		zap.Int("campaigns", campaigns),
	)

	scorer, err := scoring.New(config.Scoring)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("building scorer: %w", err)
	}

	a.engine, err = matching.New(config.Matching, matching.Deps{
		Store:   a.catalog,
		Tracker: a.tracker,
		History: a.history,
		Scorer:  scorer,
		Logger:  logger.Named("matching"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("building engine: %w", err)
	}

	return a, nil
}

func (a *application) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("closing interaction log", zap.Error(err))
		}
	}
	if a.badger != nil {
		if err := a.badger.Close(); err != nil {
			a.logger.Warn("closing exclusion store", zap.Error(err))
		}
	}
}

// newPitchWriter returns nil when drafting is disabled.
func newPitchWriter(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.PitchWriter, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if cfg.Gemini == nil {
		cfg.Gemini = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (or set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.WithAIFields(log, "gemini", strings.TrimSpace(cfg.Gemini.Model)).
		With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, gemini.Options{
		Model:      cfg.Gemini.Model,
		MaxRetries: cfg.Gemini.MaxRetries,
		Logger:     genLogger,
	})
	if err != nil {
		return nil, err
	}

	return gemini.NewPitchWriter(generator, cfg.Gemini.MaxLogLength, logger.WithAIFields(log, "gemini", generator.Model())), nil
}
