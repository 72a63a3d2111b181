package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/policy"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/m-mizutani/kioku/pkg/usecase/conversation"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

const (
	backendFile      = "file"
	backendMemory    = "memory"
	backendRedis     = "redis"
	backendFirestore = "firestore"
	backendGCS       = "gcs"

	providerGemini = "gemini"
	providerClaude = "claude"
)

// config holds configuration values
type config struct {
	logLevel string
	userID   string

	// Repository
	backend         string
	storageDir      string
	project         string
	database        string
	bucket          string
	redisAddr       string
	redisPassword   string
	redisDB         int64
	redisPrefix     string
	credentialsFile string

	// Adapters
	provider        string
	memoryProvider  string
	anthropicAPIKey string
	claudeModel     string
	geminiProject   string
	geminiLocation  string
	geminiAPIKey    string
	geminiModel     string
	embeddingModel  string
	embedCacheSize  int64

	// Memory
	configFile          string
	policyDir           string
	maxHistoryToProcess int64
	flashInterval       int64
	longTermInterval    int64
	maxContextItems     int64
	retrievalThreshold  float64
}

// globalFlags returns flags shared by all commands
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("KIOKU_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User whose memory is used",
			Value:       "cli_user",
			Sources:     cli.EnvVars("KIOKU_USER_ID"),
			Destination: &cfg.userID,
		},
	}
}

// repositoryFlags returns flags for snapshot persistence
func repositoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "Snapshot storage backend (file, memory, redis, firestore, gcs)",
			Value:       backendFile,
			Sources:     cli.EnvVars("KIOKU_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "storage-dir",
			Usage:       "Directory of snapshot files for the file backend",
			Value:       "./memory_data",
			Sources:     cli.EnvVars("KIOKU_STORAGE_DIR"),
			Destination: &cfg.storageDir,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for the gcs backend",
			Sources:     cli.EnvVars("KIOKU_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address for the redis backend",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("KIOKU_REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Sources:     cli.EnvVars("KIOKU_REDIS_PASSWORD"),
			Destination: &cfg.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Sources:     cli.EnvVars("KIOKU_REDIS_DB"),
			Destination: &cfg.redisDB,
		},
		&cli.StringFlag{
			Name:        "redis-prefix",
			Usage:       "Prefix of Redis keys",
			Value:       "kioku:",
			Sources:     cli.EnvVars("KIOKU_REDIS_PREFIX"),
			Destination: &cfg.redisPrefix,
		},
		&cli.StringFlag{
			Name:        "credentials",
			Usage:       "Path to a Google Cloud service account key file",
			Sources:     cli.EnvVars("GOOGLE_APPLICATION_CREDENTIALS"),
			Destination: &cfg.credentialsFile,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "provider",
			Usage:       "LLM provider for replies (gemini, claude)",
			Value:       providerGemini,
			Sources:     cli.EnvVars("KIOKU_PROVIDER"),
			Destination: &cfg.provider,
		},
		&cli.StringFlag{
			Name:        "memory-provider",
			Usage:       "LLM provider for memory generation (gemini, claude)",
			Value:       providerGemini,
			Sources:     cli.EnvVars("KIOKU_MEMORY_PROVIDER"),
			Destination: &cfg.memoryProvider,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model name",
			Sources:     cli.EnvVars("KIOKU_CLAUDE_MODEL"),
			Destination: &cfg.claudeModel,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key, used instead of Vertex AI when set",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini generative model name",
			Sources:     cli.EnvVars("KIOKU_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini embedding model name",
			Sources:     cli.EnvVars("KIOKU_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embed-cache-size",
			Usage:       "Number of embeddings cached in memory (0 disables)",
			Value:       1024,
			Sources:     cli.EnvVars("KIOKU_EMBED_CACHE_SIZE"),
			Destination: &cfg.embedCacheSize,
		},
	}
}

// memoryFlags returns flags tuning memory stages. Zero values keep the
// config file or default value.
func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to memory tuning YAML file",
			Sources:     cli.EnvVars("KIOKU_CONFIG"),
			Destination: &cfg.configFile,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego admission policies for new memories",
			Sources:     cli.EnvVars("KIOKU_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.IntFlag{
			Name:        "max-history",
			Usage:       "Number of history events shown to the reply model",
			Value:       20,
			Sources:     cli.EnvVars("KIOKU_MAX_HISTORY_TURNS"),
			Destination: &cfg.maxHistoryToProcess,
		},
		&cli.IntFlag{
			Name:        "flash-interval",
			Usage:       "Run flash extraction every N user turns",
			Sources:     cli.EnvVars("KIOKU_FLASH_MEMORY_INTERVAL"),
			Destination: &cfg.flashInterval,
		},
		&cli.IntFlag{
			Name:        "long-term-interval",
			Usage:       "Run long-term consolidation every N user turns",
			Sources:     cli.EnvVars("KIOKU_LONG_TERM_MEMORY_INTERVAL"),
			Destination: &cfg.longTermInterval,
		},
		&cli.IntFlag{
			Name:        "max-context-items",
			Usage:       "Maximum number of memories added to the reply prompt",
			Sources:     cli.EnvVars("KIOKU_MAX_RETURNED_MEMORIES"),
			Destination: &cfg.maxContextItems,
		},
		&cli.FloatFlag{
			Name:        "retrieval-threshold",
			Usage:       "Minimum similarity of a recalled memory",
			Sources:     cli.EnvVars("KIOKU_RETRIEVAL_THRESHOLD"),
			Destination: &cfg.retrievalThreshold,
		},
	}
}

func allFlags(cfg *config) []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, repositoryFlags(cfg)...)
	flags = append(flags, llmFlags(cfg)...)
	flags = append(flags, memoryFlags(cfg)...)
	return flags
}

// newLogger creates a logger writing to w at the configured level
func (cfg *config) newLogger(w io.Writer) *slog.Logger {
	return logging.New(cfg.logLevel, w)
}

func (cfg *config) user() (model.UserID, error) {
	userID := model.UserID(cfg.userID)
	if err := userID.Validate(); err != nil {
		return "", goerr.Wrap(err, "invalid user-id", goerr.V("user_id", cfg.userID))
	}
	return userID, nil
}

func (cfg *config) clientOptions() []option.ClientOption {
	if cfg.credentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.credentialsFile)}
}

// closer is a resource released when a command finishes
type closer func()

// newRepository creates the configured snapshot backend
func (cfg *config) newRepository(ctx context.Context) (interfaces.SnapshotRepository, closer, error) {
	noop := func() {}

	switch cfg.backend {
	case backendFile:
		repo, err := repository.NewFile(cfg.storageDir)
		if err != nil {
			return nil, nil, err
		}
		return repo, noop, nil

	case backendMemory:
		return repository.NewMemory(), noop, nil

	case backendRedis:
		repo, err := repository.NewRedis(ctx, cfg.redisAddr, cfg.redisPassword, int(cfg.redisDB), cfg.redisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil

	case backendFirestore:
		if cfg.project == "" {
			return nil, nil, goerr.New("project is required for firestore backend")
		}
		if cfg.database == "" {
			return nil, nil, goerr.New("database is required for firestore backend")
		}
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database, cfg.clientOptions()...)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil

	case backendGCS:
		if cfg.bucket == "" {
			return nil, nil, goerr.New("bucket is required for gcs backend")
		}
		storage, err := adapter.NewStorage(ctx, cfg.bucket, cfg.clientOptions()...)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create storage")
		}
		return repository.NewObject(storage), noop, nil

	default:
		return nil, nil, goerr.New("unsupported backend",
			goerr.V("backend", cfg.backend),
			goerr.V("supported", []string{backendFile, backendMemory, backendRedis, backendFirestore, backendGCS}))
	}
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	if cfg.embeddingModel != "" {
		opts = append(opts, adapter.WithEmbeddingModel(cfg.embeddingModel))
	}

	if cfg.geminiAPIKey != "" {
		return adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey, opts...)
	}

	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project or gemini-api-key is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// newClaude creates a new Claude adapter instance
func (cfg *config) newClaude() (*adapter.ClaudeClient, error) {
	if cfg.anthropicAPIKey == "" {
		return nil, goerr.New("anthropic-api-key is required")
	}
	var opts []adapter.ClaudeOption
	if cfg.claudeModel != "" {
		opts = append(opts, adapter.WithClaudeModel(cfg.claudeModel))
	}
	return adapter.NewClaude(cfg.anthropicAPIKey, opts...), nil
}

func (cfg *config) newGenerator(provider string, gemini *adapter.GeminiClient) (interfaces.Generator, error) {
	switch provider {
	case providerGemini:
		return gemini, nil
	case providerClaude:
		return cfg.newClaude()
	default:
		return nil, goerr.New("unsupported provider",
			goerr.V("provider", provider),
			goerr.V("supported", []string{providerGemini, providerClaude}))
	}
}

// memoryConfig reads the tuning file, if any, and applies flag overrides
func (cfg *config) memoryConfig() (memory.Config, error) {
	var mc memory.Config
	if cfg.configFile != "" {
		loaded, err := memory.LoadConfig(cfg.configFile)
		if err != nil {
			return memory.Config{}, err
		}
		mc = loaded
	}

	if cfg.flashInterval > 0 {
		mc.Scheduler.FlashInterval = int(cfg.flashInterval)
	}
	if cfg.longTermInterval > 0 {
		mc.Scheduler.LongTermInterval = int(cfg.longTermInterval)
	}
	if cfg.maxContextItems > 0 {
		mc.Retriever.MaxContextItems = int(cfg.maxContextItems)
	}
	if cfg.retrievalThreshold > 0 {
		mc.Retriever.SimilarityThreshold = cfg.retrievalThreshold
	}

	return mc.WithDefaults(), nil
}

// newSession wires adapters, the backend and the memory pipeline
func (cfg *config) newSession(ctx context.Context) (*conversation.Session, closer, error) {
	repo, closeRepo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}

	replier, err := cfg.newGenerator(cfg.provider, gemini)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}
	memorizer, err := cfg.newGenerator(cfg.memoryProvider, gemini)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}

	var embedder interfaces.Embedder = gemini
	closeAll := closeRepo
	if cfg.embedCacheSize > 0 {
		cached, err := adapter.NewCachedEmbedder(gemini, cfg.embedCacheSize)
		if err != nil {
			closeRepo()
			return nil, nil, err
		}
		embedder = cached
		closeAll = func() {
			cached.Close()
			closeRepo()
		}
	}

	mc, err := cfg.memoryConfig()
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	admission, err := policy.New(ctx, cfg.policyDir)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	session, err := conversation.New(conversation.NewInput{
		Store:               repository.NewStore(repo),
		Replier:             replier,
		Memorizer:           memorizer,
		Embedder:            embedder,
		Config:              mc,
		Admission:           admission,
		MaxHistoryToProcess: int(cfg.maxHistoryToProcess),
	})
	if err != nil {
		closeAll()
		return nil, nil, goerr.Wrap(err, "failed to create conversation session")
	}

	return session, closeAll, nil
}
