package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/config"
	"github.com/upb/helpdesk-orchestrator/internal/observability"
	"github.com/upb/helpdesk-orchestrator/internal/textvec"
	"github.com/upb/helpdesk-orchestrator/middleware"
	"github.com/upb/helpdesk-orchestrator/repositories"
	"github.com/upb/helpdesk-orchestrator/repositories/memory"
	"github.com/upb/helpdesk-orchestrator/repositories/postgres"
	"github.com/upb/helpdesk-orchestrator/services/audit"
	"github.com/upb/helpdesk-orchestrator/services/gateway"
	"github.com/upb/helpdesk-orchestrator/services/helpdesk"
	"github.com/upb/helpdesk-orchestrator/services/knowledge"
	"github.com/upb/helpdesk-orchestrator/services/providers"
	"github.com/upb/helpdesk-orchestrator/services/providers/ollama"
	"github.com/upb/helpdesk-orchestrator/services/providers/openai"
)

// openAIModelPrefix routes gpt-* model overrides to the hosted provider
const openAIModelPrefix = "gpt-"

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory, nil without a database
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Knowledge    repositories.KnowledgeRepository
	Interactions repositories.InteractionRepository
	TxManager    repositories.TransactionManager

	// Model backend
	ProviderRegistry *providers.Registry
	Gateway          *gateway.Gateway

	// Domain services
	KnowledgeIndex  *knowledge.Index
	AuditService    *audit.AuditService
	HelpdeskService *helpdesk.Service

	// Auth, nil when AUTH_JWT_SECRET is unset
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initProviders(cfg); err != nil {
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initKnowledge(ctx, cfg); err != nil {
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}

	if err := deps.initAudit(cfg); err != nil {
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to start audit service: %w", err)
	}

	deps.initHelpdesk(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.Int("knowledge_entries", deps.KnowledgeIndex.Len()),
		zap.Strings("providers", deps.ProviderRegistry.ListProviders()),
		zap.Bool("database", deps.DB != nil),
		zap.Bool("auth", deps.AuthMiddleware != nil))
	return deps, nil
}

// initDatabase opens PostgreSQL when configured and ensures the schema exists
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.Configured() {
		if cfg.Knowledge.Source == config.KnowledgeSourcePostgres {
			return fmt.Errorf("knowledge source %q needs DATABASE_URL or DB_HOST", cfg.Knowledge.Source)
		}
		d.Logger.Info("no database configured, interactions kept in memory")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	if err := factory.GetDB().InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	return nil
}

// initRepositories picks PostgreSQL repositories or the in-memory fallback
func (d *Dependencies) initRepositories() {
	if d.RepoFactory == nil {
		d.Interactions = memory.NewInteractionRepository(memory.DefaultCapacity)
		return
	}

	repos := d.RepoFactory.NewRepositories()
	d.Knowledge = repos.Knowledge
	d.Interactions = repos.Interactions
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initProviders registers the model backends. Ollama is the default; OpenAI
// is added for gpt-* models when a key is configured.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	if err := registry.RegisterProvider(ollama.NewAdapter(providers.ProviderConfig{
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.EndpointURL,
		Timeout: cfg.Model.Timeout,
	})); err != nil {
		return err
	}

	if cfg.Model.OpenAIAPIKey != "" {
		if err := registry.RegisterProvider(openai.NewOpenAIAdapter(providers.ProviderConfig{
			APIKey:  cfg.Model.OpenAIAPIKey,
			BaseURL: cfg.Model.OpenAIBaseURL,
			Timeout: cfg.Model.Timeout,
		})); err != nil {
			return err
		}
		if err := registry.RegisterModelPrefix(openAIModelPrefix, "openai"); err != nil {
			return err
		}
		d.Logger.Info("registered OpenAI provider", zap.String("model_prefix", openAIModelPrefix))
	}

	d.ProviderRegistry = registry
	d.Gateway = gateway.New(registry, gateway.ModelOptions{
		Model:        cfg.Model.Model,
		Temperature:  cfg.Model.Temperature,
		MaxTokens:    cfg.Model.MaxTokens,
		SystemPrompt: cfg.Model.SystemPrompt,
	}, d.Logger)
	return nil
}

// initKnowledge loads the knowledge base and builds the immutable index
func (d *Dependencies) initKnowledge(ctx context.Context, cfg *config.Config) error {
	entries, err := knowledge.NewLoader(cfg.Knowledge, d.Knowledge, d.Logger).Load(ctx)
	if err != nil {
		return err
	}

	index, err := knowledge.NewIndex(entries, textvec.Options{Weighting: cfg.Similarity.Weighting})
	if err != nil {
		return err
	}
	if index.Len() == 0 {
		d.Logger.Warn("knowledge base is empty, every question goes to the model")
	}

	d.KnowledgeIndex = index
	return nil
}

// initAudit starts the interaction audit workers when enabled
func (d *Dependencies) initAudit(cfg *config.Config) error {
	if !cfg.Audit.Enabled {
		d.Logger.Info("interaction audit disabled")
		return nil
	}

	svc := audit.NewAuditService(d.Interactions, d.Metrics, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
		RedactPII:   cfg.Audit.RedactPII,
	})
	if err := svc.Start(); err != nil {
		return err
	}
	d.AuditService = svc
	return nil
}

// initHelpdesk builds the coordinator from the loaded configuration
func (d *Dependencies) initHelpdesk(cfg *config.Config) {
	// A nil *AuditService must not become a non-nil interface value.
	var auditor helpdesk.Auditor
	if d.AuditService != nil {
		auditor = d.AuditService
	}

	d.HelpdeskService = helpdesk.NewService(d.KnowledgeIndex, d.Gateway, auditor, d.Metrics, helpdesk.Options{
		Threshold:        cfg.Similarity.Threshold,
		AlwaysCallModel:  cfg.Similarity.AlwaysCallModel,
		Model:            cfg.Model.Model,
		Temperature:      cfg.Model.Temperature,
		MaxTokens:        cfg.Model.MaxTokens,
		SystemPrompt:     cfg.Model.SystemPrompt,
		IncludeKBContext: cfg.Model.IncludeKBContext,
		ModelTimeout:     cfg.Model.Timeout,
		Retry: helpdesk.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.Retry.Backoff,
			Budget:      cfg.Retry.Budget,
		},
		Escalation: cfg.Escalation,
	}, d.Logger)
}

// initAuth enables bearer token checks when a signing secret is configured
func (d *Dependencies) initAuth(cfg *config.Config) {
	if !cfg.AuthEnabled() {
		d.Logger.Warn("AUTH_JWT_SECRET not set, API routes are unauthenticated")
		return
	}
	validator := middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("bearer token auth enabled", zap.String("admin_role", cfg.Auth.AdminRole))
}

// closeDatabase releases the pool after a failed startup
func (d *Dependencies) closeDatabase() {
	if d.RepoFactory != nil {
		_ = d.RepoFactory.Close()
		d.RepoFactory = nil
		d.DB = nil
	}
}

// Close gracefully shuts down all dependencies. Audit workers drain until
// ctx's deadline (5s when ctx has none) before the database is closed.
// AuditService stays set so the status endpoint keeps reporting its counters.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.AuditService != nil {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.AuditService.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
		d.DB = nil
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// StatusSnapshot summarises the running configuration for the status endpoint
func (d *Dependencies) StatusSnapshot() Status {
	s := Status{
		Environment:      d.Config.Environment,
		KnowledgeEntries: d.KnowledgeIndex.Len(),
		Threshold:        d.Config.Similarity.Threshold,
		AlwaysCallModel:  d.Config.Similarity.AlwaysCallModel,
		DefaultModel:     d.Gateway.DefaultModel(),
		Providers:        d.ProviderRegistry.ListProviders(),
	}
	if d.AuditService != nil {
		stats := d.AuditService.GetStats()
		s.Audit = &stats
	}
	return s
}

// Status is the instance summary reported by StatusSnapshot
type Status struct {
	Environment      string
	KnowledgeEntries int
	Threshold        float64
	AlwaysCallModel  bool
	DefaultModel     string
	Providers        []string
	Audit            *audit.Stats
}
