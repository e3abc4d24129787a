package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/propelgov/propelai/internal/api/handlers"
	"github.com/propelgov/propelai/internal/config"
	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/extract"
	"github.com/propelgov/propelai/internal/jobs"
	"github.com/propelgov/propelai/internal/openai"
	"github.com/propelgov/propelai/internal/repository"
	"github.com/propelgov/propelai/internal/server"
	"github.com/propelgov/propelai/internal/service"
	"github.com/propelgov/propelai/internal/storage"
	"github.com/propelgov/propelai/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the propel API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		environment := cfg.SentryEnvironment
		if environment == "" {
			environment = "development"
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: cfg.SentrySampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	projectRepo := repository.NewProjectRepository(pool)
	docRepo := repository.NewDocumentRepository(pool)
	bundleRepo := repository.NewBundleRepository(pool)
	policyRepo := repository.NewPolicyRepository(pool)
	rebuildJobRepo := repository.NewRebuildJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	if !cfg.HasS3() {
		return fmt.Errorf("S3 storage is required: set PROPEL_S3_ENDPOINT, PROPEL_S3_ACCESS_KEY_ID and PROPEL_S3_SECRET_ACCESS_KEY")
	}
	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	storageClient := &S3StorageAdapter{client: s3Client}

	extractionSvc := service.NewExtractionService(s3Client, extract.New())

	buildSvc := service.NewBuildServiceWithConfig(
		docRepo, projectRepo, policyRepo, extractionSvc, bundleRepo,
		service.DefaultTokenEstimator(),
		service.BuildConfig{
			Debounce:      cfg.RebuildDebounce,
			BuildTimeout:  cfg.BuildTimeout,
			ModelCategory: domain.ModelCategory(cfg.DefaultModelClass),
		},
	)
	defer buildSvc.Stop()

	contextSvc := service.NewContextService(bundleRepo, buildSvc, policyRepo)
	projectSvc := service.NewProjectService(projectRepo)
	docSvc := service.NewDocumentServiceWithTx(docRepo, storageClient, buildSvc, txRunner)

	rebuildProcessor := jobs.NewRebuildWorker(rebuildJobRepo, buildSvc)
	rebuildWorker := jobs.NewWorker(rebuildProcessor, cfg.JobPollInterval)
	go rebuildWorker.Start(ctx)
	log.Println("rebuild worker started")

	var draftHandler *handlers.DraftHandler
	if cfg.HasOpenAI() {
		generator := openai.NewClientWithConfig(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
		draftSvc := service.NewDraftService(contextSvc, generator, policyRepo)
		draftHandler = handlers.NewDraftHandler(draftSvc)
	} else {
		draftHandler = handlers.NewDraftHandler(&NoOpDraftService{})
	}

	routerCfg := server.RouterConfig{
		ProjectHandler:  handlers.NewProjectHandler(projectSvc),
		DocumentHandler: handlers.NewDocumentHandler(docSvc),
		ContextHandler:  handlers.NewContextHandler(contextSvc, buildSvc),
		DraftHandler:    draftHandler,
		PolicyHandler:   handlers.NewPolicyHandler(policyRepo),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	rebuildWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

type S3StorageAdapter struct {
	client *storage.S3Client
}

func (a *S3StorageAdapter) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	return a.client.GenerateUploadURL(ctx, key, contentType)
}

func (a *S3StorageAdapter) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	return a.client.GenerateDownloadURL(ctx, key)
}

func (a *S3StorageAdapter) DeleteObject(ctx context.Context, key string) error {
	return a.client.DeleteObject(ctx, key)
}

func (a *S3StorageAdapter) HeadObject(ctx context.Context, key string) (*service.ObjectMetadata, error) {
	meta, err := a.client.HeadObject(ctx, key)
	if err != nil {
		return nil, err
	}
	return &service.ObjectMetadata{
		ContentLength: meta.ContentLength,
		ContentType:   meta.ContentType,
		ETag:          meta.ETag,
	}, nil
}

type NoOpDraftService struct{}

func (s *NoOpDraftService) GenerateDraft(ctx context.Context, req service.DraftRequest) (*service.Draft, error) {
	return nil, fmt.Errorf("draft service not configured: PROPEL_OPENAI_API_KEY or PROPEL_OPENAI_BASE_URL required")
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
