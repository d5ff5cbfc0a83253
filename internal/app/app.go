// Package app builds the slide pipeline from configuration. Both the HTTP
// server and the retry worker use it.
package app

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/internal/config"
	"portfolio-slides/slide-service/internal/deck"
	"portfolio-slides/slide-service/internal/integrations"
	"portfolio-slides/slide-service/internal/onboarding"
	"portfolio-slides/slide-service/internal/slides"
	"portfolio-slides/slide-service/pkg/bgremove"
	"portfolio-slides/slide-service/pkg/geospatial"
	"portfolio-slides/slide-service/pkg/pdf"
	"portfolio-slides/slide-service/pkg/storage"
	"portfolio-slides/slide-service/pkg/textlayout"
)

// App holds the wired pipeline
type App struct {
	Config     *config.Config
	Compositor *slides.Compositor
	Service    *onboarding.Service
	Files      storage.FileStore
	Deck       *deck.Store
	DB         *sqlx.DB
}

// Close releases the database connection
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// NewLogger builds a production logger, or a development one at debug level
func NewLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewCompositor wires the slide strategies. The template strategy is always
// registered; the hosted strategy only when its credentials are configured.
func NewCompositor(cfg *config.Config, logger *zap.Logger) (*slides.Compositor, error) {
	format, err := slides.ParseFormat(cfg.Slides.Format)
	if err != nil {
		return nil, err
	}

	var api *bgremove.APIClient
	if err := cfg.ValidateRemoveBG(); err == nil {
		api = bgremove.NewAPIClient(cfg.RemoveBG, logger)
	} else {
		logger.Info("Background removal API disabled, using local tiers", zap.Error(err))
	}
	remover := bgremove.NewDefaultRemover(api, logger)

	template := slides.NewTemplateStrategy(slides.TemplateOptions{
		Template:  slides.TemplateSource{Path: cfg.Slides.TemplatePath},
		Fonts:     textlayout.NewFontSet(cfg.Slides.Fonts),
		Resolver:  geospatial.NewResolver(geospatial.NewNominatimClient(cfg.Geocoder, logger), logger),
		Remover:   remover,
		Generator: pdf.NewGenerator(pdf.DefaultOptions()),
	}, logger)
	strategies := []slides.Strategy{template}

	if err := cfg.ValidateCanva(); err == nil {
		canva := integrations.NewCanvaClient(cfg.Canva, logger)
		strategies = append(strategies, slides.NewHostedStrategy(canva, remover, logger))
	} else {
		logger.Info("Hosted template strategy disabled", zap.Error(err))
	}

	return slides.NewCompositor(format, logger, strategies...), nil
}

// NewFileStore builds the configured storage backend
func NewFileStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.FileStore, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	switch cfg.Storage.Backend {
	case config.BackendDrive:
		return storage.NewDriveStore(ctx, cfg.Storage.Drive, logger)
	case config.BackendS3:
		return storage.NewS3Store(ctx, cfg.Storage.S3, logger)
	default:
		logger.Warn("Using in-memory file storage, links are not shareable")
		return storage.NewMemoryStore(), nil
	}
}

// New wires every collaborator the configuration enables
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg}

	compositor, err := NewCompositor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build compositor: %w", err)
	}
	a.Compositor = compositor

	files, err := NewFileStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build file store: %w", err)
	}
	a.Files = files
	a.Deck = deck.NewStore(files, nil, cfg.Deck, logger)

	var repo onboarding.Repository = onboarding.NewMemoryRepository()
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxConnections)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

		pg := onboarding.NewPostgresRepository(db)
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.DB = db
		repo = pg
	} else {
		logger.Warn("DATABASE_URL not set, submissions are kept in memory")
	}

	deps := onboarding.Deps{
		Repository: repo,
		Composer:   compositor,
		Files:      files,
		Deck:       a.Deck,
		Fetcher:    onboarding.NewHTTPFetcher(cfg.Slides.FetchTimeout, logger),
		Strategies: enabled(cfg.Slides.Strategies, compositor.Strategies()),
	}
	if err := cfg.ValidateNotion(); err == nil {
		notion := integrations.NewNotionClient(cfg.Notion, logger)
		deps.Workspace = notion
		deps.Notes = notion
		if cfg.Notion.TemplatePageID != "" {
			deps.Folders = notion
		}
	} else {
		logger.Info("Notion integration disabled", zap.Error(err))
	}
	if err := cfg.ValidateDocSend(); err == nil {
		deps.Sharing = integrations.NewDocSendClient(cfg.DocSend, logger)
	} else {
		logger.Info("DocSend integration disabled", zap.Error(err))
	}
	if cfg.Slides.MapTemplatePath != "" {
		data, err := os.ReadFile(cfg.Slides.MapTemplatePath)
		if err != nil {
			logger.Warn("Failed to read map image", zap.Error(err))
		}
		deps.MapImage = data
	}

	a.Service = onboarding.NewService(deps, logger)
	return a, nil
}

// enabled keeps the configured strategy order, minus strategies that were not built
func enabled(configured, registered []string) []string {
	out := make([]string, 0, len(configured))
	for _, name := range configured {
		if slices.Contains(registered, name) {
			out = append(out, name)
		}
	}
	return out
}
