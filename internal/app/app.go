// Package app wires the configured backends into the import services shared
// by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/csvimport"
	"github.com/dvloznov/statement-import/internal/document"
	"github.com/dvloznov/statement-import/internal/extraction"
	"github.com/dvloznov/statement-import/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-import/internal/infra/bigquery"
	"github.com/dvloznov/statement-import/internal/session"
	"github.com/dvloznov/statement-import/internal/store"
	"github.com/dvloznov/statement-import/internal/store/inmemory"
	"github.com/rs/zerolog"
)

// Services holds the collaborators built from a Config.
type Services struct {
	Config *config.Config

	Store        store.TransactionStore
	Transactions store.TransactionLister
	Accounts     store.AccountDirectory
	Categories   store.CategoryDirectory

	// GCS is nil when no bucket is configured.
	GCS        *gcsuploader.GCSStorageService
	Reader     *document.Reader
	Extraction extraction.Service
	Extractor  *extraction.Extractor
	Presets    csvimport.Presets

	log     zerolog.Logger
	closers []func() error
}

// Open builds the services. A failing extraction client is not fatal: CSV
// imports keep working and document imports fail at the extraction stage.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Services, error) {
	s := &Services{Config: cfg, log: log}

	if err := s.openStore(ctx); err != nil {
		s.Close()
		return nil, err
	}

	if cfg.Storage.Bucket != "" {
		gcs, err := gcsuploader.NewGCSStorageService(ctx, cfg.ClientOptions()...)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("Open: %w", err)
		}
		s.GCS = gcs
		s.closers = append(s.closers, gcs.Close)
	} else {
		log.Warn().Msg("No GCS bucket configured - gs:// files and uploads are disabled")
	}

	if s.GCS != nil {
		s.Reader = document.NewReader(s.GCS)
	} else {
		s.Reader = document.NewReader(nil)
	}
	if cfg.Import.MaxBytes > 0 {
		s.Reader.MaxBytes = cfg.Import.MaxBytes
	}

	s.Extraction = s.extractionService(ctx)
	s.Extractor = extraction.NewExtractor(s.Extraction)

	if cfg.Import.MappingsFile != "" {
		presets, err := csvimport.LoadPresets(cfg.Import.MappingsFile)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("Open: %w", err)
		}
		s.Presets = presets
		log.Info().Int("presets", len(presets)).Str("file", cfg.Import.MappingsFile).Msg("Loaded column mapping presets")
	}

	return s, nil
}

func (s *Services) openStore(ctx context.Context) error {
	cfg := s.Config
	switch cfg.Store.Backend {
	case config.BackendBigQuery:
		repo, err := infraBQ.NewRepository(ctx, cfg.GCP.Project, cfg.BigQuery.Dataset, cfg.ClientOptions()...)
		if err != nil {
			return fmt.Errorf("Open: %w", err)
		}
		s.closers = append(s.closers, repo.Close)
		s.Store, s.Transactions, s.Accounts, s.Categories = repo, repo, repo, repo
		s.log.Info().Str("project", cfg.GCP.Project).Str("dataset", cfg.BigQuery.Dataset).Msg("Using BigQuery store")
	default:
		mem := MemoryStore(cfg)
		s.Store, s.Transactions, s.Accounts, s.Categories = mem, mem, mem, mem
		s.log.Info().Msg("Using in-memory store")
	}
	return nil
}

// MemoryStore seeds an in-memory store from the config. The placeholder
// category is always present so uncategorized candidates can be committed.
func MemoryStore(cfg *config.Config) *inmemory.Store {
	accounts := make([]store.Account, 0, len(cfg.Memory.Accounts))
	for _, a := range cfg.Memory.Accounts {
		accounts = append(accounts, store.Account{ID: a.ID, Name: a.Name, Currency: a.Currency})
	}

	categories := make([]store.Category, 0, len(cfg.Memory.Categories)+1)
	hasPlaceholder := false
	for _, c := range cfg.Memory.Categories {
		categories = append(categories, store.Category{ID: c.ID, Name: c.Name, ParentID: c.Parent})
		if c.ID == cfg.Import.PlaceholderCategory {
			hasPlaceholder = true
		}
	}
	if !hasPlaceholder {
		categories = append(categories, store.Category{ID: cfg.Import.PlaceholderCategory, Name: "Fill in later"})
	}

	return inmemory.NewStore(accounts, categories)
}

func (s *Services) extractionService(ctx context.Context) extraction.Service {
	cfg := s.Config
	gc := extraction.GeminiConfig{
		Model:    cfg.Extraction.Model,
		APIKey:   cfg.Extraction.APIKey,
		Location: cfg.Extraction.Location,
		Timeout:  cfg.Extraction.Timeout,
	}
	if cfg.UseVertex() {
		gc.Project = cfg.GCP.Project
	}

	svc, err := extraction.NewGeminiService(ctx, gc)
	if err != nil {
		s.log.Warn().Err(err).Msg("Extraction service unavailable - only CSV files can be imported")
		return extraction.ServiceFunc(func(context.Context, extraction.Request) (string, error) {
			return "", fmt.Errorf("%w: %v", extraction.ErrServiceFailed, err)
		})
	}
	s.log.Info().Str("model", gc.Model).Bool("vertex", cfg.UseVertex()).Msg("Extraction service ready")
	return svc
}

// SessionDependencies returns the collaborators for new import sessions.
func (s *Services) SessionDependencies(notifier session.Notifier) session.Dependencies {
	return session.Dependencies{
		Reader:         s.Reader,
		Extractor:      s.Extractor,
		Store:          s.Store,
		Accounts:       s.Accounts,
		Categories:     s.Categories,
		Presets:        s.Presets,
		Notifier:       notifier,
		Logger:         s.log,
		Placeholder:    s.Config.Import.PlaceholderCategory,
		ExtractTimeout: s.Config.Extraction.Timeout,
	}
}

// Close releases clients in reverse order of creation.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
