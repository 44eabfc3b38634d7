package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-rag/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

// wire builds every adapter and service from the global flags.
// Settings commands still work when the embedding provider is not usable,
// so that it can be fixed.
func wire(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	configDir := opts.ConfigDir
	if configDir == "" {
		dir, err := file.DefaultConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locating config directory: %w", err)
		}
		configDir = dir
	}

	loaded, err := file.LoadEnvFiles(configDir)
	if err != nil {
		return nil, err
	}
	for _, path := range loaded {
		logger.Debug("loaded environment from %s", path)
	}

	var configStore driven.ConfigStore
	if opts.NoConfig {
		configStore = memory.NewConfigStore()
	} else {
		store, err := file.NewConfigStore(configDir)
		if err != nil {
			return nil, fmt.Errorf("opening config: %w", err)
		}
		configStore = store
	}

	settingsService := services.NewSettingsService(configStore,
		services.WithEmbeddingValidator(ai.ValidateEmbeddingConfig))
	if strings.HasPrefix(opts.Command, "sercha-rag settings") {
		return &cli.Services{Settings: settingsService}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if opts.DSN != "" {
		settings.Durable.DSN = opts.DSN
	}

	embedder, err := openEmbedder(ctx, opts.Command, settings.Embedding)
	if err != nil {
		return nil, err
	}

	durable, err := storage.OpenDurableIndex(ctx, settings.Durable)
	if err != nil {
		embedder.Close() //nolint:errcheck // already failing
		return nil, err
	}

	prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		durable.Close()  //nolint:errcheck // already failing
		embedder.Close() //nolint:errcheck // already failing
		return nil, err
	}

	fs := filesystem.New("")
	extractor := normalisers.Defaults()
	chunks := chunker.New(chunker.FromSettings(settings.Chunk))

	var cacheOpts []services.EphemeralOption
	watcher, err := filesystem.NewWatcher()
	if err != nil {
		logger.Warn("attachment changes will not be detected: %v", err)
	} else {
		cacheOpts = append(cacheOpts, services.WithChangeNotifier(watcher))
	}

	cache := services.NewEphemeralCache(fs, extractor, chunks, embedder, settings.Ephemeral, cacheOpts...)
	sweeper := services.NewSweeper(cache, cache.SweepInterval())

	svc := &cli.Services{
		Retrieval: services.NewRetrievalService(embedder, durable, cache, settings),
		Ingest:    services.NewIngestService(fs, extractor, chunks, embedder, durable, settings.Ephemeral.MaxFileBytes),
		Settings:  settingsService,
		Context:   services.NewContextBuilder(prompts),

		Background: func(ctx context.Context) error {
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return sweeper.Start(ctx) })
			if watcher != nil {
				g.Go(func() error { return watcher.Run(ctx, cache.InvalidatePath) })
			}
			return g.Wait()
		},

		Close: func() error {
			cache.Close()
			var errs []error
			if watcher != nil {
				errs = append(errs, watcher.Close())
			}
			errs = append(errs, embedder.Close(), durable.Close())
			return errors.Join(errs...)
		},
	}
	if lister, ok := durable.(driven.SourceLister); ok {
		svc.Sources = lister
	}
	return svc, nil
}

// openEmbedder creates the embedding service. The MCP server checks that
// the provider answers before it starts accepting clients; one-shot
// commands find out on first use.
func openEmbedder(ctx context.Context, command string, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if strings.HasPrefix(command, "sercha-rag mcp") {
		return ai.CreateAndValidateEmbeddingService(ctx, settings)
	}

	embedder, err := ai.CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return embedder, nil
}
