// Package app wires configuration, storage, the model clients and the chat
// orchestrator into one running Spark instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/entrepeneur4lyf/spark/internal/chat"
	"github.com/entrepeneur4lyf/spark/internal/config"
	"github.com/entrepeneur4lyf/spark/internal/events"
	"github.com/entrepeneur4lyf/spark/internal/imagegen"
	"github.com/entrepeneur4lyf/spark/internal/llm"
	"github.com/entrepeneur4lyf/spark/internal/llm/prompt"
	"github.com/entrepeneur4lyf/spark/internal/llm/providers"
	"github.com/entrepeneur4lyf/spark/internal/logging"
	"github.com/entrepeneur4lyf/spark/internal/response"
	"github.com/entrepeneur4lyf/spark/internal/storage"
)

// App represents a running Spark instance with all systems initialized
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Store     storage.KVStore
	Repo      *storage.KVRepository
	Events    *events.Broker[events.Notice]
	Images    *imagegen.Generator
	Assembler *response.Assembler
	Chat      *chat.Orchestrator

	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
	closeOnce   sync.Once
}

// AppConfig overrides parts of the wiring. Zero values select the
// configured defaults.
type AppConfig struct {
	Config *config.Config
	Logger *log.Logger
	Store  storage.KVStore
	// Backend replaces the Gemini completion client
	Backend llm.CompletionBackend
	// ImageBackend replaces the Gemini image client; it is only consulted
	// when Backend is also set.
	ImageBackend imagegen.Backend
	Location     chat.LocationProvider
}

// NewApp creates a Spark application with all systems initialized
func NewApp(ctx context.Context, appConfig *AppConfig) (*App, error) {
	if appConfig == nil {
		appConfig = &AppConfig{}
	}
	cfg := appConfig.Config
	if cfg == nil {
		wd, _ := os.Getwd()
		loaded, err := config.Load(wd, false)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	logger := appConfig.Logger
	if logger == nil {
		l, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	app := &App{Config: cfg, Logger: logger}

	if err := app.initializeStorage(ctx, appConfig.Store); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.initializeEventSystem()

	backend, images, err := app.initializeModels(ctx, appConfig)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize models: %w", err)
	}
	app.initializeChat(backend, images, appConfig.Location)
	app.startWatching(ctx)

	logger.Info("Spark initialized", "storage", cfg.Storage.Driver, "model", cfg.Models.Chat)
	return app, nil
}

// initializeStorage opens the configured KVStore and the repository on it
func (app *App) initializeStorage(ctx context.Context, store storage.KVStore) error {
	if store == nil {
		opts := app.Config.StorageOptions()
		opts.Logger = app.Logger
		opened, err := storage.Open(ctx, opts)
		if err != nil {
			return err
		}
		store = opened
	}
	app.Store = store
	app.Repo = storage.NewKVRepository(store, storage.WithRepositoryLogger(app.Logger))
	return nil
}

// initializeEventSystem creates the broker shared by the API and orchestrator
func (app *App) initializeEventSystem() {
	app.Events = events.NewBroker[events.Notice]()
	app.Events.SetLogger(app.Logger)
}

// initializeModels builds the completion and image backends. Both share one
// genai client unless overridden.
func (app *App) initializeModels(ctx context.Context, appConfig *AppConfig) (llm.CompletionBackend, imagegen.Backend, error) {
	if appConfig.Backend != nil {
		return appConfig.Backend, appConfig.ImageBackend, nil
	}
	if err := app.Config.Validate(); err != nil {
		return nil, nil, err
	}
	handler, err := providers.NewGeminiSDKHandler(ctx, app.Config.GeminiOptions())
	if err != nil {
		return nil, nil, err
	}
	images := imagegen.NewGenAIBackendFromClient(handler.Client(),
		imagegen.WithImageModel(app.Config.Models.Image),
		imagegen.WithEditModel(app.Config.Models.Edit),
	)
	return handler, images, nil
}

// initializeChat builds the response pipeline and the orchestrator
func (app *App) initializeChat(backend llm.CompletionBackend, images imagegen.Backend, location chat.LocationProvider) {
	cfg := app.Config

	fallback := imagegen.NewURLFallback(cfg.Images.FallbackBaseURL)
	app.Images = imagegen.NewGenerator(images, fallback,
		imagegen.WithLogger(app.Logger),
		imagegen.WithMaxSourceDimension(cfg.Images.MaxSourceDimension),
	)
	app.Assembler = response.NewAssembler(app.Images,
		response.WithLogger(app.Logger),
		response.WithPanelFallback(fallback),
		response.WithComicConcurrency(cfg.Images.ComicConcurrency),
	)

	if location == nil && cfg.Location != nil {
		location = chat.StaticLocation(*cfg.Location)
	}
	app.Chat = chat.New(app.Repo, backend, app.Assembler,
		chat.WithLogger(app.Logger),
		chat.WithEvents(app.Events),
		chat.WithSystemInstruction(prompt.SystemInstruction(cfg.WorkingDir, cfg.ContextPaths)),
		chat.WithLocationProvider(location),
		chat.WithLocationTimeout(cfg.LocationTimeout),
		chat.WithImageSettings(cfg.ImageSettings()),
	)
}

// startWatching publishes store.changed events for writes made by other
// processes when the store supports it.
func (app *App) startWatching(ctx context.Context) {
	watcher, ok := app.Store.(storage.Watcher)
	if !ok || !app.Config.Storage.Watch {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	app.watchCancel = cancel

	app.watchWG.Add(1)
	go func() {
		defer app.watchWG.Done()
		err := watcher.Watch(ctx, func(key string) {
			app.Logger.Debug("Store changed externally", "key", key)
			app.Events.Publish(events.StoreChanged, events.Notice{Namespace: key})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			app.Logger.Warn("Store watcher stopped", "error", err)
		}
	}()
}

// Close stops background work and releases the store
func (app *App) Close() error {
	var err error
	app.closeOnce.Do(func() {
		if app.watchCancel != nil {
			app.watchCancel()
		}
		app.watchWG.Wait()
		if app.Events != nil {
			app.Events.Shutdown()
		}
		if app.Store != nil {
			err = app.Store.Close()
		}
	})
	return err
}
