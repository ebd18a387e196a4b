package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"webbank/archiver"
	"webbank/capture"
	"webbank/config"
	"webbank/database"
	"webbank/logging"
	"webbank/storage"
)

// App holds the services a command runs against.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Store   *database.Store
	Files   *storage.Manager
	Mirror  *capture.Invoker
	Service *archiver.Service
}

// newApp is the application factory. Tests replace it to inject a fake
// mirror runner.
var newApp = func(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	return buildApp(cfg, log, nil)
}

// buildApp wires the storage layout, the database and the archiver. A nil
// runner executes the real mirror binary.
func buildApp(cfg config.Config, log *zap.Logger, runner capture.Runner) (*App, error) {
	files, err := storage.NewManager(storage.Layout{
		TempRoot:    cfg.Storage.TempRoot,
		StorageRoot: cfg.Storage.Root,
		UploadsDir:  cfg.Storage.UploadsDir,
	}, log.Named("storage"))
	if err != nil {
		return nil, err
	}
	if err := files.EnsureStorageDirs(); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database.Path, log.Named("database"))
	if err != nil {
		return nil, err
	}
	store := database.NewStore(db)

	mirror := capture.NewInvoker(cfg.Mirror.Binary, runner, log.Named("capture")).
		WithTimeout(cfg.Mirror.Timeout)

	svc := archiver.New(mirror, files, store, archiver.Options{
		TempKeep:       cfg.Storage.TempKeep,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, log.Named("archiver"))

	return &App{
		Config:  cfg,
		Logger:  log,
		Store:   store,
		Files:   files,
		Mirror:  mirror,
		Service: svc,
	}, nil
}

// Close releases the database and flushes the logger.
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("Failed to close database", zap.Error(err))
	}
	_ = a.Logger.Sync()
}

func (a *App) String() string {
	return fmt.Sprintf("storage=%s temp=%s db=%s", a.Files.Layout().StorageRoot, a.Files.Layout().TempRoot, a.Config.Database.Path)
}
