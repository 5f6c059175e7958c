package backend

import (
	"context"
	"fmt"

	"cashflow/internal/config"
	"cashflow/internal/fetcher"
	applog "cashflow/internal/log"
	"cashflow/internal/records/file"
	"cashflow/internal/records/sheets"
	"cashflow/internal/storage"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		RecordsPath: appConfig.RecordsPath,
		RecordsDir:  appConfig.RecordsDir,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		RemoteBaseURL: appConfig.RemoteBaseURL,
	}, nil
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.NewDiscard()
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	switch config.Type {
	case FileBackend:
		return f.createFileBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case RemoteBackend:
		return f.createRemoteBackend(config)
	default:
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createFileBackend(config Config) (*BackendResult, error) {
	var store *file.Store
	if config.RecordsPath != "" {
		store = file.New(config.RecordsPath)
	} else {
		dir := config.RecordsDir
		if dir == "" {
			dir = "."
		}
		store = file.NewFromDir(dir)
	}

	f.logger.Info("Initialized file backend", "path", store.Path())

	return &BackendResult{
		Reader: store,
		Writer: store,
		Source: "file:" + store.Path(),
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Reader:  repo,
		Writer:  repo,
		Cleanup: repo.Close,
		Source:  "sqlite:" + config.SQLiteDBPath,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := sheets.New(ctx, sheets.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &BackendResult{
		Reader: cli,
		Source: "sheets:" + config.GoogleSpreadsheetID,
	}, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) (*BackendResult, error) {
	cli, err := fetcher.New(config.RemoteBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote records client: %w", err)
	}

	f.logger.Info("Initialized remote backend", "endpoint", cli.Endpoint())

	return &BackendResult{
		Reader: cli,
		Source: "remote:" + cli.Endpoint(),
	}, nil
}
