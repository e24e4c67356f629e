package backend

import (
	"context"
	"fmt"
	"log/slog"

	plog "parceiros/internal/log"
	"parceiros/internal/sheets"
	gsheet "parceiros/internal/sheets/google"
	"parceiros/internal/sheets/memory"
	"parceiros/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

var _ Factory = (*DefaultFactory)(nil)

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(plog.FieldComponent, plog.ComponentBackend),
	}
}

// CreateKV implements Factory.CreateKV
func (f *DefaultFactory) CreateKV(ctx context.Context, config Config) (*KVResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		kv  storage.KV
		err error
	)
	switch config.Type {
	case MemoryBackend:
		kv = storage.NewMemoryKV()
	case FileBackend:
		kv, err = storage.NewFileKV(config.DataDirectory)
	case SQLiteBackend:
		kv, err = storage.NewSQLiteKV(config.SQLiteDBPath)
	case GCSBackend:
		kv, err = storage.NewGCSKV(ctx, config.GCSBucket, config.GCSPrefix)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", config.Type, err)
	}

	f.logger.Info("Initialized KV backend",
		"type", config.Type,
		"data_directory", config.DataDirectory,
		"db_path", config.SQLiteDBPath,
		"bucket", config.GCSBucket)

	return &KVResult{KV: kv, Cleanup: kv.Close}, nil
}

// CreateSyncer implements Factory.CreateSyncer. The google adapter reads its
// target from settings on every call, so a spreadsheet saved at runtime is
// picked up without a restart.
func (f *DefaultFactory) CreateSyncer(ctx context.Context, config Config, settings SettingsReader) (sheets.Syncer, error) {
	switch config.Sheets {
	case MemorySheets, "":
		f.logger.Info("Initialized in-memory sheets backend")
		return memory.New(), nil
	case GoogleSheets:
		fallback := sheets.Target{SpreadsheetID: config.GoogleSpreadsheetID, SheetID: config.GoogleSheetID}
		cli, err := gsheet.New(ctx, TargetFrom(settings, fallback), gsheet.Credentials{
			JSON: config.GoogleServiceAccountJSON,
			File: config.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
		return cli, nil
	default:
		return nil, fmt.Errorf("unsupported sheets backend: %s", config.Sheets)
	}
}

// TargetFrom prefers the persisted spreadsheet settings and falls back to the
// configured ones while nothing has been saved.
func TargetFrom(settings SettingsReader, fallback sheets.Target) sheets.TargetSource {
	return func(ctx context.Context) (sheets.Target, error) {
		if settings != nil {
			cfg, err := settings.SheetsConfig(ctx)
			if err != nil {
				return sheets.Target{}, fmt.Errorf("read sheets config: %w", err)
			}
			if cfg.SpreadsheetID != "" {
				return sheets.Target{SpreadsheetID: cfg.SpreadsheetID, SheetID: cfg.SheetID}, nil
			}
		}
		if fallback.SpreadsheetID == "" {
			return sheets.Target{}, sheets.ErrNotConfigured
		}
		return fallback, nil
	}
}
