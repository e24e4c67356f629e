package backend

import (
	"context"

	"parceiros/internal/sheets"
	"parceiros/internal/storage"
	"parceiros/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// KVResult contains the KV adapter and its cleanup function
type KVResult struct {
	KV      storage.KV
	Cleanup CleanupFunc
}

// SettingsReader exposes the persisted spreadsheet settings.
type SettingsReader interface {
	SheetsConfig(ctx context.Context) (store.SheetsConfig, error)
}

// Factory creates the persistence and sync adapters from configuration
type Factory interface {
	CreateKV(ctx context.Context, config Config) (*KVResult, error)
	CreateSyncer(ctx context.Context, config Config, settings SettingsReader) (sheets.Syncer, error)
}

// Config holds configuration for adapter creation
type Config struct {
	Type BackendType

	// File specific
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// GCS specific
	GCSBucket string
	GCSPrefix string

	// Sheets
	Sheets                   SheetsType
	GoogleSpreadsheetID      string
	GoogleSheetID            int64
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of KV backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
	GCSBackend    BackendType = "gcs"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, SQLiteBackend, GCSBackend:
		return true
	default:
		return false
	}
}

// SheetsType selects the spreadsheet adapter.
type SheetsType string

const (
	MemorySheets SheetsType = "memory"
	GoogleSheets SheetsType = "google"
)

func (st SheetsType) IsValid() bool {
	return st == MemorySheets || st == GoogleSheets
}
