// Package backend builds the local ledger, remote sheet connector and event
// publisher selected by configuration.
package backend

import (
	"context"
	"time"

	"kharcha/internal/cache"
	"kharcha/internal/ledger"
	"kharcha/internal/services"
	"kharcha/internal/sheets"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result holds the constructed backends. Events is nil when no publisher is
// configured.
type Result struct {
	Local    ledger.Store
	Remote   sheets.Connector
	Events   services.EventPublisher
	Cleaners []cache.Cleaner
	Cleanup  CleanupFunc
}

// Factory creates backends from configuration.
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds backend selection and connection settings.
type Config struct {
	Local  LocalType
	Remote RemoteType

	LedgerFile   string
	SQLiteDBPath string

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SheetMetadataTTL         time.Duration

	AMQPURL      string
	AMQPExchange string
}

// LocalType names a local ledger implementation.
type LocalType string

const (
	LocalFile   LocalType = "file"
	LocalSQLite LocalType = "sqlite"
	LocalMemory LocalType = "memory"
)

func (t LocalType) IsValid() bool {
	switch t {
	case LocalFile, LocalSQLite, LocalMemory:
		return true
	default:
		return false
	}
}

// RemoteType names a remote sheet implementation.
type RemoteType string

const (
	RemoteSheets RemoteType = "sheets"
	RemoteMemory RemoteType = "memory"
	RemoteNone   RemoteType = "none"
)

func (t RemoteType) IsValid() bool {
	switch t {
	case RemoteSheets, RemoteMemory, RemoteNone:
		return true
	default:
		return false
	}
}
