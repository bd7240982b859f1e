package backend

import (
	"errors"
	"fmt"

	"kharcha/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	c := Config{
		Local:  LocalType(appConfig.LocalBackend),
		Remote: RemoteType(appConfig.RemoteBackend),

		LedgerFile:   appConfig.LedgerFile,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		SheetMetadataTTL:         appConfig.SheetMetadataTTL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
	}
	return c, c.Validate()
}

// Validate checks that the selected backends have what they need. A sheets
// remote without a spreadsheet id is valid; it connects as unavailable.
func (c Config) Validate() error {
	if !c.Local.IsValid() {
		return fmt.Errorf("invalid local backend: %s", c.Local)
	}
	if !c.Remote.IsValid() {
		return fmt.Errorf("invalid remote backend: %s", c.Remote)
	}

	switch c.Local {
	case LocalFile:
		if c.LedgerFile == "" {
			return errors.New("ledger file path is required for file backend")
		}
	case LocalSQLite:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	}
	return nil
}
