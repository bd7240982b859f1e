package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kharcha/internal/amqp"
	"kharcha/internal/cache"
	"kharcha/internal/ledger"
	"kharcha/internal/ledger/file"
	ledgermem "kharcha/internal/ledger/memory"
	"kharcha/internal/log"
	"kharcha/internal/sheets"
	"kharcha/internal/sheets/google"
	sheetmem "kharcha/internal/sheets/memory"
	"kharcha/internal/storage"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentBackend, Handler: slog.Default().Handler()})
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create builds every backend. An AMQP broker that cannot be reached is
// logged and skipped.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var closers []func() error
	res := &Result{}

	local, closeLocal, err := f.createLocal(config)
	if err != nil {
		return nil, err
	}
	res.Local = local
	if closeLocal != nil {
		closers = append(closers, closeLocal)
	}

	res.Remote, res.Cleaners = f.createRemote(config)

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
				log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client", "exchange", config.AMQPExchange)
			res.Events = client
			closers = append(closers, client.Close)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	f.logger.InfoContext(ctx, "Initialized backends",
		"local", config.Local,
		"remote", config.Remote,
		"events_enabled", res.Events != nil)
	return res, nil
}

func (f *DefaultFactory) createLocal(config Config) (ledger.Store, func() error, error) {
	switch config.Local {
	case LocalFile:
		return file.New(config.LedgerFile), nil, nil
	case LocalSQLite:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		return repo, repo.Close, nil
	case LocalMemory:
		return ledgermem.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported local backend: %s", config.Local)
	}
}

func (f *DefaultFactory) createRemote(config Config) (sheets.Connector, []cache.Cleaner) {
	switch config.Remote {
	case RemoteSheets:
		c := google.NewConnector(google.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetName:       config.GoogleSheetName,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
			MetadataTTL:     config.SheetMetadataTTL,
		}, f.logger.WithComponent(log.ComponentSheets))
		return c, []cache.Cleaner{c.MetadataCache()}
	case RemoteMemory:
		return sheetmem.New(), nil
	default:
		return sheets.Disabled{}, nil
	}
}
