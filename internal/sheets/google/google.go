// Package google implements the remote ledger on Google Sheets API v4.
package google

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"kharcha/internal/cache"
	"kharcha/internal/log"
	"kharcha/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string // empty selects the first worksheet
	CredentialsJSON string
	CredentialsFile string
	MetadataTTL     time.Duration
}

type sheetMeta struct {
	id    int64
	title string
}

// Connector opens sheet sessions. Credentials are resolved on every Connect
// so a credentials file dropped in after startup is picked up.
type Connector struct {
	cfg        Config
	meta       *cache.LRUCache[sheetMeta]
	logger     *log.Logger
	newService func(ctx context.Context, credentials []byte) (*gsheet.Service, error)
}

var _ sheets.Connector = (*Connector)(nil)

func NewConnector(cfg Config, logger *log.Logger) *Connector {
	if cfg.MetadataTTL <= 0 {
		cfg.MetadataTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentSheets, Handler: slog.Default().Handler()})
	}
	return &Connector{
		cfg:        cfg,
		meta:       cache.NewLRUCache[sheetMeta](16, cfg.MetadataTTL),
		logger:     logger,
		newService: newSheetsService,
	}
}

// MetadataCache exposes the worksheet metadata cache for periodic cleanup.
func (c *Connector) MetadataCache() cache.Cleaner {
	return c.meta
}

// Connect implements sheets.Connector. Failures yield an unavailable
// connection and are logged at warn level.
func (c *Connector) Connect(ctx context.Context) sheets.Connection {
	if strings.TrimSpace(c.cfg.SpreadsheetID) == "" {
		return sheets.Unavailable("missing spreadsheet id")
	}

	creds, err := c.credentials()
	if err != nil {
		c.logger.WarnContext(ctx, "Remote ledger credentials unavailable",
			log.FieldOperation, log.OpConnect, log.FieldError, err)
		return sheets.Unavailable(err.Error())
	}

	svc, err := c.newService(ctx, creds)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to create sheets service",
			log.FieldOperation, log.OpConnect, log.FieldError, err)
		return sheets.Unavailable(fmt.Sprintf("sheets service: %v", err))
	}

	meta, err := c.resolveSheet(ctx, svc)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to open remote worksheet",
			log.FieldOperation, log.OpConnect, log.FieldError, err)
		return sheets.Unavailable(fmt.Sprintf("open worksheet: %v", err))
	}

	return sheets.Connected(&session{
		svc:           svc,
		spreadsheetID: c.cfg.SpreadsheetID,
		meta:          meta,
	})
}

// credentials returns service account JSON from, in order: inline JSON, the
// configured file, the GOOGLE_APPLICATION_CREDENTIALS file.
func (c *Connector) credentials() ([]byte, error) {
	if js := strings.TrimSpace(c.cfg.CredentialsJSON); js != "" {
		return []byte(js), nil
	}

	paths := []string{
		strings.TrimSpace(c.cfg.CredentialsFile),
		strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

func newSheetsService(ctx context.Context, credentials []byte) (*gsheet.Service, error) {
	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// resolveSheet finds the configured worksheet, or the first one, and caches
// its title and numeric id.
func (c *Connector) resolveSheet(ctx context.Context, svc *gsheet.Service) (sheetMeta, error) {
	key := c.cfg.SpreadsheetID + "|" + c.cfg.SheetName
	if m, ok := c.meta.Get(key); ok {
		return m, nil
	}

	ss, err := svc.Spreadsheets.Get(c.cfg.SpreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).Do()
	if err != nil {
		return sheetMeta{}, fmt.Errorf("get spreadsheet %s: %w", c.cfg.SpreadsheetID, err)
	}

	m, err := pickSheet(ss.Sheets, c.cfg.SheetName)
	if err != nil {
		return sheetMeta{}, err
	}
	c.meta.Set(key, m)
	return m, nil
}

func pickSheet(list []*gsheet.Sheet, name string) (sheetMeta, error) {
	name = strings.TrimSpace(name)
	for _, s := range list {
		if s == nil || s.Properties == nil {
			continue
		}
		if name == "" || s.Properties.Title == name {
			return sheetMeta{id: s.Properties.SheetId, title: s.Properties.Title}, nil
		}
	}
	if name == "" {
		return sheetMeta{}, errors.New("spreadsheet has no worksheets")
	}
	return sheetMeta{}, fmt.Errorf("worksheet %q not found", name)
}

type session struct {
	svc           *gsheet.Service
	spreadsheetID string
	meta          sheetMeta
}

var _ sheets.Session = (*session)(nil)

// a1 returns an A1 range over every column of the worksheet.
func (s *session) a1() string {
	return fmt.Sprintf("'%s'!A:Z", strings.ReplaceAll(s.meta.title, "'", "''"))
}

func (s *session) values(ctx context.Context) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.a1()).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.a1(), err)
	}
	return resp.Values, nil
}

func (s *session) ReadAll(ctx context.Context) ([]sheets.Row, error) {
	values, err := s.values(ctx)
	if err != nil {
		return nil, err
	}
	return sheets.RowsFromValues(values), nil
}

func (s *session) RowCount(ctx context.Context) (int, error) {
	values, err := s.values(ctx)
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

func (s *session) Append(ctx context.Context, row []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.a1(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", s.a1(), err)
	}
	return nil
}

func (s *session) DeleteRow(ctx context.Context, position int) error {
	if position < 1 {
		return nil
	}
	n, err := s.RowCount(ctx)
	if err != nil {
		return err
	}
	if position > n {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         s.meta.id,
					Dimension:       "ROWS",
					StartIndex:      int64(position - 1),
					EndIndex:        int64(position),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", position, err)
	}
	return nil
}
