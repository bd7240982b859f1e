// Package sheets is the outbound port to the remote spreadsheet ledger.
//
// The remote ledger is best-effort: connecting never fails loudly, it yields
// an Unavailable connection, and callers treat any session error as the
// remote being unavailable for that operation.
package sheets

import "context"

// Header is the first row of the remote ledger.
var Header = []string{"Date", "Amount", "Reason", "Timestamp"}

type (
	// Row maps header names to cell values (string or number).
	Row map[string]any

	// Session is a live handle to one worksheet.
	Session interface {
		// ReadAll returns every data row below the header, in sheet order.
		ReadAll(ctx context.Context) ([]Row, error)
		// Append adds one row after the last row holding values.
		Append(ctx context.Context, values []any) error
		// DeleteRow removes the 1-based row at position. Positions past the
		// last row are a no-op.
		DeleteRow(ctx context.Context, position int) error
		// RowCount is the number of rows holding values, header included.
		RowCount(ctx context.Context) (int, error)
	}

	// Connector opens sessions against the remote ledger.
	Connector interface {
		Connect(ctx context.Context) Connection
	}
)

// Connection is either a live session or the reason none is available.
type Connection struct {
	session Session
	reason  string
}

func Connected(s Session) Connection {
	return Connection{session: s}
}

func Unavailable(reason string) Connection {
	if reason == "" {
		reason = "remote ledger unavailable"
	}
	return Connection{reason: reason}
}

// Session returns the live session, if any.
func (c Connection) Session() (Session, bool) {
	return c.session, c.session != nil
}

// Reason explains an unavailable connection. It is empty when connected.
func (c Connection) Reason() string {
	return c.reason
}

// Disabled is a Connector for deployments without a remote ledger.
type Disabled struct{}

func (Disabled) Connect(context.Context) Connection {
	return Unavailable("remote ledger disabled")
}
