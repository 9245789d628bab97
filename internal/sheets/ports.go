// Package sheets mirrors the change stream into a spreadsheet ledger.
package sheets

import (
	"context"
	"time"

	"cashstash/internal/core"
)

// LedgerWriter appends one row per change.
type LedgerWriter interface {
	AppendChange(ctx context.Context, c core.Change) (rowRef string, err error)
}

// Header names the mirror columns in order.
var Header = []any{"timestamp", "user", "op", "id", "type", "category", "amount", "description"}

// Row renders c in Header order. Deletes carry the transaction when the
// publisher still had it.
func Row(c core.Change) []any {
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}
	row := []any{at.UTC().Format(time.RFC3339), c.UserID, string(c.Op), c.TransactionID, "", "", "", ""}
	if tx := c.Transaction; tx != nil {
		row[4] = string(tx.Type)
		row[5] = tx.CategoryName
		row[6] = tx.Signed()
		row[7] = tx.Description
	}
	return row
}
