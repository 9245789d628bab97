package memory

import (
	"context"
	"fmt"
	"sync"

	"cashstash/internal/core"
	"cashstash/internal/sheets"
)

// Store keeps mirrored rows in memory. Used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu   sync.Mutex
	rows [][]any
}

var _ sheets.LedgerWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendChange stores the row and returns a synthetic row reference.
func (s *Store) AppendChange(_ context.Context, c core.Change) (string, error) {
	if c.UserID == "" {
		return "", core.ErrMissingOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, sheets.Row(c))
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	copy(out, s.rows)
	return out
}
