// Package worker consumes the change stream and mirrors it into the
// spreadsheet ledger.
package worker

import (
	"context"
	"fmt"
	"time"

	"cashstash/internal/cache"
	"cashstash/internal/core"
	applog "cashstash/internal/log"
	"cashstash/internal/sheets"
)

const (
	// redeliveries within this window are recognised and skipped
	dedupeWindow = time.Hour
	dedupeSize   = 10000
)

// MirrorWorker appends each change it is handed to a LedgerWriter.
type MirrorWorker struct {
	writer sheets.LedgerWriter
	seen   *cache.LRUCache[string]
	logger *applog.Logger
}

func NewMirrorWorker(writer sheets.LedgerWriter, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &MirrorWorker{
		writer: writer,
		seen:   cache.NewLRUCache[string](dedupeSize, dedupeWindow),
		logger: logger.WithComponent(applog.ComponentWorker),
	}
}

// Cache exposes the dedupe cache so the caller can register it for cleanup.
func (w *MirrorWorker) Cache() cache.Cleaner {
	return w.seen
}

func changeKey(c core.Change) string {
	return fmt.Sprintf("%s|%s|%s|%d", c.UserID, c.TransactionID, c.Op, c.At.UnixNano())
}

// HandleChange mirrors c. An error makes the consumer requeue the message.
func (w *MirrorWorker) HandleChange(ctx context.Context, c core.Change) error {
	key := changeKey(c)
	fields := applog.NewFields().
		WithUser(c.UserID).
		WithOperation(applog.OpAppend).
		WithChange(c.TransactionID, string(c.Op))

	if ref, dup := w.seen.Get(key); dup {
		w.logger.DebugContext(ctx, "Skipping redelivered change", append(fields.ToSlice(), applog.FieldSheetsRange, ref)...)
		return nil
	}

	ref, err := w.writer.AppendChange(ctx, c)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror change", fields.WithError(err).ToSlice()...)
		return fmt.Errorf("append change: %w", err)
	}
	w.seen.Set(key, ref)

	w.logger.InfoContext(ctx, "Mirrored change", append(fields.ToSlice(), applog.FieldSheetsRange, ref)...)
	return nil
}
