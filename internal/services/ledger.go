// Package services holds the ledger use cases: adding, editing and listing
// transactions, plus the dashboard and analytics views. Every operation
// takes the caller's auth.Session explicitly.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cashstash/internal/auth"
	"cashstash/internal/cache"
	"cashstash/internal/core"
	applog "cashstash/internal/log"
	"cashstash/internal/storage"
)

const (
	DefaultPageSize    = 5
	LoadMoreStep       = 10
	MaxPageSize        = 100
	DefaultRecent      = 3
	DefaultDisplayName = "CashStasher"
)

type AddInput struct {
	Type        core.TransactionType
	Amount      float64
	Description string
	CategoryID  core.CategoryID
}

// AddResult carries the stored transaction and, for expenses that take the
// balance to the threshold or below, a one-shot warning.
type AddResult struct {
	Transaction core.Transaction        `json:"transaction"`
	Warning     *core.LowBalanceWarning `json:"warning,omitempty"`
}

type UpdateInput struct {
	Amount      float64
	Description string
}

type Page struct {
	Offset int
	Limit  int
}

type PageResult struct {
	Items      []core.Transaction `json:"items"`
	Total      int                `json:"total"`
	NextOffset int                `json:"next_offset"`
	HasMore    bool               `json:"has_more"`
}

// Summary is the dashboard view.
type Summary struct {
	DisplayName string             `json:"display_name"`
	Totals      core.Totals        `json:"totals"`
	Recent      []core.Transaction `json:"recent"`
}

// TransactionService implements the ledger operations.
type TransactionService struct {
	store     storage.TransactionStore
	users     storage.UserStore
	guard     BalanceGuard
	threshold float64
	stats     cache.Cache[core.Stats]
	logger    *applog.Logger

	// gens counts invalidations per user so a Stats computed from records
	// read before a write is never cached after it.
	genMu sync.Mutex
	gens  map[string]uint64
}

type Option func(*TransactionService)

func WithGuard(g BalanceGuard) Option {
	return func(s *TransactionService) { s.guard = g }
}

func WithThreshold(v float64) Option {
	return func(s *TransactionService) { s.threshold = v }
}

// WithStatsCache enables caching of Stats per user.
func WithStatsCache(c cache.Cache[core.Stats]) Option {
	return func(s *TransactionService) { s.stats = c }
}

func NewTransactionService(store storage.TransactionStore, users storage.UserStore, logger *applog.Logger, opts ...Option) *TransactionService {
	if logger == nil {
		logger = applog.Discard()
	}
	s := &TransactionService{
		store:     store,
		users:     users,
		guard:     AdvisoryGuard{},
		threshold: core.LowBalanceThreshold,
		logger:    logger.WithComponent(applog.ComponentLedger),
		gens:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add validates and stores a new transaction. For expenses the current
// balance is read first and a warning is attached when the projected
// balance is at or below the threshold. The warning never blocks the add.
func (s *TransactionService) Add(ctx context.Context, sess *auth.Session, in AddInput) (AddResult, error) {
	if err := auth.Require(sess); err != nil {
		return AddResult{}, err
	}
	tx, err := core.NewTransaction(sess.UserID, in.Type, in.Amount, in.Description, in.CategoryID)
	if err != nil {
		return AddResult{}, fmt.Errorf("add transaction: %w", err)
	}

	var result AddResult
	err = s.guard.Do(ctx, sess.UserID, func(ctx context.Context) error {
		var current float64
		if tx.Type == core.Expense {
			bal, err := s.balance(ctx, sess.UserID)
			if err != nil {
				return err
			}
			current = bal
		}
		saved, err := s.store.Create(ctx, tx)
		if err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		result.Transaction = saved
		result.Warning = core.CheckLowBalance(current, saved, s.threshold)
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	s.invalidate(sess.UserID)

	fields := applog.NewFields().
		WithUser(sess.UserID).
		WithTransaction(result.Transaction.ID, string(tx.Type), tx.Amount, tx.CategoryName).
		WithOperation(applog.OpCreate)
	s.logger.InfoContext(ctx, "Transaction added", fields.ToSlice()...)
	if w := result.Warning; w != nil {
		s.logger.WarnContext(ctx, "Low balance after expense",
			append(fields.ToSlice(), applog.FieldBalance, w.Balance, applog.FieldThreshold, w.Threshold)...)
	}
	return result, nil
}

// Update changes amount and description of one of the caller's
// transactions. Type and category are never touched.
func (s *TransactionService) Update(ctx context.Context, sess *auth.Session, id string, in UpdateInput) (core.Transaction, error) {
	if err := auth.Require(sess); err != nil {
		return core.Transaction{}, err
	}
	if err := core.ValidateAmount(in.Amount); err != nil {
		return core.Transaction{}, err
	}
	desc, err := core.NormalizeDescription(in.Description)
	if err != nil {
		return core.Transaction{}, err
	}
	if _, err := s.owned(ctx, sess, id); err != nil {
		return core.Transaction{}, err
	}
	updated, err := s.store.UpdateFields(ctx, id, in.Amount, desc)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.invalidate(sess.UserID)
	s.logger.InfoContext(ctx, "Transaction updated",
		applog.NewFields().WithUser(sess.UserID).WithOperation(applog.OpUpdate).
			WithTransaction(id, string(updated.Type), updated.Amount, updated.CategoryName).ToSlice()...)
	return updated, nil
}

// Delete removes one of the caller's transactions.
func (s *TransactionService) Delete(ctx context.Context, sess *auth.Session, id string) error {
	if err := auth.Require(sess); err != nil {
		return err
	}
	if _, err := s.owned(ctx, sess, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.invalidate(sess.UserID)
	s.logger.InfoContext(ctx, "Transaction deleted",
		applog.NewFields().WithUser(sess.UserID).WithOperation(applog.OpDelete).ToSlice()...)
	return nil
}

// List returns one page of history, newest first.
func (s *TransactionService) List(ctx context.Context, sess *auth.Session, p Page) (PageResult, error) {
	if err := auth.Require(sess); err != nil {
		return PageResult{}, err
	}
	records, err := s.records(ctx, sess.UserID)
	if err != nil {
		return PageResult{}, err
	}

	offset, limit := p.Offset, p.Limit
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	total := len(records)
	start := min(offset, total)
	end := min(start+limit, total)
	return PageResult{
		Items:      records[start:end],
		Total:      total,
		NextOffset: end,
		HasMore:    end < total,
	}, nil
}

// Recent returns the n newest transactions.
func (s *TransactionService) Recent(ctx context.Context, sess *auth.Session, n int) ([]core.Transaction, error) {
	if n <= 0 {
		n = DefaultRecent
	}
	page, err := s.List(ctx, sess, Page{Limit: n})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Balance is a one-shot read of income minus expense.
func (s *TransactionService) Balance(ctx context.Context, sess *auth.Session) (float64, error) {
	if err := auth.Require(sess); err != nil {
		return 0, err
	}
	return s.balance(ctx, sess.UserID)
}

// Summary loads the profile and the records concurrently.
func (s *TransactionService) Summary(ctx context.Context, sess *auth.Session) (Summary, error) {
	if err := auth.Require(sess); err != nil {
		return Summary{}, err
	}

	var (
		name    string
		records []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.users.UserByID(gctx, sess.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		name = u.FullName
		return nil
	})
	g.Go(func() error {
		var err error
		records, err = s.records(gctx, sess.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	if name == "" {
		name = sess.DisplayName
	}
	if name == "" {
		name = DefaultDisplayName
	}
	recent := records[:min(DefaultRecent, len(records))]
	return Summary{
		DisplayName: name,
		Totals:      core.ComputeTotals(records),
		Recent:      recent,
	}, nil
}

// Stats returns the analytics view, cached per user when a cache is set.
func (s *TransactionService) Stats(ctx context.Context, sess *auth.Session) (core.Stats, error) {
	if err := auth.Require(sess); err != nil {
		return core.Stats{}, err
	}
	if s.stats != nil {
		if st, ok := s.stats.Get(sess.UserID); ok {
			return st, nil
		}
	}
	gen := s.generation(sess.UserID)
	records, err := s.records(ctx, sess.UserID)
	if err != nil {
		return core.Stats{}, err
	}
	st := core.ComputeStats(records)
	s.storeStats(sess.UserID, gen, st)
	return st, nil
}

func (s *TransactionService) generation(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[userID]
}

// storeStats caches st only if no invalidation happened since gen was read.
func (s *TransactionService) storeStats(userID string, gen uint64, st core.Stats) {
	if s.stats == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[userID] == gen {
		s.stats.Set(userID, st)
	}
}

// ChangeSource is the listening half of feed.Notifier.
type ChangeSource interface {
	Listen(userID string) (<-chan core.Change, func())
}

// InvalidateOnChanges drops cached stats for any user whose transactions
// change, including changes made by other instances that reach src. It
// blocks until ctx is done.
func (s *TransactionService) InvalidateOnChanges(ctx context.Context, src ChangeSource) {
	changes, cancel := src.Listen("")
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-changes:
			s.invalidate(c.UserID)
		}
	}
}

func (s *TransactionService) invalidate(userID string) {
	if s.stats == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gens[userID]++
	s.stats.Delete(userID)
}

// owned loads id and hides records of other users behind ErrNotFound.
func (s *TransactionService) owned(ctx context.Context, sess *auth.Session, id string) (core.Transaction, error) {
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Transaction{}, storage.ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("load transaction: %w", err)
	}
	if tx.UserID != sess.UserID {
		return core.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (s *TransactionService) records(ctx context.Context, userID string) ([]core.Transaction, error) {
	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return records, nil
}

func (s *TransactionService) balance(ctx context.Context, userID string) (float64, error) {
	records, err := s.records(ctx, userID)
	if err != nil {
		return 0, err
	}
	return core.ComputeTotals(records).Balance, nil
}

// StatsTTL bounds how long a cached stats entry may outlive an invalidation
// that never reached this instance.
const StatsTTL = 30 * time.Second
