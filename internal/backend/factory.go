package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cashstash/internal/amqp"
	"cashstash/internal/auth"
	"cashstash/internal/config"
	"cashstash/internal/feed"
	applog "cashstash/internal/log"
	"cashstash/internal/services"
	"cashstash/internal/storage"
	"cashstash/internal/storage/badgerdb"
	"cashstash/internal/storage/memory"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend opens the store, connects the optional broker and picks the
// balance guard. A broker that cannot be reached is logged and skipped. Redis
// is required for the locked guard and for a connected broker; if it cannot
// be reached that is an error.
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(cfg)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		Store: store,
		Hub:   feed.NewHub(),
		Guard: services.AdvisoryGuard{},
	}
	closers := []func() error{store.Close}
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	if p, ok := store.(pinger); ok {
		b.Ready = append(b.Ready, p.Ping)
	}

	var pub storage.ChangePublisher = b.Hub
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, keeping changes in process", "error", err)
		} else {
			b.broker = client
			pub = amqp.NewFallbackPublisher(client, b.Hub, f.logger)
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}
	b.Transactions = storage.NewObserved(store, pub, f.logger)

	// Logouts must hold on every instance, so a broker-connected backend
	// keeps revocations in Redis next to the balance lock.
	b.Revocations = auth.NewMemoryRevocations()
	if cfg.BalanceGuard == config.GuardLocked || b.broker != nil {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			_ = cleanup()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		closers = append(closers, rdb.Close)
		b.Ready = append(b.Ready, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		if cfg.BalanceGuard == config.GuardLocked {
			b.Guard = services.NewLockGuard(rdb, f.logger)
		}
		if b.broker != nil {
			b.Revocations = auth.NewRedisRevocations(rdb)
		}
	}

	f.logger.Info("Initialized backend",
		"backend", cfg.Type.String(),
		"amqp_enabled", b.broker != nil,
		"balance_guard", cfg.BalanceGuard,
		"shared_revocations", b.broker != nil)

	return &BackendResult{Backend: b, Cleanup: cleanup}, nil
}

func (f *DefaultFactory) openStore(cfg Config) (storage.Store, error) {
	switch cfg.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Opened SQLite store", "db_path", cfg.SQLiteDBPath)
		return repo, nil
	case BadgerBackend:
		db, err := badgerdb.Open(cfg.BadgerDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		f.logger.Info("Opened badger store", "dir", cfg.BadgerDir)
		return db, nil
	case MemoryBackend:
		f.logger.Info("Using in-memory store")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
