package storage

import (
	"context"

	"cashstash/internal/core"
	applog "cashstash/internal/log"
)

// ChangePublisher receives a notification after every successful write.
type ChangePublisher interface {
	Publish(ctx context.Context, c core.Change) error
}

// Observed wraps a TransactionStore and publishes a core.Change after each
// successful write. This is what keeps feed subscriptions live.
type Observed struct {
	TransactionStore
	pub    ChangePublisher
	logger *applog.Logger
}

func NewObserved(inner TransactionStore, pub ChangePublisher, logger *applog.Logger) *Observed {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Observed{
		TransactionStore: inner,
		pub:              pub,
		logger:           logger.WithComponent(applog.ComponentStorage),
	}
}

func (o *Observed) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, err := o.TransactionStore.Create(ctx, tx)
	if err != nil {
		return saved, err
	}
	o.publish(ctx, core.NewChange(core.ChangeCreated, saved))
	return saved, nil
}

func (o *Observed) UpdateFields(ctx context.Context, id string, amount float64, description string) (core.Transaction, error) {
	updated, err := o.TransactionStore.UpdateFields(ctx, id, amount, description)
	if err != nil {
		return updated, err
	}
	o.publish(ctx, core.NewChange(core.ChangeUpdated, updated))
	return updated, nil
}

func (o *Observed) Delete(ctx context.Context, id string) error {
	existing, err := o.TransactionStore.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := o.TransactionStore.Delete(ctx, id); err != nil {
		return err
	}
	o.publish(ctx, core.NewChange(core.ChangeDeleted, existing))
	return nil
}

// publish never fails the write: the document is already stored.
func (o *Observed) publish(ctx context.Context, c core.Change) {
	if o.pub == nil {
		return
	}
	if err := o.pub.Publish(ctx, c); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish change",
			applog.NewFields().
				WithUser(c.UserID).
				WithError(err).
				WithOperation(applog.OpPublish).
				ToSlice()...)
	}
}
