package core

import "time"

// ChangeOp names the kind of write that produced a Change.
type ChangeOp string

const (
	ChangeCreated ChangeOp = "created"
	ChangeUpdated ChangeOp = "updated"
	ChangeDeleted ChangeOp = "deleted"
)

// Change notifies listeners that a user's transaction set was modified.
// Transaction carries the record after the write (before it, for deletes).
type Change struct {
	UserID        string       `json:"user_id"`
	TransactionID string       `json:"transaction_id"`
	Op            ChangeOp     `json:"op"`
	At            time.Time    `json:"at"`
	Transaction   *Transaction `json:"transaction,omitempty"`
}

// NewChange builds a Change for tx stamped with the current time.
func NewChange(op ChangeOp, tx Transaction) Change {
	t := tx
	return Change{
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		Op:            op,
		At:            time.Now().UTC(),
		Transaction:   &t,
	}
}
