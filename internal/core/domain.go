package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const maxDescriptionLen = 200

type (
	// TransactionType is the closed income/expense tag.
	TransactionType string

	// Transaction is one money movement owned by a user.
	Transaction struct {
		ID           string          `json:"id,omitempty"`
		UserID       string          `json:"user_id"`
		Type         TransactionType `json:"type"`
		Amount       float64         `json:"amount"`
		Description  string          `json:"description"`
		CategoryID   CategoryID      `json:"category_id"`
		CategoryName string          `json:"category_name"`
		CreatedAt    time.Time       `json:"created_at"`
	}
)

var (
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCategory    = errors.New("category does not match transaction type")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrMissingOwner       = errors.New("missing owner")
)

// Valid reports whether t is one of the two known tags.
func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// ParseTransactionType accepts "income" or "expense", case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// ValidateAmount rejects zero, negative and non-finite amounts.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// NormalizeDescription trims the text and enforces the length limit.
func NormalizeDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) > maxDescriptionLen {
		return "", ErrDescriptionTooLong
	}
	return s, nil
}

// NewTransaction builds an unsaved transaction, resolving the category name
// from the fixed category table.
func NewTransaction(userID string, typ TransactionType, amount float64, description string, categoryID CategoryID) (Transaction, error) {
	desc, err := NormalizeDescription(description)
	if err != nil {
		return Transaction{}, err
	}
	t := Transaction{
		UserID:      strings.TrimSpace(userID),
		Type:        typ,
		Amount:      amount,
		Description: desc,
		CategoryID:  categoryID,
	}
	if c, ok := LookupCategory(categoryID); ok {
		t.CategoryName = c.Name
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (t Transaction) Validate() error {
	if t.UserID == "" {
		return ErrMissingOwner
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	c, ok := LookupCategory(t.CategoryID)
	if !ok || !c.Allows(t.Type) {
		return ErrInvalidCategory
	}
	return nil
}

// IsIncome is a convenience for presentation code.
func (t Transaction) IsIncome() bool {
	return t.Type == Income
}

// Signed returns the amount with the sign it contributes to the balance.
func (t Transaction) Signed() float64 {
	if t.Type == Income {
		return t.Amount
	}
	return -t.Amount
}
