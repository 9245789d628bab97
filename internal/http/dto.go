package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"cashstash/internal/auth"
	"cashstash/internal/core"
)

// Palette for the analytics pie; slices take colors by index.
var piePalette = []string{"#1A4D2E", "#4F6F52", "#739072", "#86A789", "#D2E3C8"}

// AmountField accepts an amount as a JSON number or string; the text is
// parsed with core.ParseAmount.
type AmountField string

func (a *AmountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AmountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or numeric string")
	}
	*a = AmountField(n.String())
	return nil
}

func (a AmountField) Parse() (float64, error) {
	return core.ParseAmount(string(a))
}

type RegisterRequest struct {
	FullName        string `json:"fullname" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	FullName string `json:"fullname" validate:"required,max=100"`
}

type CreateTransactionRequest struct {
	Type        string      `json:"type" validate:"required,oneof=income expense"`
	Amount      AmountField `json:"amount" validate:"required"`
	Description string      `json:"description" validate:"max=200"`
	CategoryID  string      `json:"category_id"`
}

type UpdateTransactionRequest struct {
	Amount      AmountField `json:"amount" validate:"required"`
	Description string      `json:"description" validate:"max=200"`
}

// SessionResponse is returned by register, login and profile calls.
type SessionResponse struct {
	Token       string    `json:"token,omitempty"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func newSessionResponse(s *auth.Session, withToken bool) SessionResponse {
	resp := SessionResponse{
		UserID:      s.UserID,
		DisplayName: s.DisplayName,
		Email:       s.Email,
		ExpiresAt:   s.ExpiresAt,
	}
	if withToken {
		resp.Token = s.Token
	}
	return resp
}

// TransactionResponse adds display strings to a stored transaction.
type TransactionResponse struct {
	core.Transaction
	Display string `json:"display_amount"`
	Icon    string `json:"icon"`
}

func newTransactionResponse(t core.Transaction) TransactionResponse {
	resp := TransactionResponse{Transaction: t, Display: core.FormatLKR(t.Signed())}
	if c, ok := core.LookupCategory(t.CategoryID); ok {
		resp.Icon = c.Icon
	}
	return resp
}

func newTransactionResponses(ts []core.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, newTransactionResponse(t))
	}
	return out
}

type CreateTransactionResponse struct {
	Transaction TransactionResponse    `json:"transaction"`
	Warning     *LowBalanceWarningBody `json:"warning,omitempty"`
}

type LowBalanceWarningBody struct {
	Message   string  `json:"message"`
	Balance   float64 `json:"balance"`
	Threshold float64 `json:"threshold"`
}

func newWarningBody(w *core.LowBalanceWarning) *LowBalanceWarningBody {
	if w == nil {
		return nil
	}
	return &LowBalanceWarningBody{
		Message:   fmt.Sprintf("Low balance: %s remaining.", core.FormatLKR(w.Balance)),
		Balance:   w.Balance,
		Threshold: w.Threshold,
	}
}

type ListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int                   `json:"total"`
	NextOffset int                   `json:"next_offset"`
	HasMore    bool                  `json:"has_more"`
}

type TotalsResponse struct {
	core.Totals
	IncomeDisplay  string `json:"income_display"`
	ExpenseDisplay string `json:"expense_display"`
	BalanceDisplay string `json:"balance_display"`
}

func newTotalsResponse(t core.Totals) TotalsResponse {
	return TotalsResponse{
		Totals:         t,
		IncomeDisplay:  core.FormatLKR(t.Income),
		ExpenseDisplay: core.FormatLKR(t.Expense),
		BalanceDisplay: core.FormatLKR(t.Balance),
	}
}

type SummaryResponse struct {
	DisplayName string                `json:"display_name"`
	Totals      TotalsResponse        `json:"totals"`
	Recent      []TransactionResponse `json:"recent"`
}

type BalanceResponse struct {
	Balance float64 `json:"balance"`
	Display string  `json:"display"`
}

// PieSlice is one category of the analytics chart.
type PieSlice struct {
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
	Color   string  `json:"color"`
}

type StatsResponse struct {
	Totals       TotalsResponse `json:"totals"`
	TopCategory  string         `json:"top_category"`
	SavingsRatio float64        `json:"savings_ratio"`
	DailyAverage float64        `json:"daily_average"`
	Pie          []PieSlice     `json:"pie"`
}

func newStatsResponse(s core.Stats) StatsResponse {
	total := s.Breakdown.Total()
	pie := make([]PieSlice, 0, len(s.Breakdown))
	for i, c := range s.Breakdown {
		var pct float64
		if total > 0 {
			pct = c.Amount / total * 100
		}
		pie = append(pie, PieSlice{
			Name:    c.Name,
			Amount:  c.Amount,
			Percent: pct,
			Color:   piePalette[i%len(piePalette)],
		})
	}
	return StatsResponse{
		Totals:       newTotalsResponse(s.Totals),
		TopCategory:  s.TopCategory,
		SavingsRatio: s.SavingsRatio,
		DailyAverage: s.DailyAverage,
		Pie:          pie,
	}
}

// FeedMessage is one websocket frame of the live feed.
type FeedMessage struct {
	Type         string                `json:"type"`
	Transactions []TransactionResponse `json:"transactions,omitempty"`
	Totals       *TotalsResponse       `json:"totals,omitempty"`
	Error        string                `json:"error,omitempty"`
}

func newSnapshotMessage(s core.Snapshot) FeedMessage {
	totals := newTotalsResponse(s.Totals)
	return FeedMessage{
		Type:         "snapshot",
		Transactions: newTransactionResponses(s.Transactions),
		Totals:       &totals,
	}
}
