package core

// LowBalanceThreshold is the projected balance at or below which adding an
// expense produces a warning.
const LowBalanceThreshold = 1000.0

// LowBalanceWarning is the one-shot advisory attached to an Add result.
type LowBalanceWarning struct {
	Balance   float64 `json:"balance"`
	Threshold float64 `json:"threshold"`
}

// ProjectBalance returns the balance after applying tx to current.
func ProjectBalance(current float64, tx Transaction) float64 {
	return current + tx.Signed()
}

// CheckLowBalance returns a warning when tx is an expense that takes the
// balance to threshold or below. Income never warns.
func CheckLowBalance(current float64, tx Transaction, threshold float64) *LowBalanceWarning {
	if tx.Type != Expense {
		return nil
	}
	projected := ProjectBalance(current, tx)
	if projected > threshold {
		return nil
	}
	return &LowBalanceWarning{Balance: projected, Threshold: threshold}
}
