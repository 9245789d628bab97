package core

const (
	// NoTopCategory is reported when there are no expenses to rank.
	NoTopCategory = "None"

	// StatsWindowDays is the divisor used for the daily spending average.
	StatsWindowDays = 30
)

// Totals holds the derived income/expense/balance figures.
type Totals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Breakdown is the expense total per category, in the order categories were
// first encountered.
type Breakdown []CategoryAmount

// Snapshot is the full, freshly recomputed view of a user's transactions.
type Snapshot struct {
	Transactions []Transaction `json:"transactions"`
	Totals       Totals        `json:"totals"`
}

// Stats is the analytics view.
type Stats struct {
	Totals       Totals    `json:"totals"`
	Breakdown    Breakdown `json:"breakdown"`
	TopCategory  string    `json:"top_category"`
	SavingsRatio float64   `json:"savings_ratio"`
	DailyAverage float64   `json:"daily_average"`
}

// ComputeTotals folds records into income, expense and balance.
func ComputeTotals(records []Transaction) Totals {
	var t Totals
	for _, r := range records {
		switch r.Type {
		case Income:
			t.Income += r.Amount
		case Expense:
			t.Expense += r.Amount
		}
	}
	t.Balance = t.Income - t.Expense
	return t
}

// CategoryBreakdown sums expense amounts per category name. Income records
// are ignored.
func CategoryBreakdown(records []Transaction) Breakdown {
	idx := make(map[string]int)
	var out Breakdown
	for _, r := range records {
		if r.Type != Expense {
			continue
		}
		i, ok := idx[r.CategoryName]
		if !ok {
			idx[r.CategoryName] = len(out)
			out = append(out, CategoryAmount{Name: r.CategoryName})
			i = len(out) - 1
		}
		out[i].Amount += r.Amount
	}
	return out
}

// Total is the sum of all category amounts.
func (b Breakdown) Total() float64 {
	var sum float64
	for _, c := range b {
		sum += c.Amount
	}
	return sum
}

// Top returns the category with the largest amount. Ties keep the category
// encountered first.
func (b Breakdown) Top() (string, bool) {
	if len(b) == 0 {
		return NoTopCategory, false
	}
	best := b[0]
	for _, c := range b[1:] {
		if c.Amount > best.Amount {
			best = c
		}
	}
	return best.Name, true
}

// AsMap returns the breakdown keyed by category name.
func (b Breakdown) AsMap() map[string]float64 {
	m := make(map[string]float64, len(b))
	for _, c := range b {
		m[c.Name] = c.Amount
	}
	return m
}

// NewSnapshot pairs records with their totals. The slice is used as is.
func NewSnapshot(records []Transaction) Snapshot {
	if records == nil {
		records = []Transaction{}
	}
	return Snapshot{
		Transactions: records,
		Totals:       ComputeTotals(records),
	}
}

// ComputeStats derives the analytics view from records.
func ComputeStats(records []Transaction) Stats {
	totals := ComputeTotals(records)
	breakdown := CategoryBreakdown(records)
	if breakdown == nil {
		breakdown = Breakdown{}
	}
	top, _ := breakdown.Top()
	return Stats{
		Totals:       totals,
		Breakdown:    breakdown,
		TopCategory:  top,
		SavingsRatio: SavingsRatio(totals),
		DailyAverage: totals.Expense / StatsWindowDays,
	}
}

// SavingsRatio is the share of income not spent, as a percentage clamped to
// [0, 100]. Without income it is 0.
func SavingsRatio(t Totals) float64 {
	if t.Income <= 0 {
		return 0
	}
	r := (t.Income - t.Expense) / t.Income * 100
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	default:
		return r
	}
}
