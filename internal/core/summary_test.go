package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tx(typ TransactionType, amount float64, cat CategoryID) Transaction {
	c, _ := LookupCategory(cat)
	return Transaction{UserID: "u1", Type: typ, Amount: amount, CategoryID: cat, CategoryName: c.Name}
}

func TestComputeTotals_Scenario(t *testing.T) {
	records := []Transaction{
		tx(Income, 5000, CatSalary),
		tx(Expense, 1200, CatFoodDrinks),
		tx(Expense, 300, CatFoodDrinks),
	}

	totals := ComputeTotals(records)
	assert.Equal(t, Totals{Income: 5000, Expense: 1500, Balance: 3500}, totals)

	breakdown := CategoryBreakdown(records)
	assert.Equal(t, map[string]float64{"Food & Drinks": 1500}, breakdown.AsMap())
}

func TestComputeTotals_Properties(t *testing.T) {
	records := []Transaction{
		tx(Expense, 250, CatTransport),
		tx(Income, 1000, CatFreelance),
		tx(Expense, 125.5, CatShopping),
		tx(Income, 64.25, CatGifts),
		tx(Expense, 8, CatTransport),
	}

	first := ComputeTotals(records)
	assert.Equal(t, first.Income-first.Expense, first.Balance)
	assert.Equal(t, first, ComputeTotals(records), "totals must be idempotent")

	reversed := make([]Transaction, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}
	assert.Equal(t, first, ComputeTotals(reversed), "totals must not depend on order")

	breakdown := CategoryBreakdown(records)
	assert.Equal(t, first.Expense, breakdown.Total())
	for _, c := range breakdown {
		assert.NotContains(t, []string{"Freelance", "Gifts"}, c.Name, "income must be excluded")
	}
	assert.Equal(t, []string{"Transport", "Shopping"}, []string{breakdown[0].Name, breakdown[1].Name})
}

func TestComputeTotals_Empty(t *testing.T) {
	assert.Equal(t, Totals{}, ComputeTotals(nil))
	assert.Empty(t, CategoryBreakdown(nil))

	top, ok := CategoryBreakdown(nil).Top()
	assert.False(t, ok)
	assert.Equal(t, NoTopCategory, top)
}

func TestBreakdownTop(t *testing.T) {
	tests := []struct {
		name string
		b    Breakdown
		want string
	}{
		{"single", Breakdown{{"Food & Drinks", 10}}, "Food & Drinks"},
		{"largest wins", Breakdown{{"Transport", 10}, {"Rent/Bills", 90}, {"Shopping", 20}}, "Rent/Bills"},
		{"tie keeps first", Breakdown{{"Transport", 50}, {"Shopping", 50}}, "Transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.b.Top()
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats([]Transaction{
		tx(Income, 4000, CatSalary),
		tx(Expense, 900, CatRentBills),
		tx(Expense, 300, CatEducation),
	})

	assert.Equal(t, "Rent/Bills", stats.TopCategory)
	assert.InDelta(t, 70.0, stats.SavingsRatio, 1e-9)
	assert.InDelta(t, 40.0, stats.DailyAverage, 1e-9)
	assert.Len(t, stats.Breakdown, 2)
}

func TestSavingsRatio(t *testing.T) {
	tests := []struct {
		name   string
		totals Totals
		want   float64
	}{
		{"no income", Totals{Expense: 100}, 0},
		{"overspent clamps to zero", Totals{Income: 100, Expense: 300}, 0},
		{"half saved", Totals{Income: 200, Expense: 100}, 50},
		{"nothing spent", Totals{Income: 200}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SavingsRatio(tt.totals))
		})
	}
}

func TestNewSnapshot(t *testing.T) {
	snap := NewSnapshot(nil)
	assert.NotNil(t, snap.Transactions)
	assert.Equal(t, Totals{}, snap.Totals)
}
