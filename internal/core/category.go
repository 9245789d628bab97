package core

// CategoryID identifies an entry of the fixed category table.
type CategoryID string

// Category is a fixed label attached to a transaction. Each category belongs
// to exactly one TransactionType.
type Category struct {
	ID   CategoryID      `json:"id"`
	Name string          `json:"name"`
	Icon string          `json:"icon"`
	Type TransactionType `json:"type"`
}

const (
	CatSalary      CategoryID = "inc-1"
	CatInvestments CategoryID = "inc-2"
	CatGifts       CategoryID = "inc-3"
	CatRefunds     CategoryID = "inc-4"
	CatScholarship CategoryID = "inc-5"
	CatFreelance   CategoryID = "inc-6"

	CatFoodDrinks    CategoryID = "exp-1"
	CatTransport     CategoryID = "exp-2"
	CatShopping      CategoryID = "exp-3"
	CatRentBills     CategoryID = "exp-4"
	CatEntertainment CategoryID = "exp-5"
	CatEducation     CategoryID = "exp-6"
)

var categories = [...]Category{
	{ID: CatSalary, Name: "Salary", Icon: "cash-outline", Type: Income},
	{ID: CatInvestments, Name: "Investments", Icon: "trending-up-outline", Type: Income},
	{ID: CatGifts, Name: "Gifts", Icon: "gift-outline", Type: Income},
	{ID: CatRefunds, Name: "Refunds", Icon: "refresh-circle-outline", Type: Income},
	{ID: CatScholarship, Name: "Scholarship", Icon: "school-outline", Type: Income},
	{ID: CatFreelance, Name: "Freelance", Icon: "laptop-outline", Type: Income},
	{ID: CatFoodDrinks, Name: "Food & Drinks", Icon: "fast-food-outline", Type: Expense},
	{ID: CatTransport, Name: "Transport", Icon: "bus-outline", Type: Expense},
	{ID: CatShopping, Name: "Shopping", Icon: "cart-outline", Type: Expense},
	{ID: CatRentBills, Name: "Rent/Bills", Icon: "home-outline", Type: Expense},
	{ID: CatEntertainment, Name: "Entertainment", Icon: "film-outline", Type: Expense},
	{ID: CatEducation, Name: "Education", Icon: "book-outline", Type: Expense},
}

var categoryIndex = func() map[CategoryID]Category {
	m := make(map[CategoryID]Category, len(categories))
	for _, c := range categories {
		m[c.ID] = c
	}
	return m
}()

// Categories returns the full table in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories[:])
	return out
}

// CategoriesFor returns the half of the table valid for t.
func CategoriesFor(t TransactionType) []Category {
	var out []Category
	for _, c := range categories {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// LookupCategory finds a category by id in the fixed table.
func LookupCategory(id CategoryID) (Category, bool) {
	c, ok := categoryIndex[id]
	return c, ok
}

// DefaultCategory is the preselected category for a type: the first entry of
// its half of the table.
func DefaultCategory(t TransactionType) Category {
	if t == Income {
		return categoryIndex[CatSalary]
	}
	return categoryIndex[CatFoodDrinks]
}

// Allows reports whether c may be attached to a transaction of type t.
func (c Category) Allows(t TransactionType) bool {
	return c.Type == t
}
