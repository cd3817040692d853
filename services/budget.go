package services

import (
	"fmt"
	"math"
	"sync"
	"time"

	"trends-backend/metrics"
	"trends-backend/models"
)

// Reservation is budget held for one in-flight LLM call
type Reservation struct {
	amount float64
	month  string
}

// Amount returns the reserved cost in EUR
func (r Reservation) Amount() float64 {
	return r.amount
}

// BudgetTracker enforces the monthly LLM spending ceiling. Spend is reserved
// before a call and committed or released after it, all under one lock, so
// spent+reserved never exceeds the budget.
type BudgetTracker struct {
	mu             sync.Mutex
	budget         float64
	costPerMillion float64
	month          string
	spent          float64
	reserved       float64
	now            func() time.Time
}

// NewBudgetTracker starts the current month with initialSpent already charged
func NewBudgetTracker(monthlyBudget, costPerMillionTokens, initialSpent float64, now func() time.Time) *BudgetTracker {
	if now == nil {
		now = time.Now
	}
	b := &BudgetTracker{
		budget:         monthlyBudget,
		costPerMillion: costPerMillionTokens,
		now:            now,
	}
	b.month = monthKey(now())
	b.spent = initialSpent
	metrics.LLMSpendEUR.Set(b.spent)
	return b
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// MonthStart returns the first instant of t's month in UTC
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// EstimateCost converts token counts to EUR
func (b *BudgetTracker) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens+outputTokens) / 1_000_000 * b.costPerMillion
}

// rollLocked resets counters when the calendar month changed
func (b *BudgetTracker) rollLocked() {
	if m := monthKey(b.now()); m != b.month {
		b.month = m
		b.spent = 0
		b.reserved = 0
		metrics.LLMSpendEUR.Set(0)
	}
}

// Reserve holds amount against the budget or fails with ErrBudgetExceeded
func (b *BudgetTracker) Reserve(amount float64) (Reservation, error) {
	if amount < 0 || math.IsNaN(amount) {
		return Reservation{}, fmt.Errorf("invalid reservation amount %v", amount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()

	if b.spent+b.reserved+amount > b.budget {
		return Reservation{}, fmt.Errorf("%w: spent %.4f + reserved %.4f + %.4f > %.2f EUR",
			models.ErrBudgetExceeded, b.spent, b.reserved, amount, b.budget)
	}
	b.reserved += amount
	return Reservation{amount: amount, month: b.month}, nil
}

// Commit converts a reservation into spend. The charge is the actual cost
// clamped to the reserved amount; the charged value is returned.
func (b *BudgetTracker) Commit(r Reservation, actual float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()

	if r.month != b.month {
		// reservation from a month that has already been reset
		return 0
	}
	charge := math.Min(math.Max(actual, 0), r.amount)
	b.reserved = math.Max(b.reserved-r.amount, 0)
	b.spent += charge
	metrics.LLMSpendEUR.Set(b.spent)
	return charge
}

// Release returns an unused reservation
func (b *BudgetTracker) Release(r Reservation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()

	if r.month == b.month {
		b.reserved = math.Max(b.reserved-r.amount, 0)
	}
}

// Status returns the current month's figures
func (b *BudgetTracker) Status() models.BudgetStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()

	s := models.BudgetStatus{
		Month:     b.month,
		Budget:    b.budget,
		Spent:     b.spent,
		Reserved:  b.reserved,
		Remaining: math.Max(b.budget-b.spent-b.reserved, 0),
	}
	if b.budget > 0 {
		s.PercentUsed = b.spent / b.budget * 100
	}
	return s
}
