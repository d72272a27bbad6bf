package models

import (
	"math"
	"time"
)

// MaxInstallments bounds the schedule of a budget to 100 years of months.
const MaxInstallments = 1200

// Budget is a repayment plan: a total amount repaid in fixed monthly
// installments, the first one due in the month of StartDate.
// Amounts are integers in the smallest currency unit.
type Budget struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	TotalAmount   int64     `gorm:"not null" json:"totalAmount"`
	MonthlyAmount int64     `gorm:"not null" json:"monthlyAmount"`
	StartDate     Date      `gorm:"not null" json:"startDate"`
	CreatedAt     time.Time `gorm:"not null" json:"createdAt"`
}

// NewBudget is the input for creating a budget. Id and creation time are
// assigned by storage.
type NewBudget struct {
	Name          string
	TotalAmount   int64
	MonthlyAmount int64
	StartDate     Date
}

// BudgetWithPayments is a budget together with its recorded payments.
type BudgetWithPayments struct {
	Budget
	Payments []Payment `json:"payments"`
}

// NewBudgetWithPayments combines a budget and its payments. A nil slice is
// replaced by an empty one so it serialises as [].
func NewBudgetWithPayments(budget Budget, payments []Payment) BudgetWithPayments {
	if payments == nil {
		payments = []Payment{}
	}
	return BudgetWithPayments{Budget: budget, Payments: payments}
}

// TotalMonths is the number of installments: ceil(TotalAmount / MonthlyAmount).
func (b Budget) TotalMonths() int {
	if b.MonthlyAmount <= 0 || b.TotalAmount <= 0 {
		return 0
	}
	months := (b.TotalAmount-1)/b.MonthlyAmount + 1
	if months > math.MaxInt {
		return math.MaxInt
	}
	return int(months)
}

// DueDate returns the due date of installment i (zero-based).
func (b Budget) DueDate(i int) Date {
	return b.StartDate.AddMonths(i)
}
