package models

import (
	"math"
	"sort"
)

// Installment is one monthly slot of a budget's schedule.
type Installment struct {
	MonthIndex int  `json:"monthIndex"`
	DueDate    Date `json:"dueDate"`
	IsPaid     bool `json:"isPaid"`
	// OutOfSchedule marks a recorded payment whose index lies beyond TotalMonths.
	OutOfSchedule bool `json:"outOfSchedule,omitempty"`
}

// Progress summarises how much of a budget has been repaid.
type Progress struct {
	BudgetID     uint          `json:"budgetId"`
	TotalMonths  int           `json:"totalMonths"`
	PaidMonths   int           `json:"paidMonths"`
	PaidAmount   int64         `json:"paidAmount"`
	Remaining    int64         `json:"remaining"`
	Percentage   float64       `json:"percentage"`
	Installments []Installment `json:"installments"`
}

// PaidAmount is the number of paid installments times the monthly amount,
// saturating at math.MaxInt64. Stray payments beyond the schedule are
// counted too.
func PaidAmount(budget Budget, payments []Payment) int64 {
	var paid int64
	for _, p := range payments {
		if p.IsPaid {
			paid++
		}
	}
	if paid == 0 || budget.MonthlyAmount <= 0 {
		return 0
	}
	if paid > math.MaxInt64/budget.MonthlyAmount {
		return math.MaxInt64
	}
	return paid * budget.MonthlyAmount
}

// Remaining is the amount still owed, never negative.
func Remaining(budget Budget, payments []Payment) int64 {
	return max(0, budget.TotalAmount-PaidAmount(budget, payments))
}

// Percentage is the repaid share of the total in [0, 100].
func Percentage(budget Budget, payments []Payment) float64 {
	if budget.TotalAmount <= 0 {
		return 0
	}
	pct := float64(PaidAmount(budget, payments)) * 100 / float64(budget.TotalAmount)
	return min(100, max(0, pct))
}

// Schedule lists every installment slot 0..TotalMonths-1 with its due date
// and paid flag, followed by any recorded payments beyond the schedule in
// index order. At most MaxInstallments regular slots are listed.
func Schedule(budget Budget, payments []Payment) []Installment {
	total := budget.TotalMonths()
	listed := min(total, MaxInstallments)
	paid := make(map[int]bool, len(payments))
	var extra []int
	for _, p := range payments {
		paid[p.MonthIndex] = p.IsPaid
		if p.MonthIndex >= listed {
			extra = append(extra, p.MonthIndex)
		}
	}
	sort.Ints(extra)

	installments := make([]Installment, 0, listed+len(extra))
	for i := 0; i < listed; i++ {
		installments = append(installments, Installment{
			MonthIndex: i,
			DueDate:    budget.DueDate(i),
			IsPaid:     paid[i],
		})
	}
	for _, i := range extra {
		installments = append(installments, Installment{
			MonthIndex:    i,
			DueDate:       budget.DueDate(i),
			IsPaid:        paid[i],
			OutOfSchedule: i >= total,
		})
	}
	return installments
}

// ComputeProgress derives the progress summary of a budget from its payments.
func ComputeProgress(budget Budget, payments []Payment) Progress {
	paidMonths := 0
	for _, p := range payments {
		if p.IsPaid {
			paidMonths++
		}
	}
	return Progress{
		BudgetID:     budget.ID,
		TotalMonths:  budget.TotalMonths(),
		PaidMonths:   paidMonths,
		PaidAmount:   PaidAmount(budget, payments),
		Remaining:    Remaining(budget, payments),
		Percentage:   Percentage(budget, payments),
		Installments: Schedule(budget, payments),
	}
}
