package models

// Payment records the paid status of one installment of a budget. Rows are
// sparse: an installment without a row is unpaid.
type Payment struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	BudgetID   uint `gorm:"not null;uniqueIndex:idx_budget_payments_budget_month" json:"budgetId"`
	MonthIndex int  `gorm:"not null;uniqueIndex:idx_budget_payments_budget_month" json:"monthIndex"`
	IsPaid     bool `gorm:"not null" json:"isPaid"`

	Budget *Budget `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TableName keeps the table name used by the SQL migrations.
func (Payment) TableName() string {
	return "budget_payments"
}
