// Package storage persists budgets, payments and profiles. Two backends
// implement the same contract: a JSON document on disk and a relational
// database through GORM. Callers must not be able to tell them apart.
package storage

import (
	"context"
	"time"

	"repaytrack/internal/models"
)

// storageNow is the creation clock, truncated to the microsecond precision
// Postgres stores.
func storageNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Storer defines the contract for budget and payment persistence.
type Storer interface {
	// CreateBudget assigns a fresh id and creation time and persists the budget.
	CreateBudget(ctx context.Context, input models.NewBudget) (*models.Budget, error)
	// ListBudgets returns all budgets ordered by creation time, oldest first.
	ListBudgets(ctx context.Context) ([]models.Budget, error)
	// GetBudget returns nil without error when no budget has the id.
	GetBudget(ctx context.Context, id uint) (*models.Budget, error)
	// DeleteBudget removes the budget and all of its payments. Unknown ids are a no-op.
	DeleteBudget(ctx context.Context, id uint) error
	// ListPayments returns the recorded payments of a budget in no particular order.
	ListPayments(ctx context.Context, budgetID uint) ([]models.Payment, error)
	// TogglePayment sets the paid flag of an installment, creating its row on first use.
	TogglePayment(ctx context.Context, budgetID uint, monthIndex int, isPaid bool) (*models.Payment, error)
}

// ProfileStorer defines the contract for the profiles behind the login gate.
type ProfileStorer interface {
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	// GetProfile returns nil without error when no profile has the id.
	GetProfile(ctx context.Context, id uint) (*models.Profile, error)
	CreateProfile(ctx context.Context, name, passwordHash string) (*models.Profile, error)
	// CurrentProfileID returns nil when nobody is logged in.
	CurrentProfileID(ctx context.Context) (*uint, error)
	SetCurrentProfileID(ctx context.Context, id uint) error
	ClearCurrentProfile(ctx context.Context) error
}

// Store is a complete backend.
type Store interface {
	Storer
	ProfileStorer
	Close() error
}
