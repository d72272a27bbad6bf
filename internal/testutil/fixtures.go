package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"repaytrack/internal/models"
	"repaytrack/internal/storage"
)

// TestPassword is the password of every profile created by CreateTestProfile.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestBudget creates a budget of 1000 repaid at 300 per month starting
// on 2024-01-15, giving four installments.
func CreateTestBudget(t *testing.T, store storage.Storer) *models.Budget {
	t.Helper()
	return CreateTestBudgetWith(t, store, models.NewBudget{
		Name:          fmt.Sprintf("Test Budget %d", nextID()),
		TotalAmount:   1000,
		MonthlyAmount: 300,
		StartDate:     models.NewDate(2024, 1, 15),
	})
}

// CreateTestBudgetWith creates a budget from the given input.
func CreateTestBudgetWith(t *testing.T, store storage.Storer, input models.NewBudget) *models.Budget {
	t.Helper()

	budget, err := store.CreateBudget(context.Background(), input)
	if err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// MarkPaid records installment monthIndex of a budget as paid.
func MarkPaid(t *testing.T, store storage.Storer, budgetID uint, monthIndex int) *models.Payment {
	t.Helper()

	payment, err := store.TogglePayment(context.Background(), budgetID, monthIndex, true)
	if err != nil {
		t.Fatalf("failed to mark payment: %v", err)
	}
	return payment
}

// CreateTestProfile creates a profile with a unique name and TestPassword.
func CreateTestProfile(t *testing.T, store storage.ProfileStorer) *models.Profile {
	t.Helper()
	return CreateTestProfileWithName(t, store, fmt.Sprintf("profile%d", nextID()))
}

// CreateTestProfileWithName creates a profile with the given name and TestPassword.
func CreateTestProfileWithName(t *testing.T, store storage.ProfileStorer, name string) *models.Profile {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	profile, err := store.CreateProfile(context.Background(), name, string(hash))
	if err != nil {
		t.Fatalf("failed to create test profile: %v", err)
	}
	return profile
}
