package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"repaytrack/internal/logger"
	"repaytrack/internal/models"
	"repaytrack/internal/storage"
	"repaytrack/internal/testutil"
)

func init() {
	logger.Init("test")
}

// backends runs fn once per storage implementation.
func backends(t *testing.T, fn func(t *testing.T, store storage.Store)) {
	t.Helper()

	t.Run("json", func(t *testing.T) {
		fn(t, testutil.NewTestJSONStore(t))
	})
	t.Run("sql", func(t *testing.T) {
		fn(t, testutil.NewTestSQLStore(t))
	})
}

func TestCreateBudget(t *testing.T) {
	backends(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()

		first, err := store.CreateBudget(ctx, models.NewBudget{
			Name:          "Laptop",
			TotalAmount:   1000,
			MonthlyAmount: 300,
			StartDate:     models.NewDate(2024, 1, 15),
		})
		testutil.AssertNoError(t, err)

		if first.ID == 0 {
			t.Fatal("expected non-zero budget ID")
		}
		if first.Name != "Laptop" || first.TotalAmount != 1000 || first.MonthlyAmount != 300 {
			t.Errorf("unexpected budget %+v", first)
		}
		if first.StartDate != models.NewDate(2024, 1, 15) {
			t.Errorf("expected start date 2024-01-15, got %s", first.StartDate)
		}
		if first.CreatedAt.IsZero() {
			t.Error("expected creation time to be set")
		}

		second := testutil.CreateTestBudget(t, store)
		if second.ID <= first.ID {
			t.Errorf("expected increasing ids, got %d after %d", second.ID, first.ID)
		}
	})
}

func TestListBudgets(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		backends(t, func(t *testing.T, store storage.Store) {
			budgets, err := store.ListBudgets(context.Background())
			testutil.AssertNoError(t, err)

			if budgets == nil {
				t.Fatal("expected empty slice, got nil")
			}
			if len(budgets) != 0 {
				t.Errorf("expected no budgets, got %d", len(budgets))
			}
		})
	})

	t.Run("creation_order", func(t *testing.T) {
		backends(t, func(t *testing.T, store storage.Store) {
			a := testutil.CreateTestBudget(t, store)
			b := testutil.CreateTestBudget(t, store)
			c := testutil.CreateTestBudget(t, store)

			budgets, err := store.ListBudgets(context.Background())
			testutil.AssertNoError(t, err)

			if len(budgets) != 3 {
				t.Fatalf("expected 3 budgets, got %d", len(budgets))
			}
			for i, want := range []uint{a.ID, b.ID, c.ID} {
				if budgets[i].ID != want {
					t.Errorf("position %d: expected budget %d, got %d", i, want, budgets[i].ID)
				}
			}
		})
	})
}

func TestGetBudget(t *testing.T) {
	backends(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		created := testutil.CreateTestBudget(t, store)

		got, err := store.GetBudget(ctx, created.ID)
		testutil.AssertNoError(t, err)
		if got == nil {
			t.Fatal("expected budget, got nil")
		}
		if got.Name != created.Name || got.StartDate != created.StartDate {
			t.Errorf("expected %+v, got %+v", created, got)
		}

		missing, err := store.GetBudget(ctx, 9999)
		testutil.AssertNoError(t, err)
		if missing != nil {
			t.Errorf("expected nil for unknown id, got %+v", missing)
		}
	})
}

func TestDeleteBudget(t *testing.T) {
	t.Run("cascades_payments", func(t *testing.T) {
		backends(t, func(t *testing.T, store storage.Store) {
			ctx := context.Background()
			doomed := testutil.CreateTestBudget(t, store)
			kept := testutil.CreateTestBudget(t, store)
			testutil.MarkPaid(t, store, doomed.ID, 0)
			testutil.MarkPaid(t, store, doomed.ID, 1)
			testutil.MarkPaid(t, store, kept.ID, 0)

			testutil.AssertNoError(t, store.DeleteBudget(ctx, doomed.ID))

			got, err := store.GetBudget(ctx, doomed.ID)
			testutil.AssertNoError(t, err)
			if got != nil {
				t.Error("expected deleted budget to be gone")
			}

			payments, err := store.ListPayments(ctx, doomed.ID)
			testutil.AssertNoError(t, err)
			if len(payments) != 0 {
				t.Errorf("expected payments to be deleted, got %d", len(payments))
			}

			payments, err = store.ListPayments(ctx, kept.ID)
			testutil.AssertNoError(t, err)
			if len(payments) != 1 {
				t.Errorf("expected other budget's payment to survive, got %d", len(payments))
			}
		})
	})

	t.Run("unknown_id", func(t *testing.T) {
		backends(t, func(t *testing.T, store storage.Store) {
			testutil.CreateTestBudget(t, store)

			testutil.AssertNoError(t, store.DeleteBudget(context.Background(), 9999))

			budgets, err := store.ListBudgets(context.Background())
			testutil.AssertNoError(t, err)
			if len(budgets) != 1 {
				t.Errorf("expected existing budget to remain, got %d", len(budgets))
			}
		})
	})
}

func TestTogglePayment(t *testing.T) {
	t.Run("creates_then_updates", func(t *testing.T) {
		backends(t, func(t *testing.T, store storage.Store) {
			ctx := context.Background()
			budget := testutil.CreateTestBudget(t, store)

			created, err := store.TogglePayment(ctx, budget.ID, 2, true)
			testutil.AssertNoError(t, err)
			if created.ID == 0 || created.BudgetID != budget.ID || created.MonthIndex != 2 || !created.IsPaid {
				t.Fatalf("unexpected payment %+v", created)
			}

			updated, err := store.TogglePayment(ctx, budget.ID, 2, false)
			testutil.AssertNoError(t, err)
			if updated.ID != created.ID {
				t.Errorf("expected the same row to be updated, got id %d after %d", updated.ID, created.ID)
			}
			if updated.IsPaid {
				t.Error("expected payment to be unpaid")
			}

			payments, err := store.ListPayments(ctx, budget.ID)
			testutil.AssertNoError(t, err)
			if len(payments) != 1 {
				t.Fatalf("expected one payment row, got %d", len(payments))
			}
			if payments[0].IsPaid {
				t.Error("expected stored payment to be unpaid")
			}
		})
	})

	t.Run("idempotent", func(t *testing.T) {
		backends(t, func(t *testing.T, store storage.Store) {
			ctx := context.Background()
			budget := testutil.CreateTestBudget(t, store)

			for i := 0; i < 3; i++ {
				_, err := store.TogglePayment(ctx, budget.ID, 0, true)
				testutil.AssertNoError(t, err)
			}

			payments, err := store.ListPayments(ctx, budget.ID)
			testutil.AssertNoError(t, err)
			if len(payments) != 1 || !payments[0].IsPaid {
				t.Errorf("expected a single paid row, got %+v", payments)
			}
		})
	})

	t.Run("concurrent_distinct_months", func(t *testing.T) {
		backends(t, func(t *testing.T, store storage.Store) {
			ctx := context.Background()
			budget := testutil.CreateTestBudget(t, store)

			var wg sync.WaitGroup
			errs := make(chan error, 8)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(month int) {
					defer wg.Done()
					if _, err := store.TogglePayment(ctx, budget.ID, month, true); err != nil {
						errs <- err
					}
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Errorf("toggle failed: %v", err)
			}

			payments, err := store.ListPayments(ctx, budget.ID)
			testutil.AssertNoError(t, err)
			if len(payments) != 8 {
				t.Errorf("expected 8 payments, got %d", len(payments))
			}
		})
	})
}

func TestTogglePayment_ConcurrentSameMonth(t *testing.T) {
	backends(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		budget := testutil.CreateTestBudget(t, store)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.TogglePayment(ctx, budget.ID, 1, true); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("toggle failed: %v", err)
		}

		payments, err := store.ListPayments(ctx, budget.ID)
		testutil.AssertNoError(t, err)
		if len(payments) != 1 || payments[0].MonthIndex != 1 || !payments[0].IsPaid {
			t.Errorf("expected a single paid row for month 1, got %+v", payments)
		}
	})
}

func TestCreateBudget_CreatedAtRoundTrips(t *testing.T) {
	backends(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		created := testutil.CreateTestBudget(t, store)

		if created.CreatedAt.Nanosecond()%int(time.Microsecond) != 0 {
			t.Errorf("expected microsecond precision, got %s", created.CreatedAt.Format(time.RFC3339Nano))
		}

		fetched, err := store.GetBudget(ctx, created.ID)
		testutil.AssertNoError(t, err)
		if fetched == nil {
			t.Fatal("expected budget")
		}
		if !fetched.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("createdAt changed on read: created %s, fetched %s",
				created.CreatedAt.Format(time.RFC3339Nano), fetched.CreatedAt.Format(time.RFC3339Nano))
		}
	})
}

func TestListPayments_Empty(t *testing.T) {
	backends(t, func(t *testing.T, store storage.Store) {
		budget := testutil.CreateTestBudget(t, store)

		payments, err := store.ListPayments(context.Background(), budget.ID)
		testutil.AssertNoError(t, err)
		if payments == nil {
			t.Fatal("expected empty slice, got nil")
		}
		if len(payments) != 0 {
			t.Errorf("expected no payments, got %d", len(payments))
		}
	})
}

func TestProfiles(t *testing.T) {
	t.Run("create_and_list", func(t *testing.T) {
		backends(t, func(t *testing.T, store storage.Store) {
			ctx := context.Background()
			alice := testutil.CreateTestProfileWithName(t, store, "alice")
			bob := testutil.CreateTestProfileWithName(t, store, "bob")

			profiles, err := store.ListProfiles(ctx)
			testutil.AssertNoError(t, err)
			if len(profiles) != 2 {
				t.Fatalf("expected 2 profiles, got %d", len(profiles))
			}
			if profiles[0].ID != alice.ID || profiles[1].ID != bob.ID {
				t.Errorf("expected profiles in id order, got %+v", profiles)
			}

			got, err := store.GetProfile(ctx, bob.ID)
			testutil.AssertNoError(t, err)
			if got == nil || got.Name != "bob" {
				t.Errorf("expected bob, got %+v", got)
			}

			missing, err := store.GetProfile(ctx, 9999)
			testutil.AssertNoError(t, err)
			if missing != nil {
				t.Errorf("expected nil for unknown profile, got %+v", missing)
			}
		})
	})

	t.Run("duplicate_name", func(t *testing.T) {
		backends(t, func(t *testing.T, store storage.Store) {
			testutil.CreateTestProfileWithName(t, store, "alice")

			_, err := store.CreateProfile(context.Background(), "alice", "hash")
			testutil.AssertAppError(t, err, "DUPLICATE_PROFILE")
		})
	})

	t.Run("current_profile", func(t *testing.T) {
		backends(t, func(t *testing.T, store storage.Store) {
			ctx := context.Background()
			alice := testutil.CreateTestProfileWithName(t, store, "alice")
			bob := testutil.CreateTestProfileWithName(t, store, "bob")

			current, err := store.CurrentProfileID(ctx)
			testutil.AssertNoError(t, err)
			if current != nil {
				t.Fatalf("expected nobody logged in, got %d", *current)
			}

			testutil.AssertNoError(t, store.SetCurrentProfileID(ctx, alice.ID))
			testutil.AssertNoError(t, store.SetCurrentProfileID(ctx, bob.ID))

			current, err = store.CurrentProfileID(ctx)
			testutil.AssertNoError(t, err)
			if current == nil || *current != bob.ID {
				t.Fatalf("expected current profile %d, got %v", bob.ID, current)
			}

			profiles, err := store.ListProfiles(ctx)
			testutil.AssertNoError(t, err)
			for _, p := range profiles {
				if p.IsCurrent != (p.ID == bob.ID) {
					t.Errorf("profile %s: unexpected IsCurrent=%t", p.Name, p.IsCurrent)
				}
			}

			testutil.AssertNoError(t, store.ClearCurrentProfile(ctx))
			current, err = store.CurrentProfileID(ctx)
			testutil.AssertNoError(t, err)
			if current != nil {
				t.Errorf("expected logout to clear current profile, got %d", *current)
			}
		})
	})

	t.Run("set_unknown_profile", func(t *testing.T) {
		backends(t, func(t *testing.T, store storage.Store) {
			err := store.SetCurrentProfileID(context.Background(), 42)
			testutil.AssertAppError(t, err, "PROFILE_NOT_FOUND")
		})
	})
}
