package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aditi5926/expense-tracker/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func mustCreateAccount(t *testing.T, repo *SQLiteRepository, username string) core.Account {
	t.Helper()

	a, err := repo.CreateAccount(context.Background(), username, "hash")
	if err != nil {
		t.Fatalf("CreateAccount(%q): %v", username, err)
	}
	return a
}

func TestCreateAccountDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreateAccount(t, repo, "alice")

	_, err := repo.CreateAccount(ctx, "alice", "otherhash")
	if !errors.Is(err, core.ErrDuplicateUsername) {
		t.Fatalf("second CreateAccount error = %v, want ErrDuplicateUsername", err)
	}

	count, err := repo.CountAccounts(ctx)
	if err != nil {
		t.Fatalf("CountAccounts: %v", err)
	}
	if count != 1 {
		t.Errorf("account count = %d, want 1", count)
	}
}

func TestGetAccountByUsername(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := mustCreateAccount(t, repo, "alice")

	got, err := repo.GetAccountByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAccountByUsername: %v", err)
	}
	if got.ID != created.ID || got.Username != "alice" || got.PasswordHash != "hash" {
		t.Errorf("got account %+v, want id=%d username=alice", got, created.ID)
	}

	// Usernames are case-sensitive.
	if _, err := repo.GetAccountByUsername(ctx, "Alice"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetAccountByUsername(Alice) error = %v, want ErrNotFound", err)
	}
}

func TestExpenseCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustCreateAccount(t, repo, "alice")

	created, err := repo.CreateExpense(ctx, core.Expense{
		OwnerID:     owner.ID,
		Description: "Coffee",
		Category:    core.Food,
		Quantity:    2,
		UnitPrice:   3.5,
		Total:       7.0,
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("CreateExpense assigned no ID")
	}

	got, err := repo.GetExpense(ctx, owner.ID, created.ID)
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if got.Description != "Coffee" || got.Total != 7.0 {
		t.Errorf("GetExpense = %+v, want created row back", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not persisted")
	}

	got.Quantity = 3
	got.Total = 10.5
	if err := repo.UpdateExpense(ctx, got); err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}

	updated, err := repo.GetExpense(ctx, owner.ID, created.ID)
	if err != nil {
		t.Fatalf("GetExpense after update: %v", err)
	}
	if updated.Quantity != 3 || updated.Total != 10.5 {
		t.Errorf("after update got quantity=%v total=%v, want 3 and 10.5", updated.Quantity, updated.Total)
	}

	if err := repo.DeleteExpense(ctx, owner.ID, created.ID); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if _, err := repo.GetExpense(ctx, owner.ID, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetExpense after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteExpense(ctx, owner.ID, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second DeleteExpense error = %v, want ErrNotFound", err)
	}
}

func TestOwnerScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := mustCreateAccount(t, repo, "alice")
	bob := mustCreateAccount(t, repo, "bob")

	exp, err := repo.CreateExpense(ctx, core.Expense{
		OwnerID: alice.ID, Description: "Taxi", Category: core.Travel,
		Quantity: 1, UnitPrice: 12, Total: 12,
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	// Bob cannot see, update, or delete Alice's row.
	if _, err := repo.GetExpense(ctx, bob.ID, exp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-owner GetExpense error = %v, want ErrNotFound", err)
	}

	exp.OwnerID = bob.ID
	exp.Description = "hijacked"
	if err := repo.UpdateExpense(ctx, exp); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-owner UpdateExpense error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteExpense(ctx, bob.ID, exp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-owner DeleteExpense error = %v, want ErrNotFound", err)
	}

	list, err := repo.ListExpenses(ctx, bob.ID, "", 10, 0)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("bob's list has %d rows, want 0", len(list))
	}

	ownerID, err := repo.GetExpenseOwner(ctx, exp.ID)
	if err != nil {
		t.Fatalf("GetExpenseOwner: %v", err)
	}
	if ownerID != alice.ID {
		t.Errorf("GetExpenseOwner = %d, want %d", ownerID, alice.ID)
	}
}

func TestListExpensesOrderAndFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustCreateAccount(t, repo, "alice")

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	categories := []core.Category{core.Food, core.Travel, core.Food, core.Other}
	for i, cat := range categories {
		_, err := repo.CreateExpense(ctx, core.Expense{
			OwnerID:     owner.ID,
			Description: "expense",
			Category:    cat,
			Quantity:    1,
			UnitPrice:   float64(i + 1),
			Total:       float64(i + 1),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateExpense %d: %v", i, err)
		}
	}

	all, err := repo.ListExpenses(ctx, owner.ID, "", 10, 0)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d rows, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Errorf("rows not in created_at DESC order at index %d", i)
		}
	}

	food, err := repo.ListExpenses(ctx, owner.ID, core.Food, 10, 0)
	if err != nil {
		t.Fatalf("ListExpenses(Food): %v", err)
	}
	if len(food) != 2 {
		t.Errorf("food filter returned %d rows, want 2", len(food))
	}
	for _, e := range food {
		if e.Category != core.Food {
			t.Errorf("food filter returned category %q", e.Category)
		}
	}

	count, err := repo.CountExpenses(ctx, owner.ID, core.Food)
	if err != nil {
		t.Fatalf("CountExpenses: %v", err)
	}
	if count != 2 {
		t.Errorf("CountExpenses(Food) = %d, want 2", count)
	}
}

func TestRefreshOwnerTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustCreateAccount(t, repo, "alice")

	expenses := []core.Expense{
		{Description: "Lunch", Category: core.Food, Quantity: 1, UnitPrice: 10, Total: 10},
		{Description: "Dinner", Category: core.Food, Quantity: 2, UnitPrice: 15, Total: 30},
		{Description: "Train", Category: core.Travel, Quantity: 1, UnitPrice: 25, Total: 25},
	}
	for _, e := range expenses {
		e.OwnerID = owner.ID
		if _, err := repo.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	if err := repo.RefreshOwnerTotals(ctx, owner.ID); err != nil {
		t.Fatalf("RefreshOwnerTotals: %v", err)
	}

	summary, err := repo.GetOwnerSummary(ctx, owner.ID)
	if err != nil {
		t.Fatalf("GetOwnerSummary: %v", err)
	}
	if summary.Total != 65 {
		t.Errorf("summary total = %v, want 65", summary.Total)
	}
	if len(summary.ByCategory) != 2 {
		t.Fatalf("summary has %d categories, want 2", len(summary.ByCategory))
	}
	// Ordered by total descending.
	if summary.ByCategory[0].Category != core.Food || summary.ByCategory[0].Total != 40 {
		t.Errorf("top category = %+v, want Food/40", summary.ByCategory[0])
	}

	// Refresh is a rebuild, not an increment: running it twice must not
	// double the totals.
	if err := repo.RefreshOwnerTotals(ctx, owner.ID); err != nil {
		t.Fatalf("second RefreshOwnerTotals: %v", err)
	}
	summary, err = repo.GetOwnerSummary(ctx, owner.ID)
	if err != nil {
		t.Fatalf("GetOwnerSummary: %v", err)
	}
	if summary.Total != 65 {
		t.Errorf("summary total after second refresh = %v, want 65", summary.Total)
	}
}
