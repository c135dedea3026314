package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aditi5926/expense-tracker/internal/core"
	"github.com/aditi5926/expense-tracker/internal/storage"
)

type fixedCategorizer struct {
	category core.Category
	calls    int
}

func (f *fixedCategorizer) Classify(ctx context.Context, description string) core.Category {
	f.calls++
	return f.category
}

func newTestService(t *testing.T) (*Service, *storage.SQLiteRepository) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return NewService(repo, &fixedCategorizer{category: core.Other}, nil), repo
}

func mustRegister(t *testing.T, svc *Service, username, password string) core.Account {
	t.Helper()

	account, err := svc.Register(context.Background(), username, password)
	if err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
	return account
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account := mustRegister(t, svc, "alice", "pw1")
	if account.ID == 0 {
		t.Fatal("Register assigned no ID")
	}
	if account.PasswordHash == "pw1" {
		t.Fatal("password stored in plaintext")
	}

	got, err := svc.Authenticate(ctx, "alice", "pw1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != account.ID {
		t.Errorf("Authenticate returned account %d, want %d", got.ID, account.ID)
	}

	if _, err := svc.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "pw1"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("unknown username error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	mustRegister(t, svc, "alice", "pw1")

	if _, err := svc.Register(ctx, "alice", "pw2"); !errors.Is(err, core.ErrDuplicateUsername) {
		t.Fatalf("second Register error = %v, want ErrDuplicateUsername", err)
	}

	count, err := repo.CountAccounts(ctx)
	if err != nil {
		t.Fatalf("CountAccounts: %v", err)
	}
	if count != 1 {
		t.Errorf("account count = %d, want 1", count)
	}
}

func TestAddExpenseDerivesTotal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := mustRegister(t, svc, "alice", "pw1")

	created, err := svc.AddExpense(ctx, owner.ID, ExpenseInput{
		Description: "Coffee",
		Category:    "Food",
		Quantity:    2,
		UnitPrice:   3.5,
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if created.Total != 7.0 {
		t.Errorf("total = %v, want 7.0", created.Total)
	}
	if created.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestAddExpenseValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := mustRegister(t, svc, "alice", "pw1")

	tests := []struct {
		name    string
		input   ExpenseInput
		wantErr error
	}{
		{"empty description", ExpenseInput{Description: "  ", Category: "Food", Quantity: 1}, core.ErrEmptyDescription},
		{"unknown category", ExpenseInput{Description: "Thing", Category: "Misc", Quantity: 1}, core.ErrInvalidCategory},
		{"zero quantity", ExpenseInput{Description: "Thing", Category: "Food", Quantity: 0}, core.ErrInvalidQuantity},
		{"negative price", ExpenseInput{Description: "Thing", Category: "Food", Quantity: 1, UnitPrice: -1}, core.ErrInvalidUnitPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AddExpense(ctx, owner.ID, tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("AddExpense error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddExpenseAutoCategorizes(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	categorizer := &fixedCategorizer{category: core.Travel}
	svc := NewService(repo, categorizer, nil)
	ctx := context.Background()
	owner := mustRegister(t, svc, "alice", "pw1")

	// Empty category requests classification.
	created, err := svc.AddExpense(ctx, owner.ID, ExpenseInput{
		Description: "Airport run",
		Quantity:    1,
		UnitPrice:   30,
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if created.Category != core.Travel {
		t.Errorf("category = %q, want Travel from categorizer", created.Category)
	}
	if categorizer.calls != 1 {
		t.Errorf("categorizer called %d times, want 1", categorizer.calls)
	}

	// Manual category bypasses the classifier.
	if _, err := svc.AddExpense(ctx, owner.ID, ExpenseInput{
		Description: "Airport run",
		Category:    "Other",
		Quantity:    1,
		UnitPrice:   30,
	}); err != nil {
		t.Fatalf("AddExpense with manual category: %v", err)
	}
	if categorizer.calls != 1 {
		t.Errorf("categorizer called %d times after manual add, want still 1", categorizer.calls)
	}
}

func TestListExpensesPagination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := mustRegister(t, svc, "alice", "pw1")

	for i := 1; i <= 12; i++ {
		if _, err := svc.AddExpense(ctx, owner.ID, ExpenseInput{
			Description: fmt.Sprintf("expense %d", i),
			Category:    "Food",
			Quantity:    1,
			UnitPrice:   float64(i),
		}); err != nil {
			t.Fatalf("AddExpense %d: %v", i, err)
		}
	}

	page1, err := svc.ListExpenses(ctx, owner.ID, "", 1, 5)
	if err != nil {
		t.Fatalf("ListExpenses page 1: %v", err)
	}
	if len(page1) != 5 {
		t.Fatalf("page 1 has %d rows, want 5", len(page1))
	}
	// Newest first: page 1 starts with the last insert.
	if page1[0].Description != "expense 12" {
		t.Errorf("page 1 first row = %q, want expense 12", page1[0].Description)
	}

	page3, err := svc.ListExpenses(ctx, owner.ID, "", 3, 5)
	if err != nil {
		t.Fatalf("ListExpenses page 3: %v", err)
	}
	if len(page3) != 2 {
		t.Fatalf("page 3 has %d rows, want 2", len(page3))
	}
	if page3[1].Description != "expense 1" {
		t.Errorf("page 3 last row = %q, want expense 1", page3[1].Description)
	}

	page4, err := svc.ListExpenses(ctx, owner.ID, "", 4, 5)
	if err != nil {
		t.Fatalf("ListExpenses page 4: %v", err)
	}
	if len(page4) != 0 {
		t.Errorf("page 4 has %d rows, want 0", len(page4))
	}

	if _, err := svc.ListExpenses(ctx, owner.ID, "", 0, 5); !errors.Is(err, core.ErrInvalidPage) {
		t.Errorf("page 0 error = %v, want ErrInvalidPage", err)
	}
	if _, err := svc.ListExpenses(ctx, owner.ID, "", -1, 5); !errors.Is(err, core.ErrInvalidPage) {
		t.Errorf("page -1 error = %v, want ErrInvalidPage", err)
	}
	if _, err := svc.ListExpenses(ctx, owner.ID, "Groceries", 1, 5); !errors.Is(err, core.ErrInvalidCategory) {
		t.Errorf("bad filter error = %v, want ErrInvalidCategory", err)
	}

	// pageSize 0 falls back to the default of 5.
	defPage, err := svc.ListExpenses(ctx, owner.ID, "", 1, 0)
	if err != nil {
		t.Fatalf("ListExpenses default page size: %v", err)
	}
	if len(defPage) != DefaultPageSize {
		t.Errorf("default page size returned %d rows, want %d", len(defPage), DefaultPageSize)
	}
}

func TestListExpensesIsolatedPerOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice", "pw1")
	bob := mustRegister(t, svc, "bob", "pw2")

	for i := 0; i < 3; i++ {
		if _, err := svc.AddExpense(ctx, alice.ID, ExpenseInput{
			Description: "alice expense", Category: "Food", Quantity: 1, UnitPrice: 1,
		}); err != nil {
			t.Fatalf("AddExpense alice: %v", err)
		}
	}
	if _, err := svc.AddExpense(ctx, bob.ID, ExpenseInput{
		Description: "bob expense", Category: "Travel", Quantity: 1, UnitPrice: 1,
	}); err != nil {
		t.Fatalf("AddExpense bob: %v", err)
	}

	list, err := svc.ListExpenses(ctx, bob.ID, "", 1, 10)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("bob sees %d expenses, want 1", len(list))
	}
	for _, e := range list {
		if e.OwnerID != bob.ID {
			t.Errorf("bob's list contains owner %d", e.OwnerID)
		}
	}
}

func TestEditExpenseRecomputesTotal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := mustRegister(t, svc, "alice", "pw1")

	created, err := svc.AddExpense(ctx, owner.ID, ExpenseInput{
		Description: "Coffee", Category: "Food", Quantity: 2, UnitPrice: 3.5,
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	edited, err := svc.EditExpense(ctx, owner.ID, created.ID, ExpenseInput{
		Description: "Coffee", Category: "Food", Quantity: 3, UnitPrice: 3.5,
	})
	if err != nil {
		t.Fatalf("EditExpense: %v", err)
	}
	if edited.Total != 10.5 {
		t.Errorf("total after edit = %v, want 10.5", edited.Total)
	}

	page, err := svc.ListExpenses(ctx, owner.ID, "", 1, 5)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if got := svc.PageTotal(page); got != 10.5 {
		t.Errorf("PageTotal = %v, want 10.5", got)
	}
}

func TestEditAndDeleteOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := mustRegister(t, svc, "alice", "pw1")
	bob := mustRegister(t, svc, "bob", "pw2")

	created, err := svc.AddExpense(ctx, alice.ID, ExpenseInput{
		Description: "Taxi", Category: "Travel", Quantity: 1, UnitPrice: 12,
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	input := ExpenseInput{Description: "Taxi", Category: "Travel", Quantity: 1, UnitPrice: 99}

	if _, err := svc.EditExpense(ctx, bob.ID, created.ID, input); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("cross-owner edit error = %v, want ErrForbidden", err)
	}
	if err := svc.DeleteExpense(ctx, bob.ID, created.ID); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("cross-owner delete error = %v, want ErrForbidden", err)
	}
	if _, err := svc.EditExpense(ctx, alice.ID, 99999, input); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("edit of missing expense error = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteExpense(ctx, alice.ID, 99999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("delete of missing expense error = %v, want ErrNotFound", err)
	}

	// The row is untouched after the rejected attempts.
	got, err := svc.GetExpense(ctx, alice.ID, created.ID)
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if got.Total != 12 {
		t.Errorf("total after rejected edits = %v, want 12", got.Total)
	}
}

func TestDeleteExpenseRemovesExactlyOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := mustRegister(t, svc, "alice", "pw1")

	var ids []int64
	for i := 0; i < 3; i++ {
		created, err := svc.AddExpense(ctx, owner.ID, ExpenseInput{
			Description: "expense", Category: "Other", Quantity: 1, UnitPrice: 1,
		})
		if err != nil {
			t.Fatalf("AddExpense: %v", err)
		}
		ids = append(ids, created.ID)
	}

	if err := svc.DeleteExpense(ctx, owner.ID, ids[1]); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}

	list, err := svc.ListExpenses(ctx, owner.ID, "", 1, 10)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list has %d rows after delete, want 2", len(list))
	}
	for _, e := range list {
		if e.ID == ids[1] {
			t.Errorf("deleted expense %d still listed", ids[1])
		}
	}

	if err := svc.DeleteExpense(ctx, owner.ID, ids[1]); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("repeated delete error = %v, want ErrNotFound", err)
	}
}

func TestPageTotalEmptyPage(t *testing.T) {
	svc, _ := newTestService(t)
	if got := svc.PageTotal(nil); got != 0 {
		t.Errorf("PageTotal(nil) = %v, want 0", got)
	}
}

func TestRegisterEditPageTotalScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	alice := mustRegister(t, svc, "alice", "pw1")

	created, err := svc.AddExpense(ctx, alice.ID, ExpenseInput{
		Description: "Coffee", Category: "Food", Quantity: 2, UnitPrice: 3.5,
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if created.Total != 7.0 {
		t.Fatalf("total = %v, want 7.0", created.Total)
	}

	if _, err := svc.EditExpense(ctx, alice.ID, created.ID, ExpenseInput{
		Description: "Coffee", Category: "Food", Quantity: 3, UnitPrice: 3.5,
	}); err != nil {
		t.Fatalf("EditExpense: %v", err)
	}

	page, err := svc.ListExpenses(ctx, alice.ID, "", 1, 0)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if got := svc.PageTotal(page); got != 10.5 {
		t.Errorf("PageTotal = %v, want 10.5", got)
	}
}
