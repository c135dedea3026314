// Package ledger implements the business operations over accounts and
// expenses. The service is stateless per call: the owning account is an
// explicit parameter everywhere, never ambient state.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/aditi5926/expense-tracker/internal/amqp"
	"github.com/aditi5926/expense-tracker/internal/core"
	"github.com/aditi5926/expense-tracker/internal/storage"
)

// DefaultPageSize is the page size used when the caller passes 0.
const DefaultPageSize = 5

// Categorizer assigns a category to a free-text description. It is total:
// no error return, unclassifiable input becomes core.Other.
type Categorizer interface {
	Classify(ctx context.Context, description string) core.Category
}

// ExpenseInput carries the mutable fields of an expense for add and edit.
// An empty Category requests automatic categorization from the description.
type ExpenseInput struct {
	Description  string
	Category     string
	Reimbursable bool
	Quantity     float64
	UnitPrice    float64
}

type Service struct {
	storage     *storage.SQLiteRepository
	categorizer Categorizer
	events      *amqp.Client
}

// NewService wires the ledger. categorizer and events may be nil; a nil
// categorizer turns auto-categorization into core.Other, a nil events client
// disables event publishing.
func NewService(storage *storage.SQLiteRepository, categorizer Categorizer, events *amqp.Client) *Service {
	return &Service{
		storage:     storage,
		categorizer: categorizer,
		events:      events,
	}
}

// Register creates a new account with a bcrypt-hashed credential.
// Re-registering a username fails with core.ErrDuplicateUsername.
func (s *Service) Register(ctx context.Context, username, password string) (core.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return core.Account{}, core.ErrEmptyUsername
	}
	if password == "" {
		return core.Account{}, core.ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.Account{}, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.storage.CreateAccount(ctx, username, string(hash))
	if err != nil {
		return core.Account{}, fmt.Errorf("register %q: %w", username, err)
	}

	slog.InfoContext(ctx, "Account registered", "account_id", account.ID, "username", username)
	return account, nil
}

// Authenticate verifies a username/password pair. Unknown usernames and
// wrong passwords are indistinguishable to the caller: both surface as
// core.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (core.Account, error) {
	account, err := s.storage.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Account{}, core.ErrInvalidCredentials
		}
		return core.Account{}, fmt.Errorf("authenticate %q: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return core.Account{}, core.ErrInvalidCredentials
	}

	return account, nil
}

// AddExpense validates and persists a new expense. Total is derived from
// quantity and unit price here, never taken from the caller.
func (s *Service) AddExpense(ctx context.Context, ownerID int64, in ExpenseInput) (core.Expense, error) {
	expense, err := s.buildExpense(ctx, ownerID, in)
	if err != nil {
		return core.Expense{}, err
	}

	created, err := s.storage.CreateExpense(ctx, expense)
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}

	s.publishEvent(ctx, created.ID, ownerID, amqp.ActionCreated)
	return created, nil
}

// ListExpenses returns one page of the owner's expenses, newest first.
// page is 1-indexed; values below 1 are rejected with core.ErrInvalidPage.
// pageSize 0 means DefaultPageSize. categoryFilter "" means all categories.
func (s *Service) ListExpenses(ctx context.Context, ownerID int64, categoryFilter string, page, pageSize int) ([]core.Expense, error) {
	if page < 1 {
		return nil, core.ErrInvalidPage
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 1 {
		return nil, core.ErrInvalidPageSize
	}

	var category core.Category
	if categoryFilter != "" {
		parsed, err := core.ParseCategory(categoryFilter)
		if err != nil {
			return nil, err
		}
		category = parsed
	}

	offset := (page - 1) * pageSize
	expenses, err := s.storage.ListExpenses(ctx, ownerID, category, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	return expenses, nil
}

// GetExpense fetches one of the owner's expenses.
func (s *Service) GetExpense(ctx context.Context, ownerID, id int64) (core.Expense, error) {
	return s.storage.GetExpense(ctx, ownerID, id)
}

// EditExpense overwrites all mutable fields of an expense after verifying
// the caller owns it. Editing someone else's expense fails with
// core.ErrForbidden, a missing one with core.ErrNotFound.
func (s *Service) EditExpense(ctx context.Context, ownerID, id int64, in ExpenseInput) (core.Expense, error) {
	if err := s.checkOwnership(ctx, ownerID, id); err != nil {
		return core.Expense{}, err
	}

	expense, err := s.buildExpense(ctx, ownerID, in)
	if err != nil {
		return core.Expense{}, err
	}
	expense.ID = id

	if err := s.storage.UpdateExpense(ctx, expense); err != nil {
		return core.Expense{}, fmt.Errorf("edit expense: %w", err)
	}

	updated, err := s.storage.GetExpense(ctx, ownerID, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("reload edited expense: %w", err)
	}

	s.publishEvent(ctx, id, ownerID, amqp.ActionUpdated)
	return updated, nil
}

// DeleteExpense hard-deletes one of the owner's expenses, with the same
// ownership semantics as EditExpense.
func (s *Service) DeleteExpense(ctx context.Context, ownerID, id int64) error {
	if err := s.checkOwnership(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.storage.DeleteExpense(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.publishEvent(ctx, id, ownerID, amqp.ActionDeleted)
	return nil
}

// PageTotal sums the stored totals of the page passed in.
func (s *Service) PageTotal(expenses []core.Expense) float64 {
	return core.PageTotal(expenses)
}

// Summary returns the precomputed per-category totals for the owner.
func (s *Service) Summary(ctx context.Context, ownerID int64) (core.OwnerSummary, error) {
	return s.storage.GetOwnerSummary(ctx, ownerID)
}

// buildExpense validates the input and assembles an expense with its derived
// total. The classifier runs only when the caller requested
// auto-categorization by leaving the category empty.
func (s *Service) buildExpense(ctx context.Context, ownerID int64, in ExpenseInput) (core.Expense, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return core.Expense{}, core.ErrEmptyDescription
	}

	var category core.Category
	if in.Category == "" {
		category = s.autoCategorize(ctx, description)
	} else {
		parsed, err := core.ParseCategory(in.Category)
		if err != nil {
			return core.Expense{}, err
		}
		category = parsed
	}

	expense := core.Expense{
		OwnerID:      ownerID,
		Description:  description,
		Category:     category,
		Reimbursable: in.Reimbursable,
		Quantity:     in.Quantity,
		UnitPrice:    in.UnitPrice,
		Total:        in.Quantity * in.UnitPrice,
	}
	if err := expense.Validate(); err != nil {
		return core.Expense{}, err
	}

	return expense, nil
}

func (s *Service) autoCategorize(ctx context.Context, description string) core.Category {
	if s.categorizer == nil {
		return core.Other
	}
	return s.categorizer.Classify(ctx, description)
}

// checkOwnership distinguishes a missing expense from someone else's.
func (s *Service) checkOwnership(ctx context.Context, ownerID, id int64) error {
	actualOwner, err := s.storage.GetExpenseOwner(ctx, id)
	if err != nil {
		return err
	}
	if actualOwner != ownerID {
		return fmt.Errorf("expense %d: %w", id, core.ErrForbidden)
	}
	return nil
}

// publishEvent is best-effort: a broker outage must never fail a write that
// already committed.
func (s *Service) publishEvent(ctx context.Context, id, ownerID int64, action string) {
	if s.events == nil {
		return
	}
	msg := amqp.NewExpenseEventMessage(id, ownerID, action)
	if err := s.events.PublishExpenseEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"id", id,
			"owner_id", ownerID,
			"action", action,
			"error", err)
	}
}
