package core

import (
	"strings"
	"time"
)

const (
	Food     Category = "Food"
	Travel   Category = "Travel"
	Supplies Category = "Supplies"
	Other    Category = "Other"
)

// Categories lists the valid categories in canonical order. The classifier
// normalizes remote responses by scanning this slice first-match-wins, so the
// order is part of the contract.
var Categories = []Category{Food, Travel, Supplies, Other}

type (
	Category string

	Account struct {
		ID           int64
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}

	Expense struct {
		ID           int64
		OwnerID      int64
		Description  string
		Category     Category
		Reimbursable bool
		Quantity     float64
		UnitPrice    float64
		Total        float64 // always Quantity * UnitPrice, recomputed on every write
		CreatedAt    time.Time
	}
)

// ParseCategory maps a string onto one of the fixed categories,
// case-insensitively. Returns ErrInvalidCategory for anything outside the set.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if e.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if e.UnitPrice < 0 {
		return ErrInvalidUnitPrice
	}
	return nil
}

// PageTotal sums the stored totals of the expenses passed in. It is a
// page-scoped aggregate: callers hand it the current page, not the full
// filtered set.
func PageTotal(expenses []Expense) float64 {
	var sum float64
	for _, e := range expenses {
		sum += e.Total
	}
	return sum
}
