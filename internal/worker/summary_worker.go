// Package worker keeps the precomputed per-category totals in step with the
// expense ledger by consuming expense change events.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aditi5926/expense-tracker/internal/amqp"
	"github.com/aditi5926/expense-tracker/internal/storage"
)

type SummaryWorker struct {
	storage *storage.SQLiteRepository
}

func NewSummaryWorker(storage *storage.SQLiteRepository) *SummaryWorker {
	return &SummaryWorker{storage: storage}
}

// HandleExpenseEvent rebuilds the owner's category totals. The rebuild reads
// current state from the database, so event ordering and duplicate delivery
// don't matter.
func (w *SummaryWorker) HandleExpenseEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	if msg.OwnerID <= 0 {
		return fmt.Errorf("expense event without owner: id=%d action=%s", msg.ID, msg.Action)
	}

	slog.InfoContext(ctx, "Processing expense event",
		"id", msg.ID,
		"owner_id", msg.OwnerID,
		"action", msg.Action)

	if err := w.storage.RefreshOwnerTotals(ctx, msg.OwnerID); err != nil {
		return fmt.Errorf("refresh totals for owner %d: %w", msg.OwnerID, err)
	}

	return nil
}
