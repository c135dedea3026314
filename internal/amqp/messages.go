package amqp

import (
	"encoding/json"
	"time"
)

// Expense event actions carried on the queue.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ExpenseEventMessage tells the summary worker that one account's expenses
// changed. It carries only identifiers; the worker reads current state from
// the database, so stale or duplicate deliveries are harmless.
type ExpenseEventMessage struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEventMessage(id, ownerID int64, action string) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		ID:        id,
		OwnerID:   ownerID,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
