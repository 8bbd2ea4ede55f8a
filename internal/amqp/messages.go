package amqp

import (
	"encoding/json"
	"time"
)

// Event types published by the dashboard.
const (
	EventSessionEstablished = "session.established"
	EventSessionCleared     = "session.cleared"
	EventExpenseDeleted     = "expense.deleted"
	EventExpenseCreated     = "expense.created"
)

// DashboardEvent is a lightweight notification of something a user did.
// It never carries tokens or amounts.
type DashboardEvent struct {
	Type      string    `json:"type"`
	Username  string    `json:"username,omitempty"`
	ExpenseID string    `json:"expense_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDashboardEvent creates an event stamped with the current time
func NewDashboardEvent(eventType, username, expenseID string) *DashboardEvent {
	return &DashboardEvent{
		Type:      eventType,
		Username:  username,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DashboardEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DashboardEventFromJSON creates a message from JSON bytes
func DashboardEventFromJSON(data []byte) (*DashboardEvent, error) {
	var msg DashboardEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
