// Package events publishes transaction lifecycle events after commit.
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	suffixCreated       = ".created"
	suffixStatusChanged = ".status_changed"
)

// Event is the envelope written to the transactions topic. Type is the
// transaction kind followed by ".created" or ".status_changed". TransactionID
// is also the message key so every event of one transaction lands on the same
// partition.
type Event struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Kind           string         `json:"kind"`
	TransactionID  string         `json:"transaction_id"`
	MerchantID     string         `json:"merchant_id"`
	Status         string         `json:"status"`
	PreviousStatus string         `json:"previous_status,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
	RequestID      string         `json:"request_id,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

func NewCreated(kind, transactionID, merchantID, status string, at time.Time, data map[string]any) Event {
	return Event{
		ID:            ulid.Make().String(),
		Type:          kind + suffixCreated,
		Kind:          kind,
		TransactionID: transactionID,
		MerchantID:    merchantID,
		Status:        status,
		OccurredAt:    at.UTC(),
		Data:          data,
	}
}

func NewStatusChanged(kind, transactionID, merchantID, from, to string, at time.Time) Event {
	return Event{
		ID:             ulid.Make().String(),
		Type:           kind + suffixStatusChanged,
		Kind:           kind,
		TransactionID:  transactionID,
		MerchantID:     merchantID,
		Status:         to,
		PreviousStatus: from,
		OccurredAt:     at.UTC(),
	}
}
