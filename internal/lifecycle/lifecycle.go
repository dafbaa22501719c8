// Package lifecycle holds the status transition tables of the three
// transaction kinds and the validator that enforces them.
package lifecycle

import (
	"strings"

	"github.com/smallbiznis/marketplace/internal/txerror"
)

type Kind string

const (
	KindBooking      Kind = "booking"
	KindReservation  Kind = "reservation"
	KindServiceOrder Kind = "service_order"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
	StatusNoShow     Status = "no_show"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusReceived   Status = "received"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusDelivering Status = "delivering"
)

// Table lists, per kind, every status and the statuses it may move to.
// A status with an empty list is terminal.
var Table = map[Kind]map[Status][]Status{
	KindBooking: {
		StatusPending:   {StatusConfirmed, StatusCancelled},
		StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
		StatusCompleted: nil,
		StatusCancelled: nil,
		StatusNoShow:    nil,
	},
	KindReservation: {
		StatusPending:    {StatusConfirmed, StatusCancelled},
		StatusConfirmed:  {StatusCheckedIn, StatusCancelled},
		StatusCheckedIn:  {StatusCheckedOut},
		StatusCheckedOut: nil,
		StatusCancelled:  nil,
	},
	KindServiceOrder: {
		StatusPending:    {StatusReceived, StatusCancelled},
		StatusReceived:   {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusReady},
		StatusReady:      {StatusCompleted, StatusDelivering},
		StatusDelivering: {StatusCompleted},
		StatusCompleted:  nil,
		StatusCancelled:  nil,
	},
}

var stampColumns = map[Status]string{
	StatusConfirmed:  "confirmed_at",
	StatusCancelled:  "cancelled_at",
	StatusCheckedIn:  "checked_in_at",
	StatusCheckedOut: "checked_out_at",
	StatusReceived:   "received_at",
	StatusCompleted:  "completed_at",
}

func CanTransition(kind Kind, from, to Status) bool {
	for _, next := range Table[kind][from] {
		if next == to {
			return true
		}
	}
	return false
}

// Validate returns a *txerror.IllegalTransitionError when from -> to is not in the table.
func Validate(kind Kind, from, to Status) error {
	if CanTransition(kind, from, to) {
		return nil
	}
	return &txerror.IllegalTransitionError{Kind: string(kind), From: string(from), To: string(to)}
}

func IsTerminal(kind Kind, status Status) bool {
	next, ok := Table[kind][status]
	return ok && len(next) == 0
}

// Known reports whether status belongs to kind.
func Known(kind Kind, status Status) bool {
	_, ok := Table[kind][status]
	return ok
}

// Statuses returns the statuses of kind in transition order.
func Statuses(kind Kind) []Status {
	out := make([]Status, 0, len(Table[kind]))
	seen := map[Status]bool{}
	var walk func(Status)
	walk = func(s Status) {
		if seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
		for _, next := range Table[kind][s] {
			walk(next)
		}
	}
	if _, ok := Table[kind][StatusPending]; ok {
		walk(StatusPending)
	}
	return out
}

// ParseStatus normalizes value and checks it belongs to kind.
func ParseStatus(kind Kind, value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	return status, Known(kind, status)
}

// StampField names the timestamp column set when a transaction enters status.
// Statuses without a column only touch updated_at.
func StampField(status Status) (string, bool) {
	column, ok := stampColumns[status]
	return column, ok
}
