// Package txerror defines the error kinds shared by the transaction engines.
// Every kind is a caller-recoverable validation failure; callers classify
// them with errors.Is against the sentinels or with KindOf.
package txerror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindCapabilityDisabled    Kind = "capability_disabled"
	KindNoScheduleForDay      Kind = "no_schedule_for_day"
	KindOutsideScheduleWindow Kind = "outside_schedule_window"
	KindCapacityExceeded      Kind = "capacity_exceeded"
	KindInvalidRange          Kind = "invalid_range"
	KindDateRangeConflict     Kind = "date_range_conflict"
	KindIllegalTransition     Kind = "illegal_transition"
	KindDuplicateOrderNumber  Kind = "duplicate_order_number"
)

var (
	ErrNotFound              = errors.New(string(KindNotFound))
	ErrCapabilityDisabled    = errors.New(string(KindCapabilityDisabled))
	ErrNoScheduleForDay      = errors.New(string(KindNoScheduleForDay))
	ErrOutsideScheduleWindow = errors.New(string(KindOutsideScheduleWindow))
	ErrCapacityExceeded      = errors.New(string(KindCapacityExceeded))
	ErrInvalidRange          = errors.New(string(KindInvalidRange))
	ErrDateRangeConflict     = errors.New(string(KindDateRangeConflict))
	ErrIllegalTransition     = errors.New(string(KindIllegalTransition))
	ErrDuplicateOrderNumber  = errors.New(string(KindDuplicateOrderNumber))
)

var kinds = []struct {
	kind Kind
	err  error
}{
	{KindNotFound, ErrNotFound},
	{KindCapabilityDisabled, ErrCapabilityDisabled},
	{KindNoScheduleForDay, ErrNoScheduleForDay},
	{KindOutsideScheduleWindow, ErrOutsideScheduleWindow},
	{KindCapacityExceeded, ErrCapacityExceeded},
	{KindInvalidRange, ErrInvalidRange},
	{KindDateRangeConflict, ErrDateRangeConflict},
	{KindIllegalTransition, ErrIllegalTransition},
	{KindDuplicateOrderNumber, ErrDuplicateOrderNumber},
}

// FieldError attaches a request field to an error kind.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// IllegalTransitionError reports a rejected status change.
type IllegalTransitionError struct {
	Kind string
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition from %q to %q", e.Kind, e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

func NewFieldError(field string, err error, message string) error {
	return &FieldError{Field: field, Err: err, Message: message}
}

func NotFound(field string) error {
	return &FieldError{Field: field, Err: ErrNotFound, Message: "not found"}
}

// KindOf returns the kind carried by err, or "" when err is not one of ours.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// FieldOf returns the attributed field, defaulting by kind.
func FieldOf(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) && fe.Field != "" {
		return fe.Field
	}
	var ite *IllegalTransitionError
	if errors.As(err, &ite) {
		return "status"
	}
	return ""
}

// MessageOf returns a human readable message for err.
func MessageOf(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	var ite *IllegalTransitionError
	if errors.As(err, &ite) {
		return fmt.Sprintf("cannot change status from %s to %s", ite.From, ite.To)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
