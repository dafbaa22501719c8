package domain

import "errors"

var (
	ErrInvalidID              = errors.New("invalid_id")
	ErrNotFound               = errors.New("not_found")
	ErrInvalidTransactionType = errors.New("invalid_transaction_type")
	ErrInvalidRatePercentage  = errors.New("invalid_rate_percentage")
	ErrInvalidSubtotal        = errors.New("invalid_subtotal")
	ErrActiveFeeConflict      = errors.New("active_fee_conflict")
)
