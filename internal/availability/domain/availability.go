package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidDate       = errors.New("invalid_date")
	ErrInvalidStartTime  = errors.New("invalid_start_time")
	ErrInvalidPartySize  = errors.New("invalid_party_size")
	ErrInvalidGuestCount = errors.New("invalid_guest_count")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
)

type SlotRequest struct {
	Service   *catalogdomain.Service
	Date      time.Time
	StartTime string
	PartySize int
}

type SlotResult struct {
	DayOfWeek int
	StartTime string
	EndTime   string
	// Remaining is the capacity left in the slot before this request.
	Remaining int
}

type RangeRequest struct {
	Service    *catalogdomain.Service
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
	// ExcludeID skips a reservation already holding the range, used when it
	// is being confirmed itself.
	ExcludeID snowflake.ID
}

type RangeResult struct {
	Nights int
}

type SellableResult struct {
	// StockShortfall is advisory; orders are accepted regardless.
	StockShortfall bool
}

// Checker decides whether a service can take a request. Checks that read
// existing transactions must run through the caller's transaction with the
// service row already locked.
type Checker interface {
	CheckSlot(ctx context.Context, tx *gorm.DB, req SlotRequest) (SlotResult, error)
	CheckRange(ctx context.Context, tx *gorm.DB, req RangeRequest) (RangeResult, error)
	CheckSellable(ctx context.Context, service *catalogdomain.Service, quantity int) (SellableResult, error)
}

type Repository interface {
	SumBookedPartySize(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, date time.Time, startTime string, statuses []string) (int, error)
	CountOverlappingReservations(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, checkIn, checkOut time.Time, statuses []string, excludeID snowflake.ID) (int64, error)
}

// ParseDate reads a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NightsBetween counts calendar nights in [checkIn, checkOut).
func NightsBetween(checkIn, checkOut time.Time) int {
	return int(DateOf(checkOut).Sub(DateOf(checkIn)).Hours() / 24)
}
