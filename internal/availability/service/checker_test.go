package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/marketplace/internal/availability/domain"
	"github.com/smallbiznis/marketplace/internal/availability/repository"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/marketplace/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/marketplace/internal/catalog/service"
	"github.com/smallbiznis/marketplace/internal/clock"
	merchantrepository "github.com/smallbiznis/marketplace/internal/merchant/repository"
	"github.com/smallbiznis/marketplace/internal/testutil"
	"github.com/smallbiznis/marketplace/internal/txerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 2024-06-03 is a Monday.
var monday = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	checker  domain.Checker
	bookable *catalogdomain.Service
	unit     *catalogdomain.Service
}

func newFixture(t *testing.T) *fixture {
	db := testutil.OpenSQLite(t, &catalogdomain.Service{}, &catalogdomain.ServiceSchedule{})
	require.NoError(t, db.Exec(`CREATE TABLE bookings (
		id BIGINT PRIMARY KEY,
		service_id BIGINT NOT NULL,
		booking_date DATE NOT NULL,
		start_time TEXT NOT NULL,
		party_size INTEGER NOT NULL,
		status TEXT NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE reservations (
		id BIGINT PRIMARY KEY,
		service_id BIGINT NOT NULL,
		check_in DATE NOT NULL,
		check_out DATE NOT NULL,
		status TEXT NOT NULL
	)`).Error)

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	catalogRepo := catalogrepository.Provide()
	bookable := &catalogdomain.Service{
		ID: 10, MerchantID: 1, Name: "Massage", Slug: "massage", ServiceType: catalogdomain.ServiceTypeBookable,
		Price: decimal.NewFromInt(50), IsActive: true, DurationMinutes: 60, MaxCapacity: 2,
		CreatedAt: now, UpdatedAt: now,
	}
	unit := &catalogdomain.Service{
		ID: 20, MerchantID: 1, Name: "Cabin", Slug: "cabin", ServiceType: catalogdomain.ServiceTypeReservation,
		PricePerNight: decimal.NewFromInt(80), IsActive: true, MaxCapacity: 4, UnitStatus: catalogdomain.UnitStatusAvailable,
		CreatedAt: now, UpdatedAt: now,
	}
	ctx := context.Background()
	require.NoError(t, catalogRepo.InsertService(ctx, db, bookable))
	require.NoError(t, catalogRepo.InsertService(ctx, db, unit))
	require.NoError(t, catalogRepo.ReplaceSchedules(ctx, db, bookable.ID, []catalogdomain.ServiceSchedule{
		{ID: 11, ServiceID: bookable.ID, DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsAvailable: true, CreatedAt: now, UpdatedAt: now},
		{ID: 12, ServiceID: bookable.ID, DayOfWeek: 2, StartTime: "09:00", EndTime: "17:00", IsAvailable: false, CreatedAt: now, UpdatedAt: now},
	}))

	catalogSvc := catalogservice.New(catalogservice.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        testutil.Node(t),
		Clock:        clock.NewFakeClock(now),
		Repo:         catalogRepo,
		MerchantRepo: merchantrepository.Provide(),
	})
	checker := NewChecker(Params{Log: zap.NewNop(), Repo: repository.Provide(), CatalogSvc: catalogSvc})
	return &fixture{db: db, checker: checker, bookable: bookable, unit: unit}
}

func (f *fixture) addBooking(t *testing.T, id int64, date time.Time, start string, party int, status string) {
	require.NoError(t, f.db.Exec(
		`INSERT INTO bookings (id, service_id, booking_date, start_time, party_size, status) VALUES (?, ?, ?, ?, ?, ?)`,
		id, f.bookable.ID, date, start, party, status,
	).Error)
}

func (f *fixture) addReservation(t *testing.T, id int64, checkIn, checkOut time.Time, status string) {
	require.NoError(t, f.db.Exec(
		`INSERT INTO reservations (id, service_id, check_in, check_out, status) VALUES (?, ?, ?, ?, ?)`,
		id, f.unit.ID, checkIn, checkOut, status,
	).Error)
}

func date(s string) time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCheckSlotCapacityPerExactStartTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addBooking(t, 1, monday, "09:00", 1, "confirmed")
	res, err := f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday, StartTime: "09:00", PartySize: 1})
	require.NoError(t, err)
	assert.Equal(t, "10:00", res.EndTime)
	assert.Equal(t, 1, res.DayOfWeek)

	f.addBooking(t, 2, monday, "09:00", 1, "pending")
	_, err = f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday, StartTime: "09:00", PartySize: 1})
	assert.True(t, errors.Is(err, txerror.ErrCapacityExceeded))
	assert.Equal(t, "party_size", txerror.FieldOf(err))

	// Cancelled bookings release their places.
	f.addBooking(t, 3, monday, "10:00", 2, "cancelled")
	_, err = f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday, StartTime: "10:00", PartySize: 2})
	assert.NoError(t, err)

	// Overlapping windows with a different start time do not share capacity.
	_, err = f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday, StartTime: "09:30", PartySize: 2})
	assert.NoError(t, err)

	// Another Monday is a separate slot.
	_, err = f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday.AddDate(0, 0, 7), StartTime: "09:00", PartySize: 2})
	assert.NoError(t, err)
}

func TestCheckSlotScheduleWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday.AddDate(0, 0, 1), StartTime: "09:00", PartySize: 1})
	assert.True(t, errors.Is(err, txerror.ErrNoScheduleForDay), "unavailable tuesday")
	assert.Equal(t, "booking_date", txerror.FieldOf(err))

	_, err = f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday.AddDate(0, 0, 2), StartTime: "09:00", PartySize: 1})
	assert.True(t, errors.Is(err, txerror.ErrNoScheduleForDay), "no wednesday row")

	_, err = f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday, StartTime: "08:59", PartySize: 1})
	assert.True(t, errors.Is(err, txerror.ErrOutsideScheduleWindow))
	assert.Equal(t, "start_time", txerror.FieldOf(err))

	_, err = f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday, StartTime: "17:00", PartySize: 1})
	assert.True(t, errors.Is(err, txerror.ErrOutsideScheduleWindow))

	_, err = f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday, StartTime: "16:59", PartySize: 1})
	assert.NoError(t, err)

	_, err = f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday, StartTime: "9am", PartySize: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidStartTime)

	_, err = f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday, StartTime: "09:00", PartySize: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidPartySize)
}

func TestCheckSlotMayNotRunPastMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, catalogrepository.Provide().ReplaceSchedules(ctx, f.db, f.bookable.ID, []catalogdomain.ServiceSchedule{
		{ID: 11, ServiceID: f.bookable.ID, DayOfWeek: 1, StartTime: "09:00", EndTime: "23:59", IsAvailable: true, CreatedAt: now, UpdatedAt: now},
	}))

	_, err := f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday, StartTime: "23:30", PartySize: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, txerror.ErrOutsideScheduleWindow))
	assert.Equal(t, "end_time", txerror.FieldOf(err))
	assert.Contains(t, txerror.MessageOf(err), "after midnight")

	res, err := f.checker.CheckSlot(ctx, f.db, domain.SlotRequest{Service: f.bookable, Date: monday, StartTime: "23:00", PartySize: 1})
	require.NoError(t, err)
	assert.Equal(t, "00:00", res.EndTime)
}

func TestCheckRangeHalfOpenOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addReservation(t, 1, date("2024-06-01"), date("2024-06-05"), "confirmed")
	f.addReservation(t, 2, date("2024-06-10"), date("2024-06-12"), "pending")
	f.addReservation(t, 3, date("2024-06-20"), date("2024-06-22"), "cancelled")

	_, err := f.checker.CheckRange(ctx, f.db, domain.RangeRequest{Service: f.unit, CheckIn: date("2024-06-04"), CheckOut: date("2024-06-06"), GuestCount: 2})
	assert.True(t, errors.Is(err, txerror.ErrDateRangeConflict))
	assert.Equal(t, "check_in", txerror.FieldOf(err))

	res, err := f.checker.CheckRange(ctx, f.db, domain.RangeRequest{Service: f.unit, CheckIn: date("2024-06-05"), CheckOut: date("2024-06-07"), GuestCount: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Nights)

	_, err = f.checker.CheckRange(ctx, f.db, domain.RangeRequest{Service: f.unit, CheckIn: date("2024-05-30"), CheckOut: date("2024-06-01"), GuestCount: 1})
	assert.NoError(t, err)

	// Pending and cancelled reservations do not hold the range.
	_, err = f.checker.CheckRange(ctx, f.db, domain.RangeRequest{Service: f.unit, CheckIn: date("2024-06-10"), CheckOut: date("2024-06-12"), GuestCount: 1})
	assert.NoError(t, err)
	_, err = f.checker.CheckRange(ctx, f.db, domain.RangeRequest{Service: f.unit, CheckIn: date("2024-06-21"), CheckOut: date("2024-06-23"), GuestCount: 1})
	assert.NoError(t, err)

	// A reservation does not conflict with itself.
	_, err = f.checker.CheckRange(ctx, f.db, domain.RangeRequest{Service: f.unit, CheckIn: date("2024-06-01"), CheckOut: date("2024-06-05"), GuestCount: 1, ExcludeID: snowflake.ID(1)})
	assert.NoError(t, err)
}

func TestCheckRangeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.checker.CheckRange(ctx, f.db, domain.RangeRequest{Service: f.unit, CheckIn: date("2024-06-05"), CheckOut: date("2024-06-05"), GuestCount: 1})
	assert.True(t, errors.Is(err, txerror.ErrInvalidRange))
	assert.Equal(t, "check_out", txerror.FieldOf(err))

	_, err = f.checker.CheckRange(ctx, f.db, domain.RangeRequest{Service: f.unit, CheckIn: date("2024-06-05"), CheckOut: date("2024-06-01"), GuestCount: 1})
	assert.True(t, errors.Is(err, txerror.ErrInvalidRange))

	_, err = f.checker.CheckRange(ctx, f.db, domain.RangeRequest{Service: f.unit, CheckIn: date("2024-06-05"), CheckOut: date("2024-06-06"), GuestCount: 5})
	assert.True(t, errors.Is(err, txerror.ErrCapacityExceeded))
	assert.Equal(t, "guest_count", txerror.FieldOf(err))

	_, err = f.checker.CheckRange(ctx, f.db, domain.RangeRequest{Service: f.unit, CheckIn: date("2024-06-05"), CheckOut: date("2024-06-06"), GuestCount: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidGuestCount)
}

func TestCheckSellable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soap := &catalogdomain.Service{ID: 30, ServiceType: catalogdomain.ServiceTypeSellable, TrackStock: true, StockQuantity: 2}

	res, err := f.checker.CheckSellable(ctx, soap, 3)
	require.NoError(t, err)
	assert.True(t, res.StockShortfall)

	res, err = f.checker.CheckSellable(ctx, soap, 2)
	require.NoError(t, err)
	assert.False(t, res.StockShortfall)

	_, err = f.checker.CheckSellable(ctx, soap, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}
