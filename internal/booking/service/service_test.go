package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/marketplace/internal/booking/domain"
	"github.com/smallbiznis/marketplace/internal/booking/repository"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	"github.com/smallbiznis/marketplace/internal/testutil/enginetest"
	"github.com/smallbiznis/marketplace/internal/txerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	*enginetest.Harness
	svc      domain.Service
	merchant *merchantdomain.Merchant
	service  *catalogdomain.Service
}

// newFixture creates a merchant with a bookable service open Mondays 09:00-17:00.
func newFixture(t *testing.T, requiresConfirmation bool) *fixture {
	return fixtureOn(t, enginetest.New(t, &domain.Booking{}), requiresConfirmation)
}

func fixtureOn(t *testing.T, h *enginetest.Harness, requiresConfirmation bool) *fixture {
	merchant := h.Merchant(t, "salon")
	service := h.BookableService(t, merchant.ID, "100.00", 60, 2, requiresConfirmation)
	h.Schedule(t, service.ID, int(time.Monday), "09:00", "17:00")

	svc := New(Params{
		DB:          h.DB,
		Log:         h.Log,
		GenID:       h.Node,
		Clock:       h.Clock,
		Repo:        repository.Provide(),
		MerchantSvc: h.Merchants,
		CatalogSvc:  h.Catalog,
		Checker:     h.Checker,
		Calculator:  h.Calculator,
		AuditSvc:    h.Audit,
		Publisher:   h.Events,
	})
	return &fixture{Harness: h, svc: svc, merchant: merchant, service: service}
}

func (f *fixture) book(startTime string, partySize int) (*domain.Response, error) {
	return f.svc.Create(context.Background(), f.merchant.ID.String(), "customer-1", domain.CreateRequest{
		ServiceID:   f.service.ID.String(),
		BookingDate: "2024-06-03",
		StartTime:   startTime,
		PartySize:   partySize,
	})
}

// bookConcurrently races n single-guest bookings for the 09:00 slot.
func (f *fixture) bookConcurrently(n int) []error {
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.book("09:00", 1)
		}(i)
	}
	wg.Wait()
	return results
}

func (f *fixture) bookedPartySize(t *testing.T) int {
	var total int
	require.NoError(t, f.DB.Raw(
		`SELECT COALESCE(SUM(party_size), 0) FROM bookings WHERE service_id = ? AND start_time = ? AND status <> 'cancelled'`,
		f.service.ID, "09:00",
	).Scan(&total).Error)
	return total
}

func assertCapacityHeld(t *testing.T, f *fixture, results []error) {
	t.Helper()
	var succeeded int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, txerror.ErrCapacityExceeded):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, f.service.MaxCapacity, succeeded)
	assert.LessOrEqual(t, f.bookedPartySize(t), f.service.MaxCapacity)
}

func TestConcurrentCreatesNeverOverbookSlot(t *testing.T) {
	f := newFixture(t, false)
	assertCapacityHeld(t, f, f.bookConcurrently(8))
}

func TestCreateEnforcesSlotCapacity(t *testing.T) {
	f := newFixture(t, false)

	first, err := f.book("09:00", 1)
	require.NoError(t, err)
	assert.Equal(t, "10:00", first.EndTime)
	assert.Equal(t, "confirmed", first.Status)
	assert.NotNil(t, first.ConfirmedAt)

	_, err = f.book("09:00", 1)
	require.NoError(t, err)

	_, err = f.book("09:00", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, txerror.ErrCapacityExceeded))
	assert.Equal(t, "party_size", txerror.FieldOf(err))

	var count int64
	require.NoError(t, f.DB.Model(&domain.Booking{}).Where("start_time = ?", "09:00").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestCancelledBookingReleasesCapacity(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	first, err := f.book("11:00", 2)
	require.NoError(t, err)
	_, err = f.book("11:00", 1)
	assert.True(t, errors.Is(err, txerror.ErrCapacityExceeded))

	_, err = f.svc.UpdateStatus(ctx, f.merchant.ID.String(), first.ID, "cancelled")
	require.NoError(t, err)

	_, err = f.book("11:00", 2)
	assert.NoError(t, err)
}

func TestCreateSnapshotsPricingAndSummaries(t *testing.T) {
	f := newFixture(t, false)
	f.ActiveFee(t, feedomain.TransactionTypeBooking, "10")

	resp, err := f.book("09:00", 1)
	require.NoError(t, err)
	assert.Equal(t, "100.00", resp.ServicePrice)
	assert.Equal(t, "10.00", resp.FeeRate)
	assert.Equal(t, "10.00", resp.FeeAmount)
	assert.Equal(t, "110.00", resp.TotalAmount)
	assert.Equal(t, "customer-1", resp.CustomerID)
	assert.Equal(t, "2024-06-03", resp.BookingDate)
	require.NotNil(t, resp.Service)
	assert.Equal(t, f.service.ID.String(), resp.Service.ID)
	require.NotNil(t, resp.Merchant)
	assert.Equal(t, f.merchant.Name, resp.Merchant.Name)

	recorded := f.Events.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, "booking.created", recorded[0].Type)
	assert.Equal(t, resp.ID, recorded[0].TransactionID)
	assert.Equal(t, []string{"booking.created"}, f.AuditActions(t, f.merchant.ID))
}

func TestCreateRequiringConfirmationStartsPending(t *testing.T) {
	f := newFixture(t, true)

	resp, err := f.book("09:00", 1)
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
	assert.Nil(t, resp.ConfirmedAt)
}

func TestCreateRejectsScheduleViolations(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.merchant.ID.String(), "customer-1", domain.CreateRequest{
		ServiceID:   f.service.ID.String(),
		BookingDate: "2024-06-04",
		StartTime:   "09:00",
		PartySize:   1,
	})
	assert.True(t, errors.Is(err, txerror.ErrNoScheduleForDay))

	_, err = f.book("17:30", 1)
	assert.True(t, errors.Is(err, txerror.ErrOutsideScheduleWindow))
	assert.Equal(t, "start_time", txerror.FieldOf(err))

	_, err = f.svc.Create(ctx, f.merchant.ID.String(), "customer-1", domain.CreateRequest{
		ServiceID:   f.service.ID.String(),
		BookingDate: "03-06-2024",
		StartTime:   "09:00",
		PartySize:   1,
	})
	assert.Equal(t, "booking_date", txerror.FieldOf(err))

	_, err = f.svc.Create(ctx, f.merchant.ID.String(), " ", domain.CreateRequest{ServiceID: f.service.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidRequester)
}

func TestCreateChecksMerchantAndService(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	req := domain.CreateRequest{ServiceID: f.service.ID.String(), BookingDate: "2024-06-03", StartTime: "09:00", PartySize: 1}

	_, err := f.svc.Create(ctx, "12345", "customer-1", req)
	assert.True(t, errors.Is(err, txerror.ErrNotFound))
	assert.Equal(t, "merchant_id", txerror.FieldOf(err))

	suspended := f.Merchant(t, "closed", enginetest.Suspended())
	_, err = f.svc.Create(ctx, suspended.ID.String(), "customer-1", req)
	assert.Equal(t, "merchant_id", txerror.FieldOf(err))

	noBookings := f.Merchant(t, "shop", func(m *merchantdomain.Merchant) { m.CanTakeBookings = false })
	_, err = f.svc.Create(ctx, noBookings.ID.String(), "customer-1", req)
	assert.True(t, errors.Is(err, txerror.ErrCapabilityDisabled))

	// Another merchant cannot book this merchant's service.
	other := f.Merchant(t, "other")
	_, err = f.svc.Create(ctx, other.ID.String(), "customer-1", req)
	assert.True(t, errors.Is(err, txerror.ErrNotFound))
	assert.Equal(t, "service_id", txerror.FieldOf(err))

	// A branch books from its parent's catalog.
	branch := f.Merchant(t, "branch", enginetest.WithParent(f.merchant))
	resp, err := f.svc.Create(ctx, branch.ID.String(), "customer-1", req)
	require.NoError(t, err)
	assert.Equal(t, branch.ID.String(), resp.MerchantID)
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	merchantID := f.merchant.ID.String()

	created, err := f.book("09:00", 1)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, merchantID, created.ID, "completed")
	require.Error(t, err)
	assert.True(t, errors.Is(err, txerror.ErrIllegalTransition))
	assert.Equal(t, "status", txerror.FieldOf(err))

	got, err := f.svc.Get(ctx, merchantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)

	f.Clock.Advance(time.Hour)
	confirmed, err := f.svc.UpdateStatus(ctx, merchantID, created.ID, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Nil(t, confirmed.CompletedAt)

	f.Clock.Advance(time.Hour)
	completed, err := f.svc.UpdateStatus(ctx, merchantID, created.ID, "completed")
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	assert.True(t, completed.CompletedAt.After(*completed.ConfirmedAt))

	stored, err := f.svc.Get(ctx, merchantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", stored.Status)
	assert.NotNil(t, stored.ConfirmedAt)
	assert.NotNil(t, stored.CompletedAt)

	assert.Equal(t, []string{"booking.created", "booking.status_changed", "booking.status_changed"}, f.AuditActions(t, f.merchant.ID))
}

func TestUpdateStatusKeepsMonetarySnapshot(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.ActiveFee(t, feedomain.TransactionTypeBooking, "10")

	created, err := f.book("09:00", 1)
	require.NoError(t, err)

	// Price and fee changes after creation must not leak into the booking.
	require.NoError(t, f.DB.Exec(`UPDATE services SET price = 250 WHERE id = ?`, f.service.ID).Error)
	require.NoError(t, f.DB.Exec(`UPDATE platform_fees SET rate_percentage = 20`).Error)

	updated, err := f.svc.UpdateStatus(ctx, f.merchant.ID.String(), created.ID, "completed")
	require.NoError(t, err)
	assert.Equal(t, created.ServicePrice, updated.ServicePrice)
	assert.Equal(t, created.FeeRate, updated.FeeRate)
	assert.Equal(t, created.FeeAmount, updated.FeeAmount)
	assert.Equal(t, created.TotalAmount, updated.TotalAmount)
}

func TestUpdateStatusRejectsRepeatedStatus(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	created, err := f.book("09:00", 1)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.merchant.ID.String(), created.ID, "confirmed")
	assert.True(t, errors.Is(err, txerror.ErrIllegalTransition))

	_, err = f.svc.UpdateStatus(ctx, f.merchant.ID.String(), created.ID, "cancelled")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.merchant.ID.String(), created.ID, "cancelled")
	require.Error(t, err)
	assert.True(t, errors.Is(err, txerror.ErrIllegalTransition))
	assert.Equal(t, "status", txerror.FieldOf(err))

	got, err := f.svc.Get(ctx, f.merchant.ID.String(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)
	assert.Len(t, f.Events.Events(), 2)
	assert.Equal(t, []string{"booking.created", "booking.status_changed"}, f.AuditActions(t, f.merchant.ID))
}

func TestUpdateStatusIsTenantScoped(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	created, err := f.book("09:00", 1)
	require.NoError(t, err)

	other := f.Merchant(t, "other")
	_, err = f.svc.UpdateStatus(ctx, other.ID.String(), created.ID, "cancelled")
	assert.True(t, errors.Is(err, txerror.ErrNotFound))
	assert.Equal(t, "booking_id", txerror.FieldOf(err))

	_, err = f.svc.Get(ctx, other.ID.String(), created.ID)
	assert.True(t, errors.Is(err, txerror.ErrNotFound))

	_, err = f.svc.UpdateStatus(ctx, f.merchant.ID.String(), created.ID, "checked_in")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestListFiltersAndPages(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	for _, start := range []string{"09:00", "10:00", "11:00"} {
		_, err := f.book(start, 1)
		require.NoError(t, err)
		f.Clock.Advance(time.Minute)
	}

	page, err := f.svc.List(ctx, f.merchant.ID.String(), domain.ListRequest{
		Pagination: paginationOf(2, ""),
	})
	require.NoError(t, err)
	require.Len(t, page.Bookings, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "11:00", page.Bookings[0].StartTime)

	next, err := f.svc.List(ctx, f.merchant.ID.String(), domain.ListRequest{
		Pagination: paginationOf(2, page.NextPageToken),
	})
	require.NoError(t, err)
	require.Len(t, next.Bookings, 1)
	assert.False(t, next.HasMore)
	assert.Equal(t, "09:00", next.Bookings[0].StartTime)

	filtered, err := f.svc.List(ctx, f.merchant.ID.String(), domain.ListRequest{
		Status: "confirmed",
		From:   "2024-06-03",
		To:     "2024-06-03",
	})
	require.NoError(t, err)
	assert.Len(t, filtered.Bookings, 3)

	none, err := f.svc.List(ctx, f.merchant.ID.String(), domain.ListRequest{From: "2024-06-04"})
	require.NoError(t, err)
	assert.Empty(t, none.Bookings)

	_, err = f.svc.List(ctx, f.merchant.ID.String(), domain.ListRequest{Status: "ready"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.List(ctx, f.merchant.ID.String(), domain.ListRequest{Pagination: paginationOf(0, "garbage")})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}
