package service

import (
	"context"
	"fmt"

	"github.com/smallbiznis/marketplace/internal/availability/domain"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	"github.com/smallbiznis/marketplace/internal/lifecycle"
	obsmetrics "github.com/smallbiznis/marketplace/internal/observability/metrics"
	"github.com/smallbiznis/marketplace/internal/txerror"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Statuses that hold capacity or a date range.
var (
	slotHoldingStatuses  = []string{string(lifecycle.StatusPending), string(lifecycle.StatusConfirmed)}
	rangeHoldingStatuses = []string{string(lifecycle.StatusConfirmed), string(lifecycle.StatusCheckedIn)}
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Repo       domain.Repository
	CatalogSvc catalogdomain.CatalogService
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Checker struct {
	log     *zap.Logger
	repo    domain.Repository
	catalog catalogdomain.CatalogService
	metrics *obsmetrics.Metrics
}

func NewChecker(p Params) domain.Checker {
	return &Checker{
		log:     p.Log.Named("availability.checker"),
		repo:    p.Repo,
		catalog: p.CatalogSvc,
		metrics: p.ObsMetrics,
	}
}

func (c *Checker) CheckSlot(ctx context.Context, tx *gorm.DB, req domain.SlotRequest) (domain.SlotResult, error) {
	svc := req.Service
	if req.PartySize < 1 {
		return domain.SlotResult{}, txerror.NewFieldError("party_size", domain.ErrInvalidPartySize, "party size must be at least 1")
	}
	start, err := catalogdomain.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return domain.SlotResult{}, txerror.NewFieldError("start_time", domain.ErrInvalidStartTime, "start time must be HH:MM")
	}

	date := domain.DateOf(req.Date)
	dayOfWeek := int(date.Weekday())
	schedule, err := c.catalog.FindSchedule(ctx, tx, svc.ID, dayOfWeek)
	if err != nil {
		return domain.SlotResult{}, err
	}
	if schedule == nil || !schedule.IsAvailable {
		return domain.SlotResult{}, c.reject(ctx, lifecycle.KindBooking, txerror.NewFieldError(
			"booking_date", txerror.ErrNoScheduleForDay,
			fmt.Sprintf("service is not available on %s", date.Weekday()),
		))
	}

	windowStart, err := catalogdomain.ParseTimeOfDay(schedule.StartTime)
	if err != nil {
		return domain.SlotResult{}, fmt.Errorf("schedule %s start: %w", schedule.ID, err)
	}
	windowEnd, err := catalogdomain.ParseTimeOfDay(schedule.EndTime)
	if err != nil {
		return domain.SlotResult{}, fmt.Errorf("schedule %s end: %w", schedule.ID, err)
	}
	if start < windowStart || start >= windowEnd {
		return domain.SlotResult{}, c.reject(ctx, lifecycle.KindBooking, txerror.NewFieldError(
			"start_time", txerror.ErrOutsideScheduleWindow,
			fmt.Sprintf("start time must be between %s and %s", schedule.StartTime, schedule.EndTime),
		))
	}
	// Slots are keyed by a single booking_date, so one may not run past midnight.
	end := start + svc.DurationMinutes
	if end > catalogdomain.MinutesPerDay {
		return domain.SlotResult{}, c.reject(ctx, lifecycle.KindBooking, txerror.NewFieldError(
			"end_time", txerror.ErrOutsideScheduleWindow,
			fmt.Sprintf("slot would end after midnight (%d minutes from %s)", svc.DurationMinutes, catalogdomain.FormatTimeOfDay(start)),
		))
	}

	startTime := catalogdomain.FormatTimeOfDay(start)
	booked, err := c.repo.SumBookedPartySize(ctx, tx, svc.ID, date, startTime, slotHoldingStatuses)
	if err != nil {
		return domain.SlotResult{}, err
	}
	remaining := svc.MaxCapacity - booked
	if booked+req.PartySize > svc.MaxCapacity {
		if remaining < 0 {
			remaining = 0
		}
		return domain.SlotResult{}, c.reject(ctx, lifecycle.KindBooking, txerror.NewFieldError(
			"party_size", txerror.ErrCapacityExceeded,
			fmt.Sprintf("only %d of %d places left at %s", remaining, svc.MaxCapacity, startTime),
		))
	}

	return domain.SlotResult{
		DayOfWeek: dayOfWeek,
		StartTime: startTime,
		EndTime:   catalogdomain.FormatTimeOfDay(end),
		Remaining: remaining,
	}, nil
}

func (c *Checker) CheckRange(ctx context.Context, tx *gorm.DB, req domain.RangeRequest) (domain.RangeResult, error) {
	svc := req.Service
	if req.GuestCount < 1 {
		return domain.RangeResult{}, txerror.NewFieldError("guest_count", domain.ErrInvalidGuestCount, "guest count must be at least 1")
	}

	checkIn := domain.DateOf(req.CheckIn)
	checkOut := domain.DateOf(req.CheckOut)
	nights := domain.NightsBetween(checkIn, checkOut)
	if nights < 1 {
		return domain.RangeResult{}, c.reject(ctx, lifecycle.KindReservation, txerror.NewFieldError(
			"check_out", txerror.ErrInvalidRange, "check-out must be at least one day after check-in",
		))
	}

	overlapping, err := c.repo.CountOverlappingReservations(ctx, tx, svc.ID, checkIn, checkOut, rangeHoldingStatuses, req.ExcludeID)
	if err != nil {
		return domain.RangeResult{}, err
	}
	if overlapping > 0 {
		return domain.RangeResult{}, c.reject(ctx, lifecycle.KindReservation, txerror.NewFieldError(
			"check_in", txerror.ErrDateRangeConflict,
			fmt.Sprintf("unit is already reserved between %s and %s", domain.FormatDate(checkIn), domain.FormatDate(checkOut)),
		))
	}

	if req.GuestCount > svc.MaxCapacity {
		return domain.RangeResult{}, c.reject(ctx, lifecycle.KindReservation, txerror.NewFieldError(
			"guest_count", txerror.ErrCapacityExceeded,
			fmt.Sprintf("unit sleeps at most %d guests", svc.MaxCapacity),
		))
	}

	return domain.RangeResult{Nights: nights}, nil
}

func (c *Checker) CheckSellable(ctx context.Context, svc *catalogdomain.Service, quantity int) (domain.SellableResult, error) {
	if quantity < 1 {
		return domain.SellableResult{}, txerror.NewFieldError("quantity", domain.ErrInvalidQuantity, "quantity must be at least 1")
	}
	result := domain.SellableResult{}
	if svc.TrackStock && quantity > svc.StockQuantity {
		result.StockShortfall = true
		c.log.Warn("order exceeds tracked stock",
			zap.String("service_id", svc.ID.String()),
			zap.Int("quantity", quantity),
			zap.Int("stock_quantity", svc.StockQuantity),
		)
	}
	return result, nil
}

func (c *Checker) reject(ctx context.Context, kind lifecycle.Kind, err error) error {
	c.metrics.RecordAvailabilityRejected(ctx, string(kind), string(txerror.KindOf(err)))
	return err
}
