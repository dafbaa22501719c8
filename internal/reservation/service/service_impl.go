package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/marketplace/internal/audit/domain"
	availabilitydomain "github.com/smallbiznis/marketplace/internal/availability/domain"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/events"
	"github.com/smallbiznis/marketplace/internal/lifecycle"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	obsmetrics "github.com/smallbiznis/marketplace/internal/observability/metrics"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	"github.com/smallbiznis/marketplace/internal/reservation/domain"
	"github.com/smallbiznis/marketplace/internal/txerror"
	"github.com/smallbiznis/marketplace/pkg/db"
	"github.com/smallbiznis/marketplace/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const kind = lifecycle.KindReservation

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	MerchantSvc merchantdomain.Service
	CatalogSvc  catalogdomain.CatalogService
	Checker     availabilitydomain.Checker
	Calculator  feedomain.Calculator
	AuditSvc    auditdomain.Service `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
	Publisher   events.Publisher    `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	merchants  merchantdomain.Service
	catalog    catalogdomain.CatalogService
	checker    availabilitydomain.Checker
	calculator feedomain.Calculator
	auditSvc   auditdomain.Service
	metrics    *obsmetrics.Metrics
	publisher  events.Publisher
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("reservation.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		merchants:  p.MerchantSvc,
		catalog:    p.CatalogSvc,
		checker:    p.Checker,
		calculator: p.Calculator,
		auditSvc:   p.AuditSvc,
		metrics:    p.ObsMetrics,
		publisher:  p.Publisher,
	}
}

func (s *Service) Create(ctx context.Context, merchantID, requesterID string, req domain.CreateRequest) (*domain.Response, error) {
	merchantKey, err := parseID("merchant_id", merchantID)
	if err != nil {
		return nil, err
	}
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, txerror.NewFieldError("requester_id", domain.ErrInvalidRequester, "requester is required")
	}
	serviceKey, err := parseID("service_id", req.ServiceID)
	if err != nil {
		return nil, err
	}
	checkIn, err := availabilitydomain.ParseDate(req.CheckIn)
	if err != nil {
		return nil, txerror.NewFieldError("check_in", err, "check-in must be YYYY-MM-DD")
	}
	checkOut, err := availabilitydomain.ParseDate(req.CheckOut)
	if err != nil {
		return nil, txerror.NewFieldError("check_out", err, "check-out must be YYYY-MM-DD")
	}

	var (
		reservation *domain.Reservation
		merchant    *merchantdomain.Merchant
		unit        *catalogdomain.Service
	)
	err = db.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		merchant, err = s.merchants.Resolve(ctx, tx, merchantKey)
		if err != nil {
			return err
		}
		if err := merchant.RequireCapability(merchantdomain.CapabilityRentals); err != nil {
			return err
		}

		unit, err = s.catalog.FindService(ctx, tx, merchant.CatalogOwnerID(), serviceKey, catalogdomain.ServiceFilter{
			Type:              catalogdomain.ServiceTypeReservation,
			ActiveOnly:        true,
			AvailableUnitOnly: true,
			ForUpdate:         true,
		})
		if err != nil {
			return err
		}

		stay, err := s.checker.CheckRange(ctx, tx, availabilitydomain.RangeRequest{
			Service:    unit,
			CheckIn:    checkIn,
			CheckOut:   checkOut,
			GuestCount: req.GuestCount,
		})
		if err != nil {
			return err
		}

		subtotal := unit.PricePerNight.Mul(decimal.NewFromInt(int64(stay.Nights))).Round(2)
		quote, err := s.calculator.CalculateTx(ctx, tx, feedomain.TransactionTypeReservation, subtotal)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		reservation = &domain.Reservation{
			ID:            s.genID.Generate(),
			MerchantID:    merchant.ID,
			ServiceID:     unit.ID,
			CustomerID:    requesterID,
			CheckIn:       checkIn,
			CheckOut:      checkOut,
			GuestCount:    req.GuestCount,
			Nights:        stay.Nights,
			PricePerNight: unit.PricePerNight,
			Subtotal:      quote.Subtotal,
			FeeRate:       quote.FeeRate,
			FeeAmount:     quote.FeeAmount,
			TotalAmount:   quote.TotalAmount,
			Status:        string(lifecycle.StatusPending),
			Notes:         normalizeNotes(req.Notes),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Insert(ctx, tx, reservation); err != nil {
			return err
		}

		return s.audit(ctx, tx, reservation, "requester", &requesterID, "reservation.created", map[string]any{
			"service_id":   unit.ID.String(),
			"check_in":     availabilitydomain.FormatDate(checkIn),
			"check_out":    availabilitydomain.FormatDate(checkOut),
			"nights":       stay.Nights,
			"guest_count":  req.GuestCount,
			"total_amount": reservation.TotalAmount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransactionCreated(ctx, string(kind), reservation.Status)
	s.publish(ctx, events.NewCreated(string(kind), reservation.ID.String(), reservation.MerchantID.String(), reservation.Status, reservation.CreatedAt, map[string]any{
		"service_id":   reservation.ServiceID.String(),
		"customer_id":  reservation.CustomerID,
		"check_in":     availabilitydomain.FormatDate(reservation.CheckIn),
		"check_out":    availabilitydomain.FormatDate(reservation.CheckOut),
		"total_amount": reservation.TotalAmount.StringFixed(2),
	}))
	s.log.Info("reservation created",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("merchant_id", reservation.MerchantID.String()),
		zap.String("service_id", reservation.ServiceID.String()),
		zap.Int("nights", reservation.Nights),
	)

	resp := toResponse(reservation)
	resp.Service = catalogdomain.NewServiceSummary(unit)
	resp.Merchant = merchant.Summary()
	return &resp, nil
}

func (s *Service) UpdateStatus(ctx context.Context, merchantID, id, status string) (*domain.Response, error) {
	merchantKey, err := parseID("merchant_id", merchantID)
	if err != nil {
		return nil, err
	}
	reservationKey, err := parseID("reservation_id", id)
	if err != nil {
		return nil, err
	}
	target, ok := lifecycle.ParseStatus(kind, status)
	if !ok {
		return nil, txerror.NewFieldError("status", domain.ErrInvalidStatus, "unknown reservation status")
	}

	var (
		reservation *domain.Reservation
		from        string
	)
	err = db.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		reservation, err = s.repo.FindByID(ctx, tx, merchantKey, reservationKey, true)
		if err != nil {
			return err
		}
		if reservation == nil {
			return txerror.NotFound("reservation_id")
		}
		from = reservation.Status
		if err := lifecycle.Validate(kind, lifecycle.Status(from), target); err != nil {
			return err
		}

		// A pending reservation does not hold its range, so confirming it must
		// re-check the range against everything confirmed since.
		if target == lifecycle.StatusConfirmed {
			if err := s.recheckRange(ctx, tx, reservation); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		column, _ := lifecycle.StampField(target)
		if err := s.repo.UpdateStatus(ctx, tx, reservation.ID, string(target), column, now); err != nil {
			if db.IsExclusionViolation(err) {
				return txerror.NewFieldError("check_in", txerror.ErrDateRangeConflict, "unit is already reserved for these dates")
			}
			return err
		}
		applyStatus(reservation, target, now)

		return s.audit(ctx, tx, reservation, "", nil, "reservation.status_changed", map[string]any{
			"from": from,
			"to":   string(target),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(ctx, string(kind), from, reservation.Status)
	s.publish(ctx, events.NewStatusChanged(string(kind), reservation.ID.String(), reservation.MerchantID.String(), from, reservation.Status, reservation.UpdatedAt))

	resp := toResponse(reservation)
	return &resp, nil
}

// recheckRange works on a row already scoped to its merchant, so the merchant
// may be in any status.
func (s *Service) recheckRange(ctx context.Context, tx *gorm.DB, reservation *domain.Reservation) error {
	merchant, err := s.merchants.Lookup(ctx, tx, reservation.MerchantID)
	if err != nil {
		return err
	}
	unit, err := s.catalog.FindService(ctx, tx, merchant.CatalogOwnerID(), reservation.ServiceID, catalogdomain.ServiceFilter{
		Type:      catalogdomain.ServiceTypeReservation,
		ForUpdate: true,
	})
	if err != nil {
		return err
	}
	_, err = s.checker.CheckRange(ctx, tx, availabilitydomain.RangeRequest{
		Service:    unit,
		CheckIn:    reservation.CheckIn,
		CheckOut:   reservation.CheckOut,
		GuestCount: reservation.GuestCount,
		ExcludeID:  reservation.ID,
	})
	return err
}

func (s *Service) List(ctx context.Context, merchantID string, req domain.ListRequest) (domain.ListResponse, error) {
	merchantKey, err := parseID("merchant_id", merchantID)
	if err != nil {
		return domain.ListResponse{}, err
	}

	filter := domain.ListFilter{
		MerchantID: merchantKey,
		CustomerID: strings.TrimSpace(req.CustomerID),
		Limit:      req.Size(),
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := lifecycle.ParseStatus(kind, raw)
		if !ok {
			return domain.ListResponse{}, txerror.NewFieldError("status", domain.ErrInvalidStatus, "unknown reservation status")
		}
		filter.Status = string(status)
	}
	if raw := strings.TrimSpace(req.ServiceID); raw != "" {
		serviceKey, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListResponse{}, txerror.NewFieldError("service_id", domain.ErrInvalidFilter, "invalid service id")
		}
		filter.ServiceID = serviceKey
	}
	if filter.From, err = parseDateFilter("from", req.From); err != nil {
		return domain.ListResponse{}, err
	}
	if filter.To, err = parseDateFilter("to", req.To); err != nil {
		return domain.ListResponse{}, err
	}
	if strings.TrimSpace(req.PageToken) != "" {
		createdAt, rawID, err := pagination.DecodeTimeCursor(req.PageToken)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		cursorID, err := snowflake.ParseString(rawID)
		if err != nil || cursorID == 0 {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.Cursor{ID: cursorID, CreatedAt: createdAt}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(filter.Limit), func(item *domain.Reservation) string {
		return pagination.EncodeTimeCursor(item.ID.String(), item.CreatedAt)
	})
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}

	resp := domain.ListResponse{Reservations: make([]domain.Response, 0, len(items))}
	for _, item := range items {
		resp.Reservations = append(resp.Reservations, toResponse(item))
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, merchantID, id string) (*domain.Response, error) {
	merchantKey, err := parseID("merchant_id", merchantID)
	if err != nil {
		return nil, err
	}
	reservationKey, err := parseID("reservation_id", id)
	if err != nil {
		return nil, err
	}

	merchant, err := s.merchants.Resolve(ctx, s.db, merchantKey)
	if err != nil {
		return nil, err
	}
	reservation, err := s.repo.FindByID(ctx, s.db, merchant.ID, reservationKey, false)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, txerror.NotFound("reservation_id")
	}

	resp := toResponse(reservation)
	resp.Merchant = merchant.Summary()
	if unit, err := s.catalog.FindService(ctx, s.db, merchant.CatalogOwnerID(), reservation.ServiceID, catalogdomain.ServiceFilter{}); err == nil {
		resp.Service = catalogdomain.NewServiceSummary(unit)
	}
	return &resp, nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, reservation *domain.Reservation, actorType string, actorID *string, action string, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	targetID := reservation.ID.String()
	return s.auditSvc.AuditLogTx(ctx, tx, &reservation.MerchantID, actorType, actorID, action, string(kind), &targetID, metadata)
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("failed to publish reservation event",
			zap.String("event_type", evt.Type),
			zap.String("reservation_id", evt.TransactionID),
			zap.Error(err),
		)
	}
}

func applyStatus(reservation *domain.Reservation, status lifecycle.Status, at time.Time) {
	reservation.Status = string(status)
	reservation.UpdatedAt = at
	switch status {
	case lifecycle.StatusConfirmed:
		reservation.ConfirmedAt = &at
	case lifecycle.StatusCancelled:
		reservation.CancelledAt = &at
	case lifecycle.StatusCheckedIn:
		reservation.CheckedInAt = &at
	case lifecycle.StatusCheckedOut:
		reservation.CheckedOutAt = &at
	}
}

func parseID(field, raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, txerror.NotFound(field)
	}
	return id, nil
}

func parseDateFilter(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	date, err := availabilitydomain.ParseDate(raw)
	if err != nil {
		return nil, txerror.NewFieldError(field, domain.ErrInvalidFilter, "date must be YYYY-MM-DD")
	}
	return &date, nil
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toResponse(r *domain.Reservation) domain.Response {
	return domain.Response{
		ID:            r.ID.String(),
		MerchantID:    r.MerchantID.String(),
		ServiceID:     r.ServiceID.String(),
		CustomerID:    r.CustomerID,
		CheckIn:       availabilitydomain.FormatDate(r.CheckIn),
		CheckOut:      availabilitydomain.FormatDate(r.CheckOut),
		GuestCount:    r.GuestCount,
		Nights:        r.Nights,
		PricePerNight: r.PricePerNight.StringFixed(2),
		Subtotal:      r.Subtotal.StringFixed(2),
		FeeRate:       r.FeeRate.StringFixed(2),
		FeeAmount:     r.FeeAmount.StringFixed(2),
		TotalAmount:   r.TotalAmount.StringFixed(2),
		Status:        r.Status,
		Notes:         r.Notes,
		ConfirmedAt:   r.ConfirmedAt,
		CancelledAt:   r.CancelledAt,
		CheckedInAt:   r.CheckedInAt,
		CheckedOutAt:  r.CheckedOutAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
