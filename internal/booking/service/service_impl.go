package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/marketplace/internal/audit/domain"
	availabilitydomain "github.com/smallbiznis/marketplace/internal/availability/domain"
	"github.com/smallbiznis/marketplace/internal/booking/domain"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/events"
	"github.com/smallbiznis/marketplace/internal/lifecycle"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	obsmetrics "github.com/smallbiznis/marketplace/internal/observability/metrics"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	"github.com/smallbiznis/marketplace/internal/txerror"
	"github.com/smallbiznis/marketplace/pkg/db"
	"github.com/smallbiznis/marketplace/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const kind = lifecycle.KindBooking

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
		log:        p.Log.Named("booking.service"),
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
	bookingDate, err := availabilitydomain.ParseDate(req.BookingDate)
	if err != nil {
		return nil, txerror.NewFieldError("booking_date", err, "booking date must be YYYY-MM-DD")
	}

	var (
		booking  *domain.Booking
		merchant *merchantdomain.Merchant
		service  *catalogdomain.Service
	)
	err = db.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		merchant, err = s.merchants.Resolve(ctx, tx, merchantKey)
		if err != nil {
			return err
		}
		if err := merchant.RequireCapability(merchantdomain.CapabilityBookings); err != nil {
			return err
		}

		service, err = s.catalog.FindService(ctx, tx, merchant.CatalogOwnerID(), serviceKey, catalogdomain.ServiceFilter{
			Type:       catalogdomain.ServiceTypeBookable,
			ActiveOnly: true,
			ForUpdate:  true,
		})
		if err != nil {
			return err
		}

		slot, err := s.checker.CheckSlot(ctx, tx, availabilitydomain.SlotRequest{
			Service:   service,
			Date:      bookingDate,
			StartTime: req.StartTime,
			PartySize: req.PartySize,
		})
		if err != nil {
			return err
		}

		quote, err := s.calculator.CalculateTx(ctx, tx, feedomain.TransactionTypeBooking, service.Price)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		booking = &domain.Booking{
			ID:           s.genID.Generate(),
			MerchantID:   merchant.ID,
			ServiceID:    service.ID,
			CustomerID:   requesterID,
			BookingDate:  bookingDate,
			StartTime:    slot.StartTime,
			EndTime:      slot.EndTime,
			PartySize:    req.PartySize,
			ServicePrice: quote.Subtotal,
			FeeRate:      quote.FeeRate,
			FeeAmount:    quote.FeeAmount,
			TotalAmount:  quote.TotalAmount,
			Status:       string(lifecycle.StatusConfirmed),
			Notes:        normalizeNotes(req.Notes),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if service.RequiresConfirmation {
			booking.Status = string(lifecycle.StatusPending)
		} else {
			booking.ConfirmedAt = &now
		}

		if err := s.repo.Insert(ctx, tx, booking); err != nil {
			return err
		}

		return s.audit(ctx, tx, booking, "requester", &requesterID, "booking.created", map[string]any{
			"service_id":   service.ID.String(),
			"booking_date": availabilitydomain.FormatDate(bookingDate),
			"start_time":   booking.StartTime,
			"party_size":   booking.PartySize,
			"status":       booking.Status,
			"total_amount": booking.TotalAmount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransactionCreated(ctx, string(kind), booking.Status)
	s.publish(ctx, events.NewCreated(string(kind), booking.ID.String(), booking.MerchantID.String(), booking.Status, booking.CreatedAt, map[string]any{
		"service_id":   booking.ServiceID.String(),
		"customer_id":  booking.CustomerID,
		"booking_date": availabilitydomain.FormatDate(booking.BookingDate),
		"start_time":   booking.StartTime,
		"total_amount": booking.TotalAmount.StringFixed(2),
	}))
	s.log.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("merchant_id", booking.MerchantID.String()),
		zap.String("service_id", booking.ServiceID.String()),
		zap.String("status", booking.Status),
	)

	resp := toResponse(booking)
	resp.Service = catalogdomain.NewServiceSummary(service)
	resp.Merchant = merchant.Summary()
	return &resp, nil
}

func (s *Service) UpdateStatus(ctx context.Context, merchantID, id, status string) (*domain.Response, error) {
	merchantKey, err := parseID("merchant_id", merchantID)
	if err != nil {
		return nil, err
	}
	bookingKey, err := parseID("booking_id", id)
	if err != nil {
		return nil, err
	}
	target, ok := lifecycle.ParseStatus(kind, status)
	if !ok {
		return nil, txerror.NewFieldError("status", domain.ErrInvalidStatus, "unknown booking status")
	}

	var (
		booking *domain.Booking
		from    string
	)
	err = db.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		booking, err = s.repo.FindByID(ctx, tx, merchantKey, bookingKey, true)
		if err != nil {
			return err
		}
		if booking == nil {
			return txerror.NotFound("booking_id")
		}
		from = booking.Status
		if err := lifecycle.Validate(kind, lifecycle.Status(from), target); err != nil {
			return err
		}

		now := s.clock.Now()
		column, _ := lifecycle.StampField(target)
		if err := s.repo.UpdateStatus(ctx, tx, booking.ID, string(target), column, now); err != nil {
			return err
		}
		applyStatus(booking, target, now)

		return s.audit(ctx, tx, booking, "", nil, "booking.status_changed", map[string]any{
			"from": from,
			"to":   string(target),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(ctx, string(kind), from, booking.Status)
	s.publish(ctx, events.NewStatusChanged(string(kind), booking.ID.String(), booking.MerchantID.String(), from, booking.Status, booking.UpdatedAt))

	resp := toResponse(booking)
	return &resp, nil
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
			return domain.ListResponse{}, txerror.NewFieldError("status", domain.ErrInvalidStatus, "unknown booking status")
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

	pageInfo := pagination.BuildCursorPageInfo(items, int32(filter.Limit), func(item *domain.Booking) string {
		return pagination.EncodeTimeCursor(item.ID.String(), item.CreatedAt)
	})
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}

	resp := domain.ListResponse{Bookings: make([]domain.Response, 0, len(items))}
	for _, item := range items {
		resp.Bookings = append(resp.Bookings, toResponse(item))
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
	bookingKey, err := parseID("booking_id", id)
	if err != nil {
		return nil, err
	}

	merchant, err := s.merchants.Resolve(ctx, s.db, merchantKey)
	if err != nil {
		return nil, err
	}
	booking, err := s.repo.FindByID(ctx, s.db, merchant.ID, bookingKey, false)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, txerror.NotFound("booking_id")
	}

	resp := toResponse(booking)
	resp.Merchant = merchant.Summary()
	if service, err := s.catalog.FindService(ctx, s.db, merchant.CatalogOwnerID(), booking.ServiceID, catalogdomain.ServiceFilter{}); err == nil {
		resp.Service = catalogdomain.NewServiceSummary(service)
	}
	return &resp, nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, booking *domain.Booking, actorType string, actorID *string, action string, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	targetID := booking.ID.String()
	return s.auditSvc.AuditLogTx(ctx, tx, &booking.MerchantID, actorType, actorID, action, string(kind), &targetID, metadata)
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("failed to publish booking event",
			zap.String("event_type", evt.Type),
			zap.String("booking_id", evt.TransactionID),
			zap.Error(err),
		)
	}
}

func applyStatus(booking *domain.Booking, status lifecycle.Status, at time.Time) {
	booking.Status = string(status)
	booking.UpdatedAt = at
	switch status {
	case lifecycle.StatusConfirmed:
		booking.ConfirmedAt = &at
	case lifecycle.StatusCancelled:
		booking.CancelledAt = &at
	case lifecycle.StatusCompleted:
		booking.CompletedAt = &at
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

func toResponse(b *domain.Booking) domain.Response {
	return domain.Response{
		ID:           b.ID.String(),
		MerchantID:   b.MerchantID.String(),
		ServiceID:    b.ServiceID.String(),
		CustomerID:   b.CustomerID,
		BookingDate:  availabilitydomain.FormatDate(b.BookingDate),
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		PartySize:    b.PartySize,
		ServicePrice: b.ServicePrice.StringFixed(2),
		FeeRate:      b.FeeRate.StringFixed(2),
		FeeAmount:    b.FeeAmount.StringFixed(2),
		TotalAmount:  b.TotalAmount.StringFixed(2),
		Status:       b.Status,
		Notes:        b.Notes,
		ConfirmedAt:  b.ConfirmedAt,
		CancelledAt:  b.CancelledAt,
		CompletedAt:  b.CompletedAt,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}
