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
	"github.com/smallbiznis/marketplace/internal/serviceorder/domain"
	"github.com/smallbiznis/marketplace/internal/txerror"
	"github.com/smallbiznis/marketplace/pkg/db"
	"github.com/smallbiznis/marketplace/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const kind = lifecycle.KindServiceOrder

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
		log:        p.Log.Named("serviceorder.service"),
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

	var (
		order     *domain.ServiceOrder
		merchant  *merchantdomain.Merchant
		product   *catalogdomain.Service
		shortfall bool
	)
	err = db.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		merchant, err = s.merchants.Resolve(ctx, tx, merchantKey)
		if err != nil {
			return err
		}
		if err := merchant.RequireCapability(merchantdomain.CapabilityProducts); err != nil {
			return err
		}

		product, err = s.catalog.FindService(ctx, tx, merchant.CatalogOwnerID(), serviceKey, catalogdomain.ServiceFilter{
			Type:       catalogdomain.ServiceTypeSellable,
			ActiveOnly: true,
			ForUpdate:  true,
		})
		if err != nil {
			return err
		}

		stock, err := s.checker.CheckSellable(ctx, product, req.Quantity)
		if err != nil {
			return err
		}
		shortfall = stock.StockShortfall

		subtotal := product.Price.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
		quote, err := s.calculator.CalculateTx(ctx, tx, feedomain.TransactionTypeSellProduct, subtotal)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		prefix := domain.DayPrefix(now)
		seq, err := s.repo.NextSequence(ctx, tx, prefix, now)
		if err != nil {
			return err
		}

		order = &domain.ServiceOrder{
			ID:          s.genID.Generate(),
			MerchantID:  merchant.ID,
			ServiceID:   product.ID,
			CustomerID:  requesterID,
			OrderNumber: domain.FormatOrderNumber(prefix, seq),
			Quantity:    req.Quantity,
			UnitPrice:   product.Price,
			Subtotal:    quote.Subtotal,
			FeeRate:     quote.FeeRate,
			FeeAmount:   quote.FeeAmount,
			TotalAmount: quote.TotalAmount,
			Status:      string(lifecycle.StatusPending),
			Notes:       normalizeNotes(req.Notes),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, tx, order); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return txerror.NewFieldError("order_number", txerror.ErrDuplicateOrderNumber, "order number already taken, retry the order")
			}
			return err
		}

		return s.audit(ctx, tx, order, "requester", &requesterID, "service_order.created", map[string]any{
			"service_id":   product.ID.String(),
			"order_number": order.OrderNumber,
			"quantity":     order.Quantity,
			"total_amount": order.TotalAmount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransactionCreated(ctx, string(kind), order.Status)
	s.publish(ctx, events.NewCreated(string(kind), order.ID.String(), order.MerchantID.String(), order.Status, order.CreatedAt, map[string]any{
		"service_id":   order.ServiceID.String(),
		"customer_id":  order.CustomerID,
		"order_number": order.OrderNumber,
		"quantity":     order.Quantity,
		"total_amount": order.TotalAmount.StringFixed(2),
	}))
	s.log.Info("service order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("merchant_id", order.MerchantID.String()),
		zap.Bool("stock_shortfall", shortfall),
	)

	resp := toResponse(order)
	resp.StockShortfall = shortfall
	resp.Service = catalogdomain.NewServiceSummary(product)
	resp.Merchant = merchant.Summary()
	return &resp, nil
}

func (s *Service) UpdateStatus(ctx context.Context, merchantID, id, status string) (*domain.Response, error) {
	merchantKey, err := parseID("merchant_id", merchantID)
	if err != nil {
		return nil, err
	}
	orderKey, err := parseID("service_order_id", id)
	if err != nil {
		return nil, err
	}
	target, ok := lifecycle.ParseStatus(kind, status)
	if !ok {
		return nil, txerror.NewFieldError("status", domain.ErrInvalidStatus, "unknown service order status")
	}

	var (
		order *domain.ServiceOrder
		from  string
	)
	err = db.RunInTx(ctx, s.db, func(tx *gorm.DB) error {
		order, err = s.repo.FindByID(ctx, tx, merchantKey, orderKey, true)
		if err != nil {
			return err
		}
		if order == nil {
			return txerror.NotFound("service_order_id")
		}
		from = order.Status
		if err := lifecycle.Validate(kind, lifecycle.Status(from), target); err != nil {
			return err
		}

		now := s.clock.Now()
		column, _ := lifecycle.StampField(target)
		if err := s.repo.UpdateStatus(ctx, tx, order.ID, string(target), column, now); err != nil {
			return err
		}
		applyStatus(order, target, now)

		return s.audit(ctx, tx, order, "", nil, "service_order.status_changed", map[string]any{
			"from": from,
			"to":   string(target),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(ctx, string(kind), from, order.Status)
	s.publish(ctx, events.NewStatusChanged(string(kind), order.ID.String(), order.MerchantID.String(), from, order.Status, order.UpdatedAt))

	resp := toResponse(order)
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
			return domain.ListResponse{}, txerror.NewFieldError("status", domain.ErrInvalidStatus, "unknown service order status")
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
	if filter.CreatedFrom, err = parseDateFilter("from", req.From); err != nil {
		return domain.ListResponse{}, err
	}
	until, err := parseDateFilter("to", req.To)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if until != nil {
		next := until.AddDate(0, 0, 1)
		filter.CreatedUntil = &next
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

	pageInfo := pagination.BuildCursorPageInfo(items, int32(filter.Limit), func(item *domain.ServiceOrder) string {
		return pagination.EncodeTimeCursor(item.ID.String(), item.CreatedAt)
	})
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}

	resp := domain.ListResponse{ServiceOrders: make([]domain.Response, 0, len(items))}
	for _, item := range items {
		resp.ServiceOrders = append(resp.ServiceOrders, toResponse(item))
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
	orderKey, err := parseID("service_order_id", id)
	if err != nil {
		return nil, err
	}

	merchant, err := s.merchants.Resolve(ctx, s.db, merchantKey)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, s.db, merchant.ID, orderKey, false)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, txerror.NotFound("service_order_id")
	}

	resp := toResponse(order)
	resp.Merchant = merchant.Summary()
	if product, err := s.catalog.FindService(ctx, s.db, merchant.CatalogOwnerID(), order.ServiceID, catalogdomain.ServiceFilter{}); err == nil {
		resp.Service = catalogdomain.NewServiceSummary(product)
	}
	return &resp, nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, order *domain.ServiceOrder, actorType string, actorID *string, action string, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	targetID := order.ID.String()
	return s.auditSvc.AuditLogTx(ctx, tx, &order.MerchantID, actorType, actorID, action, string(kind), &targetID, metadata)
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("failed to publish service order event",
			zap.String("event_type", evt.Type),
			zap.String("order_id", evt.TransactionID),
			zap.Error(err),
		)
	}
}

func applyStatus(order *domain.ServiceOrder, status lifecycle.Status, at time.Time) {
	order.Status = string(status)
	order.UpdatedAt = at
	switch status {
	case lifecycle.StatusReceived:
		order.ReceivedAt = &at
	case lifecycle.StatusCompleted:
		order.CompletedAt = &at
	case lifecycle.StatusCancelled:
		order.CancelledAt = &at
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

func toResponse(o *domain.ServiceOrder) domain.Response {
	return domain.Response{
		ID:          o.ID.String(),
		MerchantID:  o.MerchantID.String(),
		ServiceID:   o.ServiceID.String(),
		CustomerID:  o.CustomerID,
		OrderNumber: o.OrderNumber,
		Quantity:    o.Quantity,
		UnitPrice:   o.UnitPrice.StringFixed(2),
		Subtotal:    o.Subtotal.StringFixed(2),
		FeeRate:     o.FeeRate.StringFixed(2),
		FeeAmount:   o.FeeAmount.StringFixed(2),
		TotalAmount: o.TotalAmount.StringFixed(2),
		Status:      o.Status,
		Notes:       o.Notes,
		ReceivedAt:  o.ReceivedAt,
		CompletedAt: o.CompletedAt,
		CancelledAt: o.CancelledAt,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}
