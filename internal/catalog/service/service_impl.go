package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/marketplace/internal/audit/domain"
	"github.com/smallbiznis/marketplace/internal/catalog/domain"
	"github.com/smallbiznis/marketplace/internal/clock"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	"github.com/smallbiznis/marketplace/internal/txerror"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	MerchantRepo merchantdomain.Repository
	AuditSvc     auditdomain.Service `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	merchantRepo merchantdomain.Repository
	auditSvc     auditdomain.Service
}

func New(p Params) domain.CatalogService {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("catalog.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		merchantRepo: p.MerchantRepo,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) CreateService(ctx context.Context, merchantID string, req domain.CreateServiceRequest) (*domain.ServiceResponse, error) {
	merchant, err := s.loadMerchant(ctx, s.db, merchantID)
	if err != nil {
		return nil, err
	}
	if merchant.IsBranch() {
		return nil, domain.ErrBranchMerchant
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	serviceType, err := parseServiceType(req.ServiceType)
	if err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	now := s.clock.Now()
	record := &domain.Service{
		ID:          s.genID.Generate(),
		MerchantID:  merchant.ID,
		Name:        name,
		Description: normalizeString(req.Description),
		ServiceType: serviceType,
		Price:       decimalOrZero(req.Price),
		IsActive:    isActive,
		Metadata:    datatypes.JSONMap(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	switch serviceType {
	case domain.ServiceTypeBookable:
		record.DurationMinutes = req.DurationMinutes
		record.MaxCapacity = req.MaxCapacity
		record.RequiresConfirmation = req.RequiresConfirmation
	case domain.ServiceTypeReservation:
		record.MaxCapacity = req.MaxCapacity
		record.PricePerNight = decimalOrZero(req.PricePerNight)
		record.UnitStatus = domain.UnitStatusAvailable
		if raw := strings.TrimSpace(req.UnitStatus); raw != "" {
			record.UnitStatus = domain.UnitStatus(strings.ToLower(raw))
		}
	case domain.ServiceTypeSellable:
		record.StockQuantity = req.StockQuantity
		record.TrackStock = req.TrackStock
	}

	if err := validateService(record); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		serviceSlug, err := s.uniqueSlug(ctx, tx, merchant.ID, name, record.ID)
		if err != nil {
			return err
		}
		record.Slug = serviceSlug

		if err := s.repo.InsertService(ctx, tx, record); err != nil {
			return err
		}
		return s.audit(ctx, tx, record, "service.created", nil)
	})
	if err != nil {
		return nil, err
	}

	resp := toServiceResponse(record)
	return &resp, nil
}

func (s *Service) UpdateService(ctx context.Context, merchantID, serviceID string, req domain.UpdateServiceRequest) (*domain.ServiceResponse, error) {
	id, err := parseID(serviceID)
	if err != nil {
		return nil, err
	}

	var record *domain.Service
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant, err := s.loadMerchant(ctx, tx, merchantID)
		if err != nil {
			return err
		}

		record, err = s.repo.FindService(ctx, tx, merchant.ID, id, domain.ServiceFilter{ForUpdate: true})
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrNotFound
		}

		previousPrice := record.Price
		applyUpdate(record, req)
		if err := validateService(record); err != nil {
			return err
		}
		record.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateService(ctx, tx, record); err != nil {
			return err
		}
		return s.audit(ctx, tx, record, "service.updated", map[string]any{
			"previous_price": previousPrice.StringFixed(2),
			"price":          record.Price.StringFixed(2),
			"is_active":      record.IsActive,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := toServiceResponse(record)
	return &resp, nil
}

func (s *Service) GetService(ctx context.Context, merchantID, serviceID string) (*domain.ServiceResponse, error) {
	merchant, err := s.loadMerchant(ctx, s.db, merchantID)
	if err != nil {
		return nil, err
	}
	id, err := parseID(serviceID)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.FindService(ctx, s.db, merchant.CatalogOwnerID(), id, domain.ServiceFilter{})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}

	resp := toServiceResponse(record)
	return &resp, nil
}

// ListServices returns the catalog a merchant sells from; for branches that
// is the parent's catalog.
func (s *Service) ListServices(ctx context.Context, merchantID string, req domain.ListServiceRequest) ([]domain.ServiceResponse, error) {
	merchant, err := s.loadMerchant(ctx, s.db, merchantID)
	if err != nil {
		return nil, err
	}

	filter := domain.ListServiceRequest{
		IsActive: req.IsActive,
		SortBy:   strings.TrimSpace(req.SortBy),
		OrderBy:  strings.TrimSpace(req.OrderBy),
	}
	if raw := strings.TrimSpace(req.ServiceType); raw != "" {
		serviceType, err := parseServiceType(raw)
		if err != nil {
			return nil, err
		}
		filter.ServiceType = string(serviceType)
	}

	items, err := s.repo.ListServices(ctx, s.db, merchant.CatalogOwnerID(), filter)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.ServiceResponse, 0, len(items))
	for i := range items {
		resp = append(resp, toServiceResponse(&items[i]))
	}
	return resp, nil
}

// SetSchedules replaces the weekly schedule of a bookable service.
func (s *Service) SetSchedules(ctx context.Context, merchantID, serviceID string, req domain.SetSchedulesRequest) ([]domain.ScheduleResponse, error) {
	id, err := parseID(serviceID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	schedules := make([]domain.ServiceSchedule, 0, len(req.Schedules))
	seen := map[int]bool{}
	for _, input := range req.Schedules {
		schedule, err := buildSchedule(input)
		if err != nil {
			return nil, err
		}
		if seen[schedule.DayOfWeek] {
			return nil, domain.ErrDuplicateDay
		}
		seen[schedule.DayOfWeek] = true

		schedule.ID = s.genID.Generate()
		schedule.ServiceID = id
		schedule.CreatedAt = now
		schedule.UpdatedAt = now
		schedules = append(schedules, schedule)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant, err := s.loadMerchant(ctx, tx, merchantID)
		if err != nil {
			return err
		}
		record, err := s.repo.FindService(ctx, tx, merchant.ID, id, domain.ServiceFilter{ForUpdate: true})
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrNotFound
		}
		if record.ServiceType != domain.ServiceTypeBookable {
			return domain.ErrNotBookable
		}

		if err := s.repo.ReplaceSchedules(ctx, tx, id, schedules); err != nil {
			return err
		}
		return s.audit(ctx, tx, record, "service.schedules_replaced", map[string]any{
			"days": len(schedules),
		})
	})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.ScheduleResponse, 0, len(schedules))
	for i := range schedules {
		resp = append(resp, toScheduleResponse(&schedules[i]))
	}
	return resp, nil
}

func (s *Service) ListSchedules(ctx context.Context, merchantID, serviceID string) ([]domain.ScheduleResponse, error) {
	merchant, err := s.loadMerchant(ctx, s.db, merchantID)
	if err != nil {
		return nil, err
	}
	id, err := parseID(serviceID)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.FindService(ctx, s.db, merchant.CatalogOwnerID(), id, domain.ServiceFilter{})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}

	items, err := s.repo.ListSchedules(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.ScheduleResponse, 0, len(items))
	for i := range items {
		resp = append(resp, toScheduleResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) FindService(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID, filter domain.ServiceFilter) (*domain.Service, error) {
	if db == nil {
		db = s.db
	}
	if id == 0 {
		return nil, txerror.NotFound("service_id")
	}
	record, err := s.repo.FindService(ctx, db, merchantID, id, filter)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, txerror.NotFound("service_id")
	}
	return record, nil
}

func (s *Service) FindSchedule(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, dayOfWeek int) (*domain.ServiceSchedule, error) {
	if db == nil {
		db = s.db
	}
	return s.repo.FindSchedule(ctx, db, serviceID, dayOfWeek)
}

func (s *Service) loadMerchant(ctx context.Context, db *gorm.DB, merchantID string) (*merchantdomain.Merchant, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(merchantID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidMerchant
	}
	merchant, err := s.merchantRepo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, domain.ErrNotFound
	}
	return merchant, nil
}

func (s *Service) uniqueSlug(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, name string, id snowflake.ID) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "service"
	}
	exists, err := s.repo.SlugExists(ctx, db, merchantID, base)
	if err != nil {
		return "", err
	}
	if !exists {
		return base, nil
	}
	return fmt.Sprintf("%s-%s", base, id.Base36()), nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, record *domain.Service, action string, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	targetID := record.ID.String()
	return s.auditSvc.AuditLogTx(ctx, tx, &record.MerchantID, "", nil, action, "service", &targetID, metadata)
}

func applyUpdate(record *domain.Service, req domain.UpdateServiceRequest) {
	if req.Name != nil {
		record.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		record.Description = normalizeString(req.Description)
	}
	if req.Price != nil {
		record.Price = *req.Price
	}
	if req.IsActive != nil {
		record.IsActive = *req.IsActive
	}

	switch record.ServiceType {
	case domain.ServiceTypeBookable:
		if req.DurationMinutes != nil {
			record.DurationMinutes = *req.DurationMinutes
		}
		if req.MaxCapacity != nil {
			record.MaxCapacity = *req.MaxCapacity
		}
		if req.RequiresConfirmation != nil {
			record.RequiresConfirmation = *req.RequiresConfirmation
		}
	case domain.ServiceTypeReservation:
		if req.MaxCapacity != nil {
			record.MaxCapacity = *req.MaxCapacity
		}
		if req.PricePerNight != nil {
			record.PricePerNight = *req.PricePerNight
		}
		if req.UnitStatus != nil {
			record.UnitStatus = domain.UnitStatus(strings.ToLower(strings.TrimSpace(*req.UnitStatus)))
		}
	case domain.ServiceTypeSellable:
		if req.StockQuantity != nil {
			record.StockQuantity = *req.StockQuantity
		}
		if req.TrackStock != nil {
			record.TrackStock = *req.TrackStock
		}
	}
}

// validateService checks the fields of the record's own service type only.
func validateService(record *domain.Service) error {
	if record.Name == "" {
		return domain.ErrInvalidName
	}
	if record.Price.IsNegative() || !record.Price.Equal(record.Price.Round(2)) {
		return domain.ErrInvalidPrice
	}

	switch record.ServiceType {
	case domain.ServiceTypeBookable:
		if record.DurationMinutes <= 0 || record.DurationMinutes >= domain.MinutesPerDay {
			return domain.ErrInvalidDuration
		}
		if record.MaxCapacity <= 0 {
			return domain.ErrInvalidCapacity
		}
	case domain.ServiceTypeReservation:
		if record.PricePerNight.IsNegative() || !record.PricePerNight.Equal(record.PricePerNight.Round(2)) {
			return domain.ErrInvalidPrice
		}
		if record.MaxCapacity <= 0 {
			return domain.ErrInvalidCapacity
		}
		if record.UnitStatus != domain.UnitStatusAvailable && record.UnitStatus != domain.UnitStatusMaintenance {
			return domain.ErrInvalidUnitStatus
		}
	case domain.ServiceTypeSellable:
		if record.StockQuantity < 0 {
			return domain.ErrInvalidStock
		}
	default:
		return domain.ErrInvalidServiceType
	}
	return nil
}

func buildSchedule(input domain.ScheduleInput) (domain.ServiceSchedule, error) {
	if input.DayOfWeek < 0 || input.DayOfWeek > 6 {
		return domain.ServiceSchedule{}, domain.ErrInvalidDayOfWeek
	}
	start, err := domain.ParseTimeOfDay(input.StartTime)
	if err != nil {
		return domain.ServiceSchedule{}, domain.ErrInvalidSchedule
	}
	end, err := domain.ParseTimeOfDay(input.EndTime)
	if err != nil || end <= start {
		return domain.ServiceSchedule{}, domain.ErrInvalidSchedule
	}

	isAvailable := true
	if input.IsAvailable != nil {
		isAvailable = *input.IsAvailable
	}
	return domain.ServiceSchedule{
		DayOfWeek:   input.DayOfWeek,
		StartTime:   domain.FormatTimeOfDay(start),
		EndTime:     domain.FormatTimeOfDay(end),
		IsAvailable: isAvailable,
	}, nil
}

func parseServiceType(value string) (domain.ServiceType, error) {
	serviceType := domain.ServiceType(strings.ToLower(strings.TrimSpace(value)))
	switch serviceType {
	case domain.ServiceTypeSellable, domain.ServiceTypeBookable, domain.ServiceTypeReservation:
		return serviceType, nil
	default:
		return "", domain.ErrInvalidServiceType
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func decimalOrZero(value *decimal.Decimal) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return *value
}

func normalizeString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toServiceResponse(record *domain.Service) domain.ServiceResponse {
	resp := domain.ServiceResponse{
		ID:          record.ID.String(),
		MerchantID:  record.MerchantID.String(),
		Name:        record.Name,
		Slug:        record.Slug,
		Description: record.Description,
		ServiceType: record.ServiceType,
		Price:       record.Price.StringFixed(2),
		IsActive:    record.IsActive,
		Metadata:    record.Metadata,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
	switch record.ServiceType {
	case domain.ServiceTypeBookable:
		resp.DurationMinutes = record.DurationMinutes
		resp.MaxCapacity = record.MaxCapacity
		resp.RequiresConfirmation = record.RequiresConfirmation
	case domain.ServiceTypeReservation:
		resp.MaxCapacity = record.MaxCapacity
		resp.PricePerNight = record.PricePerNight.StringFixed(2)
		resp.UnitStatus = record.UnitStatus
	case domain.ServiceTypeSellable:
		resp.StockQuantity = record.StockQuantity
		resp.TrackStock = record.TrackStock
	}
	return resp
}

func toScheduleResponse(schedule *domain.ServiceSchedule) domain.ScheduleResponse {
	return domain.ScheduleResponse{
		ID:          schedule.ID.String(),
		ServiceID:   schedule.ServiceID.String(),
		DayOfWeek:   schedule.DayOfWeek,
		StartTime:   schedule.StartTime,
		EndTime:     schedule.EndTime,
		IsAvailable: schedule.IsAvailable,
	}
}
