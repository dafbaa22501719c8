// Package enginetest wires the collaborators of the transaction engines
// against an in-memory database.
package enginetest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/marketplace/internal/audit/domain"
	auditrepository "github.com/smallbiznis/marketplace/internal/audit/repository"
	auditservice "github.com/smallbiznis/marketplace/internal/audit/service"
	availabilitydomain "github.com/smallbiznis/marketplace/internal/availability/domain"
	availabilityrepository "github.com/smallbiznis/marketplace/internal/availability/repository"
	availabilityservice "github.com/smallbiznis/marketplace/internal/availability/service"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/marketplace/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/marketplace/internal/catalog/service"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/events"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	merchantrepository "github.com/smallbiznis/marketplace/internal/merchant/repository"
	merchantservice "github.com/smallbiznis/marketplace/internal/merchant/service"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	feerepository "github.com/smallbiznis/marketplace/internal/platformfee/repository"
	feeservice "github.com/smallbiznis/marketplace/internal/platformfee/service"
	"github.com/smallbiznis/marketplace/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Harness struct {
	DB    *gorm.DB
	Node  *snowflake.Node
	Clock *clock.FakeClock
	Log   *zap.Logger

	MerchantRepo merchantdomain.Repository
	Merchants    merchantdomain.Service
	CatalogRepo  catalogdomain.Repository
	Catalog      catalogdomain.CatalogService
	Checker      availabilitydomain.Checker
	FeeRepo      feedomain.Repository
	Calculator   feedomain.Calculator
	Audit        auditdomain.Service
	Events       *events.Recorder
}

// New migrates the shared tables plus models and builds the collaborators.
// The clock starts at 2024-06-01 08:00 UTC.
func New(t *testing.T, models ...any) *Harness {
	t.Helper()

	all := append([]any{
		&merchantdomain.Merchant{},
		&catalogdomain.Service{},
		&catalogdomain.ServiceSchedule{},
		&feedomain.PlatformFee{},
		&auditdomain.AuditLog{},
	}, models...)
	return newHarness(testutil.OpenSQLite(t, all...))
}

func newHarness(db *gorm.DB) *Harness {
	h := &Harness{
		DB:           db,
		Node:         mustNode(),
		Clock:        clock.NewFakeClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)),
		Log:          zap.NewNop(),
		MerchantRepo: merchantrepository.Provide(),
		CatalogRepo:  catalogrepository.Provide(),
		FeeRepo:      feerepository.NewRepository(),
		Events:       events.NewRecorder(),
	}
	h.Audit = auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   h.Log,
		GenID: h.Node,
		Clock: h.Clock,
		Repo:  auditrepository.Provide(),
	})
	h.Merchants = merchantservice.New(merchantservice.Params{
		DB:    db,
		Log:   h.Log,
		GenID: h.Node,
		Clock: h.Clock,
		Repo:  h.MerchantRepo,
	})
	h.Catalog = catalogservice.New(catalogservice.Params{
		DB:           db,
		Log:          h.Log,
		GenID:        h.Node,
		Clock:        h.Clock,
		Repo:         h.CatalogRepo,
		MerchantRepo: h.MerchantRepo,
	})
	h.Checker = availabilityservice.NewChecker(availabilityservice.Params{
		Log:        h.Log,
		Repo:       availabilityrepository.Provide(),
		CatalogSvc: h.Catalog,
	})
	h.Calculator = feeservice.NewCalculator(feeservice.CalculatorParams{DB: db, Repository: h.FeeRepo})
	return h
}

func mustNode() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

type MerchantOption func(*merchantdomain.Merchant)

func WithParent(parent *merchantdomain.Merchant) MerchantOption {
	return func(m *merchantdomain.Merchant) { m.ParentID = &parent.ID }
}

func Suspended() MerchantOption {
	return func(m *merchantdomain.Merchant) { m.Status = merchantdomain.StatusSuspended }
}

// Merchant inserts an active merchant with every capability enabled.
func (h *Harness) Merchant(t *testing.T, name string, opts ...MerchantOption) *merchantdomain.Merchant {
	t.Helper()
	now := h.Clock.Now()
	id := h.Node.Generate()
	m := &merchantdomain.Merchant{
		ID:              id,
		Name:            name,
		Slug:            name + "-" + id.Base36(),
		Status:          merchantdomain.StatusActive,
		CanTakeBookings: true,
		CanRentUnits:    true,
		CanSellProducts: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := h.MerchantRepo.Insert(context.Background(), h.DB, m); err != nil {
		t.Fatalf("insert merchant: %v", err)
	}
	return m
}

func (h *Harness) insertService(t *testing.T, svc *catalogdomain.Service) *catalogdomain.Service {
	t.Helper()
	now := h.Clock.Now()
	svc.ID = h.Node.Generate()
	svc.Slug = svc.Name + "-" + svc.ID.Base36()
	svc.IsActive = true
	svc.CreatedAt = now
	svc.UpdatedAt = now
	if err := h.CatalogRepo.InsertService(context.Background(), h.DB, svc); err != nil {
		t.Fatalf("insert service: %v", err)
	}
	return svc
}

func (h *Harness) BookableService(t *testing.T, merchantID snowflake.ID, price string, duration, capacity int, requiresConfirmation bool) *catalogdomain.Service {
	return h.insertService(t, &catalogdomain.Service{
		MerchantID:           merchantID,
		Name:                 "appointment",
		ServiceType:          catalogdomain.ServiceTypeBookable,
		Price:                decimal.RequireFromString(price),
		DurationMinutes:      duration,
		MaxCapacity:          capacity,
		RequiresConfirmation: requiresConfirmation,
	})
}

func (h *Harness) UnitService(t *testing.T, merchantID snowflake.ID, pricePerNight string, capacity int) *catalogdomain.Service {
	return h.insertService(t, &catalogdomain.Service{
		MerchantID:    merchantID,
		Name:          "unit",
		ServiceType:   catalogdomain.ServiceTypeReservation,
		PricePerNight: decimal.RequireFromString(pricePerNight),
		MaxCapacity:   capacity,
		UnitStatus:    catalogdomain.UnitStatusAvailable,
	})
}

func (h *Harness) SellableService(t *testing.T, merchantID snowflake.ID, price string, stock int, trackStock bool) *catalogdomain.Service {
	return h.insertService(t, &catalogdomain.Service{
		MerchantID:    merchantID,
		Name:          "product",
		ServiceType:   catalogdomain.ServiceTypeSellable,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		TrackStock:    trackStock,
	})
}

// Schedule sets one available weekly window on a bookable service.
func (h *Harness) Schedule(t *testing.T, serviceID snowflake.ID, dayOfWeek int, start, end string) {
	t.Helper()
	now := h.Clock.Now()
	existing, err := h.CatalogRepo.ListSchedules(context.Background(), h.DB, serviceID)
	if err != nil {
		t.Fatalf("list schedules: %v", err)
	}
	schedules := make([]catalogdomain.ServiceSchedule, 0, len(existing)+1)
	for _, s := range existing {
		if s.DayOfWeek != dayOfWeek {
			schedules = append(schedules, s)
		}
	}
	schedules = append(schedules, catalogdomain.ServiceSchedule{
		ID:          h.Node.Generate(),
		ServiceID:   serviceID,
		DayOfWeek:   dayOfWeek,
		StartTime:   start,
		EndTime:     end,
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err := h.CatalogRepo.ReplaceSchedules(context.Background(), h.DB, serviceID, schedules); err != nil {
		t.Fatalf("replace schedules: %v", err)
	}
}

// ActiveFee inserts the active fee for a transaction type.
func (h *Harness) ActiveFee(t *testing.T, txType feedomain.TransactionType, rate string) {
	t.Helper()
	now := h.Clock.Now()
	fee := &feedomain.PlatformFee{
		ID:              h.Node.Generate(),
		TransactionType: txType,
		RatePercentage:  decimal.RequireFromString(rate),
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.FeeRepo.Insert(context.Background(), h.DB, fee); err != nil {
		t.Fatalf("insert fee: %v", err)
	}
}

// AuditActions lists the audit actions recorded for a merchant, oldest first.
func (h *Harness) AuditActions(t *testing.T, merchantID snowflake.ID) []string {
	t.Helper()
	var actions []string
	err := h.DB.Raw(`SELECT action FROM audit_logs WHERE merchant_id = ? ORDER BY created_at, id`, merchantID).Scan(&actions).Error
	if err != nil {
		t.Fatalf("list audit actions: %v", err)
	}
	return actions
}
