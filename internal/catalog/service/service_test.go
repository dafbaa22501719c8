package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/marketplace/internal/catalog/domain"
	"github.com/smallbiznis/marketplace/internal/catalog/repository"
	"github.com/smallbiznis/marketplace/internal/clock"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	merchantrepository "github.com/smallbiznis/marketplace/internal/merchant/repository"
	"github.com/smallbiznis/marketplace/internal/testutil"
	"github.com/smallbiznis/marketplace/internal/txerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	svc    domain.CatalogService
	parent merchantdomain.Merchant
	branch merchantdomain.Merchant
}

func newFixture(t *testing.T) *fixture {
	db := testutil.OpenSQLite(t, &merchantdomain.Merchant{}, &domain.Service{}, &domain.ServiceSchedule{})
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	merchantRepo := merchantrepository.Provide()

	parent := merchantdomain.Merchant{ID: 100, Name: "Parent", Slug: "parent", Status: merchantdomain.StatusActive, CreatedAt: now, UpdatedAt: now}
	parentID := parent.ID
	branch := merchantdomain.Merchant{ID: 101, ParentID: &parentID, Name: "Branch", Slug: "branch", Status: merchantdomain.StatusActive, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, merchantRepo.Insert(context.Background(), db, &parent))
	require.NoError(t, merchantRepo.Insert(context.Background(), db, &branch))

	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        testutil.Node(t),
		Clock:        clock.NewFakeClock(now),
		Repo:         repository.Provide(),
		MerchantRepo: merchantRepo,
	})
	return &fixture{db: db, svc: svc, parent: parent, branch: branch}
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestCreateServiceValidatesTypeSpecificFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	merchantID := f.parent.ID.String()

	_, err := f.svc.CreateService(ctx, merchantID, domain.CreateServiceRequest{Name: "Massage", ServiceType: "bookable", Price: price("50")})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = f.svc.CreateService(ctx, merchantID, domain.CreateServiceRequest{Name: "Cabin", ServiceType: "reservation", PricePerNight: price("80")})
	assert.ErrorIs(t, err, domain.ErrInvalidCapacity)

	_, err = f.svc.CreateService(ctx, merchantID, domain.CreateServiceRequest{Name: "Soap", ServiceType: "gift"})
	assert.ErrorIs(t, err, domain.ErrInvalidServiceType)

	// Bookable-only fields are ignored for a sellable service.
	soap, err := f.svc.CreateService(ctx, merchantID, domain.CreateServiceRequest{Name: "Soap", ServiceType: "sellable", Price: price("4.50"), DurationMinutes: -5})
	require.NoError(t, err)
	assert.Equal(t, "4.50", soap.Price)
	assert.Zero(t, soap.DurationMinutes)

	cabin, err := f.svc.CreateService(ctx, merchantID, domain.CreateServiceRequest{Name: "Cabin", ServiceType: "reservation", PricePerNight: price("80"), MaxCapacity: 4})
	require.NoError(t, err)
	assert.Equal(t, domain.UnitStatusAvailable, cabin.UnitStatus)
	assert.Equal(t, "80.00", cabin.PricePerNight)
}

func TestBranchSellsFromParentCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateService(ctx, f.branch.ID.String(), domain.CreateServiceRequest{Name: "Haircut", ServiceType: "bookable", Price: price("20"), DurationMinutes: 30, MaxCapacity: 1})
	assert.ErrorIs(t, err, domain.ErrBranchMerchant)

	created, err := f.svc.CreateService(ctx, f.parent.ID.String(), domain.CreateServiceRequest{Name: "Haircut", ServiceType: "bookable", Price: price("20"), DurationMinutes: 30, MaxCapacity: 1})
	require.NoError(t, err)

	items, err := f.svc.ListServices(ctx, f.branch.ID.String(), domain.ListServiceRequest{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].ID)

	got, err := f.svc.GetService(ctx, f.branch.ID.String(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "haircut", got.Slug)
}

func TestFindServiceFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cabin, err := f.svc.CreateService(ctx, f.parent.ID.String(), domain.CreateServiceRequest{Name: "Cabin", ServiceType: "reservation", PricePerNight: price("80"), MaxCapacity: 2, UnitStatus: "maintenance"})
	require.NoError(t, err)
	id, err := snowflake.ParseString(cabin.ID)
	require.NoError(t, err)

	_, err = f.svc.FindService(ctx, nil, f.parent.ID, id, domain.ServiceFilter{Type: domain.ServiceTypeReservation, ActiveOnly: true, AvailableUnitOnly: true})
	assert.True(t, errors.Is(err, txerror.ErrNotFound))
	assert.Equal(t, "service_id", txerror.FieldOf(err))

	_, err = f.svc.FindService(ctx, nil, f.parent.ID, id, domain.ServiceFilter{Type: domain.ServiceTypeBookable})
	assert.True(t, errors.Is(err, txerror.ErrNotFound))

	_, err = f.svc.FindService(ctx, nil, f.branch.ID, id, domain.ServiceFilter{})
	assert.True(t, errors.Is(err, txerror.ErrNotFound))

	available := "available"
	_, err = f.svc.UpdateService(ctx, f.parent.ID.String(), cabin.ID, domain.UpdateServiceRequest{UnitStatus: &available})
	require.NoError(t, err)

	got, err := f.svc.FindService(ctx, nil, f.parent.ID, id, domain.ServiceFilter{Type: domain.ServiceTypeReservation, ActiveOnly: true, AvailableUnitOnly: true, ForUpdate: true})
	require.NoError(t, err)
	assert.Equal(t, 2, got.MaxCapacity)
}

func TestSetSchedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	merchantID := f.parent.ID.String()

	svc, err := f.svc.CreateService(ctx, merchantID, domain.CreateServiceRequest{Name: "Yoga", ServiceType: "bookable", Price: price("15"), DurationMinutes: 60, MaxCapacity: 10})
	require.NoError(t, err)

	closed := false
	schedules, err := f.svc.SetSchedules(ctx, merchantID, svc.ID, domain.SetSchedulesRequest{Schedules: []domain.ScheduleInput{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00"},
		{DayOfWeek: 0, StartTime: "10:00", EndTime: "12:00", IsAvailable: &closed},
	}})
	require.NoError(t, err)
	assert.Len(t, schedules, 2)

	listed, err := f.svc.ListSchedules(ctx, merchantID, svc.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, 0, listed[0].DayOfWeek)
	assert.False(t, listed[0].IsAvailable)

	_, err = f.svc.SetSchedules(ctx, merchantID, svc.ID, domain.SetSchedulesRequest{Schedules: []domain.ScheduleInput{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00"},
		{DayOfWeek: 1, StartTime: "18:00", EndTime: "19:00"},
	}})
	assert.ErrorIs(t, err, domain.ErrDuplicateDay)

	_, err = f.svc.SetSchedules(ctx, merchantID, svc.ID, domain.SetSchedulesRequest{Schedules: []domain.ScheduleInput{
		{DayOfWeek: 2, StartTime: "17:00", EndTime: "09:00"},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	_, err = f.svc.SetSchedules(ctx, merchantID, svc.ID, domain.SetSchedulesRequest{Schedules: []domain.ScheduleInput{
		{DayOfWeek: 7, StartTime: "09:00", EndTime: "10:00"},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidDayOfWeek)

	// A replaced schedule drops days not in the new set.
	_, err = f.svc.SetSchedules(ctx, merchantID, svc.ID, domain.SetSchedulesRequest{Schedules: []domain.ScheduleInput{
		{DayOfWeek: 3, StartTime: "08:00", EndTime: "12:00"},
	}})
	require.NoError(t, err)
	id, _ := snowflake.ParseString(svc.ID)
	monday, err := f.svc.FindSchedule(ctx, nil, id, 1)
	require.NoError(t, err)
	assert.Nil(t, monday)
}
