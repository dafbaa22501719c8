package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	"github.com/smallbiznis/marketplace/internal/serviceorder/domain"
	"github.com/smallbiznis/marketplace/internal/serviceorder/repository"
	"github.com/smallbiznis/marketplace/internal/testutil/enginetest"
	"github.com/smallbiznis/marketplace/internal/txerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	*enginetest.Harness
	svc      domain.Service
	merchant *merchantdomain.Merchant
	product  *catalogdomain.Service
}

func newFixture(t *testing.T) *fixture {
	return fixtureOn(t, enginetest.New(t, &domain.ServiceOrder{}, &domain.OrderNumberSequence{}))
}

func fixtureOn(t *testing.T, h *enginetest.Harness) *fixture {
	merchant := h.Merchant(t, "bakery")
	product := h.SellableService(t, merchant.ID, "12.50", 5, true)

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
	return &fixture{Harness: h, svc: svc, merchant: merchant, product: product}
}

func (f *fixture) order(quantity int) (*domain.Response, error) {
	return f.svc.Create(context.Background(), f.merchant.ID.String(), "buyer-1", domain.CreateRequest{
		ServiceID: f.product.ID.String(),
		Quantity:  quantity,
	})
}

func TestCreateNumbersOrdersPerDay(t *testing.T) {
	f := newFixture(t)

	first, err := f.order(1)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20240601-001", first.OrderNumber)
	assert.Equal(t, "pending", first.Status)

	second, err := f.order(1)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20240601-002", second.OrderNumber)

	f.Clock.Advance(24 * time.Hour)
	nextDay, err := f.order(1)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20240602-001", nextDay.OrderNumber)
}

func TestConcurrentOrdersGetDistinctSequentialNumbers(t *testing.T) {
	f := newFixture(t)

	const n = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.order(1)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, resp.OrderNumber)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Strings(numbers)
	assert.Equal(t, []string{
		"ORD-20240601-001",
		"ORD-20240601-002",
		"ORD-20240601-003",
		"ORD-20240601-004",
		"ORD-20240601-005",
	}, numbers)
}

func TestNumberingContinuesAfterExistingOrders(t *testing.T) {
	f := newFixture(t)

	first, err := f.order(1)
	require.NoError(t, err)
	// Simulate an order issued while the counter row lagged behind.
	require.NoError(t, f.DB.Exec(`UPDATE service_orders SET order_number = ? WHERE order_number = ?`, "ORD-20240601-041", first.OrderNumber).Error)

	next, err := f.order(1)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20240601-042", next.OrderNumber)
}

func TestCreatePricesQuantityWithFee(t *testing.T) {
	f := newFixture(t)
	f.ActiveFee(t, feedomain.TransactionTypeSellProduct, "3.5")

	resp, err := f.order(3)
	require.NoError(t, err)
	assert.Equal(t, "12.50", resp.UnitPrice)
	assert.Equal(t, "37.50", resp.Subtotal)
	assert.Equal(t, "3.50", resp.FeeRate)
	// 37.50 * 3.5% = 1.3125
	assert.Equal(t, "1.31", resp.FeeAmount)
	assert.Equal(t, "38.81", resp.TotalAmount)
	assert.False(t, resp.StockShortfall)
}

func TestCreateAcceptsStockShortfall(t *testing.T) {
	f := newFixture(t)

	resp, err := f.order(9)
	require.NoError(t, err)
	assert.True(t, resp.StockShortfall)

	_, err = f.order(0)
	assert.Equal(t, "quantity", txerror.FieldOf(err))
}

func TestCreateRequiresProductsCapability(t *testing.T) {
	f := newFixture(t)
	merchant := f.Merchant(t, "spa", func(m *merchantdomain.Merchant) { m.CanSellProducts = false })

	_, err := f.svc.Create(context.Background(), merchant.ID.String(), "buyer-1", domain.CreateRequest{ServiceID: f.product.ID.String(), Quantity: 1})
	assert.True(t, errors.Is(err, txerror.ErrCapabilityDisabled))

	require.NoError(t, f.DB.Exec(`UPDATE services SET is_active = ? WHERE id = ?`, false, f.product.ID).Error)
	_, err = f.order(1)
	assert.True(t, errors.Is(err, txerror.ErrNotFound))
	assert.Equal(t, "service_id", txerror.FieldOf(err))
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	merchantID := f.merchant.ID.String()

	created, err := f.order(2)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, merchantID, created.ID, "ready")
	require.Error(t, err)
	var ite *txerror.IllegalTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "pending", ite.From)
	assert.Equal(t, "ready", ite.To)

	for _, status := range []string{"received", "processing", "ready", "delivering", "completed"} {
		f.Clock.Advance(time.Minute)
		resp, err := f.svc.UpdateStatus(ctx, merchantID, created.ID, status)
		require.NoError(t, err, status)
		assert.Equal(t, status, resp.Status)
	}

	stored, err := f.svc.Get(ctx, merchantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", stored.Status)
	assert.NotNil(t, stored.ReceivedAt)
	assert.NotNil(t, stored.CompletedAt)
	assert.Nil(t, stored.CancelledAt)
	assert.Equal(t, created.TotalAmount, stored.TotalAmount)
	assert.Equal(t, created.OrderNumber, stored.OrderNumber)

	_, err = f.svc.UpdateStatus(ctx, merchantID, created.ID, "cancelled")
	assert.True(t, errors.Is(err, txerror.ErrIllegalTransition))
	_, err = f.svc.UpdateStatus(ctx, merchantID, created.ID, "completed")
	assert.True(t, errors.Is(err, txerror.ErrIllegalTransition))
}

func TestOrdersAreTenantScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.order(1)
	require.NoError(t, err)

	other := f.Merchant(t, "other")
	_, err = f.svc.UpdateStatus(ctx, other.ID.String(), created.ID, "received")
	assert.True(t, errors.Is(err, txerror.ErrNotFound))
	assert.Equal(t, "service_order_id", txerror.FieldOf(err))
}

func TestListOrdersByDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.order(1)
	require.NoError(t, err)
	f.Clock.Advance(24 * time.Hour)
	_, err = f.order(1)
	require.NoError(t, err)

	got, err := f.svc.List(ctx, f.merchant.ID.String(), domain.ListRequest{From: "2024-06-01", To: "2024-06-01"})
	require.NoError(t, err)
	require.Len(t, got.ServiceOrders, 1)
	assert.Equal(t, "ORD-20240601-001", got.ServiceOrders[0].OrderNumber)

	all, err := f.svc.List(ctx, f.merchant.ID.String(), domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, all.ServiceOrders, 2)
	assert.Equal(t, "ORD-20240602-001", all.ServiceOrders[0].OrderNumber)
}
