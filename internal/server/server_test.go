package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	bookingdomain "github.com/smallbiznis/marketplace/internal/booking/domain"
	bookingrepository "github.com/smallbiznis/marketplace/internal/booking/repository"
	bookingservice "github.com/smallbiznis/marketplace/internal/booking/service"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	"github.com/smallbiznis/marketplace/internal/config"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	"github.com/smallbiznis/marketplace/internal/observability"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	feeservice "github.com/smallbiznis/marketplace/internal/platformfee/service"
	"github.com/smallbiznis/marketplace/internal/ratelimit"
	reservationdomain "github.com/smallbiznis/marketplace/internal/reservation/domain"
	reservationrepository "github.com/smallbiznis/marketplace/internal/reservation/repository"
	reservationservice "github.com/smallbiznis/marketplace/internal/reservation/service"
	serviceorderdomain "github.com/smallbiznis/marketplace/internal/serviceorder/domain"
	serviceorderrepository "github.com/smallbiznis/marketplace/internal/serviceorder/repository"
	serviceorderservice "github.com/smallbiznis/marketplace/internal/serviceorder/service"
	"github.com/smallbiznis/marketplace/internal/testutil/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	*enginetest.Harness
	engine   *gin.Engine
	merchant *merchantdomain.Merchant
	salon    *catalogdomain.Service
	unit     *catalogdomain.Service
	product  *catalogdomain.Service
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

func newAPIFixture(t *testing.T, limiter *ratelimit.CreateLimiter) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := enginetest.New(t,
		&bookingdomain.Booking{},
		&reservationdomain.Reservation{},
		&serviceorderdomain.ServiceOrder{},
		&serviceorderdomain.OrderNumberSequence{},
	)
	merchant := h.Merchant(t, "harbor")
	salon := h.BookableService(t, merchant.ID, "100.00", 60, 1, false)
	h.Schedule(t, salon.ID, int(time.Monday), "09:00", "17:00")
	unit := h.UnitService(t, merchant.ID, "80.00", 2)
	product := h.SellableService(t, merchant.ID, "12.50", 5, true)

	engine := NewEngine(observability.Config{Environment: "test"}, nil)
	NewServer(ServerParams{
		Gin:         engine,
		Cfg:         config.Config{Environment: "test"},
		MerchantSvc: h.Merchants,
		CatalogSvc:  h.Catalog,
		FeeSvc: feeservice.NewService(feeservice.Params{
			DB:    h.DB,
			Log:   h.Log,
			GenID: h.Node,
			Clock: h.Clock,
			Repo:  h.FeeRepo,
		}),
		Calculator: h.Calculator,
		AuditSvc:   h.Audit,
		BookingSvc: bookingservice.New(bookingservice.Params{
			DB:          h.DB,
			Log:         h.Log,
			GenID:       h.Node,
			Clock:       h.Clock,
			Repo:        bookingrepository.Provide(),
			MerchantSvc: h.Merchants,
			CatalogSvc:  h.Catalog,
			Checker:     h.Checker,
			Calculator:  h.Calculator,
			AuditSvc:    h.Audit,
		}),
		ReservationSvc: reservationservice.New(reservationservice.Params{
			DB:          h.DB,
			Log:         h.Log,
			GenID:       h.Node,
			Clock:       h.Clock,
			Repo:        reservationrepository.Provide(),
			MerchantSvc: h.Merchants,
			CatalogSvc:  h.Catalog,
			Checker:     h.Checker,
			Calculator:  h.Calculator,
			AuditSvc:    h.Audit,
		}),
		OrderSvc: serviceorderservice.New(serviceorderservice.Params{
			DB:          h.DB,
			Log:         h.Log,
			GenID:       h.Node,
			Clock:       h.Clock,
			Repo:        serviceorderrepository.Provide(),
			MerchantSvc: h.Merchants,
			CatalogSvc:  h.Catalog,
			Checker:     h.Checker,
			Calculator:  h.Calculator,
			AuditSvc:    h.Audit,
		}),
		CreateLimiter: limiter,
	})

	return &apiFixture{
		Harness:  h,
		engine:   engine,
		merchant: merchant,
		salon:    salon,
		unit:     unit,
		product:  product,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, requester string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if requester != "" {
		req.Header.Set(HeaderRequesterID, requester)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (f *apiFixture) merchantPath(suffix string) string {
	return "/api/merchants/" + f.merchant.ID.String() + suffix
}

func (f *apiFixture) bookingBody() bookingdomain.CreateRequest {
	return bookingdomain.CreateRequest{
		ServiceID:   f.salon.ID.String(),
		BookingDate: "2024-06-03",
		StartTime:   "10:00",
		PartySize:   1,
	}
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, _ := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, env := f.do(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Type)
}

func TestCreateBookingThenCapacityConflict(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, env := f.do(t, http.MethodPost, f.merchantPath("/bookings"), "customer-1", f.bookingBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created bookingdomain.Response
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "customer-1", created.CustomerID)
	assert.Equal(t, "11:00", created.EndTime)
	assert.Equal(t, "confirmed", created.Status)

	w, env = f.do(t, http.MethodPost, f.merchantPath("/bookings"), "customer-2", f.bookingBody())
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "capacity_exceeded", env.Error.Type)
	if assert.Len(t, env.Error.Errors, 1) {
		assert.Equal(t, "party_size", env.Error.Errors[0].Field)
		assert.Equal(t, "capacity_exceeded", env.Error.Errors[0].Code)
	}

	w, env = f.do(t, http.MethodGet, f.merchantPath("/bookings/"+created.ID), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var fetched bookingdomain.Response
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, created.ID, fetched.ID)
}

func TestCreateRequiresRequesterHeader(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, env := f.do(t, http.MethodPost, f.merchantPath("/bookings"), "", f.bookingBody())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Type)
	if assert.Len(t, env.Error.Errors, 1) {
		assert.Equal(t, "requester_id", env.Error.Errors[0].Field)
	}
}

func TestCreateBookingForUnknownMerchant(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, env := f.do(t, http.MethodPost, "/api/merchants/"+f.Node.Generate().String()+"/bookings", "customer-1", f.bookingBody())
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Type)
}

func TestCapabilityDisabledIsForbidden(t *testing.T) {
	f := newAPIFixture(t, nil)

	disabled := false
	w, _ := f.do(t, http.MethodPatch, f.merchantPath("/capabilities"), "", merchantdomain.UpdateCapabilitiesRequest{
		CanTakeBookings: &disabled,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := f.do(t, http.MethodPost, f.merchantPath("/bookings"), "customer-1", f.bookingBody())
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "capability_disabled", env.Error.Type)
}

func TestReservationInvalidRangeIsUnprocessable(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, env := f.do(t, http.MethodPost, f.merchantPath("/reservations"), "guest-1", reservationdomain.CreateRequest{
		ServiceID:  f.unit.ID.String(),
		CheckIn:    "2024-06-10",
		CheckOut:   "2024-06-10",
		GuestCount: 1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_range", env.Error.Type)
	if assert.Len(t, env.Error.Errors, 1) {
		assert.Equal(t, "check_out", env.Error.Errors[0].Field)
	}
}

func TestServiceOrderLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, env := f.do(t, http.MethodPost, f.merchantPath("/service-orders"), "buyer-1", serviceorderdomain.CreateRequest{
		ServiceID: f.product.ID.String(),
		Quantity:  2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order serviceorderdomain.Response
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "ORD-20240601-001", order.OrderNumber)

	w, env = f.do(t, http.MethodPost, f.merchantPath("/service-orders/"+order.ID+"/status"), "", gin.H{"status": "completed"})
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "illegal_transition", env.Error.Type)
	if assert.Len(t, env.Error.Errors, 1) {
		assert.Equal(t, "status", env.Error.Errors[0].Field)
	}

	w, env = f.do(t, http.MethodPost, f.merchantPath("/service-orders/"+order.ID+"/status"), "", gin.H{"status": "received"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "received", order.Status)
}

func TestQuotePlatformFee(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.ActiveFee(t, feedomain.TransactionTypeBooking, "10")

	w, env := f.do(t, http.MethodGet, "/api/platform-fees/quote?transaction_type=booking&subtotal=150", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var quote feedomain.QuoteResponse
	require.NoError(t, json.Unmarshal(env.Data, &quote))
	assert.Equal(t, "15.00", quote.FeeAmount)
	assert.Equal(t, "165.00", quote.TotalAmount)

	w, env = f.do(t, http.MethodGet, "/api/platform-fees/quote?transaction_type=rental&subtotal=150", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Type)
}

func TestCreateGuardLimitsMerchantRate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewCreateLimiterFromClient(client, config.RateLimitConfig{
		CreateMerchantRate:          0.01,
		CreateMerchantBurst:         1,
		CreateConcurrencyTTLSeconds: 5,
	})
	require.NoError(t, err)

	f := newAPIFixture(t, limiter)

	w, _ := f.do(t, http.MethodPost, f.merchantPath("/bookings"), "customer-1", f.bookingBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := f.do(t, http.MethodPost, f.merchantPath("/bookings"), "customer-2", f.bookingBody())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, rateLimitReasonMerchantRate, w.Header().Get("X-Rate-Limited-Reason"))
	require.NotNil(t, env.Error)
	assert.Equal(t, "rate_limited", env.Error.Type)
}

func TestCreateGuardRejectsInFlightDuplicate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewCreateLimiterFromClient(client, config.RateLimitConfig{
		CreateMerchantRate:          10,
		CreateMerchantBurst:         10,
		CreateConcurrencyTTLSeconds: 5,
	})
	require.NoError(t, err)

	f := newAPIFixture(t, limiter)

	token, ok, err := limiter.TryLockRequester(t.Context(), f.merchant.ID.String(), "customer-1", kindBooking)
	require.NoError(t, err)
	require.True(t, ok)

	w, env := f.do(t, http.MethodPost, f.merchantPath("/bookings"), "customer-1", f.bookingBody())
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "duplicate_submission", env.Error.Type)

	require.NoError(t, limiter.ReleaseRequester(t.Context(), f.merchant.ID.String(), "customer-1", kindBooking, token))

	w, _ = f.do(t, http.MethodPost, f.merchantPath("/bookings"), "customer-1", f.bookingBody())
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestListFiltersRejectMalformedQuery(t *testing.T) {
	f := newAPIFixture(t, nil)

	w, env := f.do(t, http.MethodGet, f.merchantPath("/services?is_active=sometimes"), "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	if assert.Len(t, env.Error.Errors, 1) {
		assert.Equal(t, "is_active", env.Error.Errors[0].Field)
	}

	w, _ = f.do(t, http.MethodGet, f.merchantPath("/services?is_active=false"), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = f.do(t, http.MethodGet, "/api/merchants/harbor/audit-logs", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Type)
}
