package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/marketplace/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/marketplace/internal/booking/domain"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	"github.com/smallbiznis/marketplace/internal/config"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	"github.com/smallbiznis/marketplace/internal/observability"
	obsmiddleware "github.com/smallbiznis/marketplace/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/marketplace/internal/observability/metrics"
	obstracing "github.com/smallbiznis/marketplace/internal/observability/tracing"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	"github.com/smallbiznis/marketplace/internal/ratelimit"
	reservationdomain "github.com/smallbiznis/marketplace/internal/reservation/domain"
	serviceorderdomain "github.com/smallbiznis/marketplace/internal/serviceorder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	merchantSvc    merchantdomain.Service
	catalogSvc     catalogdomain.CatalogService
	feeSvc         feedomain.Service
	calculator     feedomain.Calculator
	auditSvc       auditdomain.Service
	bookingSvc     bookingdomain.Service
	reservationSvc reservationdomain.Service
	orderSvc       serviceorderdomain.Service
	createLimiter  *ratelimit.CreateLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	MerchantSvc    merchantdomain.Service
	CatalogSvc     catalogdomain.CatalogService
	FeeSvc         feedomain.Service
	Calculator     feedomain.Calculator
	AuditSvc       auditdomain.Service
	BookingSvc     bookingdomain.Service
	ReservationSvc reservationdomain.Service
	OrderSvc       serviceorderdomain.Service
	CreateLimiter  *ratelimit.CreateLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		merchantSvc:    p.MerchantSvc,
		catalogSvc:     p.CatalogSvc,
		feeSvc:         p.FeeSvc,
		calculator:     p.Calculator,
		auditSvc:       p.AuditSvc,
		bookingSvc:     p.BookingSvc,
		reservationSvc: p.ReservationSvc,
		orderSvc:       p.OrderSvc,
		createLimiter:  p.CreateLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(RequesterIdentity())

	// -------- Platform Fees --------
	api.GET("/platform-fees", s.ListPlatformFees)
	api.POST("/platform-fees", s.CreatePlatformFee)
	api.GET("/platform-fees/quote", s.QuotePlatformFee)
	api.GET("/platform-fees/:id", s.GetPlatformFee)
	api.PATCH("/platform-fees/:id", s.UpdatePlatformFee)
	api.POST("/platform-fees/:id/deactivate", s.DeactivatePlatformFee)

	// -------- Merchants --------
	api.POST("/merchants", s.CreateMerchant)
	merchant := api.Group("/merchants/:merchantId")
	{
		merchant.GET("", s.GetMerchant)
		merchant.PATCH("/capabilities", s.UpdateMerchantCapabilities)

		// -------- Catalog --------
		merchant.GET("/services", s.ListServices)
		merchant.POST("/services", s.CreateService)
		merchant.GET("/services/:serviceId", s.GetService)
		merchant.PATCH("/services/:serviceId", s.UpdateService)
		merchant.GET("/services/:serviceId/schedules", s.ListSchedules)
		merchant.PUT("/services/:serviceId/schedules", s.SetSchedules)

		// -------- Bookings --------
		merchant.GET("/bookings", s.ListBookings)
		merchant.POST("/bookings", s.RequireRequester(), s.CreateGuard(kindBooking), s.CreateBooking)
		merchant.GET("/bookings/:id", s.GetBooking)
		merchant.POST("/bookings/:id/status", s.UpdateBookingStatus)

		// -------- Reservations --------
		merchant.GET("/reservations", s.ListReservations)
		merchant.POST("/reservations", s.RequireRequester(), s.CreateGuard(kindReservation), s.CreateReservation)
		merchant.GET("/reservations/:id", s.GetReservation)
		merchant.POST("/reservations/:id/status", s.UpdateReservationStatus)

		// -------- Service Orders --------
		merchant.GET("/service-orders", s.ListServiceOrders)
		merchant.POST("/service-orders", s.RequireRequester(), s.CreateGuard(kindServiceOrder), s.CreateServiceOrder)
		merchant.GET("/service-orders/:id", s.GetServiceOrder)
		merchant.POST("/service-orders/:id/status", s.UpdateServiceOrderStatus)

		merchant.GET("/audit-logs", s.ListAuditLogs)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
