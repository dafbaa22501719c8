package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/marketplace/internal/auditcontext"
	"github.com/smallbiznis/marketplace/internal/lifecycle"
	"github.com/smallbiznis/marketplace/internal/observability/logger"
	obscontext "github.com/smallbiznis/marketplace/internal/observability/context"
	"go.uber.org/zap"
)

const (
	HeaderRequesterID      = "X-Requester-Id"
	contextRequesterIDKey  = "requester_id"
	contextTransactionKind = "transaction_kind"

	kindBooking      = string(lifecycle.KindBooking)
	kindReservation  = string(lifecycle.KindReservation)
	kindServiceOrder = string(lifecycle.KindServiceOrder)

	rateLimitReasonMerchantRate      = "merchant-rate"
	rateLimitReasonRequesterInFlight = "requester-in-flight"
)

// RequesterIdentity records the caller named by X-Requester-Id as the audit
// actor. Identity is asserted by the gateway in front of this service.
func RequesterIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID := strings.TrimSpace(c.GetHeader(HeaderRequesterID))
		if requesterID != "" {
			c.Set(contextRequesterIDKey, requesterID)
			ctx := auditcontext.WithActor(c.Request.Context(), "requester", requesterID)
			ctx = obscontext.WithActor(ctx, "requester", requesterID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func (s *Server) RequireRequester() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requesterID(c) == "" {
			AbortWithError(c, newValidationError("requester_id", "required", "X-Requester-Id header is required"))
			return
		}
		c.Next()
	}
}

// CreateGuard applies the per-merchant create rate and rejects a second
// in-flight create of the same kind from the same requester.
func (s *Server) CreateGuard(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextTransactionKind, kind)
		if !s.createLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		merchantID := strings.TrimSpace(c.Param("merchantId"))
		requester := requesterID(c)

		res, err := s.createLimiter.AllowMerchant(ctx, merchantID)
		if err != nil {
			logger.FromContext(ctx).Warn("create rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			retryAfter := int(res.RetryAfter.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			s.denyCreate(c, rateLimitReasonMerchantRate, ErrRateLimited)
			return
		}

		token, ok, err := s.createLimiter.TryLockRequester(ctx, merchantID, requester, kind)
		if err != nil {
			logger.FromContext(ctx).Warn("create lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !ok {
			s.denyCreate(c, rateLimitReasonRequesterInFlight, ErrDuplicateSubmit)
			return
		}
		defer func() {
			if err := s.createLimiter.ReleaseRequester(ctx, merchantID, requester, kind, token); err != nil {
				logger.FromContext(ctx).Warn("create unlock failed", zap.Error(err))
			}
		}()

		c.Next()
	}
}

func (s *Server) denyCreate(c *gin.Context, reason string, err error) {
	ctx := c.Request.Context()
	endpoint := strings.TrimSpace(c.FullPath())
	logger.FromContext(ctx).Warn("create request limited",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, reason)

	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, err)
}

func requesterID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(contextRequesterIDKey))
}
