package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/marketplace/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/marketplace/internal/booking/domain"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	reservationdomain "github.com/smallbiznis/marketplace/internal/reservation/domain"
	serviceorderdomain "github.com/smallbiznis/marketplace/internal/serviceorder/domain"
	"github.com/smallbiznis/marketplace/internal/txerror"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
	ErrDuplicateSubmit    = errors.New("duplicate_submission")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if kind := txerror.KindOf(err); kind != "" {
		message := txerror.MessageOf(err)
		return statusForKind(kind), errorPayload{
			Type:    string(kind),
			Message: message,
			Errors: []ValidationError{
				{
					Field:   txerror.FieldOf(err),
					Code:    string(kind),
					Message: message,
				},
			},
		}
	}

	// Field-attributed domain validation, e.g. invalid_party_size on party_size.
	var fieldErr *txerror.FieldError
	if errors.As(err, &fieldErr) && fieldErr.Err != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   fieldErr.Field,
					Code:    fieldErr.Err.Error(),
					Message: txerror.MessageOf(err),
				},
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrDuplicateSubmit):
		return http.StatusConflict, errorPayload{
			Type:    "duplicate_submission",
			Message: "a matching request is already in progress",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, feedomain.ErrActiveFeeConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func statusForKind(kind txerror.Kind) int {
	switch kind {
	case txerror.KindNotFound:
		return http.StatusNotFound
	case txerror.KindCapabilityDisabled:
		return http.StatusForbidden
	case txerror.KindInvalidRange:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusConflict
	}
}

// classifyErrorForLog feeds the request logger the same type and code the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 && payload.Errors[0].Code != "" {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "internal", code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	merchantdomain.ErrInvalidName,
	merchantdomain.ErrInvalidID,
	merchantdomain.ErrInvalidParent,
	merchantdomain.ErrInvalidStatus,
	catalogdomain.ErrInvalidMerchant,
	catalogdomain.ErrBranchMerchant,
	catalogdomain.ErrInvalidID,
	catalogdomain.ErrInvalidName,
	catalogdomain.ErrInvalidServiceType,
	catalogdomain.ErrInvalidPrice,
	catalogdomain.ErrInvalidDuration,
	catalogdomain.ErrInvalidCapacity,
	catalogdomain.ErrInvalidUnitStatus,
	catalogdomain.ErrInvalidStock,
	catalogdomain.ErrInvalidDayOfWeek,
	catalogdomain.ErrInvalidSchedule,
	catalogdomain.ErrDuplicateDay,
	catalogdomain.ErrNotBookable,
	feedomain.ErrInvalidID,
	feedomain.ErrInvalidTransactionType,
	feedomain.ErrInvalidRatePercentage,
	feedomain.ErrInvalidSubtotal,
	auditdomain.ErrInvalidMerchant,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
	bookingdomain.ErrInvalidRequester,
	bookingdomain.ErrInvalidStatus,
	bookingdomain.ErrInvalidFilter,
	bookingdomain.ErrInvalidPageToken,
	reservationdomain.ErrInvalidRequester,
	reservationdomain.ErrInvalidStatus,
	reservationdomain.ErrInvalidFilter,
	reservationdomain.ErrInvalidPageToken,
	serviceorderdomain.ErrInvalidRequester,
	serviceorderdomain.ErrInvalidStatus,
	serviceorderdomain.ErrInvalidFilter,
	serviceorderdomain.ErrInvalidPageToken,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, merchantdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, feedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "branch_merchant":
		return "branches sell their parent's catalog"
	case "duplicate_day_of_week":
		return "a day of week appears twice"
	case "not_bookable":
		return "schedules apply to bookable services only"
	default:
		return "invalid value"
	}
}
