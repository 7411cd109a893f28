package server

import (
	"errors"
	"net/http"
	"strings"

	auditdomain "github.com/bidworks/clearhouse/internal/audit/domain"
	compliancedomain "github.com/bidworks/clearhouse/internal/compliance/domain"
	earningsdomain "github.com/bidworks/clearhouse/internal/earnings/domain"
	"github.com/bidworks/clearhouse/internal/payee"
	payoutdomain "github.com/bidworks/clearhouse/internal/payout/domain"
	"github.com/bidworks/clearhouse/internal/tinvault"
	"github.com/gin-gonic/gin"
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
	Details map[string]any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
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

	var blocked *payoutdomain.ComplianceBlockedError
	if errors.As(err, &blocked) {
		return http.StatusForbidden, errorPayload{
			Type:    "compliance_blocked",
			Message: blocked.Reason,
			Details: map[string]any{
				"current_earnings": blocked.CurrentEarnings,
				"threshold":        blocked.Threshold,
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, payoutdomain.ErrComplianceBlocked):
		return http.StatusForbidden, errorPayload{
			Type:    "compliance_blocked",
			Message: "compliance blocked",
		}
	case errors.Is(err, tinvault.ErrSecurityAudit),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, payee.ErrInvalidPayee),
		errors.Is(err, tinvault.ErrInvalidTIN):
		return true
	case isComplianceValidationError(err),
		isEarningsValidationError(err),
		isPayoutValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isComplianceValidationError(err error) bool {
	return errors.Is(err, compliancedomain.ErrInvalidFormType) ||
		errors.Is(err, compliancedomain.ErrInvalidClassification) ||
		errors.Is(err, compliancedomain.ErrMissingLegalName) ||
		errors.Is(err, compliancedomain.ErrMissingSignature) ||
		errors.Is(err, compliancedomain.ErrInvalidTINType) ||
		errors.Is(err, compliancedomain.ErrInvalidDecision) ||
		errors.Is(err, compliancedomain.ErrMissingReviewer)
}

func isEarningsValidationError(err error) bool {
	return errors.Is(err, earningsdomain.ErrInvalidYear) ||
		errors.Is(err, earningsdomain.ErrInvalidAmount) ||
		errors.Is(err, earningsdomain.ErrInvalidEvent)
}

func isPayoutValidationError(err error) bool {
	return errors.Is(err, payoutdomain.ErrInvalidAmount) ||
		errors.Is(err, payoutdomain.ErrInvalidRates) ||
		errors.Is(err, payoutdomain.ErrInvalidResolution) ||
		errors.Is(err, payoutdomain.ErrMissingReviewer)
}

func isAuditValidationError(err error) bool {
	return errors.Is(err, auditdomain.ErrInvalidEventType) ||
		errors.Is(err, auditdomain.ErrInvalidSubject) ||
		errors.Is(err, auditdomain.ErrMissingPurpose) ||
		errors.Is(err, auditdomain.ErrInvalidPageToken) ||
		errors.Is(err, auditdomain.ErrInvalidTimeRange)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, compliancedomain.ErrNotFound),
		errors.Is(err, payoutdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, compliancedomain.ErrInvalidStateTransition),
		errors.Is(err, payoutdomain.ErrInvalidStateTransition),
		errors.Is(err, payoutdomain.ErrReserveNotDue),
		errors.Is(err, payoutdomain.ErrChargebackFlagged):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if strings.HasPrefix(code, "missing_") {
		return strings.TrimPrefix(code, "missing_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog reduces an error to (type, code) for request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "internal_error", code
	}
	return payload.Type, code
}
