package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"
)

type Err struct {
	StatusCode int                 `json:"-"`
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Fields     map[string][]string `json:"errors,omitempty"`

	internal error
}

func (e *Err) Error() string {
	return e.Message
}

// RenderErr writes the error response. Internal detail is logged server-side
// only; untrusted callers never see it.
func RenderErr(ctx *gin.Context, err *Err) {
	if err.internal != nil {
		zap.L().Error(err.Message,
			zap.String("request_id", ctx.GetHeader("X-Request-ID")),
			zap.Error(err.internal))
	}

	ctx.AbortWithStatusJSON(err.StatusCode, err)
}

func ErrBadRequest(err error) *Err {
	return &Err{
		StatusCode: http.StatusBadRequest,
		Message:    err.Error(),
	}
}

// ErrValidation renders every failing field at once, each mapped to its
// human-readable messages.
func ErrValidation(err error) *Err {
	fields := map[string][]string{}

	var validationErrs validation.Errors
	if errors.As(err, &validationErrs) {
		for field, fieldErr := range validationErrs {
			fields[field] = append(fields[field], fieldErr.Error())
		}
	} else {
		fields["_"] = []string{err.Error()}
	}

	return &Err{
		StatusCode: http.StatusBadRequest,
		Message:    "validation failed",
		Fields:     fields,
	}
}

func ErrNotFound(resource, key string, value any) *Err {
	return &Err{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("%v not found by %v (%v)", resource, key, value),
	}
}

// ErrPolicyViolation is the business-rule error class: the message names the
// violated rule, distinct from generic failures.
func ErrPolicyViolation(err error) *Err {
	return &Err{
		StatusCode: http.StatusUnprocessableEntity,
		Message:    err.Error(),
	}
}

func ErrPermissionDenied(err error) *Err {
	return &Err{
		StatusCode: http.StatusForbidden,
		Message:    err.Error(),
	}
}

func ErrUnauthorized(msg string) *Err {
	return &Err{
		StatusCode: http.StatusUnauthorized,
		Message:    msg,
	}
}

// ErrGatewayUnavailable is retryable: the payment intent is preserved and
// the client may resubmit.
func ErrGatewayUnavailable() *Err {
	return &Err{
		StatusCode: http.StatusServiceUnavailable,
		Message:    "payment gateway unavailable, please retry",
	}
}

func ErrInternalServerError(err error) *Err {
	return &Err{
		StatusCode: http.StatusInternalServerError,
		Message:    "internal server error",
		internal:   err,
	}
}
