package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"attendance/internal/apperr"
	"attendance/internal/logging"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// log returns the request-scoped logger.
func (h *Handler) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

// fail writes err as a failure envelope. Errors outside the apperr
// taxonomy are logged and reported generically.
func (h *Handler) fail(c *gin.Context, err error) {
	if !apperr.IsKnown(err) {
		h.log(c.Request.Context()).ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(statusOf(err), envelope{Message: apperr.Message(err), Errors: apperr.Fields(err)})
}

// bind decodes the JSON body into dst and reports binding failures as
// validation errors.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, bindingError(err))
		return false
	}
	return true
}

func (h *Handler) bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		h.fail(c, bindingError(err))
		return false
	}
	return true
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.New(apperr.ErrValidation, "Invalid request body")
	}
	fields := make(map[string]string, len(verrs))
	first := ""
	for _, fe := range verrs {
		msg := fieldMessage(fe)
		fields[fe.Field()] = msg
		if first == "" {
			first = msg
		}
	}
	return apperr.Validation(first, fields)
}
