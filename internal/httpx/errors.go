// Package httpx maps settlement errors onto HTTP responses and binds request bodies.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chema/chema_ledger/internal/ledger"
)

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Balance   string `json:"balance,omitempty"`
	Requested string `json:"requested,omitempty"`
}

// Status returns the HTTP status and code for an error of the settlement taxonomy.
func Status(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, http.StatusText(fe.Code)
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return http.StatusConflict, "duplicate_transaction"
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ledger.ErrGatewayDeclined):
		return http.StatusPaymentRequired, "gateway_declined"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// Body builds the response envelope. Storage and unknown failures never leak
// their cause to the client.
func Body(err error) (int, ErrorBody) {
	status, code := Status(err)
	body := ErrorBody{Code: code, Message: err.Error()}
	if status == http.StatusInternalServerError {
		body.Message = "internal error, the request may be retried"
	}

	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
		body.Reason = verr.Reason
	}
	var ierr *ledger.InsufficientFundsError
	if errors.As(err, &ierr) {
		body.Balance = ierr.Balance.StringFixed(ledger.Scale)
		body.Requested = ierr.Requested.StringFixed(ledger.Scale)
	}
	var gerr *ledger.GatewayDeclinedError
	if errors.As(err, &gerr) {
		body.Reason = gerr.Reason
	}
	return status, body
}

// Error writes err as a JSON error response.
func Error(c *fiber.Ctx, err error) error {
	status, body := Body(err)
	return c.Status(status).JSON(fiber.Map{"error": body})
}

// ErrorHandler is the fiber error handler for the whole application.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, _ := Status(err)
		if status >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed", slog.String("path", c.Path()), slog.Any("error", err))
		}
		return Error(c, err)
	}
}
