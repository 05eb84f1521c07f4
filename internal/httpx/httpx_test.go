package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chema/chema_ledger/internal/ledger"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&ledger.ValidationError{Field: "amount", Reason: "must be positive"}, http.StatusBadRequest},
		{fmt.Errorf("%w: not admin", ledger.ErrUnauthorized), http.StatusForbidden},
		{&ledger.InsufficientFundsError{}, http.StatusUnprocessableEntity},
		{ledger.ErrNoFundsAvailable, http.StatusUnprocessableEntity},
		{ledger.ErrCampaignNotFound, http.StatusNotFound},
		{ledger.ErrSelfTransfer, http.StatusConflict},
		{ledger.ErrDuplicateTransaction, http.StatusConflict},
		{&ledger.GatewayDeclinedError{Reason: "invalid PIN"}, http.StatusPaymentRequired},
		{fmt.Errorf("%w: commit", ledger.ErrStorage), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
		{fiber.NewError(http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		got, _ := Status(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}

func TestBodyCarriesDetail(t *testing.T) {
	status, body := Body(&ledger.InsufficientFundsError{Balance: decimal.RequireFromString("50"), Requested: decimal.RequireFromString("75")})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "50.00", body.Balance)
	assert.Equal(t, "75.00", body.Requested)

	_, body = Body(&ledger.ValidationError{Field: "amount", Reason: "is required"})
	assert.Equal(t, "amount", body.Field)
	assert.Equal(t, "is required", body.Reason)

	_, body = Body(fmt.Errorf("%w: connection refused", ledger.ErrStorage))
	assert.NotContains(t, body.Message, "connection refused")
}

type moneyRequest struct {
	Amount string `json:"amount" validate:"required,money"`
	To     string `json:"to" validate:"required"`
}

func TestValidatorMoneyRule(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Validate(moneyRequest{Amount: "10.50", To: "bob"}))

	for _, raw := range []string{"0", "-5", "1.999", "ten"} {
		err := v.Validate(moneyRequest{Amount: raw, To: "bob"})
		var verr *ledger.ValidationError
		require.True(t, errors.As(err, &verr), raw)
		assert.Equal(t, "amount", verr.Field)
	}

	err := v.Validate(moneyRequest{Amount: "1.00"})
	var verr *ledger.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "to", verr.Field)
	assert.Equal(t, "is required", verr.Reason)
}

func TestClientRefSurvivesBufferReuse(t *testing.T) {
	app := fiber.New(AppConfig("test", nil))
	var refs []string
	app.Post("/", func(c *fiber.Ctx) error {
		refs = append(refs, ClientRef(c, ""))
		return c.SendStatus(http.StatusNoContent)
	})

	for _, key := range []string{"first-key", "other-key"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(IdempotencyKeyHeader, key)
		_, err := app.Test(req)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"first-key", "other-key"}, refs)
	assert.True(t, AppConfig("test", nil).Immutable)
}
