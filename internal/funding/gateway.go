package funding

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Provider reference prefixes used for reconciliation.
const (
	TopUpRefPrefix    = "TOP_"
	TransferRefPrefix = "XFR_"
	DeclineRefPrefix  = "DEC_"
)

// DeclineInvalidPIN is returned for a voucher the provider does not recognise.
const DeclineInvalidPIN = "invalid PIN"

// Gateway represents a connector to the external wallet-as-a-service provider.
// A non-nil error means the provider could not be reached; a decline is
// reported through Success=false.
type Gateway interface {
	Redeem(ctx context.Context, req RedeemRequest) (RedeemResult, error)
	TransferExternal(ctx context.Context, req TransferRequest) (TransferResult, error)
}

// RedeemRequest asks the provider to redeem a voucher into a wallet.
type RedeemRequest struct {
	VoucherCode      string
	WalletExternalID string
	Amount           decimal.Decimal
}

// RedeemResult carries the provider-confirmed amount on success.
type RedeemResult struct {
	Success     bool
	Amount      decimal.Decimal
	ProviderRef string
	Error       string
}

// TransferRequest moves funds between two provider wallets.
type TransferRequest struct {
	FromID string
	ToID   string
	Amount decimal.Decimal
}

// TransferResult captures the provider response to a transfer.
type TransferResult struct {
	Success     bool
	ProviderRef string
	Error       string
}

// StaticGateway simulates the provider with a fixed voucher table.
type StaticGateway struct {
	// Vouchers overrides the default voucher table when set.
	Vouchers map[string]decimal.Decimal
	// DeclineTransfers makes every TransferExternal call fail.
	DeclineTransfers bool
}

var defaultVouchers = map[string]decimal.Decimal{
	"12345": decimal.RequireFromString("100.00"),
	"50":    decimal.RequireFromString("50.00"),
}

// Redeem approves known vouchers with their face value. An empty code approves
// the requested amount as-is.
func (g StaticGateway) Redeem(_ context.Context, req RedeemRequest) (RedeemResult, error) {
	code := strings.TrimSpace(req.VoucherCode)
	if code == "" {
		return RedeemResult{Success: true, Amount: req.Amount, ProviderRef: TopUpRefPrefix + uuid.NewString()}, nil
	}
	vouchers := g.Vouchers
	if vouchers == nil {
		vouchers = defaultVouchers
	}
	amount, ok := vouchers[code]
	if !ok {
		return RedeemResult{Success: false, ProviderRef: DeclineRefPrefix + uuid.NewString(), Error: DeclineInvalidPIN}, nil
	}
	return RedeemResult{Success: true, Amount: amount, ProviderRef: TopUpRefPrefix + uuid.NewString()}, nil
}

// TransferExternal approves the transfer with a synthetic reference.
func (g StaticGateway) TransferExternal(_ context.Context, _ TransferRequest) (TransferResult, error) {
	if g.DeclineTransfers {
		return TransferResult{Success: false, ProviderRef: DeclineRefPrefix + uuid.NewString(), Error: "transfer declined"}, nil
	}
	return TransferResult{Success: true, ProviderRef: TransferRefPrefix + uuid.NewString()}, nil
}
