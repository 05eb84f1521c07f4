package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chema/chema_ledger/internal/funding"
	"github.com/chema/chema_ledger/internal/ledger"
	"github.com/chema/chema_ledger/internal/notification"
)

// TopUpInput credits a wallet through a voucher redemption.
type TopUpInput struct {
	Principal  string
	Amount     decimal.Decimal
	VoucherRef string
	ClientRef  string
}

// TopUpResult is the outcome of a top-up.
type TopUpResult struct {
	Status      ledger.Status      `json:"status"`
	Balance     decimal.Decimal    `json:"balance"`
	Transaction ledger.Transaction `json:"transaction"`
}

// TopUp redeems the voucher with the gateway and records the confirmed amount.
// A decline is persisted as a FAILED row and reported as *ledger.GatewayDeclinedError.
func (e *Engine) TopUp(ctx context.Context, in TopUpInput) (TopUpResult, error) {
	if err := requireID("principal", in.Principal); err != nil {
		return TopUpResult{}, err
	}
	if err := ledger.ValidateAmount("amount", in.Amount); err != nil {
		return TopUpResult{}, err
	}

	w, err := e.EnsureWallet(ctx, in.Principal)
	if err != nil {
		return TopUpResult{}, err
	}

	if _, seen, err := e.lookupClientRef(ctx, w.ID, ledger.KindTopUp, in.ClientRef); err != nil {
		return TopUpResult{}, err
	} else if seen {
		return e.replayTopUp(ctx, w.ID, in)
	}

	redeemed, err := e.gateway.Redeem(ctx, funding.RedeemRequest{
		VoucherCode:      in.VoucherRef,
		WalletExternalID: w.ExternalID,
		Amount:           in.Amount,
	})
	if err != nil {
		return TopUpResult{}, gatewayUnavailable("redeem", err)
	}

	row := ledger.Transaction{
		WalletID:    w.ID,
		Kind:        ledger.KindTopUp,
		ExternalRef: redeemed.ProviderRef,
		VoucherRef:  in.VoucherRef,
		ClientRef:   in.ClientRef,
	}
	declineReason := ""
	confirmed := redeemed.Amount.Round(ledger.Scale)
	switch {
	case !redeemed.Success:
		declineReason = redeemed.Error
	case !confirmed.IsPositive():
		declineReason = "provider confirmed no amount"
	}
	if declineReason != "" {
		row.Status = ledger.StatusFailed
		row.Amount = ledger.Zero
	} else {
		row.Status = ledger.StatusCompleted
		row.Amount = confirmed
	}

	var balance decimal.Decimal
	err = e.store.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.LockWallets(ctx, w.ID); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &row); err != nil {
			return err
		}
		var err error
		balance, err = tx.WalletBalance(ctx, w.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return e.replayTopUp(ctx, w.ID, in)
		}
		return TopUpResult{}, err
	}

	e.logSettled("top_up", row)
	result := TopUpResult{Status: row.Status, Balance: balance, Transaction: row}
	if declineReason != "" {
		return result, &ledger.GatewayDeclinedError{Reason: declineReason, Transaction: row}
	}

	e.notify(ctx, notification.Message{
		Kind:        notification.KindTopUp,
		Destination: in.Principal,
		Body:        fmt.Sprintf("Your wallet was credited with %s", row.Amount.StringFixed(ledger.Scale)),
	})
	return result, nil
}

func (e *Engine) replayTopUp(ctx context.Context, walletID string, in TopUpInput) (TopUpResult, error) {
	row, balance, err := e.replay(ctx, walletID, ledger.KindTopUp, in.ClientRef)
	if err != nil {
		return TopUpResult{}, err
	}
	if !sameTopUp(row, in) {
		return TopUpResult{}, ledger.ErrClientRefReused
	}
	return TopUpResult{Status: row.Status, Balance: balance, Transaction: row}, replayOutcome(row)
}

// sameTopUp compares a settled row with a retried request. A voucher fixes the
// credited value, so the amount only has to match for voucherless top-ups.
func sameTopUp(row ledger.Transaction, in TopUpInput) bool {
	if row.VoucherRef != in.VoucherRef {
		return false
	}
	if in.VoucherRef == "" && row.Status == ledger.StatusCompleted {
		return row.Amount.Equal(in.Amount.Round(ledger.Scale))
	}
	return true
}
