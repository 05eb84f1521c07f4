package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chema/chema_ledger/internal/ledger"
	"github.com/chema/chema_ledger/internal/notification"
)

// PayoutRefPrefix prefixes the reference of a disbursement row.
const PayoutRefPrefix = "PAY_"

// DisburseInput requests payout of a campaign's balance.
type DisburseInput struct {
	CampaignID string
	Actor      string
	ClientRef  string
}

// PayoutResult is the outcome of a disbursement.
type PayoutResult struct {
	Status        ledger.Status      `json:"status"`
	Amount        decimal.Decimal    `json:"amount"`
	Transaction   ledger.Transaction `json:"transaction"`
	BeneficiaryID string             `json:"beneficiary_id"`
}

// Disburse pays the full campaign balance, recomputed under the campaign lock,
// to the designated beneficiary. Repeated calls pay whatever accumulated since
// the previous payout.
func (e *Engine) Disburse(ctx context.Context, in DisburseInput) (PayoutResult, error) {
	if err := requireID("campaign_id", in.CampaignID); err != nil {
		return PayoutResult{}, err
	}
	if err := requireID("actor", in.Actor); err != nil {
		return PayoutResult{}, err
	}
	c, err := e.campaigns.Campaign(ctx, in.CampaignID)
	if err != nil {
		return PayoutResult{}, err
	}
	admin, err := e.authorizer.IsGroupAdmin(ctx, in.Actor, c.GroupID)
	if err != nil {
		return PayoutResult{}, err
	}
	if !admin {
		return PayoutResult{}, fmt.Errorf("%w: disbursement requires group admin", ledger.ErrUnauthorized)
	}
	if c.BeneficiaryID == "" {
		return PayoutResult{}, ledger.ErrNoBeneficiary
	}

	w, err := e.EnsureWallet(ctx, c.BeneficiaryID)
	if err != nil {
		return PayoutResult{}, err
	}

	var (
		row      ledger.Transaction
		replayed bool
	)
	err = e.store.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.LockCampaign(ctx, c.ID); err != nil {
			return err
		}
		if err := tx.LockWallets(ctx, w.ID); err != nil {
			return err
		}
		if prior, seen, err := tx.FindByClientRef(ctx, w.ID, ledger.KindPayoutReceived, in.ClientRef); err != nil {
			return err
		} else if seen {
			if prior.CampaignID != c.ID {
				return ledger.ErrClientRefReused
			}
			replayed = true
			row = prior
			return nil
		}

		totals, err := tx.CampaignTotals(ctx, c.ID)
		if err != nil {
			return err
		}
		if !totals.Balance.IsPositive() {
			return ledger.ErrNoFundsAvailable
		}
		row = ledger.Transaction{
			WalletID:           w.ID,
			Kind:               ledger.KindPayoutReceived,
			Amount:             totals.Balance,
			Status:             ledger.StatusCompleted,
			DestinationGroupID: c.GroupID,
			CampaignID:         c.ID,
			ExternalRef:        PayoutRefPrefix + uuid.NewString(),
			ClientRef:          in.ClientRef,
		}
		return tx.InsertTransaction(ctx, &row)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			prior, _, lookupErr := e.lookupClientRef(ctx, w.ID, ledger.KindPayoutReceived, in.ClientRef)
			if lookupErr != nil {
				return PayoutResult{}, lookupErr
			}
			if prior.CampaignID != c.ID {
				return PayoutResult{}, ledger.ErrClientRefReused
			}
			return payoutResult(prior, c.BeneficiaryID), ledger.ErrDuplicateTransaction
		}
		return PayoutResult{}, err
	}
	if replayed {
		return payoutResult(row, c.BeneficiaryID), ledger.ErrDuplicateTransaction
	}

	e.logSettled("payout", row)
	if err := e.campaigns.MarkDisbursed(ctx, c.ID); err != nil {
		e.logger.Warn("mark campaign disbursed failed", "campaign_id", c.ID, "error", err)
	}
	e.notify(ctx, notification.Message{
		Kind:        notification.KindPayout,
		Destination: c.BeneficiaryID,
		Body:        fmt.Sprintf("A payout of %s was credited from campaign %s", row.Amount.StringFixed(ledger.Scale), c.ID),
	})
	return payoutResult(row, c.BeneficiaryID), nil
}

func payoutResult(row ledger.Transaction, beneficiaryID string) PayoutResult {
	return PayoutResult{
		Status:        row.Status,
		Amount:        row.Amount,
		Transaction:   row,
		BeneficiaryID: beneficiaryID,
	}
}
