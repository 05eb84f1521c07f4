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

// Payment methods recorded on contributions.
const (
	PaymentMethodWallet        = "wallet"
	PaymentMethodGroupTransfer = "group_transfer"
)

// ContributionInput funds a campaign from the contributor's wallet.
type ContributionInput struct {
	Principal     string
	CampaignID    string
	Amount        decimal.Decimal
	PaymentMethod string
	ClientRef     string
}

// GroupTransferInput funds a campaign addressed through its owning group.
type GroupTransferInput struct {
	Principal  string
	GroupID    string
	CampaignID string
	Amount     decimal.Decimal
	ClientRef  string
}

// ContributionResult is the outcome of a contribution or group transfer.
type ContributionResult struct {
	Status       ledger.Status       `json:"status"`
	Balance      decimal.Decimal     `json:"balance"`
	Transaction  ledger.Transaction  `json:"transaction"`
	Contribution ledger.Contribution `json:"contribution"`
	TotalRaised  decimal.Decimal     `json:"total_raised"`
}

// Contribute records one TRANSFER row referencing the campaign and its group
// together with the contribution record backed by it.
func (e *Engine) Contribute(ctx context.Context, in ContributionInput) (ContributionResult, error) {
	if err := requireID("principal", in.Principal); err != nil {
		return ContributionResult{}, err
	}
	if err := requireID("campaign_id", in.CampaignID); err != nil {
		return ContributionResult{}, err
	}
	if err := ledger.ValidateAmount("amount", in.Amount); err != nil {
		return ContributionResult{}, err
	}
	c, err := e.campaigns.Campaign(ctx, in.CampaignID)
	if err != nil {
		return ContributionResult{}, err
	}
	return e.contribute(ctx, in, c)
}

// TransferToGroup is the group-addressed form of Contribute. Both settle into
// the same ledger representation.
func (e *Engine) TransferToGroup(ctx context.Context, in GroupTransferInput) (ContributionResult, error) {
	if err := requireID("principal", in.Principal); err != nil {
		return ContributionResult{}, err
	}
	if err := requireID("group_id", in.GroupID); err != nil {
		return ContributionResult{}, err
	}
	if err := requireID("campaign_id", in.CampaignID); err != nil {
		return ContributionResult{}, err
	}
	if err := ledger.ValidateAmount("amount", in.Amount); err != nil {
		return ContributionResult{}, err
	}
	c, err := e.campaigns.Campaign(ctx, in.CampaignID)
	if err != nil {
		return ContributionResult{}, err
	}
	if c.GroupID != in.GroupID {
		return ContributionResult{}, &ledger.ValidationError{Field: "campaign_id", Reason: "does not belong to the group"}
	}
	return e.contribute(ctx, ContributionInput{
		Principal:     in.Principal,
		CampaignID:    in.CampaignID,
		Amount:        in.Amount,
		PaymentMethod: PaymentMethodGroupTransfer,
		ClientRef:     in.ClientRef,
	}, c)
}

func (e *Engine) contribute(ctx context.Context, in ContributionInput, c ledger.Campaign) (ContributionResult, error) {
	if !c.AcceptsContributions() {
		return ContributionResult{}, ledger.ErrContributionsClosed
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentMethodWallet
	}

	w, err := e.EnsureWallet(ctx, in.Principal)
	if err != nil {
		return ContributionResult{}, err
	}

	amount := in.Amount.Round(ledger.Scale)
	var (
		result   ContributionResult
		declined *ledger.GatewayDeclinedError
		replayed bool
	)
	err = e.store.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		// Campaign before wallet, matching Disburse.
		if err := tx.LockCampaign(ctx, c.ID); err != nil {
			return err
		}
		if err := tx.LockWallets(ctx, w.ID); err != nil {
			return err
		}

		if prior, seen, err := tx.FindByClientRef(ctx, w.ID, ledger.KindTransfer, in.ClientRef); err != nil {
			return err
		} else if seen {
			if prior.CampaignID != c.ID || !prior.Amount.Equal(amount) {
				return ledger.ErrClientRefReused
			}
			replayed = true
			result.Transaction = prior
			result.Status = prior.Status
			return e.fillPosition(ctx, tx, w.ID, c.ID, &result)
		}

		contributed, err := tx.HasContribution(ctx, c.ID, in.Principal)
		if err != nil {
			return err
		}
		if contributed {
			return ledger.ErrDuplicateContribution
		}
		available, err := tx.WalletBalance(ctx, w.ID)
		if err != nil {
			return err
		}
		if available.LessThan(amount) {
			return &ledger.InsufficientFundsError{Balance: available, Requested: amount}
		}

		moved, err := e.gateway.TransferExternal(ctx, funding.TransferRequest{
			FromID: w.ExternalID,
			ToID:   c.GroupExternalWalletID,
			Amount: amount,
		})
		if err != nil {
			return gatewayUnavailable("transfer", err)
		}

		row := ledger.Transaction{
			WalletID:           w.ID,
			Kind:               ledger.KindTransfer,
			Amount:             amount,
			Status:             ledger.StatusCompleted,
			DestinationGroupID: c.GroupID,
			CampaignID:         c.ID,
			ExternalRef:        moved.ProviderRef,
			ClientRef:          in.ClientRef,
		}
		if !moved.Success {
			row.Status = ledger.StatusFailed
		}
		if err := tx.InsertTransaction(ctx, &row); err != nil {
			return err
		}
		result.Transaction = row
		result.Status = row.Status

		if !moved.Success {
			// The FAILED row commits for audit; no contribution record exists for it.
			declined = &ledger.GatewayDeclinedError{Reason: moved.Error, Transaction: row}
			return e.fillPosition(ctx, tx, w.ID, c.ID, &result)
		}

		result.Contribution = ledger.Contribution{
			CampaignID:    c.ID,
			GroupID:       c.GroupID,
			ContributorID: in.Principal,
			Amount:        amount,
			PaymentMethod: in.PaymentMethod,
			TransactionID: row.ID,
		}
		if err := tx.InsertContribution(ctx, &result.Contribution); err != nil {
			return err
		}
		return e.fillPosition(ctx, tx, w.ID, c.ID, &result)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return e.replayContribution(ctx, w.ID, c.ID, in.ClientRef, amount)
		}
		return ContributionResult{}, err
	}

	e.logSettled("contribution", result.Transaction)
	switch {
	case replayed:
		return result, replayOutcome(result.Transaction)
	case declined != nil:
		return result, declined
	}

	e.notify(ctx, notification.Message{
		Kind:        notification.KindContribution,
		Destination: in.Principal,
		Body:        fmt.Sprintf("Your contribution of %s to campaign %s was recorded", amount.StringFixed(ledger.Scale), c.ID),
	})
	return result, nil
}

func (e *Engine) fillPosition(ctx context.Context, tx ledger.Tx, walletID, campaignID string, result *ContributionResult) error {
	balance, err := tx.WalletBalance(ctx, walletID)
	if err != nil {
		return err
	}
	totals, err := tx.CampaignTotals(ctx, campaignID)
	if err != nil {
		return err
	}
	result.Balance = balance
	result.TotalRaised = totals.Raised
	return nil
}

func (e *Engine) replayContribution(ctx context.Context, walletID, campaignID, clientRef string, amount decimal.Decimal) (ContributionResult, error) {
	row, balance, err := e.replay(ctx, walletID, ledger.KindTransfer, clientRef)
	if err != nil {
		return ContributionResult{}, err
	}
	if row.CampaignID != campaignID || !row.Amount.Equal(amount) {
		return ContributionResult{}, ledger.ErrClientRefReused
	}
	totals, err := e.store.CampaignTotals(ctx, campaignID)
	if err != nil {
		return ContributionResult{}, err
	}
	return ContributionResult{
		Status:      row.Status,
		Balance:     balance,
		Transaction: row,
		TotalRaised: totals.Raised,
	}, replayOutcome(row)
}
