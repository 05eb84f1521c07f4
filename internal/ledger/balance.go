package ledger

import "github.com/shopspring/decimal"

// Scale is the number of fraction digits carried by every amount.
const Scale = 2

// Zero is the balance of an empty wallet.
var Zero = decimal.Zero.Round(Scale)

// WalletBalance derives a wallet balance from its rows: completed credits
// minus completed debits. Rows in any other status are ignored.
func WalletBalance(rows []Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, row := range rows {
		if row.Status != StatusCompleted {
			continue
		}
		switch {
		case row.Kind.Credit():
			balance = balance.Add(row.Amount)
		case row.Kind.Debit():
			balance = balance.Sub(row.Amount)
		}
	}
	return balance.Round(Scale)
}

// CampaignTotalsOf derives what a campaign raised and paid out. Contributions
// are completed TRANSFER rows referencing the campaign; payouts are completed
// PAYOUT_RECEIVED rows referencing it.
func CampaignTotalsOf(campaignID string, rows []Transaction) CampaignTotals {
	raised, disbursed := decimal.Zero, decimal.Zero
	for _, row := range rows {
		if row.CampaignID != campaignID || row.Status != StatusCompleted {
			continue
		}
		switch row.Kind {
		case KindTransfer:
			raised = raised.Add(row.Amount)
		case KindPayoutReceived:
			disbursed = disbursed.Add(row.Amount)
		}
	}
	return CampaignTotals{
		CampaignID: campaignID,
		Raised:     raised.Round(Scale),
		Disbursed:  disbursed.Round(Scale),
		Balance:    raised.Sub(disbursed).Round(Scale),
	}
}

// GroupBalance is the same projection keyed by destination group instead of campaign.
func GroupBalance(groupID string, rows []Transaction) decimal.Decimal {
	in, out := decimal.Zero, decimal.Zero
	for _, row := range rows {
		if row.DestinationGroupID != groupID || row.Status != StatusCompleted {
			continue
		}
		switch row.Kind {
		case KindTransfer:
			in = in.Add(row.Amount)
		case KindPayoutReceived:
			out = out.Add(row.Amount)
		}
	}
	return in.Sub(out).Round(Scale)
}

// ValidateAmount rejects non-positive amounts and amounts finer than cents.
func ValidateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: field, Reason: "must be positive"}
	}
	if !amount.Equal(amount.Round(Scale)) {
		return &ValidationError{Field: field, Reason: "must have at most 2 decimal places"}
	}
	return nil
}

// ParseAmount parses a decimal string as a settlement amount.
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, &ValidationError{Field: field, Reason: "is required"}
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, &ValidationError{Field: field, Reason: "invalid amount format"}
	}
	if err := ValidateAmount(field, amount); err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Round(Scale), nil
}
