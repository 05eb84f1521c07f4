package campaign

import (
	"time"

	"github.com/chema/chema_ledger/internal/ledger"
)

// Campaign is a beneficiary fund opened by a group.
type Campaign struct {
	ID                string    `json:"id"`
	GroupID           string    `json:"group_id"`
	Title             string    `json:"title"`
	BeneficiaryID     string    `json:"beneficiary_id,omitempty"`
	ContributionsOpen bool      `json:"contributions_open"`
	Active            bool      `json:"active"`
	FundsDisbursed    bool      `json:"funds_disbursed"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
}

// Ledger projects the campaign onto the fields the settlement engine consumes.
func (c Campaign) Ledger() ledger.Campaign {
	return ledger.Campaign{
		ID:                    c.ID,
		GroupID:               c.GroupID,
		GroupExternalWalletID: ledger.ExternalWalletID(c.GroupID),
		BeneficiaryID:         c.BeneficiaryID,
		ContributionsOpen:     c.ContributionsOpen,
		Active:                c.Active,
		FundsDisbursed:        c.FundsDisbursed,
	}
}

// CreateInput captures the data required to open a campaign.
type CreateInput struct {
	GroupID       string
	Title         string
	BeneficiaryID string
}
