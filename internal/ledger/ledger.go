package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a ledger row. The sign of a row's amount is implied by its kind.
type Kind string

const (
	KindTopUp          Kind = "TOP_UP"
	KindTransfer       Kind = "TRANSFER"
	KindWithdrawal     Kind = "WITHDRAWAL"
	KindPayoutReceived Kind = "PAYOUT_RECEIVED"
	KindPeerSent       Kind = "PEER_SENT"
	KindPeerReceived   Kind = "PEER_RECEIVED"
)

var (
	creditKinds = []Kind{KindTopUp, KindPayoutReceived, KindPeerReceived}
	debitKinds  = []Kind{KindTransfer, KindWithdrawal, KindPeerSent}
)

// Credit reports whether completed rows of this kind increase a wallet balance.
func (k Kind) Credit() bool {
	for _, c := range creditKinds {
		if k == c {
			return true
		}
	}
	return false
}

// Debit reports whether completed rows of this kind decrease a wallet balance.
func (k Kind) Debit() bool {
	for _, d := range debitKinds {
		if k == d {
			return true
		}
	}
	return false
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k.Credit() || k.Debit() }

// CreditKinds returns the kinds counted as incoming funds.
func CreditKinds() []string { return kindStrings(creditKinds) }

// DebitKinds returns the kinds counted as outgoing funds.
func DebitKinds() []string { return kindStrings(debitKinds) }

func kindStrings(kinds []Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// Status is the settlement state of a ledger row.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// WalletIDPrefix prefixes the externally visible wallet identifier.
const WalletIDPrefix = "WAAS_"

// ExternalWalletID derives the deterministic external id for a principal's wallet.
func ExternalWalletID(ownerID string) string { return WalletIDPrefix + ownerID }

// Wallet is a principal's monetary account. Its balance is derived from rows.
type Wallet struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	ExternalID string    `json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transaction is one append-only ledger row.
type Transaction struct {
	ID                   string          `json:"id"`
	Seq                  int64           `json:"seq"`
	WalletID             string          `json:"wallet_id"`
	Kind                 Kind            `json:"kind"`
	Amount               decimal.Decimal `json:"amount"`
	Status               Status          `json:"status"`
	DestinationGroupID   string          `json:"destination_group_id,omitempty"`
	CounterpartyWalletID string          `json:"counterparty_wallet_id,omitempty"`
	CampaignID           string          `json:"campaign_id,omitempty"`
	ExternalRef          string          `json:"external_ref,omitempty"`
	VoucherRef           string          `json:"voucher_ref,omitempty"`
	CorrelationID        string          `json:"correlation_id,omitempty"`
	ClientRef            string          `json:"client_ref,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Validate checks the row invariants enforced before a row is persisted.
func (t Transaction) Validate() error {
	if t.WalletID == "" {
		return &ValidationError{Field: "wallet_id", Reason: "is required"}
	}
	if !t.Kind.Valid() {
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", t.Kind)}
	}
	if !t.Status.Terminal() && t.Status != StatusPending {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", t.Status)}
	}
	if t.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if t.Status == StatusCompleted && !t.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive for a completed row"}
	}
	if !t.Amount.Equal(t.Amount.Round(Scale)) {
		return &ValidationError{Field: "amount", Reason: "must have at most 2 decimal places"}
	}
	return nil
}

// Campaign is the slice of a beneficiary fund the ledger consumes. The
// directory that owns it lives outside this package.
type Campaign struct {
	ID                    string `json:"id"`
	GroupID               string `json:"group_id"`
	GroupExternalWalletID string `json:"group_external_wallet_id"`
	BeneficiaryID         string `json:"beneficiary_id,omitempty"`
	ContributionsOpen     bool   `json:"contributions_open"`
	Active                bool   `json:"active"`
	FundsDisbursed        bool   `json:"funds_disbursed"`
}

// AcceptsContributions requires both the open and the active flag.
func (c Campaign) AcceptsContributions() bool { return c.ContributionsOpen && c.Active }

// Contribution is the directory record backed by one completed TRANSFER row.
type Contribution struct {
	ID            string          `json:"id"`
	CampaignID    string          `json:"campaign_id"`
	GroupID       string          `json:"group_id"`
	ContributorID string          `json:"contributor_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CampaignTotals is the derived money position of a campaign.
type CampaignTotals struct {
	CampaignID string          `json:"campaign_id"`
	Raised     decimal.Decimal `json:"raised"`
	Disbursed  decimal.Decimal `json:"disbursed"`
	Balance    decimal.Decimal `json:"balance"`
}

// Store is the durable record of wallets and transactions.
type Store interface {
	WalletByOwner(ctx context.Context, ownerID string) (Wallet, error)
	EnsureWallet(ctx context.Context, ownerID, externalID string) (Wallet, error)
	WalletBalance(ctx context.Context, walletID string) (decimal.Decimal, error)
	CampaignTotals(ctx context.Context, campaignID string) (CampaignTotals, error)
	Transactions(ctx context.Context, walletID string) ([]Transaction, error)
	GroupTransactions(ctx context.Context, groupID string) ([]Transaction, error)
	// Atomic runs fn inside one unit of work. Every row written through tx is
	// committed when fn returns nil and discarded otherwise.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of the store available inside an atomic unit.
type Tx interface {
	LockWallets(ctx context.Context, walletIDs ...string) error
	LockCampaign(ctx context.Context, campaignID string) error
	WalletBalance(ctx context.Context, walletID string) (decimal.Decimal, error)
	CampaignTotals(ctx context.Context, campaignID string) (CampaignTotals, error)
	HasContribution(ctx context.Context, campaignID, contributorID string) (bool, error)
	FindByClientRef(ctx context.Context, walletID string, kind Kind, clientRef string) (Transaction, bool, error)
	InsertTransaction(ctx context.Context, t *Transaction) error
	InsertContribution(ctx context.Context, c *Contribution) error
}
