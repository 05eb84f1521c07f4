// Package settlement executes money movements against the ledger. Every
// operation validates against a freshly computed balance and writes its rows
// inside one atomic unit of the store.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/chema/chema_ledger/internal/funding"
	"github.com/chema/chema_ledger/internal/ledger"
	"github.com/chema/chema_ledger/internal/logging"
	"github.com/chema/chema_ledger/internal/notification"
)

// CampaignDirectory supplies campaign state owned outside the ledger.
type CampaignDirectory interface {
	Campaign(ctx context.Context, campaignID string) (ledger.Campaign, error)
	MarkDisbursed(ctx context.Context, campaignID string) error
}

// Authorizer decides administrative capability over a group.
type Authorizer interface {
	IsGroupAdmin(ctx context.Context, principal, groupID string) (bool, error)
}

// PrincipalDirectory reports whether a principal is known.
type PrincipalDirectory interface {
	Exists(ctx context.Context, principal string) (bool, error)
}

// Deps groups the collaborators of the engine.
type Deps struct {
	Store      ledger.Store
	Campaigns  CampaignDirectory
	Authorizer Authorizer
	Principals PrincipalDirectory
	Gateway    funding.Gateway
	Notifier   notification.Notifier
	Logger     *slog.Logger
}

// Engine is the settlement engine.
type Engine struct {
	store      ledger.Store
	campaigns  CampaignDirectory
	authorizer Authorizer
	principals PrincipalDirectory
	gateway    funding.Gateway
	notifier   notification.Notifier
	logger     *slog.Logger
}

// New validates the dependencies and builds an engine. The gateway defaults to
// the static stub and the logger to a discarding one.
func New(deps Deps) (*Engine, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("settlement: store is required")
	case deps.Campaigns == nil:
		return nil, errors.New("settlement: campaign directory is required")
	case deps.Authorizer == nil:
		return nil, errors.New("settlement: authorizer is required")
	case deps.Principals == nil:
		return nil, errors.New("settlement: principal directory is required")
	}
	if deps.Gateway == nil {
		deps.Gateway = funding.StaticGateway{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Engine{
		store:      deps.Store,
		campaigns:  deps.Campaigns,
		authorizer: deps.Authorizer,
		principals: deps.Principals,
		gateway:    deps.Gateway,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
	}, nil
}

// EnsureWallet returns the principal's wallet, creating it with its
// deterministic external id on first use.
func (e *Engine) EnsureWallet(ctx context.Context, principal string) (ledger.Wallet, error) {
	if err := requireID("principal", principal); err != nil {
		return ledger.Wallet{}, err
	}
	return e.store.EnsureWallet(ctx, principal, ledger.ExternalWalletID(principal))
}

// GetBalance returns the derived balance of the principal's wallet. A principal
// that never transacted has a zero balance.
func (e *Engine) GetBalance(ctx context.Context, principal string) (decimal.Decimal, error) {
	if err := requireID("principal", principal); err != nil {
		return decimal.Decimal{}, err
	}
	w, err := e.store.WalletByOwner(ctx, principal)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return ledger.Zero, nil
		}
		return decimal.Decimal{}, err
	}
	return e.store.WalletBalance(ctx, w.ID)
}

// ListTransactions returns the principal's rows, newest first.
func (e *Engine) ListTransactions(ctx context.Context, principal string) ([]ledger.Transaction, error) {
	if err := requireID("principal", principal); err != nil {
		return nil, err
	}
	w, err := e.store.WalletByOwner(ctx, principal)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return []ledger.Transaction{}, nil
		}
		return nil, err
	}
	rows, err := e.store.Transactions(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []ledger.Transaction{}
	}
	return rows, nil
}

// CampaignTotals returns what a known campaign raised and paid out.
func (e *Engine) CampaignTotals(ctx context.Context, campaignID string) (ledger.CampaignTotals, error) {
	if err := requireID("campaign_id", campaignID); err != nil {
		return ledger.CampaignTotals{}, err
	}
	if _, err := e.campaigns.Campaign(ctx, campaignID); err != nil {
		return ledger.CampaignTotals{}, err
	}
	return e.store.CampaignTotals(ctx, campaignID)
}

// GroupLedger is the completed money movement destined to a group.
type GroupLedger struct {
	GroupID      string               `json:"group_id"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []ledger.Transaction `json:"transactions"`
}

// GroupLedger lists the group's completed rows newest first with the derived
// group balance.
func (e *Engine) GroupLedger(ctx context.Context, groupID string) (GroupLedger, error) {
	if err := requireID("group_id", groupID); err != nil {
		return GroupLedger{}, err
	}
	rows, err := e.store.GroupTransactions(ctx, groupID)
	if err != nil {
		return GroupLedger{}, err
	}
	if rows == nil {
		rows = []ledger.Transaction{}
	}
	return GroupLedger{
		GroupID:      groupID,
		Balance:      ledger.GroupBalance(groupID, rows),
		Transactions: rows,
	}, nil
}

// lookupClientRef finds a row previously settled under the caller reference.
func (e *Engine) lookupClientRef(ctx context.Context, walletID string, kind ledger.Kind, clientRef string) (ledger.Transaction, bool, error) {
	if clientRef == "" {
		return ledger.Transaction{}, false, nil
	}
	var (
		found ledger.Transaction
		ok    bool
	)
	err := e.store.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		found, ok, err = tx.FindByClientRef(ctx, walletID, kind, clientRef)
		return err
	})
	return found, ok, err
}

// DeclineReplayed is the reason attached to a replayed FAILED row.
const DeclineReplayed = "previously declined"

// replayOutcome is the error returned alongside a replayed row. A FAILED row
// replays as the decline it was first reported as.
func replayOutcome(row ledger.Transaction) error {
	if row.Status == ledger.StatusFailed {
		return &ledger.GatewayDeclinedError{Reason: DeclineReplayed, Transaction: row}
	}
	return ledger.ErrDuplicateTransaction
}

// replay rebuilds the balance that accompanies a duplicate response.
func (e *Engine) replay(ctx context.Context, walletID string, kind ledger.Kind, clientRef string) (ledger.Transaction, decimal.Decimal, error) {
	row, ok, err := e.lookupClientRef(ctx, walletID, kind, clientRef)
	if err != nil {
		return ledger.Transaction{}, decimal.Decimal{}, err
	}
	if !ok {
		return ledger.Transaction{}, decimal.Decimal{}, fmt.Errorf("replay %s: %w", clientRef, ledger.ErrStorage)
	}
	balance, err := e.store.WalletBalance(ctx, walletID)
	if err != nil {
		return ledger.Transaction{}, decimal.Decimal{}, err
	}
	return row, balance, nil
}

func (e *Engine) notify(ctx context.Context, msg notification.Message) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, msg); err != nil {
		e.logger.Warn("notification failed", "kind", msg.Kind, "destination", msg.Destination, "error", err)
	}
}

func (e *Engine) logSettled(op string, row ledger.Transaction) {
	e.logger.Info("settlement recorded",
		"op", op,
		"wallet_id", row.WalletID,
		"transaction_id", row.ID,
		"amount", row.Amount.StringFixed(ledger.Scale),
		"status", string(row.Status),
	)
}

func gatewayUnavailable(op string, err error) error {
	return fmt.Errorf("%w: gateway %s: %w", ledger.ErrStorage, op, err)
}

func requireID(field, value string) error {
	if value == "" {
		return &ledger.ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}
