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

// PeerRefPrefix prefixes the reference shared by both rows of a peer transfer.
const PeerRefPrefix = "P2P_"

// PeerInput moves funds between two principals.
type PeerInput struct {
	From      string
	To        string
	Amount    decimal.Decimal
	ClientRef string
}

// PeerResult carries the sender's refreshed balance and both linked rows.
type PeerResult struct {
	Status   ledger.Status      `json:"status"`
	Balance  decimal.Decimal    `json:"balance"`
	Sent     ledger.Transaction `json:"sent"`
	Received ledger.Transaction `json:"received"`
}

// SendPeer debits the sender and credits the recipient in one unit. The
// balance check happens under the wallet locks, immediately before the write.
func (e *Engine) SendPeer(ctx context.Context, in PeerInput) (PeerResult, error) {
	if err := requireID("from", in.From); err != nil {
		return PeerResult{}, err
	}
	if err := requireID("to", in.To); err != nil {
		return PeerResult{}, err
	}
	if err := ledger.ValidateAmount("amount", in.Amount); err != nil {
		return PeerResult{}, err
	}
	if in.From == in.To {
		return PeerResult{}, ledger.ErrSelfTransfer
	}
	known, err := e.principals.Exists(ctx, in.To)
	if err != nil {
		return PeerResult{}, err
	}
	if !known {
		return PeerResult{}, ledger.ErrRecipientNotFound
	}

	from, err := e.EnsureWallet(ctx, in.From)
	if err != nil {
		return PeerResult{}, err
	}
	to, err := e.EnsureWallet(ctx, in.To)
	if err != nil {
		return PeerResult{}, err
	}

	correlation := uuid.NewString()
	sent := ledger.Transaction{
		WalletID:             from.ID,
		Kind:                 ledger.KindPeerSent,
		Amount:               in.Amount.Round(ledger.Scale),
		Status:               ledger.StatusCompleted,
		CounterpartyWalletID: to.ID,
		ExternalRef:          PeerRefPrefix + correlation,
		CorrelationID:        correlation,
		ClientRef:            in.ClientRef,
	}
	received := sent
	received.WalletID = to.ID
	received.Kind = ledger.KindPeerReceived
	received.CounterpartyWalletID = from.ID
	received.ClientRef = receivedClientRef(from.ID, in.ClientRef)

	var (
		balance  decimal.Decimal
		replayed bool
	)
	err = e.store.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.LockWallets(ctx, from.ID, to.ID); err != nil {
			return err
		}
		if prior, seen, err := tx.FindByClientRef(ctx, from.ID, ledger.KindPeerSent, in.ClientRef); err != nil {
			return err
		} else if seen {
			if prior.CounterpartyWalletID != to.ID || !prior.Amount.Equal(sent.Amount) {
				return ledger.ErrClientRefReused
			}
			replayed = true
			sent = prior
			received, _, err = tx.FindByClientRef(ctx, to.ID, ledger.KindPeerReceived, receivedClientRef(from.ID, in.ClientRef))
			if err != nil {
				return err
			}
			balance, err = tx.WalletBalance(ctx, from.ID)
			return err
		}

		available, err := tx.WalletBalance(ctx, from.ID)
		if err != nil {
			return err
		}
		if available.LessThan(sent.Amount) {
			return &ledger.InsufficientFundsError{Balance: available, Requested: sent.Amount}
		}
		if err := tx.InsertTransaction(ctx, &sent); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &received); err != nil {
			return err
		}
		balance, err = tx.WalletBalance(ctx, from.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return e.replayPeer(ctx, from.ID, to.ID, in.ClientRef, sent.Amount)
		}
		return PeerResult{}, err
	}

	result := PeerResult{Status: sent.Status, Balance: balance, Sent: sent, Received: received}
	if replayed {
		return result, ledger.ErrDuplicateTransaction
	}

	e.logSettled("peer_send", sent)
	e.notify(ctx, notification.Message{
		Kind:        notification.KindPeerReceived,
		Destination: in.To,
		Body:        fmt.Sprintf("You received %s from %s", sent.Amount.StringFixed(ledger.Scale), in.From),
	})
	return result, nil
}

func (e *Engine) replayPeer(ctx context.Context, fromID, toID, clientRef string, amount decimal.Decimal) (PeerResult, error) {
	sent, balance, err := e.replay(ctx, fromID, ledger.KindPeerSent, clientRef)
	if err != nil {
		return PeerResult{}, err
	}
	if sent.CounterpartyWalletID != toID || !sent.Amount.Equal(amount) {
		return PeerResult{}, ledger.ErrClientRefReused
	}
	received, _, err := e.lookupClientRef(ctx, toID, ledger.KindPeerReceived, receivedClientRef(fromID, clientRef))
	if err != nil {
		return PeerResult{}, err
	}
	return PeerResult{Status: sent.Status, Balance: balance, Sent: sent, Received: received}, ledger.ErrDuplicateTransaction
}

// receivedClientRef scopes the credit row's reference by sender so two senders
// may reuse the same reference towards one recipient.
func receivedClientRef(fromWalletID, clientRef string) string {
	if clientRef == "" {
		return ""
	}
	return fromWalletID + ":" + clientRef
}
