package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized marks a caller lacking the capability for an operation.
	ErrUnauthorized = errors.New("not authorized")
	// ErrInsufficientFunds occurs when the source lacks available balance
	// to cover a requested movement.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotFound marks an unknown wallet, campaign or counterparty.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a request that collides with existing ledger state.
	ErrConflict = errors.New("conflict")
	// ErrGatewayDeclined marks an operation the funding provider refused.
	ErrGatewayDeclined = errors.New("gateway declined")
	// ErrStorage marks a failed atomic commit. The call left no rows behind
	// and may be retried.
	ErrStorage = errors.New("storage failure")
	// ErrDuplicateTransaction indicates the client reference was already
	// settled and the original outcome is being returned.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)

var (
	ErrSelfTransfer          = fmt.Errorf("%w: cannot send money to yourself", ErrConflict)
	ErrDuplicateContribution = fmt.Errorf("%w: already contributed to this campaign", ErrConflict)
	ErrContributionsClosed   = fmt.Errorf("%w: contributions are closed for this campaign", ErrConflict)
	ErrNoBeneficiary         = fmt.Errorf("%w: no beneficiary assigned", ErrConflict)
	ErrWalletExists          = fmt.Errorf("%w: wallet already exists", ErrConflict)
	ErrClientRefReused       = fmt.Errorf("%w: client reference reused with different parameters", ErrConflict)

	ErrWalletNotFound    = fmt.Errorf("wallet %w", ErrNotFound)
	ErrCampaignNotFound  = fmt.Errorf("campaign %w", ErrNotFound)
	ErrRecipientNotFound = fmt.Errorf("recipient %w", ErrNotFound)

	ErrNoFundsAvailable = fmt.Errorf("%w: no funds available for disbursement", ErrInsufficientFunds)
)

// ValidationError carries field-level detail for rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientFundsError reports the balance observed when a debit was refused.
type InsufficientFundsError struct {
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s, requested %s", e.Balance.StringFixed(Scale), e.Requested.StringFixed(Scale))
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// GatewayDeclinedError is returned when the provider refused the movement. The
// FAILED row persisted for audit is attached.
type GatewayDeclinedError struct {
	Reason      string
	Transaction Transaction
}

func (e *GatewayDeclinedError) Error() string {
	if e.Reason == "" {
		return ErrGatewayDeclined.Error()
	}
	return fmt.Sprintf("%s: %s", ErrGatewayDeclined, e.Reason)
}

func (e *GatewayDeclinedError) Is(target error) bool { return target == ErrGatewayDeclined }

// storageError wraps unexpected backend failures so callers can test for ErrStorage
// while keeping the cause inspectable.
type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string { return fmt.Sprintf("%s: %s: %v", ErrStorage, e.op, e.err) }

func (e *storageError) Unwrap() []error { return []error{ErrStorage, e.err} }

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrValidation, ErrInsufficientFunds, ErrNotFound, ErrConflict, ErrUnauthorized, ErrGatewayDeclined, ErrStorage, ErrDuplicateTransaction} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &storageError{op: op, err: err}
}
