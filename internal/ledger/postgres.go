package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Constraint names declared in the schema migration.
const (
	constraintWalletOwner         = "wallets_owner_id_key"
	constraintWalletExternalID    = "wallets_external_id_key"
	constraintClientRef           = "wallet_transactions_client_ref_key"
	constraintContributionPerUser = "contributions_campaign_contributor_key"
)

const transactionColumns = `id::text, seq, wallet_id::text, kind, amount::text, status,
        COALESCE(destination_group_id::text, ''), COALESCE(counterparty_wallet_id::text, ''),
        COALESCE(campaign_id::text, ''), COALESCE(external_ref, ''), COALESCE(voucher_ref, ''),
        COALESCE(correlation_id, ''), COALESCE(client_ref, ''), created_at`

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists wallets and ledger rows in PostgreSQL. Balances are
// always aggregated from wallet_transactions; no balance column exists.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed ledger store.
func NewPostgres(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// WalletByOwner looks up the wallet of a principal.
func (s *PostgresStore) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return walletByOwner(ctx, s.db, ownerID)
}

// EnsureWallet returns the principal's wallet, creating it on first use.
func (s *PostgresStore) EnsureWallet(ctx context.Context, ownerID, externalID string) (Wallet, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return Wallet{}, &ValidationError{Field: "owner_id", Reason: "must be a uuid"}
	}
	_, err := s.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, external_id, created_at)
        VALUES ($1, $2::text::uuid, $3, $4)
        ON CONFLICT (owner_id) DO NOTHING`, uuid.New(), ownerID, externalID, time.Now().UTC())
	if err != nil {
		return Wallet{}, mapPgError("ensure wallet", err)
	}
	return walletByOwner(ctx, s.db, ownerID)
}

// WalletBalance aggregates completed credits minus completed debits.
func (s *PostgresStore) WalletBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1::text::uuid)`, walletID).Scan(&exists); err != nil {
		return decimal.Decimal{}, mapPgError("wallet exists", err)
	}
	if !exists {
		return decimal.Decimal{}, ErrWalletNotFound
	}
	return walletBalance(ctx, s.db, walletID)
}

// CampaignTotals aggregates completed contributions and payouts of a campaign.
func (s *PostgresStore) CampaignTotals(ctx context.Context, campaignID string) (CampaignTotals, error) {
	return campaignTotals(ctx, s.db, campaignID)
}

// Transactions lists a wallet's rows, newest first.
func (s *PostgresStore) Transactions(ctx context.Context, walletID string) ([]Transaction, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1::text::uuid)`, walletID).Scan(&exists); err != nil {
		return nil, mapPgError("wallet exists", err)
	}
	if !exists {
		return nil, ErrWalletNotFound
	}
	return queryTransactions(ctx, s.db, `SELECT `+transactionColumns+`
        FROM wallet_transactions WHERE wallet_id = $1::text::uuid ORDER BY seq DESC`, walletID)
}

// GroupTransactions lists completed rows destined to a group, newest first.
func (s *PostgresStore) GroupTransactions(ctx context.Context, groupID string) ([]Transaction, error) {
	return queryTransactions(ctx, s.db, `SELECT `+transactionColumns+`
        FROM wallet_transactions
        WHERE destination_group_id = $1::text::uuid AND status = 'COMPLETED'
        ORDER BY seq DESC`, groupID)
}

// Atomic runs fn in a read-committed transaction. Serialization per wallet comes
// from the row locks taken through Tx.LockWallets.
func (s *PostgresStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return wrapStorage("begin", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &postgresTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError("commit", err)
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

// LockWallets takes row locks in a deterministic order so concurrent
// settlements touching the same pair cannot deadlock.
func (t *postgresTx) LockWallets(ctx context.Context, walletIDs ...string) error {
	ids := append([]string(nil), walletIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		var locked string
		err := t.tx.QueryRow(ctx, `SELECT id::text FROM wallets WHERE id = $1::text::uuid FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWalletNotFound
			}
			return mapPgError("lock wallet", err)
		}
	}
	return nil
}

func (t *postgresTx) LockCampaign(ctx context.Context, campaignID string) error {
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "campaign:"+campaignID); err != nil {
		return mapPgError("lock campaign", err)
	}
	return nil
}

func (t *postgresTx) WalletBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	return walletBalance(ctx, t.tx, walletID)
}

func (t *postgresTx) CampaignTotals(ctx context.Context, campaignID string) (CampaignTotals, error) {
	return campaignTotals(ctx, t.tx, campaignID)
}

func (t *postgresTx) HasContribution(ctx context.Context, campaignID, contributorID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (
            SELECT 1 FROM contributions WHERE campaign_id = $1::text::uuid AND contributor_id = $2::text::uuid)`,
		campaignID, contributorID).Scan(&exists)
	if err != nil {
		return false, mapPgError("has contribution", err)
	}
	return exists, nil
}

func (t *postgresTx) FindByClientRef(ctx context.Context, walletID string, kind Kind, clientRef string) (Transaction, bool, error) {
	if clientRef == "" {
		return Transaction{}, false, nil
	}
	row := t.tx.QueryRow(ctx, `SELECT `+transactionColumns+`
        FROM wallet_transactions
        WHERE wallet_id = $1::text::uuid AND kind = $2 AND client_ref = $3`, walletID, string(kind), clientRef)
	existing, err := scanTransaction(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, mapPgError("find client ref", err)
	}
	return existing, true, nil
}

func (t *postgresTx) InsertTransaction(ctx context.Context, row *Transaction) error {
	if err := row.Validate(); err != nil {
		return err
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	err := t.tx.QueryRow(ctx, `INSERT INTO wallet_transactions (
            id, wallet_id, kind, amount, status, destination_group_id, counterparty_wallet_id,
            campaign_id, external_ref, voucher_ref, correlation_id, client_ref)
        VALUES ($1::text::uuid, $2::text::uuid, $3, $4::text::numeric, $5,
            NULLIF($6, '')::uuid, NULLIF($7, '')::uuid, NULLIF($8, '')::uuid,
            NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''))
        RETURNING seq, created_at`,
		row.ID, row.WalletID, string(row.Kind), row.Amount.StringFixed(Scale), string(row.Status),
		row.DestinationGroupID, row.CounterpartyWalletID, row.CampaignID,
		row.ExternalRef, row.VoucherRef, row.CorrelationID, row.ClientRef,
	).Scan(&row.Seq, &row.CreatedAt)
	if err != nil {
		return mapPgError("insert transaction", err)
	}
	row.CreatedAt = row.CreatedAt.UTC()
	return nil
}

// InsertContribution only succeeds when the referenced row is a completed
// transfer for the same campaign.
func (t *postgresTx) InsertContribution(ctx context.Context, c *Contribution) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := t.tx.QueryRow(ctx, `INSERT INTO contributions (
            id, campaign_id, group_id, contributor_id, amount, payment_method, transaction_id)
        SELECT $1::text::uuid, $2::text::uuid, $3::text::uuid, $4::text::uuid, $5::text::numeric, $6, w.id
        FROM wallet_transactions w
        WHERE w.id = $7::text::uuid AND w.kind = 'TRANSFER' AND w.status = 'COMPLETED'
            AND w.campaign_id = $2::text::uuid AND w.amount = $5::text::numeric
        RETURNING created_at`,
		c.ID, c.CampaignID, c.GroupID, c.ContributorID, c.Amount.StringFixed(Scale), c.PaymentMethod, c.TransactionID,
	).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &ValidationError{Field: "transaction_id", Reason: "must reference a completed transfer for the same campaign"}
		}
		return mapPgError("insert contribution", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return nil
}

func walletByOwner(ctx context.Context, q querier, ownerID string) (Wallet, error) {
	var w Wallet
	err := q.QueryRow(ctx, `SELECT id::text, owner_id::text, external_id, created_at
        FROM wallets WHERE owner_id = $1::text::uuid`, ownerID).Scan(&w.ID, &w.OwnerID, &w.ExternalID, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, mapPgError("wallet by owner", err)
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

func walletBalance(ctx context.Context, q querier, walletID string) (decimal.Decimal, error) {
	const query = `
        SELECT (COALESCE(SUM(amount) FILTER (WHERE kind = ANY($2::text[])), 0)
              - COALESCE(SUM(amount) FILTER (WHERE kind = ANY($3::text[])), 0))::text
        FROM wallet_transactions
        WHERE wallet_id = $1::text::uuid AND status = 'COMPLETED'`
	var raw string
	if err := q.QueryRow(ctx, query, walletID, CreditKinds(), DebitKinds()).Scan(&raw); err != nil {
		return decimal.Decimal{}, mapPgError("wallet balance", err)
	}
	return parseNumeric(raw)
}

func campaignTotals(ctx context.Context, q querier, campaignID string) (CampaignTotals, error) {
	const query = `
        SELECT COALESCE(SUM(amount) FILTER (WHERE kind = 'TRANSFER'), 0)::text,
               COALESCE(SUM(amount) FILTER (WHERE kind = 'PAYOUT_RECEIVED'), 0)::text
        FROM wallet_transactions
        WHERE campaign_id = $1::text::uuid AND status = 'COMPLETED'`
	var rawRaised, rawDisbursed string
	if err := q.QueryRow(ctx, query, campaignID).Scan(&rawRaised, &rawDisbursed); err != nil {
		return CampaignTotals{}, mapPgError("campaign totals", err)
	}
	raised, err := parseNumeric(rawRaised)
	if err != nil {
		return CampaignTotals{}, err
	}
	disbursed, err := parseNumeric(rawDisbursed)
	if err != nil {
		return CampaignTotals{}, err
	}
	return CampaignTotals{
		CampaignID: campaignID,
		Raised:     raised,
		Disbursed:  disbursed,
		Balance:    raised.Sub(disbursed).Round(Scale),
	}, nil
}

func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]Transaction, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError("query transactions", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, mapPgError("scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError("iterate transactions", err)
	}
	return out, nil
}

func scanTransaction(scan func(dest ...any) error) (Transaction, error) {
	var (
		t         Transaction
		kind      string
		status    string
		rawAmount string
	)
	if err := scan(&t.ID, &t.Seq, &t.WalletID, &kind, &rawAmount, &status,
		&t.DestinationGroupID, &t.CounterpartyWalletID, &t.CampaignID,
		&t.ExternalRef, &t.VoucherRef, &t.CorrelationID, &t.ClientRef, &t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	amount, err := parseNumeric(rawAmount)
	if err != nil {
		return Transaction{}, err
	}
	t.Kind = Kind(kind)
	t.Status = Status(status)
	t.Amount = amount
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func parseNumeric(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, wrapStorage("parse numeric", err)
	}
	return d.Round(Scale), nil
}

func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return wrapStorage(op, err)
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case constraintContributionPerUser:
			return ErrDuplicateContribution
		case constraintClientRef:
			return ErrDuplicateTransaction
		case constraintWalletExternalID, constraintWalletOwner:
			return ErrWalletExists
		}
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	case pgerrcode.CheckViolation:
		return &ValidationError{Field: pgErr.ConstraintName, Reason: pgErr.Message}
	case pgerrcode.InvalidTextRepresentation:
		return &ValidationError{Field: "id", Reason: pgErr.Message}
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
	}
	return wrapStorage(op, err)
}
