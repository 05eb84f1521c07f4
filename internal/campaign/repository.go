package campaign

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chema/chema_ledger/internal/ledger"
)

// Repository persists campaigns.
type Repository interface {
	Create(ctx context.Context, c Campaign) error
	Get(ctx context.Context, id string) (Campaign, error)
	ListByGroup(ctx context.Context, groupID string) ([]Campaign, error)
	SetBeneficiary(ctx context.Context, id, beneficiaryID string) error
	Close(ctx context.Context, id string) error
	MarkDisbursed(ctx context.Context, id string) error
}

const campaignColumns = `id::text, group_id::text, title, COALESCE(beneficiary_id::text, ''),
        contributions_open, active, funds_disbursed, created_by::text, created_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed campaign repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new campaign.
func (r *PostgresRepository) Create(ctx context.Context, c Campaign) error {
	_, err := r.db.Exec(ctx, `INSERT INTO campaigns (
            id, group_id, title, beneficiary_id, contributions_open, active, funds_disbursed, created_by, created_at)
        VALUES ($1::text::uuid, $2::text::uuid, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8::text::uuid, $9)`,
		c.ID, c.GroupID, c.Title, c.BeneficiaryID, c.ContributionsOpen, c.Active, c.FundsDisbursed, c.CreatedBy, c.CreatedAt.UTC())
	return err
}

// Get fetches a campaign by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Campaign, error) {
	row := r.db.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1::text::uuid`, id)
	c, err := scanCampaign(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ledger.ErrCampaignNotFound
	}
	return c, err
}

// ListByGroup returns the group's campaigns, newest first.
func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID string) ([]Campaign, error) {
	rows, err := r.db.Query(ctx, `SELECT `+campaignColumns+`
        FROM campaigns WHERE group_id = $1::text::uuid ORDER BY created_at DESC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetBeneficiary records the payout beneficiary.
func (r *PostgresRepository) SetBeneficiary(ctx context.Context, id, beneficiaryID string) error {
	return r.update(ctx, `UPDATE campaigns SET beneficiary_id = $2::text::uuid WHERE id = $1::text::uuid`, id, beneficiaryID)
}

// Close stops contributions.
func (r *PostgresRepository) Close(ctx context.Context, id string) error {
	return r.update(ctx, `UPDATE campaigns SET contributions_open = FALSE WHERE id = $1::text::uuid`, id)
}

// MarkDisbursed sets the informational disbursed flag.
func (r *PostgresRepository) MarkDisbursed(ctx context.Context, id string) error {
	return r.update(ctx, `UPDATE campaigns SET funds_disbursed = TRUE WHERE id = $1::text::uuid`, id)
}

func (r *PostgresRepository) update(ctx context.Context, sql string, args ...any) error {
	cmd, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ledger.ErrCampaignNotFound
	}
	return nil
}

func scanCampaign(scan func(dest ...any) error) (Campaign, error) {
	var c Campaign
	if err := scan(&c.ID, &c.GroupID, &c.Title, &c.BeneficiaryID,
		&c.ContributionsOpen, &c.Active, &c.FundsDisbursed, &c.CreatedBy, &c.CreatedAt); err != nil {
		return Campaign{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}
