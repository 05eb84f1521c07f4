package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chema/chema_ledger/internal/ledger"
	"github.com/chema/chema_ledger/internal/settlement"
)

// Service owns campaign lifecycle and serves as the settlement engine's
// campaign directory.
type Service struct {
	repo       Repository
	authorizer settlement.Authorizer
}

// NewService creates a campaign service.
func NewService(repo Repository, authorizer settlement.Authorizer) *Service {
	return &Service{repo: repo, authorizer: authorizer}
}

// Create opens a campaign for the group. Only group admins may open one.
func (s *Service) Create(ctx context.Context, actor string, in CreateInput) (Campaign, error) {
	if _, err := uuid.Parse(in.GroupID); err != nil {
		return Campaign{}, &ledger.ValidationError{Field: "group_id", Reason: "must be a uuid"}
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Campaign{}, &ledger.ValidationError{Field: "title", Reason: "is required"}
	}
	if in.BeneficiaryID != "" {
		if _, err := uuid.Parse(in.BeneficiaryID); err != nil {
			return Campaign{}, &ledger.ValidationError{Field: "beneficiary_id", Reason: "must be a uuid"}
		}
	}
	if err := s.requireAdmin(ctx, actor, in.GroupID); err != nil {
		return Campaign{}, err
	}

	c := Campaign{
		ID:                uuid.NewString(),
		GroupID:           in.GroupID,
		Title:             title,
		BeneficiaryID:     in.BeneficiaryID,
		ContributionsOpen: true,
		Active:            true,
		CreatedBy:         actor,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Campaign{}, err
	}
	return c, nil
}

// Get returns a campaign by id.
func (s *Service) Get(ctx context.Context, id string) (Campaign, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Campaign{}, ledger.ErrCampaignNotFound
	}
	return s.repo.Get(ctx, id)
}

// ListByGroup returns the group's campaigns.
func (s *Service) ListByGroup(ctx context.Context, groupID string) ([]Campaign, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return nil, &ledger.ValidationError{Field: "group_id", Reason: "must be a uuid"}
	}
	out, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Campaign{}
	}
	return out, nil
}

// AssignBeneficiary designates who receives the payout.
func (s *Service) AssignBeneficiary(ctx context.Context, actor, id, beneficiaryID string) (Campaign, error) {
	if _, err := uuid.Parse(beneficiaryID); err != nil {
		return Campaign{}, &ledger.ValidationError{Field: "beneficiary_id", Reason: "must be a uuid"}
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return Campaign{}, err
	}
	if err := s.requireAdmin(ctx, actor, c.GroupID); err != nil {
		return Campaign{}, err
	}
	if err := s.repo.SetBeneficiary(ctx, id, beneficiaryID); err != nil {
		return Campaign{}, err
	}
	c.BeneficiaryID = beneficiaryID
	return c, nil
}

// Close stops further contributions. Funds already raised stay disbursable.
func (s *Service) Close(ctx context.Context, actor, id string) (Campaign, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Campaign{}, err
	}
	if err := s.requireAdmin(ctx, actor, c.GroupID); err != nil {
		return Campaign{}, err
	}
	if err := s.repo.Close(ctx, id); err != nil {
		return Campaign{}, err
	}
	c.ContributionsOpen = false
	return c, nil
}

// Campaign implements settlement.CampaignDirectory.
func (s *Service) Campaign(ctx context.Context, id string) (ledger.Campaign, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return ledger.Campaign{}, err
	}
	return c.Ledger(), nil
}

// MarkDisbursed implements settlement.CampaignDirectory.
func (s *Service) MarkDisbursed(ctx context.Context, id string) error {
	return s.repo.MarkDisbursed(ctx, id)
}

func (s *Service) requireAdmin(ctx context.Context, actor, groupID string) error {
	ok, err := s.authorizer.IsGroupAdmin(ctx, actor, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: group admin required", ledger.ErrUnauthorized)
	}
	return nil
}
