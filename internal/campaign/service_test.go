package campaign

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chema/chema_ledger/internal/ledger"
)

type staticAdmins map[string]bool

func (s staticAdmins) IsGroupAdmin(_ context.Context, principal, groupID string) (bool, error) {
	return s[principal+"/"+groupID], nil
}

func TestCampaignLifecycle(t *testing.T) {
	ctx := context.Background()
	admin, member, group, beneficiary := uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString()
	svc := NewService(NewMemoryRepository(), staticAdmins{admin + "/" + group: true})

	_, err := svc.Create(ctx, member, CreateInput{GroupID: group, Title: "Funeral of N."})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	_, err = svc.Create(ctx, admin, CreateInput{GroupID: group})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	created, err := svc.Create(ctx, admin, CreateInput{GroupID: group, Title: "Funeral of N."})
	require.NoError(t, err)
	assert.True(t, created.ContributionsOpen)
	assert.True(t, created.Active)

	view, err := svc.Campaign(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, view.AcceptsContributions())
	assert.Equal(t, ledger.ExternalWalletID(group), view.GroupExternalWalletID)
	assert.Empty(t, view.BeneficiaryID)

	_, err = svc.AssignBeneficiary(ctx, member, created.ID, beneficiary)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	_, err = svc.AssignBeneficiary(ctx, admin, created.ID, beneficiary)
	require.NoError(t, err)

	_, err = svc.Close(ctx, admin, created.ID)
	require.NoError(t, err)
	require.NoError(t, svc.MarkDisbursed(ctx, created.ID))

	view, err = svc.Campaign(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, view.AcceptsContributions())
	assert.True(t, view.FundsDisbursed)
	assert.Equal(t, beneficiary, view.BeneficiaryID)

	list, err := svc.ListByGroup(ctx, group)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUnknownCampaign(t *testing.T) {
	svc := NewService(NewMemoryRepository(), staticAdmins{})
	_, err := svc.Campaign(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ledger.ErrCampaignNotFound)
	_, err = svc.Campaign(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
