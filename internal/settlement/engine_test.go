package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chema/chema_ledger/internal/funding"
	"github.com/chema/chema_ledger/internal/ledger"
	"github.com/chema/chema_ledger/internal/notification"
)

type fakeCampaigns struct {
	mu        sync.Mutex
	byID      map[string]ledger.Campaign
	disbursed []string
}

func (f *fakeCampaigns) Campaign(_ context.Context, id string) (ledger.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return ledger.Campaign{}, ledger.ErrCampaignNotFound
	}
	return c, nil
}

func (f *fakeCampaigns) MarkDisbursed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.byID[id]
	c.FundsDisbursed = true
	f.byID[id] = c
	f.disbursed = append(f.disbursed, id)
	return nil
}

type fakeAuthorizer map[string]bool

func (f fakeAuthorizer) IsGroupAdmin(_ context.Context, principal, groupID string) (bool, error) {
	return f[principal+"/"+groupID], nil
}

type fakePrincipals map[string]bool

func (f fakePrincipals) Exists(_ context.Context, principal string) (bool, error) {
	return f[principal], nil
}

type harness struct {
	engine    *Engine
	store     ledger.Store
	campaigns *fakeCampaigns
	notifier  *notification.Recorder
}

func newHarness(t *testing.T, gw funding.Gateway) *harness {
	t.Helper()
	store := ledger.NewInMemory()
	campaigns := &fakeCampaigns{byID: map[string]ledger.Campaign{
		"camp-1": {ID: "camp-1", GroupID: "grp-1", GroupExternalWalletID: "WAAS_grp-1", BeneficiaryID: "bene", ContributionsOpen: true, Active: true},
		"camp-2": {ID: "camp-2", GroupID: "grp-1", GroupExternalWalletID: "WAAS_grp-1", BeneficiaryID: "bene", ContributionsOpen: true, Active: true},
		"camp-closed": {ID: "camp-closed", GroupID: "grp-1", GroupExternalWalletID: "WAAS_grp-1", BeneficiaryID: "bene", ContributionsOpen: false, Active: true},
		"camp-inactive": {ID: "camp-inactive", GroupID: "grp-1", GroupExternalWalletID: "WAAS_grp-1", ContributionsOpen: true, Active: false},
		"camp-nobody": {ID: "camp-nobody", GroupID: "grp-2", GroupExternalWalletID: "WAAS_grp-2", ContributionsOpen: true, Active: true},
	}}
	notifier := &notification.Recorder{}
	engine, err := New(Deps{
		Store:      store,
		Campaigns:  campaigns,
		Authorizer: fakeAuthorizer{"admin/grp-1": true, "admin/grp-2": true},
		Principals: fakePrincipals{"alice": true, "bob": true, "carol": true, "dave": true, "bene": true, "admin": true},
		Gateway:    gw,
		Notifier:   notifier,
	})
	require.NoError(t, err)
	return &harness{engine: engine, store: store, campaigns: campaigns, notifier: notifier}
}

func (h *harness) fund(t *testing.T, principal, amount string) {
	t.Helper()
	w, err := h.engine.EnsureWallet(context.Background(), principal)
	require.NoError(t, err)
	ledger.SeedBalance(h.store, w.ID, dec(amount))
}

func (h *harness) balance(t *testing.T, principal string) string {
	t.Helper()
	b, err := h.engine.GetBalance(context.Background(), principal)
	require.NoError(t, err)
	return b.StringFixed(ledger.Scale)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
	_, err = New(Deps{Store: ledger.NewInMemory()})
	assert.Error(t, err)
}

func TestTopUpCreditsConfirmedAmount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	assert.Equal(t, "0.00", h.balance(t, "alice"))

	res, err := h.engine.TopUp(ctx, TopUpInput{Principal: "alice", Amount: dec("100.00"), VoucherRef: "12345"})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, res.Status)
	assert.Equal(t, "100.00", res.Balance.StringFixed(ledger.Scale))
	assert.Equal(t, ledger.KindTopUp, res.Transaction.Kind)
	assert.Equal(t, "12345", res.Transaction.VoucherRef)
	assert.Contains(t, res.Transaction.ExternalRef, funding.TopUpRefPrefix)
	assert.Equal(t, "100.00", h.balance(t, "alice"))

	rows, err := h.engine.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ledger.StatusCompleted, rows[0].Status)

	msgs := h.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notification.KindTopUp, msgs[0].Kind)
}

func TestTopUpUsesVoucherFaceValue(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.engine.TopUp(context.Background(), TopUpInput{Principal: "alice", Amount: dec("10.00"), VoucherRef: "50"})
	require.NoError(t, err)
	assert.Equal(t, "50.00", res.Transaction.Amount.StringFixed(ledger.Scale))
}

func TestTopUpDeclineKeepsFailedRow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	res, err := h.engine.TopUp(ctx, TopUpInput{Principal: "alice", Amount: dec("20.00"), VoucherRef: "99999"})
	var declined *ledger.GatewayDeclinedError
	require.True(t, errors.As(err, &declined), "got %v", err)
	assert.Equal(t, funding.DeclineInvalidPIN, declined.Reason)
	assert.Equal(t, ledger.StatusFailed, res.Status)
	assert.Equal(t, ledger.StatusFailed, declined.Transaction.Status)
	assert.Equal(t, "0.00", h.balance(t, "alice"))
	assert.Equal(t, 1, ledger.RowCount(h.store))
	assert.Empty(t, h.notifier.Messages())
}

func TestTopUpRejectsInvalidAmount(t *testing.T) {
	h := newHarness(t, nil)
	for _, a := range []string{"0", "-1", "1.234"} {
		_, err := h.engine.TopUp(context.Background(), TopUpInput{Principal: "alice", Amount: dec(a)})
		assert.ErrorIs(t, err, ledger.ErrValidation, a)
	}
	assert.Equal(t, 0, ledger.RowCount(h.store))
}

func TestTopUpClientRefReplaysOriginal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	first, err := h.engine.TopUp(ctx, TopUpInput{Principal: "alice", Amount: dec("25.00"), ClientRef: "r-1"})
	require.NoError(t, err)
	second, err := h.engine.TopUp(ctx, TopUpInput{Principal: "alice", Amount: dec("25.00"), ClientRef: "r-1"})
	assert.ErrorIs(t, err, ledger.ErrDuplicateTransaction)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, "25.00", second.Balance.StringFixed(ledger.Scale))
	assert.Equal(t, 1, ledger.RowCount(h.store))
}

func TestSendPeerConservesMoney(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.fund(t, "alice", "100.00")
	h.fund(t, "bob", "10.00")

	res, err := h.engine.SendPeer(ctx, PeerInput{From: "alice", To: "bob", Amount: dec("40.00")})
	require.NoError(t, err)
	assert.Equal(t, "60.00", res.Balance.StringFixed(ledger.Scale))
	assert.Equal(t, "60.00", h.balance(t, "alice"))
	assert.Equal(t, "50.00", h.balance(t, "bob"))

	assert.Equal(t, ledger.KindPeerSent, res.Sent.Kind)
	assert.Equal(t, ledger.KindPeerReceived, res.Received.Kind)
	assert.Equal(t, res.Sent.CorrelationID, res.Received.CorrelationID)
	assert.Equal(t, res.Sent.ExternalRef, res.Received.ExternalRef)
	assert.Contains(t, res.Sent.ExternalRef, PeerRefPrefix)
	assert.Equal(t, res.Received.WalletID, res.Sent.CounterpartyWalletID)
	assert.Equal(t, res.Sent.WalletID, res.Received.CounterpartyWalletID)

	total := dec(h.balance(t, "alice")).Add(dec(h.balance(t, "bob")))
	assert.Equal(t, "110.00", total.StringFixed(ledger.Scale))

	msgs := h.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob", msgs[0].Destination)
}

func TestSendPeerInsufficientFundsWritesNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t, "alice", "50.00")
	before := ledger.RowCount(h.store)

	_, err := h.engine.SendPeer(context.Background(), PeerInput{From: "alice", To: "bob", Amount: dec("75.00")})
	var insufficient *ledger.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient), "got %v", err)
	assert.Equal(t, "50.00", insufficient.Balance.StringFixed(ledger.Scale))
	assert.Equal(t, "75.00", insufficient.Requested.StringFixed(ledger.Scale))
	assert.Equal(t, "50.00", h.balance(t, "alice"))
	assert.Equal(t, before, ledger.RowCount(h.store))
}

func TestSendPeerRejectsSelfAndUnknown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.fund(t, "alice", "50.00")
	before := ledger.RowCount(h.store)

	_, err := h.engine.SendPeer(ctx, PeerInput{From: "alice", To: "alice", Amount: dec("5.00")})
	assert.ErrorIs(t, err, ledger.ErrSelfTransfer)
	assert.ErrorIs(t, err, ledger.ErrConflict)

	_, err = h.engine.SendPeer(ctx, PeerInput{From: "alice", To: "mallory", Amount: dec("5.00")})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = h.engine.SendPeer(ctx, PeerInput{From: "alice", To: "bob"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	assert.Equal(t, before, ledger.RowCount(h.store))
}

func TestSendPeerStorageFaultRollsBackBothRows(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t, "alice", "50.00")
	_, err := h.engine.EnsureWallet(context.Background(), "bob")
	require.NoError(t, err)
	before := ledger.RowCount(h.store)

	ledger.FailInsertAfter(h.store, 2, errors.New("write timeout"))
	_, err = h.engine.SendPeer(context.Background(), PeerInput{From: "alice", To: "bob", Amount: dec("20.00")})
	assert.ErrorIs(t, err, ledger.ErrStorage)
	assert.Equal(t, before, ledger.RowCount(h.store))
	assert.Equal(t, "50.00", h.balance(t, "alice"))
	assert.Equal(t, "0.00", h.balance(t, "bob"))
}

func TestSendPeerClientRefReplay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.fund(t, "alice", "50.00")

	first, err := h.engine.SendPeer(ctx, PeerInput{From: "alice", To: "bob", Amount: dec("20.00"), ClientRef: "pay-1"})
	require.NoError(t, err)
	again, err := h.engine.SendPeer(ctx, PeerInput{From: "alice", To: "bob", Amount: dec("20.00"), ClientRef: "pay-1"})
	assert.ErrorIs(t, err, ledger.ErrDuplicateTransaction)
	assert.Equal(t, first.Sent.ID, again.Sent.ID)
	assert.Equal(t, first.Received.ID, again.Received.ID)
	assert.Equal(t, "30.00", h.balance(t, "alice"))

	h.fund(t, "carol", "50.00")
	_, err = h.engine.SendPeer(ctx, PeerInput{From: "carol", To: "bob", Amount: dec("5.00"), ClientRef: "pay-1"})
	require.NoError(t, err)
	assert.Equal(t, "25.00", h.balance(t, "bob"))
}

func TestConcurrentPeerSendsNeverOverdraw(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t, "alice", "100.00")

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := "bob"
			if i%2 == 0 {
				to = "carol"
			}
			_, _ = h.engine.SendPeer(context.Background(), PeerInput{From: "alice", To: to, Amount: dec("7.00")})
		}(i)
	}
	wg.Wait()

	alice := dec(h.balance(t, "alice"))
	assert.False(t, alice.IsNegative())
	assert.Equal(t, "2.00", alice.StringFixed(ledger.Scale))
	total := alice.Add(dec(h.balance(t, "bob"))).Add(dec(h.balance(t, "carol")))
	assert.Equal(t, "100.00", total.StringFixed(ledger.Scale))
}

func TestContributionThenPayout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	for _, p := range []string{"alice", "bob", "carol"} {
		h.fund(t, p, "150.00")
		res, err := h.engine.Contribute(ctx, ContributionInput{Principal: p, CampaignID: "camp-1", Amount: dec("100.00")})
		require.NoError(t, err, p)
		assert.Equal(t, ledger.KindTransfer, res.Transaction.Kind)
		assert.Equal(t, "grp-1", res.Transaction.DestinationGroupID)
		assert.Equal(t, "camp-1", res.Transaction.CampaignID)
		assert.Equal(t, res.Transaction.ID, res.Contribution.TransactionID)
		assert.Equal(t, PaymentMethodWallet, res.Contribution.PaymentMethod)
		assert.Equal(t, "50.00", res.Balance.StringFixed(ledger.Scale))
	}

	totals, err := h.engine.CampaignTotals(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, "300.00", totals.Raised.StringFixed(ledger.Scale))
	assert.Len(t, ledger.Contributions(h.store, "camp-1"), 3)

	payout, err := h.engine.Disburse(ctx, DisburseInput{CampaignID: "camp-1", Actor: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "300.00", payout.Amount.StringFixed(ledger.Scale))
	assert.Equal(t, "bene", payout.BeneficiaryID)
	assert.Equal(t, ledger.KindPayoutReceived, payout.Transaction.Kind)
	assert.Contains(t, payout.Transaction.ExternalRef, PayoutRefPrefix)
	assert.Equal(t, "300.00", h.balance(t, "bene"))
	assert.Equal(t, []string{"camp-1"}, h.campaigns.disbursed)

	totals, err = h.engine.CampaignTotals(ctx, "camp-1")
	require.NoError(t, err)
	assert.True(t, totals.Balance.IsZero())

	_, err = h.engine.Disburse(ctx, DisburseInput{CampaignID: "camp-1", Actor: "admin"})
	assert.ErrorIs(t, err, ledger.ErrNoFundsAvailable)
	assert.Equal(t, "300.00", h.balance(t, "bene"))

	h.fund(t, "dave", "40.00")
	_, err = h.engine.Contribute(ctx, ContributionInput{Principal: "dave", CampaignID: "camp-1", Amount: dec("40.00")})
	require.NoError(t, err)
	staged, err := h.engine.Disburse(ctx, DisburseInput{CampaignID: "camp-1", Actor: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "40.00", staged.Amount.StringFixed(ledger.Scale))

	group, err := h.engine.GroupLedger(ctx, "grp-1")
	require.NoError(t, err)
	assert.Len(t, group.Transactions, 6)
	assert.True(t, group.Balance.IsZero())
}

func TestDuplicateContributionRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.fund(t, "alice", "100.00")

	_, err := h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "camp-1", Amount: dec("30.00")})
	require.NoError(t, err)
	_, err = h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "camp-1", Amount: dec("30.00")})
	assert.ErrorIs(t, err, ledger.ErrDuplicateContribution)
	assert.ErrorIs(t, err, ledger.ErrConflict)

	totals, err := h.engine.CampaignTotals(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, "30.00", totals.Raised.StringFixed(ledger.Scale))
	assert.Equal(t, "70.00", h.balance(t, "alice"))
}

func TestContributionPreconditions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.fund(t, "alice", "10.00")

	_, err := h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "camp-closed", Amount: dec("5.00")})
	assert.ErrorIs(t, err, ledger.ErrContributionsClosed)
	_, err = h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "camp-inactive", Amount: dec("5.00")})
	assert.ErrorIs(t, err, ledger.ErrContributionsClosed)
	_, err = h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "missing", Amount: dec("5.00")})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "camp-1", Amount: dec("25.00")})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	assert.Equal(t, 1, ledger.RowCount(h.store))
	assert.Empty(t, ledger.Contributions(h.store, "camp-1"))
}

func TestContributionGatewayDecline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, funding.StaticGateway{DeclineTransfers: true})
	h.fund(t, "alice", "100.00")

	res, err := h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "camp-1", Amount: dec("30.00")})
	assert.ErrorIs(t, err, ledger.ErrGatewayDeclined)
	assert.Equal(t, ledger.StatusFailed, res.Transaction.Status)
	assert.Empty(t, ledger.Contributions(h.store, "camp-1"))
	assert.Equal(t, "100.00", h.balance(t, "alice"))

	totals, err := h.engine.CampaignTotals(ctx, "camp-1")
	require.NoError(t, err)
	assert.True(t, totals.Raised.IsZero())
}

func TestContributionStorageFaultLeavesNoOrphan(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t, "alice", "100.00")
	before := ledger.RowCount(h.store)

	ledger.FailInsertAfter(h.store, 2, errors.New("constraint check failed"))
	_, err := h.engine.Contribute(context.Background(), ContributionInput{Principal: "alice", CampaignID: "camp-1", Amount: dec("30.00")})
	assert.ErrorIs(t, err, ledger.ErrStorage)
	assert.Equal(t, before, ledger.RowCount(h.store))
	assert.Empty(t, ledger.Contributions(h.store, "camp-1"))
}

func TestTransferToGroupSharesContributionPath(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.fund(t, "alice", "100.00")

	_, err := h.engine.TransferToGroup(ctx, GroupTransferInput{Principal: "alice", GroupID: "grp-2", CampaignID: "camp-1", Amount: dec("10.00")})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	res, err := h.engine.TransferToGroup(ctx, GroupTransferInput{Principal: "alice", GroupID: "grp-1", CampaignID: "camp-1", Amount: dec("10.00")})
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodGroupTransfer, res.Contribution.PaymentMethod)
	assert.Equal(t, "10.00", res.TotalRaised.StringFixed(ledger.Scale))

	_, err = h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "camp-1", Amount: dec("10.00")})
	assert.ErrorIs(t, err, ledger.ErrDuplicateContribution)
}

func TestDisbursePreconditions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.fund(t, "alice", "100.00")
	_, err := h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "camp-1", Amount: dec("50.00")})
	require.NoError(t, err)
	before := ledger.RowCount(h.store)

	_, err = h.engine.Disburse(ctx, DisburseInput{CampaignID: "camp-1", Actor: "alice"})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	_, err = h.engine.Disburse(ctx, DisburseInput{CampaignID: "camp-nobody", Actor: "admin"})
	assert.ErrorIs(t, err, ledger.ErrNoBeneficiary)
	_, err = h.engine.Disburse(ctx, DisburseInput{CampaignID: "missing", Actor: "admin"})
	assert.ErrorIs(t, err, ledger.ErrCampaignNotFound)

	assert.Equal(t, before, ledger.RowCount(h.store))
}

func TestNotificationFailureDoesNotFailSettlement(t *testing.T) {
	h := newHarness(t, nil)
	h.notifier.Err = errors.New("smtp down")

	_, err := h.engine.TopUp(context.Background(), TopUpInput{Principal: "alice", Amount: dec("5.00")})
	require.NoError(t, err)
	assert.Equal(t, "5.00", h.balance(t, "alice"))
}

func TestBalanceReadIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.fund(t, "alice", "12.34")
	assert.Equal(t, h.balance(t, "alice"), h.balance(t, "alice"))

	rows, err := h.engine.ListTransactions(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTopUpReplayOfDeclineStaysDeclined(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.engine.TopUp(ctx, TopUpInput{Principal: "alice", Amount: dec("20.00"), VoucherRef: "99999", ClientRef: "bad-pin"})
	require.ErrorIs(t, err, ledger.ErrGatewayDeclined)

	res, err := h.engine.TopUp(ctx, TopUpInput{Principal: "alice", Amount: dec("20.00"), VoucherRef: "99999", ClientRef: "bad-pin"})
	var declined *ledger.GatewayDeclinedError
	require.True(t, errors.As(err, &declined), "got %v", err)
	assert.NotErrorIs(t, err, ledger.ErrDuplicateTransaction)
	assert.Equal(t, DeclineReplayed, declined.Reason)
	assert.Equal(t, ledger.StatusFailed, res.Status)
	assert.Equal(t, 1, ledger.RowCount(h.store))
	assert.Equal(t, "0.00", h.balance(t, "alice"))
}

func TestContributionReplayOfDeclineStaysDeclined(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, funding.StaticGateway{DeclineTransfers: true})
	h.fund(t, "alice", "50.00")

	in := ContributionInput{Principal: "alice", CampaignID: "camp-1", Amount: dec("30.00"), ClientRef: "c-1"}
	first, err := h.engine.Contribute(ctx, in)
	require.ErrorIs(t, err, ledger.ErrGatewayDeclined)
	again, err := h.engine.Contribute(ctx, in)
	assert.ErrorIs(t, err, ledger.ErrGatewayDeclined)
	assert.NotErrorIs(t, err, ledger.ErrDuplicateTransaction)
	assert.Equal(t, first.Transaction.ID, again.Transaction.ID)
	assert.Equal(t, ledger.StatusFailed, again.Status)
}

func TestClientRefReusedWithDifferentParametersConflicts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.fund(t, "alice", "100.00")

	t.Run("top-up", func(t *testing.T) {
		_, err := h.engine.TopUp(ctx, TopUpInput{Principal: "carol", Amount: dec("10.00"), ClientRef: "t-1"})
		require.NoError(t, err)
		_, err = h.engine.TopUp(ctx, TopUpInput{Principal: "carol", Amount: dec("99.00"), ClientRef: "t-1"})
		assert.ErrorIs(t, err, ledger.ErrClientRefReused)
		_, err = h.engine.TopUp(ctx, TopUpInput{Principal: "carol", Amount: dec("10.00"), VoucherRef: "12345", ClientRef: "t-1"})
		assert.ErrorIs(t, err, ledger.ErrClientRefReused)
		assert.Equal(t, "10.00", h.balance(t, "carol"))
	})

	t.Run("peer", func(t *testing.T) {
		_, err := h.engine.SendPeer(ctx, PeerInput{From: "alice", To: "bob", Amount: dec("10.00"), ClientRef: "k"})
		require.NoError(t, err)
		_, err = h.engine.SendPeer(ctx, PeerInput{From: "alice", To: "dave", Amount: dec("10.00"), ClientRef: "k"})
		assert.ErrorIs(t, err, ledger.ErrClientRefReused)
		assert.ErrorIs(t, err, ledger.ErrConflict)
		_, err = h.engine.SendPeer(ctx, PeerInput{From: "alice", To: "bob", Amount: dec("15.00"), ClientRef: "k"})
		assert.ErrorIs(t, err, ledger.ErrClientRefReused)
		assert.Equal(t, "90.00", h.balance(t, "alice"))
		assert.Equal(t, "0.00", h.balance(t, "dave"))
	})

	t.Run("contribution", func(t *testing.T) {
		_, err := h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "camp-1", Amount: dec("20.00"), ClientRef: "k"})
		require.NoError(t, err)
		_, err = h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "camp-2", Amount: dec("20.00"), ClientRef: "k"})
		assert.ErrorIs(t, err, ledger.ErrClientRefReused)
		_, err = h.engine.Contribute(ctx, ContributionInput{Principal: "alice", CampaignID: "camp-1", Amount: dec("25.00"), ClientRef: "k"})
		assert.ErrorIs(t, err, ledger.ErrClientRefReused)

		totals, err := h.engine.CampaignTotals(ctx, "camp-2")
		require.NoError(t, err)
		assert.True(t, totals.Raised.IsZero())
		assert.Empty(t, ledger.Contributions(h.store, "camp-2"))
		assert.Equal(t, "70.00", h.balance(t, "alice"))
	})

	t.Run("payout", func(t *testing.T) {
		_, err := h.engine.Contribute(ctx, ContributionInput{Principal: "bob", CampaignID: "camp-2", Amount: dec("5.00")})
		require.NoError(t, err)
		_, err = h.engine.Disburse(ctx, DisburseInput{CampaignID: "camp-1", Actor: "admin", ClientRef: "d-1"})
		require.NoError(t, err)
		_, err = h.engine.Disburse(ctx, DisburseInput{CampaignID: "camp-2", Actor: "admin", ClientRef: "d-1"})
		assert.ErrorIs(t, err, ledger.ErrClientRefReused)

		totals, err := h.engine.CampaignTotals(ctx, "camp-2")
		require.NoError(t, err)
		assert.Equal(t, "5.00", totals.Balance.StringFixed(ledger.Scale))
	})
}
