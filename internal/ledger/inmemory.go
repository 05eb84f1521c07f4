package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryStore struct {
	mu            sync.RWMutex
	wallets       map[string]Wallet
	byOwner       map[string]string
	byExternal    map[string]string
	rows          []Transaction
	contributions []Contribution
	seq           int64
	fault         *insertFault
}

type insertFault struct {
	remaining int
	err       error
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and development. Atomic units are fully serialized.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets:    make(map[string]Wallet),
		byOwner:    make(map[string]string),
		byExternal: make(map[string]string),
	}
}

func (s *inMemoryStore) WalletByOwner(_ context.Context, ownerID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOwner[ownerID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return s.wallets[id], nil
}

func (s *inMemoryStore) EnsureWallet(_ context.Context, ownerID, externalID string) (Wallet, error) {
	if ownerID == "" {
		return Wallet{}, &ValidationError{Field: "owner_id", Reason: "is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byOwner[ownerID]; ok {
		return s.wallets[id], nil
	}
	if _, taken := s.byExternal[externalID]; taken {
		return Wallet{}, ErrWalletExists
	}
	w := Wallet{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		ExternalID: externalID,
		CreatedAt:  time.Now().UTC(),
	}
	s.wallets[w.ID] = w
	s.byOwner[ownerID] = w.ID
	s.byExternal[externalID] = w.ID
	return w, nil
}

func (s *inMemoryStore) WalletBalance(_ context.Context, walletID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.wallets[walletID]; !ok {
		return decimal.Decimal{}, ErrWalletNotFound
	}
	return WalletBalance(rowsForWallet(s.rows, walletID)), nil
}

func (s *inMemoryStore) CampaignTotals(_ context.Context, campaignID string) (CampaignTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CampaignTotalsOf(campaignID, s.rows), nil
}

func (s *inMemoryStore) Transactions(_ context.Context, walletID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.wallets[walletID]; !ok {
		return nil, ErrWalletNotFound
	}
	return newestFirst(rowsForWallet(s.rows, walletID)), nil
}

func (s *inMemoryStore) GroupTransactions(_ context.Context, groupID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, row := range s.rows {
		if row.DestinationGroupID == groupID && row.Status == StatusCompleted {
			out = append(out, row)
		}
	}
	return newestFirst(out), nil
}

func (s *inMemoryStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &inMemoryTx{store: s, seq: s.seq}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return wrapStorage("commit", err)
	}

	s.rows = append(s.rows, tx.rows...)
	s.contributions = append(s.contributions, tx.contributions...)
	s.seq = tx.seq
	return nil
}

type inMemoryTx struct {
	store         *inMemoryStore
	rows          []Transaction
	contributions []Contribution
	seq           int64
}

func (t *inMemoryTx) allRows() []Transaction {
	all := make([]Transaction, 0, len(t.store.rows)+len(t.rows))
	all = append(all, t.store.rows...)
	return append(all, t.rows...)
}

func (t *inMemoryTx) LockWallets(_ context.Context, walletIDs ...string) error {
	for _, id := range walletIDs {
		if _, ok := t.store.wallets[id]; !ok {
			return ErrWalletNotFound
		}
	}
	return nil
}

// LockCampaign is a no-op: the store lock already serializes every unit.
func (t *inMemoryTx) LockCampaign(context.Context, string) error { return nil }

func (t *inMemoryTx) WalletBalance(_ context.Context, walletID string) (decimal.Decimal, error) {
	if _, ok := t.store.wallets[walletID]; !ok {
		return decimal.Decimal{}, ErrWalletNotFound
	}
	return WalletBalance(rowsForWallet(t.allRows(), walletID)), nil
}

func (t *inMemoryTx) CampaignTotals(_ context.Context, campaignID string) (CampaignTotals, error) {
	return CampaignTotalsOf(campaignID, t.allRows()), nil
}

func (t *inMemoryTx) HasContribution(_ context.Context, campaignID, contributorID string) (bool, error) {
	for _, list := range [][]Contribution{t.store.contributions, t.contributions} {
		for _, c := range list {
			if c.CampaignID == campaignID && c.ContributorID == contributorID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *inMemoryTx) FindByClientRef(_ context.Context, walletID string, kind Kind, clientRef string) (Transaction, bool, error) {
	if clientRef == "" {
		return Transaction{}, false, nil
	}
	for _, row := range t.allRows() {
		if row.WalletID == walletID && row.Kind == kind && row.ClientRef == clientRef {
			return row, true, nil
		}
	}
	return Transaction{}, false, nil
}

func (t *inMemoryTx) InsertTransaction(ctx context.Context, row *Transaction) error {
	if err := t.trip(); err != nil {
		return err
	}
	if err := row.Validate(); err != nil {
		return err
	}
	if _, ok := t.store.wallets[row.WalletID]; !ok {
		return ErrWalletNotFound
	}
	if _, exists, _ := t.FindByClientRef(ctx, row.WalletID, row.Kind, row.ClientRef); exists {
		return ErrDuplicateTransaction
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	t.seq++
	row.Seq = t.seq
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	t.rows = append(t.rows, *row)
	return nil
}

func (t *inMemoryTx) InsertContribution(ctx context.Context, c *Contribution) error {
	if err := t.trip(); err != nil {
		return err
	}
	if exists, _ := t.HasContribution(ctx, c.CampaignID, c.ContributorID); exists {
		return ErrDuplicateContribution
	}
	if !t.backedByTransfer(c) {
		return &ValidationError{Field: "transaction_id", Reason: "must reference a completed transfer for the same campaign"}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	t.contributions = append(t.contributions, *c)
	return nil
}

func (t *inMemoryTx) backedByTransfer(c *Contribution) bool {
	for _, row := range t.allRows() {
		if row.ID == c.TransactionID {
			return row.Kind == KindTransfer && row.Status == StatusCompleted && row.CampaignID == c.CampaignID && row.Amount.Equal(c.Amount)
		}
	}
	return false
}

func (t *inMemoryTx) trip() error {
	f := t.store.fault
	if f == nil {
		return nil
	}
	f.remaining--
	if f.remaining > 0 {
		return nil
	}
	t.store.fault = nil
	return wrapStorage("insert", f.err)
}

func rowsForWallet(rows []Transaction, walletID string) []Transaction {
	var out []Transaction
	for _, row := range rows {
		if row.WalletID == walletID {
			out = append(out, row)
		}
	}
	return out
}

func newestFirst(rows []Transaction) []Transaction {
	out := make([]Transaction, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out
}
