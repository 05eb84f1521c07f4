package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeedBalance is a test helper that credits a wallet of the in-memory store with
// a completed top-up row.
func SeedBalance(s Store, walletID string, amount decimal.Decimal) {
	mem, ok := s.(*inMemoryStore)
	if !ok {
		return
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.seq++
	mem.rows = append(mem.rows, Transaction{
		ID:          uuid.NewString(),
		Seq:         mem.seq,
		WalletID:    walletID,
		Kind:        KindTopUp,
		Amount:      amount.Round(Scale),
		Status:      StatusCompleted,
		ExternalRef: "SEED_" + uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
	})
}

// FailInsertAfter arms the in-memory store so that the n-th insert of the next
// atomic units fails with err. The fault fires once.
func FailInsertAfter(s Store, n int, err error) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.fault = &insertFault{remaining: n, err: err}
	}
}

// RowCount returns the number of committed ledger rows in the in-memory store.
func RowCount(s Store) int {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.RLock()
		defer mem.mu.RUnlock()
		return len(mem.rows)
	}
	return 0
}

// Contributions returns the committed contribution records of a campaign.
func Contributions(s Store, campaignID string) []Contribution {
	mem, ok := s.(*inMemoryStore)
	if !ok {
		return nil
	}
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	var out []Contribution
	for _, c := range mem.contributions {
		if c.CampaignID == campaignID {
			out = append(out, c)
		}
	}
	return out
}
