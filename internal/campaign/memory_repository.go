package campaign

import (
	"context"
	"sort"
	"sync"

	"github.com/chema/chema_ledger/internal/ledger"
)

type memoryRepository struct {
	mu        sync.RWMutex
	campaigns map[string]Campaign
}

// NewMemoryRepository builds an in-memory campaign store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{campaigns: make(map[string]Campaign)}
}

func (r *memoryRepository) Create(_ context.Context, c Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.campaigns[c.ID]; exists {
		return ledger.ErrConflict
	}
	r.campaigns[c.ID] = c
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.campaigns[id]
	if !ok {
		return Campaign{}, ledger.ErrCampaignNotFound
	}
	return c, nil
}

func (r *memoryRepository) ListByGroup(_ context.Context, groupID string) ([]Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Campaign
	for _, c := range r.campaigns {
		if c.GroupID == groupID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) SetBeneficiary(_ context.Context, id, beneficiaryID string) error {
	return r.mutate(id, func(c *Campaign) { c.BeneficiaryID = beneficiaryID })
}

func (r *memoryRepository) Close(_ context.Context, id string) error {
	return r.mutate(id, func(c *Campaign) { c.ContributionsOpen = false })
}

func (r *memoryRepository) MarkDisbursed(_ context.Context, id string) error {
	return r.mutate(id, func(c *Campaign) { c.FundsDisbursed = true })
}

func (r *memoryRepository) mutate(id string, fn func(c *Campaign)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return ledger.ErrCampaignNotFound
	}
	fn(&c)
	r.campaigns[id] = c
	return nil
}
