package usage

import (
	"context"
	"sync"
	"testing"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore mirrors the conditional increment of GormStore in memory.
type memStore struct {
	mu    sync.Mutex
	tier  string
	used  map[Kind]int
	limit map[Kind]int
	edits map[string]int
}

func newMemStore(tier string) *memStore {
	l := plans.DefaultTable().For(tier)
	return &memStore{
		tier:  tier,
		used:  map[Kind]int{},
		limit: map[Kind]int{KindRequests: l.Requests, KindImages: l.Images},
		edits: map[string]int{},
	}
}

func (m *memStore) Consume(_ context.Context, _ uint, kind Kind) (Counter, string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := !plans.Exceeded(m.used[kind], m.limit[kind])
	if ok {
		m.used[kind]++
	}
	return Counter{Used: m.used[kind], Limit: m.limit[kind]}, m.tier, ok, nil
}

func (m *memStore) Usage(context.Context, uint) (Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Usage{
		Tier:     m.tier,
		Requests: Counter{Used: m.used[KindRequests], Limit: m.limit[KindRequests]},
		Images:   Counter{Used: m.used[KindImages], Limit: m.limit[KindImages]},
	}, nil
}

func (m *memStore) ConsumeEdit(_ context.Context, _ uint, websiteID string, limit int) (Counter, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := !plans.Exceeded(m.edits[websiteID], limit)
	if ok {
		m.edits[websiteID]++
	}
	return Counter{Used: m.edits[websiteID], Limit: limit}, ok, nil
}

func TestFreeTierStopsAtThreeRequests(t *testing.T) {
	g := NewGate(newMemStore(plans.TierFree), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tier, err := g.Check(ctx, 7, KindRequests)
		require.NoError(t, err)
		assert.Equal(t, plans.TierFree, tier)
	}

	_, err := g.Check(ctx, 7, KindRequests)
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, KindRequests, qe.Kind)
	assert.Equal(t, 3, qe.Used)
	assert.Equal(t, 3, qe.Limit)
	assert.Equal(t, plans.TierFree, qe.Tier)
}

func TestConcurrentChecksNeverExceedLimit(t *testing.T) {
	store := newMemStore(plans.TierFree)
	g := NewGate(store, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Check(context.Background(), 1, KindImages); err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, allowed)
	u, err := g.Usage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, u.Images.Used)
}

func TestBusinessTierIsUnlimited(t *testing.T) {
	g := NewGate(newMemStore(plans.TierBusiness), nil)
	for i := 0; i < 100; i++ {
		_, err := g.Check(context.Background(), 2, KindRequests)
		require.NoError(t, err)
	}
}

func TestAnonymousCallers(t *testing.T) {
	g := NewGate(newMemStore(plans.TierFree), nil)
	ctx := context.Background()

	tier, err := g.Check(ctx, 0, KindRequests)
	require.NoError(t, err)
	assert.Equal(t, plans.TierFree, tier)

	_, err = g.Check(ctx, 0, KindImages)
	assert.ErrorIs(t, err, ErrAnonymous)
	assert.ErrorIs(t, g.CheckEdit(ctx, 0, plans.TierFree, "w1"), ErrAnonymous)
	_, err = g.Usage(ctx, 0)
	assert.ErrorIs(t, err, ErrAnonymous)
}

func TestEditQuotaIsPerWebsite(t *testing.T) {
	g := NewGate(newMemStore(plans.TierFree), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, g.CheckEdit(ctx, 1, plans.TierFree, "a"))
	}
	var qe *QuotaExceededError
	require.ErrorAs(t, g.CheckEdit(ctx, 1, plans.TierFree, "a"), &qe)
	assert.Equal(t, KindEdits, qe.Kind)

	require.NoError(t, g.CheckEdit(ctx, 1, plans.TierFree, "b"))
	for i := 0; i < 10; i++ {
		require.NoError(t, g.CheckEdit(ctx, 1, plans.TierPro, "c"))
	}
}
