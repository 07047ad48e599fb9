package analytics

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/clients/analytics"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/filters"
)

func TestRunAll_SettlesEveryQuery(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.fail[domain.QueryFunding] = 503
	fetcher.fail[domain.QueryStreaks] = 0

	reqs := AnalyticsCatalog().Build(filters.New(testNow()), "USD", domain.DefaultCurrencyPreferences(), nil)
	outcomes := NewOrchestrator(fetcher, 0, zerolog.Nop()).RunAll(context.Background(), reqs)

	require.Len(t, outcomes, 18)
	assert.Equal(t, 18, fetcher.callCount())
	for name, o := range outcomes {
		assert.Equal(t, name, o.Query)
		switch name {
		case domain.QueryFunding:
			assert.False(t, o.OK())
			assert.Equal(t, 503, analytics.StatusCodeOf(o.Err))
		case domain.QueryStreaks:
			assert.False(t, o.OK())
		default:
			assert.True(t, o.OK(), name)
			assert.JSONEq(t, "[]", string(o.Payload))
		}
	}
}

func TestRunAll_AllFailing(t *testing.T) {
	fetcher := newFakeFetcher()
	for _, e := range AnalyticsCatalog() {
		fetcher.fail[e.Name] = 500
	}

	reqs := AnalyticsCatalog().Build(filters.New(testNow()), "USD", domain.DefaultCurrencyPreferences(), nil)

	done := make(chan map[domain.QueryName]Outcome, 1)
	go func() {
		done <- NewOrchestrator(fetcher, 4, zerolog.Nop()).RunAll(context.Background(), reqs)
	}()

	select {
	case outcomes := <-done:
		require.Len(t, outcomes, 18)
		for _, o := range outcomes {
			assert.Error(t, o.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunAll did not resolve")
	}
}

type concurrencyProbe struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (p *concurrencyProbe) Query(ctx context.Context, desc domain.RequestDescriptor) (json.RawMessage, error) {
	n := p.inFlight.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	p.inFlight.Add(-1)
	return json.RawMessage("[]"), nil
}

func TestRunAll_RespectsLimit(t *testing.T) {
	probe := &concurrencyProbe{}
	reqs := AnalyticsCatalog().Build(filters.New(testNow()), "USD", domain.DefaultCurrencyPreferences(), nil)

	outcomes := NewOrchestrator(probe, 3, zerolog.Nop()).RunAll(context.Background(), reqs)

	assert.Len(t, outcomes, 18)
	assert.LessOrEqual(t, probe.peak.Load(), int32(3))
}

type panickyFetcher struct{}

func (panickyFetcher) Query(ctx context.Context, desc domain.RequestDescriptor) (json.RawMessage, error) {
	if desc.Query == domain.QueryDrawdown {
		panic("decoder exploded")
	}
	return json.RawMessage("[]"), nil
}

func TestRunAll_RecoversPanics(t *testing.T) {
	reqs := AnalyticsCatalog().Build(filters.New(testNow()), "USD", domain.DefaultCurrencyPreferences(), nil)

	outcomes := NewOrchestrator(panickyFetcher{}, 0, zerolog.Nop()).RunAll(context.Background(), reqs)

	require.Len(t, outcomes, 18)
	assert.Error(t, outcomes[domain.QueryDrawdown].Err)
	assert.Contains(t, outcomes[domain.QueryDrawdown].Err.Error(), "decoder exploded")
	assert.NoError(t, outcomes[domain.QueryBalanceHistory].Err)
}
