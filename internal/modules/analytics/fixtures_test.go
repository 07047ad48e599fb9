package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/clients/analytics"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
)

// fakeFetcher answers queries from canned bodies. A query listed in fail
// returns a transport error; gate, when set, decides whether to block.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[domain.QueryName]string
	fail   map[domain.QueryName]int
	gate   func(desc domain.RequestDescriptor) <-chan struct{}
	calls  []domain.RequestDescriptor
	body   func(desc domain.RequestDescriptor) (string, bool)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: make(map[domain.QueryName]string),
		fail:   make(map[domain.QueryName]int),
	}
}

func (f *fakeFetcher) Query(ctx context.Context, desc domain.RequestDescriptor) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, desc)
	gate := f.gate
	status, failing := f.fail[desc.Query]
	body, ok := f.bodies[desc.Query]
	dynamic := f.body
	f.mu.Unlock()

	if gate != nil {
		if ch := gate(desc); ch != nil {
			<-ch
		}
	}
	if failing {
		return nil, &analytics.TransportError{
			Query:      string(desc.Query),
			StatusCode: status,
			Message:    "service unavailable",
		}
	}
	if dynamic != nil {
		if b, ok := dynamic(desc); ok {
			return json.RawMessage(b), nil
		}
	}
	if !ok {
		body = "[]"
	}
	return json.RawMessage(body), nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// envelopeFor returns a minimal valid envelope for any query.
func envelopeFor(name domain.QueryName, code string) string {
	records := "[]"
	switch name {
	case domain.QueryBalanceHistory, domain.QueryBalanceHistoryByAccount:
		records = `[{"date":"2024-01-01","balance":1000}]`
	case domain.QueryDailyPnL, domain.QueryDailyPnLByAccount:
		records = `[{"date":"2024-01-01","pnl":25.5,"trades":3}]`
	case domain.QueryFunding, domain.QueryFundingByAccount:
		records = `[{"date":"2024-01-02","amount":500,"kind":"deposit"}]`
	}
	return fmt.Sprintf(`{"data":%s,"currency":%q}`, records, code)
}
