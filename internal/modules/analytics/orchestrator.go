package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/domain"
)

// QueryFetcher executes one analytics request against the remote service.
type QueryFetcher interface {
	Query(ctx context.Context, desc domain.RequestDescriptor) (json.RawMessage, error)
}

// Outcome is the settled result of one query.
type Outcome struct {
	Query    domain.QueryName
	Payload  json.RawMessage
	Err      error
	Duration time.Duration
}

// OK reports whether the query succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Orchestrator issues a cycle's requests concurrently and waits for all of them.
type Orchestrator struct {
	fetcher QueryFetcher
	limit   int
	log     zerolog.Logger
}

// NewOrchestrator creates an orchestrator. limit caps in-flight requests;
// zero or less means no cap.
func NewOrchestrator(fetcher QueryFetcher, limit int, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		limit:   limit,
		log:     log.With().Str("component", "fetch_orchestrator").Logger(),
	}
}

// RunAll issues every request and returns once each has settled. A failed
// query never cancels the others: every task reports into the outcome map
// and returns nil to the group.
func (o *Orchestrator) RunAll(ctx context.Context, reqs []domain.RequestDescriptor) map[domain.QueryName]Outcome {
	var (
		mu       sync.Mutex
		outcomes = make(map[domain.QueryName]Outcome, len(reqs))
	)

	g := new(errgroup.Group)
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}

	for _, r := range reqs {
		req := r
		g.Go(func() error {
			outcome := o.run(ctx, req)
			mu.Lock()
			outcomes[req.Query] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (o *Orchestrator) run(ctx context.Context, req domain.RequestDescriptor) (outcome Outcome) {
	start := time.Now()
	outcome.Query = req.Query

	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Str("query", string(req.Query)).Msg("Query panicked")
			outcome.Payload = nil
			outcome.Err = fmt.Errorf("%s: panic: %v", req.Query, r)
		}
		outcome.Duration = time.Since(start)
	}()

	payload, err := o.fetcher.Query(ctx, req)
	if err != nil {
		o.log.Warn().Err(err).Str("query", string(req.Query)).Msg("Query failed")
		outcome.Err = err
		return outcome
	}

	o.log.Debug().Str("query", string(req.Query)).Int("bytes", len(payload)).Msg("Query settled")
	outcome.Payload = payload
	return outcome
}
