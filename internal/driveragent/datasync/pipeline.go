// Package datasync replicates canonical telemetry payloads to two
// independent backend destinations with per-destination retry, backoff and
// outcome reporting. Delivery is at-least-once per destination; payloads
// carry a stable (driverId, dataType, timestamp) identity the backends use
// for deduplication.
package datasync

import (
	"context"
	"fmt"
	"sync"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/pkg/log"
	"github.com/trucklink-io/trucklink/pkg/options"
)

// Well-known destination names.
const (
	DestinationCloud = "cloud"
	DestinationFleet = "fleet"
)

// Pipeline fans one submission out to every configured destination.
// A failure on one destination never blocks or rolls back the other.
type Pipeline struct {
	destinations []Destination
	batchSize    int
	logger       log.Logger
}

// New builds the standard dual-destination pipeline from configuration:
// the cloud ingest endpoint (batch capable) and the fleet backend
// (single-record submission). Each destination resolves its own credential.
func New(opts *options.SyncOptions, cloudTokens, fleetTokens core.TokenProvider) *Pipeline {
	policy := retryPolicy{
		MaxAttempts: opts.MaxAttempts,
		Base:        opts.BackoffBase,
		Multiplier:  opts.BackoffMultiplier,
	}

	return &Pipeline{
		destinations: []Destination{
			newHTTPDestination(DestinationCloud, opts.CloudEndpoint, opts.CloudEnabled, true, opts.RequestTimeout, cloudTokens, policy),
			newHTTPDestination(DestinationFleet, opts.FleetEndpoint, opts.FleetEnabled, false, opts.RequestTimeout, fleetTokens, policy),
		},
		batchSize: opts.BatchSize,
		logger:    log.WithName("datasync"),
	}
}

// Send replicates the payloads to every destination and reports one Result
// per destination, in construction order.
//
// Payload validation happens before any network attempt: an invalid payload
// fails the whole submission immediately and is never retried.
func (p *Pipeline) Send(ctx context.Context, payloads ...core.CanonicalPayload) ([]Result, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("empty submission")
	}
	if len(payloads) > p.batchSize {
		return nil, fmt.Errorf("submission of %d payloads exceeds batch size %d", len(payloads), p.batchSize)
	}
	for i := range payloads {
		if err := payloads[i].Validate(); err != nil {
			return nil, fmt.Errorf("payload %d invalid: %w", i, err)
		}
	}

	results := make([]Result, len(p.destinations))

	var wg sync.WaitGroup
	for i, dest := range p.destinations {
		wg.Add(1)
		go func(i int, dest Destination) {
			defer wg.Done()
			results[i] = dest.Deliver(ctx, payloads)
		}(i, dest)
	}
	wg.Wait()

	for _, r := range results {
		switch r.Status {
		case StatusFailed:
			p.logger.Error(r.Err, "Replication failed", "destination", r.Destination, "failed", r.Failed, "delivered", r.Delivered)
		case StatusDelivered:
			p.logger.Debug("Replication complete", "destination", r.Destination, "delivered", r.Delivered)
		}
	}

	return results, nil
}
