package datasync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/internal/pkg/metrics"
	"github.com/trucklink-io/trucklink/pkg/log"
)

// Sentinel errors classifying delivery failures.
var (
	// ErrUnauthorized: missing or rejected credential. Not retried within the
	// current submission; the caller refreshes the token and re-invokes.
	ErrUnauthorized = errors.New("destination rejected credentials")

	// ErrRejected: the destination refused the payload (4xx other than auth).
	// Retrying an identical request cannot succeed.
	ErrRejected = errors.New("destination rejected payload")
)

// Destination delivers canonical payloads to one backend.
type Destination interface {
	Name() string
	Enabled() bool

	// Deliver submits the payloads, applying the destination's retry policy.
	// It never blocks past context cancellation.
	Deliver(ctx context.Context, payloads []core.CanonicalPayload) Result
}

// retryPolicy is the bounded exponential backoff applied per delivery.
type retryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Multiplier  float64
}

// delay returns the sleep before the attempt following `attempt` (1-based):
// base * multiplier^(attempt-1).
func (p retryPolicy) delay(attempt int) time.Duration {
	d := float64(p.Base)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// httpDestination posts JSON payloads to a single HTTP endpoint with a
// bearer credential resolved immediately before every attempt.
type httpDestination struct {
	name     string
	endpoint string
	enabled  bool

	// batch selects the delivery mode: one request carrying a JSON array,
	// or one request per payload.
	batch bool

	client *http.Client
	tokens core.TokenProvider
	policy retryPolicy
	logger log.Logger
}

func newHTTPDestination(name, endpoint string, enabled, batch bool, timeout time.Duration, tokens core.TokenProvider, policy retryPolicy) *httpDestination {
	return &httpDestination{
		name:     name,
		endpoint: endpoint,
		enabled:  enabled,
		batch:    batch,
		client:   &http.Client{Timeout: timeout},
		tokens:   tokens,
		policy:   policy,
		logger:   log.WithName("datasync").WithValues("destination", name),
	}
}

func (d *httpDestination) Name() string  { return d.name }
func (d *httpDestination) Enabled() bool { return d.enabled }

func (d *httpDestination) Deliver(ctx context.Context, payloads []core.CanonicalPayload) Result {
	if !d.enabled {
		return Result{Destination: d.name, Status: StatusDisabled}
	}

	if d.batch {
		return d.deliverBatch(ctx, payloads)
	}
	return d.deliverSequential(ctx, payloads)
}

// deliverBatch submits the whole slice as one JSON array.
func (d *httpDestination) deliverBatch(ctx context.Context, payloads []core.CanonicalPayload) Result {
	body, err := json.Marshal(payloads)
	if err != nil {
		return Result{Destination: d.name, Status: StatusFailed, Failed: len(payloads), Err: err}
	}

	if err := d.attemptWithRetry(ctx, body); err != nil {
		return Result{Destination: d.name, Status: StatusFailed, Failed: len(payloads), Err: err}
	}
	return Result{Destination: d.name, Status: StatusDelivered, Delivered: len(payloads)}
}

// deliverSequential submits payloads one request at a time, in submission
// order. The aggregate is a success only when every delivery succeeded;
// otherwise the failure count is reported.
func (d *httpDestination) deliverSequential(ctx context.Context, payloads []core.CanonicalPayload) Result {
	res := Result{Destination: d.name}
	for i := range payloads {
		body, err := json.Marshal(&payloads[i])
		if err == nil {
			err = d.attemptWithRetry(ctx, body)
		}
		if err != nil {
			res.Failed++
			res.Err = err
			continue
		}
		res.Delivered++
	}

	if res.Failed > 0 {
		res.Status = StatusFailed
	} else {
		res.Status = StatusDelivered
	}
	return res
}

// attemptWithRetry is an explicit bounded retry loop. The credential is
// re-resolved before every attempt; auth failures and payload rejections
// abort the remaining attempts; the backoff sleep honors cancellation.
func (d *httpDestination) attemptWithRetry(ctx context.Context, body []byte) error {
	var lastErr error

	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		token, err := d.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		if token == "" {
			return fmt.Errorf("%w: no token available", ErrUnauthorized)
		}

		lastErr = d.post(ctx, token, body)
		if lastErr == nil {
			metrics.SyncAttemptsTotal.WithLabelValues(d.name, "success").Inc()
			return nil
		}
		metrics.SyncAttemptsTotal.WithLabelValues(d.name, "failed").Inc()

		if errors.Is(lastErr, ErrUnauthorized) || errors.Is(lastErr, ErrRejected) {
			return lastErr
		}
		if attempt == d.policy.MaxAttempts {
			break
		}

		delay := d.policy.delay(attempt)
		d.logger.Warn("Delivery attempt failed, backing off",
			"attempt", attempt, "delay", delay, "cause", lastErr)
		metrics.SyncBackoffSeconds.WithLabelValues(d.name).Observe(delay.Seconds())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", d.policy.MaxAttempts, lastErr)
}

// post performs one bounded HTTP attempt and classifies the response.
func (d *httpDestination) post(ctx context.Context, token string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.client.Do(req)
	if err != nil {
		// Timeouts and transport failures are retryable.
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("transient status %d", resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
}
