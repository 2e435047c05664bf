package datasync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/pkg/options"
)

func staticToken(token string) core.TokenProvider {
	return core.TokenProviderFunc(func(ctx context.Context) (string, error) {
		return token, nil
	})
}

func testPayload(ts time.Time) core.CanonicalPayload {
	return core.CanonicalPayload{
		DriverID:  "drv-1",
		VehicleID: "veh-1",
		Timestamp: ts,
		DataType:  core.DataTypeEngine,
		Fields:    map[string]any{"speed_mph": 42.0},
	}
}

func testOptions(cloudURL, fleetURL string) *options.SyncOptions {
	opts := options.NewSyncOptions()
	opts.CloudEndpoint = cloudURL
	opts.CloudEnabled = cloudURL != ""
	opts.FleetEndpoint = fleetURL
	opts.FleetEnabled = fleetURL != ""
	opts.BackoffBase = 5 * time.Millisecond
	opts.RequestTimeout = 2 * time.Second
	return opts
}

func resultFor(t *testing.T, results []Result, destination string) Result {
	t.Helper()
	for _, r := range results {
		if r.Destination == destination {
			return r
		}
	}
	t.Fatalf("no result for destination %q in %+v", destination, results)
	return Result{}
}

func TestSendDeliversToBothDestinations(t *testing.T) {
	var cloudBodies, fleetCalls atomic.Int32

	cloud := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("cloud destination must receive a JSON array: %v", err)
		}
		if len(batch) != 2 {
			t.Errorf("cloud batch size = %d, want 2", len(batch))
		}
		if got := r.Header.Get("Authorization"); got != "Bearer cloud-token" {
			t.Errorf("Authorization = %q", got)
		}
		cloudBodies.Add(1)
	}))
	defer cloud.Close()

	fleet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var single map[string]any
		if err := json.NewDecoder(r.Body).Decode(&single); err != nil {
			t.Errorf("fleet destination must receive single objects: %v", err)
		}
		fleetCalls.Add(1)
	}))
	defer fleet.Close()

	p := New(testOptions(cloud.URL, fleet.URL), staticToken("cloud-token"), staticToken("fleet-token"))

	now := time.Now()
	results, err := p.Send(context.Background(), testPayload(now), testPayload(now.Add(time.Second)))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if r := resultFor(t, results, DestinationCloud); r.Status != StatusDelivered || r.Delivered != 2 {
		t.Errorf("cloud result = %+v", r)
	}
	if r := resultFor(t, results, DestinationFleet); r.Status != StatusDelivered || r.Delivered != 2 {
		t.Errorf("fleet result = %+v", r)
	}
	if cloudBodies.Load() != 1 {
		t.Errorf("cloud requests = %d, want 1 batch", cloudBodies.Load())
	}
	if fleetCalls.Load() != 2 {
		t.Errorf("fleet requests = %d, want 2 sequential", fleetCalls.Load())
	}
}

func TestSendRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}))
	defer srv.Close()

	p := New(testOptions(srv.URL, ""), staticToken("tok"), staticToken("tok"))

	results, err := p.Send(context.Background(), testPayload(time.Now()))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if r := resultFor(t, results, DestinationCloud); r.Status != StatusDelivered {
		t.Errorf("expected success on third attempt, got %+v", r)
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}
}

func TestSendStopsAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New(testOptions(srv.URL, ""), staticToken("tok"), staticToken("tok"))

	results, err := p.Send(context.Background(), testPayload(time.Now()))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	r := resultFor(t, results, DestinationCloud)
	if r.Status != StatusFailed || r.Failed != 1 {
		t.Errorf("result = %+v, want failed", r)
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want exactly MaxAttempts", calls.Load())
	}
}

func TestSendAuthFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := New(testOptions(srv.URL, ""), staticToken("expired"), staticToken("tok"))

	results, err := p.Send(context.Background(), testPayload(time.Now()))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	r := resultFor(t, results, DestinationCloud)
	if r.Status != StatusFailed || !errors.Is(r.Err, ErrUnauthorized) {
		t.Errorf("result = %+v, want ErrUnauthorized", r)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts = %d, auth failures must not be retried", calls.Load())
	}
}

func TestSendMissingTokenShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	p := New(testOptions(srv.URL, ""), staticToken(""), staticToken("tok"))

	results, err := p.Send(context.Background(), testPayload(time.Now()))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	r := resultFor(t, results, DestinationCloud)
	if !errors.Is(r.Err, ErrUnauthorized) {
		t.Errorf("result = %+v, want ErrUnauthorized", r)
	}
	if calls.Load() != 0 {
		t.Errorf("no request may be made without a credential, got %d", calls.Load())
	}
}

func TestSendDisabledDestinationSkipsIO(t *testing.T) {
	fleet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer fleet.Close()

	opts := testOptions("http://127.0.0.1:1/unreachable", fleet.URL)
	opts.CloudEnabled = false

	p := New(opts, staticToken("tok"), staticToken("tok"))

	results, err := p.Send(context.Background(), testPayload(time.Now()))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if r := resultFor(t, results, DestinationCloud); r.Status != StatusDisabled {
		t.Errorf("cloud result = %+v, want disabled", r)
	}
	if r := resultFor(t, results, DestinationFleet); r.Status != StatusDelivered {
		t.Errorf("fleet result = %+v, want delivered", r)
	}
}

func TestSendValidatesBeforeAnyIO(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	p := New(testOptions(srv.URL, srv.URL), staticToken("tok"), staticToken("tok"))

	bad := testPayload(time.Now())
	bad.DriverID = ""
	if _, err := p.Send(context.Background(), testPayload(time.Now()), bad); err == nil {
		t.Fatal("expected validation error")
	}

	if _, err := p.Send(context.Background()); err == nil {
		t.Fatal("expected error for empty submission")
	}

	oversize := make([]core.CanonicalPayload, 51)
	for i := range oversize {
		oversize[i] = testPayload(time.Now())
	}
	if _, err := p.Send(context.Background(), oversize...); err == nil {
		t.Fatal("expected error for oversize submission")
	}

	if calls.Load() != 0 {
		t.Errorf("rejected submissions must not reach the network, got %d requests", calls.Load())
	}
}

func TestSendFleetPartialFailure(t *testing.T) {
	var calls atomic.Int32
	fleet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Second record is permanently rejected.
		if calls.Add(1) == 2 {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
	}))
	defer fleet.Close()

	p := New(testOptions("", fleet.URL), staticToken("tok"), staticToken("tok"))

	now := time.Now()
	results, err := p.Send(context.Background(), testPayload(now), testPayload(now.Add(time.Second)), testPayload(now.Add(2*time.Second)))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	r := resultFor(t, results, DestinationFleet)
	if r.Status != StatusFailed || r.Delivered != 2 || r.Failed != 1 {
		t.Errorf("result = %+v, want 2 delivered / 1 failed", r)
	}
	if !errors.Is(r.Err, ErrRejected) {
		t.Errorf("Err = %v, want ErrRejected", r.Err)
	}
}

func TestRetryPolicyDelayGrowth(t *testing.T) {
	p := retryPolicy{MaxAttempts: 4, Base: time.Second, Multiplier: 2}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := p.delay(i + 1); got != w {
			t.Errorf("delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoffHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	opts := testOptions(srv.URL, "")
	opts.BackoffBase = 10 * time.Second

	p := New(opts, staticToken("tok"), staticToken("tok"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results, err := p.Send(ctx, testPayload(time.Now()))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v, backoff did not honor the context", elapsed)
	}

	r := resultFor(t, results, DestinationCloud)
	if r.Status != StatusFailed || !errors.Is(r.Err, context.Canceled) {
		t.Errorf("result = %+v, want context.Canceled failure", r)
	}
}
