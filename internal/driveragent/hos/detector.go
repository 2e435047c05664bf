package hos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trucklink-io/trucklink/internal/driveragent/core"
	"github.com/trucklink-io/trucklink/internal/pkg/metrics"
	"github.com/trucklink-io/trucklink/pkg/log"
)

// Alert kinds, one per monitored clock.
const (
	KindDriving = "11_hour"
	KindShift   = "14_hour"
	KindCycle   = "70_hour"
)

// threshold is one alerting bucket. Buckets are ordered tightest-first;
// bucketFor picks the tightest bucket the remaining value falls into.
type threshold struct {
	bound time.Duration
	label string
}

var buckets = []threshold{
	{0, "0m"},
	{5 * time.Minute, "5m"},
	{15 * time.Minute, "15m"},
	{30 * time.Minute, "30m"},
}

func bucketFor(remaining time.Duration) (threshold, bool) {
	for _, b := range buckets {
		if remaining <= b.bound {
			return b, true
		}
	}
	return threshold{}, false
}

// Detector polls the duty-status log on a fixed interval and raises each
// threshold-crossing alert at most once per duty period.
//
// One Detector instance serves one driver session; the consumed-key set is
// owned exclusively by that instance.
type Detector struct {
	driverID string
	limits   Limits
	interval time.Duration
	store    core.StatusStore
	notifier core.Notifier
	logger   log.Logger

	// now is a test seam; production instances use time.Now.
	now func() time.Time

	mu       sync.Mutex
	consumed map[string]struct{}
}

// NewDetector creates a violation detector for one driver.
func NewDetector(driverID string, limits Limits, interval time.Duration, store core.StatusStore, notifier core.Notifier) *Detector {
	return &Detector{
		driverID: driverID,
		limits:   limits,
		interval: interval,
		store:    store,
		notifier: notifier,
		logger:   log.WithName("detector").WithValues("driverID", driverID),
		now:      time.Now,
		consumed: make(map[string]struct{}),
	}
}

// Run drives the poll loop until the context is cancelled.
func (d *Detector) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("Violation detector started", "interval", d.interval)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Violation detector stopped")
			return nil
		case <-ticker.C:
			d.evaluate(ctx)
		}
	}
}

// evaluate runs one detector tick.
func (d *Detector) evaluate(ctx context.Context) {
	status, err := d.store.CurrentStatus(ctx, d.driverID)
	if err != nil {
		d.logger.Error(err, "Failed to fetch current duty status")
		return
	}

	// A rest status starts a new duty period: previously consumed buckets
	// may fire again in the next period.
	if status.IsRest() {
		d.resetPeriod()
		return
	}

	// Silent outside driving / on-duty (personal conveyance, yard move).
	if status != core.StatusDriving && status != core.StatusOnDuty {
		return
	}

	events, err := d.store.Events(ctx, d.driverID)
	if err != nil {
		d.logger.Error(err, "Failed to fetch status events")
		return
	}

	clocks := ComputeClocks(events, d.limits, d.now())

	d.check(ctx, KindDriving, clocks.DrivingRemaining)
	d.check(ctx, KindShift, clocks.ShiftRemaining)
	d.check(ctx, KindCycle, clocks.CycleRemaining)
}

// check raises at most one alert for the (kind, bucket) pair the remaining
// value falls into. The key is marked consumed before delivery: a dropped
// alert near a threshold is an accepted risk, a duplicate is not.
func (d *Detector) check(ctx context.Context, kind string, remaining time.Duration) {
	bucket, ok := bucketFor(remaining)
	if !ok {
		return
	}

	key := fmt.Sprintf("%s:%s", kind, bucket.label)

	d.mu.Lock()
	if _, seen := d.consumed[key]; seen {
		d.mu.Unlock()
		return
	}
	d.consumed[key] = struct{}{}
	d.mu.Unlock()

	alert := core.ViolationAlert{
		DriverID:         d.driverID,
		Kind:             kind,
		RemainingAtAlert: remaining,
		ThresholdKey:     key,
	}

	metrics.ViolationAlertsTotal.WithLabelValues(kind, bucket.label).Inc()
	d.logger.Warn("HOS threshold crossed", "kind", kind, "remaining", remaining, "thresholdKey", key)

	// Fire-and-forget: the sink owns delivery failures, the next tick will
	// not re-fire this bucket.
	if err := d.notifier.SendViolationAlert(ctx, alert); err != nil {
		d.logger.Error(err, "Alert delivery failed", "thresholdKey", key)
	}
}

// resetPeriod clears the consumed set at the start of a new duty period.
func (d *Detector) resetPeriod() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.consumed) > 0 {
		d.logger.Debug("Duty period ended, clearing consumed thresholds", "count", len(d.consumed))
		d.consumed = make(map[string]struct{})
	}
}
