package core

import (
	"time"
)

// DutyStatus is the driver's current regulatory activity category.
// Exactly one status is active for a driver at any instant.
type DutyStatus string

const (
	StatusOffDuty            DutyStatus = "offDuty"
	StatusOnDuty             DutyStatus = "onDuty"
	StatusDriving            DutyStatus = "driving"
	StatusSleeperBerth       DutyStatus = "sleeperBerth"
	StatusPersonalConveyance DutyStatus = "personalConveyance"
	StatusYardMove           DutyStatus = "yardMove"
)

// IsActive reports whether the status accrues on-duty time and is subject to
// violation alerting.
func (s DutyStatus) IsActive() bool {
	return s == StatusDriving || s == StatusOnDuty || s == StatusYardMove
}

// IsRest reports whether the status qualifies as rest for break and restart
// accumulation. Personal conveyance is off-duty driving and therefore does
// not qualify.
func (s DutyStatus) IsRest() bool {
	return s == StatusOffDuty || s == StatusSleeperBerth
}

// Valid reports whether s is one of the known duty statuses.
func (s DutyStatus) Valid() bool {
	switch s {
	case StatusOffDuty, StatusOnDuty, StatusDriving, StatusSleeperBerth,
		StatusPersonalConveyance, StatusYardMove:
		return true
	}
	return false
}

// StatusEvent is one entry in a driver's append-only duty-status log.
// The most recent event with a zero EndTime is the active period.
// Once Certified is set the owning store treats the event as immutable;
// nothing in this module ever mutates a certified event.
type StatusEvent struct {
	DriverID  string     `json:"driverId"`
	Status    DutyStatus `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime,omitzero"`
	Certified bool       `json:"certified"`
}

// Active reports whether the event is the open period.
func (e StatusEvent) Active() bool {
	return e.EndTime.IsZero()
}

// ClampedEnd returns the event's end time, bounded by asOf for the open period.
func (e StatusEvent) ClampedEnd(asOf time.Time) time.Time {
	if e.Active() || e.EndTime.After(asOf) {
		return asOf
	}
	return e.EndTime
}

// ViolationAlert is raised by the violation detector when a remaining-time
// clock crosses a threshold bucket. ThresholdKey uniquely identifies a
// (kind, bucket) pair; at most one alert per key is raised per duty period.
type ViolationAlert struct {
	DriverID         string        `json:"driverId"`
	Kind             string        `json:"kind"`
	RemainingAtAlert time.Duration `json:"remainingAtAlert"`
	ThresholdKey     string        `json:"thresholdKey"`
}
