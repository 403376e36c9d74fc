// Package billing holds the pure session billing math. Every function is
// deterministic with no I/O so racing finalize paths can recompute charges
// from persisted state and always agree.
package billing

import "time"

// ComputeElapsedSeconds returns the usage span in whole seconds between start
// and end. A missing timestamp or end <= start yields 0. When hardStopEnabled
// and a positive scheduled duration are set, the result is capped at
// durationMinutes*60.
func ComputeElapsedSeconds(start, end *time.Time, durationMinutes int, hardStopEnabled bool) int {
	if start == nil || end == nil {
		return 0
	}
	if !end.After(*start) {
		return 0
	}
	raw := int(end.Sub(*start) / time.Second)
	if hardStopEnabled && durationMinutes > 0 {
		if limit := durationMinutes * 60; raw > limit {
			return limit
		}
	}
	return raw
}

// ComputeBillableSeconds deducts the flat grace buffer from elapsed time.
// Never negative.
func ComputeBillableSeconds(elapsedSeconds, graceSeconds int) int {
	if graceSeconds < 0 {
		graceSeconds = 0
	}
	billable := elapsedSeconds - graceSeconds
	if billable < 0 {
		return 0
	}
	return billable
}

// ComputeBillableMinutes rounds billable seconds up to whole minutes. Partial
// minutes always round up.
func ComputeBillableMinutes(billableSeconds int) int {
	if billableSeconds <= 0 {
		return 0
	}
	return (billableSeconds + 59) / 60
}
