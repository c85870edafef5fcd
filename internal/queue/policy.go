// policy.go: Retry and drop accounting for failed delivery cycles
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package queue

// FailurePolicy selects which items of a cycle are recycled when at least
// one destination group fails.
type FailurePolicy int

const (
	// RecycleSlice treats the whole slice as failed as soon as any group
	// fails, including items whose group was delivered.
	RecycleSlice FailurePolicy = iota

	// RecycleFailedGroups recycles only the items of groups that failed.
	RecycleFailedGroups
)

// String returns the policy name used in logs.
func (p FailurePolicy) String() string {
	switch p {
	case RecycleSlice:
		return "recycle_slice"
	case RecycleFailedGroups:
		return "recycle_failed_groups"
	default:
		return "unknown"
	}
}

// groupResult records the delivery outcome of one destination group.
type groupResult struct {
	group Group
	err   error
}

// failedItems applies the policy to the per-group results of a cycle and
// returns the items that must go through Recycle. A nil result means the
// cycle succeeded.
func (p FailurePolicy) failedItems(slice []Item, results []groupResult) []Item {
	anyFailed := false
	for _, r := range results {
		if r.err != nil {
			anyFailed = true
			break
		}
	}
	if !anyFailed {
		return nil
	}

	if p != RecycleFailedGroups {
		return slice
	}

	var failed []Item
	for _, r := range results {
		if r.err != nil {
			failed = append(failed, r.group.Items...)
		}
	}
	return failed
}

// Recycle splits failed items into those that get another attempt and those
// whose retry budget is spent. Each attempt counts against maxRetries, so an
// item already at maxRetries-1 is dropped rather than retried. Retried items
// are copies with RetryCount incremented once; the inputs are not modified.
func Recycle(failed []Item, maxRetries int) (retry, dropped []Item) {
	for _, item := range failed {
		if item.RetryCount+1 < maxRetries {
			next := item
			next.RetryCount++
			retry = append(retry, next)
			continue
		}
		dropped = append(dropped, item)
	}
	return retry, dropped
}
