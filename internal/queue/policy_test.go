// policy_test.go: Retry and drop policy tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package queue

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecycle(t *testing.T) {
	tests := []struct {
		name        string
		failed      []Item
		maxRetries  int
		wantRetry   []Item
		wantDropped []Item
	}{
		{
			name:       "fresh items are retried",
			failed:     []Item{{Payload: 1}, {Payload: 2}},
			maxRetries: 3,
			wantRetry:  []Item{{Payload: 1, RetryCount: 1}, {Payload: 2, RetryCount: 1}},
		},
		{
			name:        "item at the last attempt is dropped",
			failed:      []Item{{Payload: 1, RetryCount: 2}},
			maxRetries:  3,
			wantDropped: []Item{{Payload: 1, RetryCount: 2}},
		},
		{
			name:        "mixed budgets",
			failed:      []Item{{Payload: 1, RetryCount: 1}, {Payload: 2, RetryCount: 2}, {Payload: 3}},
			maxRetries:  3,
			wantRetry:   []Item{{Payload: 1, RetryCount: 2}, {Payload: 3, RetryCount: 1}},
			wantDropped: []Item{{Payload: 2, RetryCount: 2}},
		},
		{
			name:        "single attempt budget drops immediately",
			failed:      []Item{{Payload: 1}},
			maxRetries:  1,
			wantDropped: []Item{{Payload: 1}},
		},
		{
			name:       "nothing failed",
			maxRetries: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, dropped := Recycle(tt.failed, tt.maxRetries)
			if diff := cmp.Diff(tt.wantRetry, retry); diff != "" {
				t.Errorf("retry mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantDropped, dropped); diff != "" {
				t.Errorf("dropped mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRecycle_DoesNotMutateInput(t *testing.T) {
	failed := []Item{{Payload: "x", RetryCount: 0}}
	Recycle(failed, 3)
	if failed[0].RetryCount != 0 {
		t.Errorf("input RetryCount changed to %d", failed[0].RetryCount)
	}
}

func TestFailurePolicy_FailedItems(t *testing.T) {
	a := Item{Destination: "a", Payload: 1}
	b := Item{Destination: "b", Payload: 2}
	slice := []Item{a, b}
	results := []groupResult{
		{group: Group{Destination: "a", Items: []Item{a}}, err: errors.New("boom")},
		{group: Group{Destination: "b", Items: []Item{b}}},
	}

	if got := RecycleSlice.failedItems(slice, results); !cmp.Equal(got, slice) {
		t.Errorf("RecycleSlice failed items = %+v, want whole slice", got)
	}
	if got := RecycleFailedGroups.failedItems(slice, results); !cmp.Equal(got, []Item{a}) {
		t.Errorf("RecycleFailedGroups failed items = %+v, want only group a", got)
	}

	ok := []groupResult{{group: Group{Destination: "a", Items: []Item{a}}}}
	if got := RecycleSlice.failedItems(slice, ok); got != nil {
		t.Errorf("successful cycle returned failed items %+v", got)
	}
}
