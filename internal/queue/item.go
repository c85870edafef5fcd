// item.go: Pending record buffer for the Logsicle delivery engine
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package queue

import (
	"time"

	"github.com/agilira/go-timecache"
)

// Item is one pending record waiting for delivery.
type Item struct {
	// Destination is the ingestion route the item is sent to.
	Destination string

	// Payload is the record body. The engine never inspects or mutates it.
	Payload any

	// EnqueuedAt is the submission time, kept for diagnostics only.
	EnqueuedAt time.Time

	// RetryCount is the number of failed cycles this item took part in.
	RetryCount int
}

// newItem stamps a fresh item with the cached wall clock.
func newItem(destination string, payload any) Item {
	return Item{
		Destination: destination,
		Payload:     payload,
		EnqueuedAt:  time.Unix(0, timecache.CachedTimeNano()),
	}
}

// Buffer is an ordered sequence of items in submission order.
// It is not safe for concurrent use; the Engine guards it.
type Buffer struct {
	items []Item
}

// Push appends a single item at the back.
func (b *Buffer) Push(item Item) {
	b.items = append(b.items, item)
}

// Append appends items at the back, preserving their order.
func (b *Buffer) Append(items ...Item) {
	b.items = append(b.items, items...)
}

// TakeFront removes and returns up to n of the oldest items.
func (b *Buffer) TakeFront(n int) []Item {
	if n <= 0 || len(b.items) == 0 {
		return nil
	}
	if n > len(b.items) {
		n = len(b.items)
	}

	slice := make([]Item, n)
	copy(slice, b.items[:n])

	// Zero the vacated prefix so payloads can be collected.
	clear(b.items[:n])
	b.items = b.items[n:]
	if len(b.items) == 0 {
		b.items = nil
	}
	return slice
}

// TakeAll removes and returns every item in the buffer.
func (b *Buffer) TakeAll() []Item {
	items := b.items
	b.items = nil
	return items
}

// Len returns the number of buffered items.
func (b *Buffer) Len() int {
	return len(b.items)
}

// Group is the run of items in a slice that share a destination.
type Group struct {
	Destination string
	Items       []Item
}

// Payloads returns the payloads of the group in order.
func (g Group) Payloads() []any {
	payloads := make([]any, len(g.Items))
	for i, item := range g.Items {
		payloads[i] = item.Payload
	}
	return payloads
}

// GroupByDestination partitions items by destination. Groups appear in the
// order their destination was first seen; items keep their relative order.
func GroupByDestination(items []Item) []Group {
	var groups []Group
	index := make(map[string]int)

	for _, item := range items {
		i, ok := index[item.Destination]
		if !ok {
			i = len(groups)
			index[item.Destination] = i
			groups = append(groups, Group{Destination: item.Destination})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}
