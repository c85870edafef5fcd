// event.go: Business event records
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package logsiclewriter

import (
	"time"

	goerrors "github.com/agilira/go-errors"
)

// EventOptions describes where an event goes and what it carries.
// ChannelID or ChannelName is required.
type EventOptions struct {
	ChannelID   string
	ChannelName string
	Tags        []string
	Metadata    map[string]any
	Timestamp   time.Time
}

// EventEntry is the body posted to /ingest/event
type EventEntry struct {
	ProjectID string         `json:"project_id"`
	Channel   string         `json:"channel,omitempty"`
	ChannelID string         `json:"channel_id,omitempty"`
	Name      string         `json:"name"`
	Tags      []string       `json:"tags"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp string         `json:"timestamp"`
}

// EventSender queues events on its client
type EventSender struct {
	client *Client
}

// Send queues an event. It fails only when no channel is given.
func (e *EventSender) Send(name string, opts EventOptions) error {
	if opts.ChannelID == "" && opts.ChannelName == "" {
		return goerrors.New(ErrCodeMissingChannel, "either channel ID or channel name must be provided")
	}

	entry := EventEntry{
		ProjectID: e.client.config.ProjectID,
		Channel:   opts.ChannelName,
		ChannelID: opts.ChannelID,
		Name:      name,
		Tags:      opts.Tags,
		Metadata:  opts.Metadata,
		Timestamp: formatTimestamp(opts.Timestamp),
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}

	e.client.Submit(DestinationEvent, entry)
	return nil
}
