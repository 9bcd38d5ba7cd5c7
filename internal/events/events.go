// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

// Package events carries reader actions from the HTTP surface to the rating
// deriver over a watermill router.
//
// With transport "gochannel" publisher and subscriber share one in-process
// pub/sub. With "nats" both sides connect to an external NATS server through
// watermill-nats and the consumer joins a queue group so several instances
// share the stream.
//
// Router middleware, outermost first:
//
//	forgetOnFailure -> Deduplicator -> Retry -> Recoverer -> handler
//
// A message that still fails after the retries has its dedup key forgotten
// so the broker's redelivery is processed instead of dropped.
package events

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/blogrec/internal/recommend"
)

// SchemaVersion is the current payload version.
const SchemaVersion = 1

// Metadata keys set on every action message.
const (
	MetadataDedupKey      = "dedup_key"
	MetadataCorrelationID = "correlation_id"
	MetadataAction        = "action"
	MetadataUserID        = "user_id"
)

// ActionPayload is the JSON body of an action message.
type ActionPayload struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	Action        string    `json:"action"`
	UserID        int       `json:"user_id"`
	ItemID        int       `json:"item_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Event converts the payload back to a domain action.
func (p *ActionPayload) Event() recommend.ActionEvent {
	return recommend.ActionEvent{
		Action:     recommend.Action(p.Action),
		UserID:     p.UserID,
		ItemID:     p.ItemID,
		OccurredAt: p.OccurredAt,
	}
}

// DedupKey identifies an action independent of delivery. Repeating the same
// action on the same post cannot change the ledger, so the key ignores the
// timestamp.
func DedupKey(ev *recommend.ActionEvent) string {
	return string(ev.Action) + ":" + strconv.Itoa(ev.UserID) + ":" + strconv.Itoa(ev.ItemID)
}

// EncodeAction builds a watermill message for ev.
//
//nolint:gocritic // hugeParam: ev passed by value for immutability
func EncodeAction(ev recommend.ActionEvent) (*message.Message, error) {
	p := ActionPayload{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.NewString(),
		Action:        string(ev.Action),
		UserID:        ev.UserID,
		ItemID:        ev.ItemID,
		OccurredAt:    ev.OccurredAt,
	}
	data, err := json.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("marshal action: %w", err)
	}

	msg := message.NewMessage(p.EventID, data)
	msg.Metadata.Set(MetadataDedupKey, DedupKey(&ev))
	msg.Metadata.Set(MetadataAction, p.Action)
	msg.Metadata.Set(MetadataUserID, strconv.Itoa(p.UserID))
	return msg, nil
}

// DecodeAction parses an action message body.
func DecodeAction(msg *message.Message) (*ActionPayload, error) {
	var p ActionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal action %s: %w", msg.UUID, err)
	}
	if p.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("action %s has unsupported schema version %d", msg.UUID, p.SchemaVersion)
	}
	return &p, nil
}
