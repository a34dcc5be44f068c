// Package events defines the event envelope, the two domain event types
// currently in use, and the wire payload shapes they serialize to.
package events

import (
	"wormhole-tracker/pkg/ids"
	"wormhole-tracker/pkg/sigparse"
)

const (
	CharacterMovedEventType            = "character_moved"
	CharacterMovedSchemaVersion        = 1
	SystemSignaturesObservedEventType     = "system_signatures_observed"
	SystemSignaturesObservedSchemaVersion = 1
)

// Source tags where an event's facts came from.
type Source string

const (
	SourceEsi    Source = "esi"
	SourceManual Source = "manual"
	SourceImport Source = "import"
	SourceSync   Source = "sync"
)

func (s Source) Valid() bool {
	switch s {
	case SourceEsi, SourceManual, SourceImport, SourceSync:
		return true
	default:
		return false
	}
}

// Envelope is the immutable, durable record of one observed fact.
type Envelope struct {
	EventID                 string
	EventType                string
	SchemaVersion             int64
	StreamKey                 string
	OccurredAt                 ids.Timestamp
	RecordedAt                 ids.Timestamp
	AttributionCharacterID *ids.CharacterID
	Source                     Source
	PayloadJSON                string
}

// Record pairs an envelope with its assigned global sequence number.
type Record struct {
	GlobalSeq int64
	Envelope  Envelope
}

// CharacterMovedPayload is the wire shape of a character_moved event.
type CharacterMovedPayload struct {
	FromSystemID *ids.SolarSystemID `json:"from_system_id"`
	ToSystemID   ids.SolarSystemID  `json:"to_system_id"`
}

// SignatureEntryPayload is the wire shape of one signature within a
// system_signatures_observed event.
type SignatureEntryPayload struct {
	SignatureID string   `json:"signature_id"`
	Group       string   `json:"group"`
	SiteType    *string  `json:"site_type"`
	Name        *string  `json:"name"`
	ScanPercent *float64 `json:"scan_percent"`
}

// SystemSignaturesObservedPayload is the wire shape of a
// system_signatures_observed event.
type SystemSignaturesObservedPayload struct {
	SystemID   ids.SolarSystemID       `json:"system_id"`
	SnapshotID string                  `json:"snapshot_id"`
	Entries    []SignatureEntryPayload `json:"entries"`
}

// MovementEvent is the domain-level fact an ingestor produces.
type MovementEvent struct {
	CharacterID  ids.CharacterID
	FromSystemID *ids.SolarSystemID
	ToSystemID   ids.SolarSystemID
	ObservedAt   ids.Timestamp
	Source       Source
}

func (m MovementEvent) Payload() CharacterMovedPayload {
	return CharacterMovedPayload{FromSystemID: m.FromSystemID, ToSystemID: m.ToSystemID}
}

// SystemSignaturesObservedEvent is the domain-level fact recorded when a
// player pastes a scanner snapshot.
type SystemSignaturesObservedEvent struct {
	SystemID                 ids.SolarSystemID
	SnapshotID                string
	Entries                    []sigparse.Entry
	ObservedAt                 ids.Timestamp
	AttributionCharacterID *ids.CharacterID
	Source                     Source
}

func (s SystemSignaturesObservedEvent) Payload() SystemSignaturesObservedPayload {
	entries := make([]SignatureEntryPayload, len(s.Entries))
	for i, e := range s.Entries {
		entries[i] = SignatureEntryPayload{
			SignatureID: e.SignatureID,
			Group:       e.Group,
			SiteType:    e.SiteType,
			Name:        e.Name,
			ScanPercent: e.ScanPercent,
		}
	}
	return SystemSignaturesObservedPayload{SystemID: s.SystemID, SnapshotID: s.SnapshotID, Entries: entries}
}

// MovementSink accepts a movement event and durably records it.
type MovementSink interface {
	EmitMovement(event MovementEvent) error
}
