// Package projection is the projection runtime (component C8): it applies
// ordered event records to an in-memory materialized view via per-type
// reducers, enforcing monotonic, at-most-once application.
//
// The dispatch shape (event-type switch gated by schema version) follows
// go-crablet's pkg/dcb/project_state.go; the exact reducer semantics
// (character_moved last-write-wins, the signature mark-missing-then-merge
// rule) are a direct translation of jaytripper_app's state.rs and
// signatures.rs merge_signature_snapshot.
package projection

import (
	"encoding/json"

	"wormhole-tracker/internal/errkind"
	"wormhole-tracker/pkg/events"
	"wormhole-tracker/pkg/ids"
)

// CharacterStatus is the last known location of one character.
type CharacterStatus struct {
	CurrentSystemID        ids.SolarSystemID
	LastMovementObservedAt ids.Timestamp
}

// SnapshotMetadata describes the most recent signature snapshot applied
// to one system.
type SnapshotMetadata struct {
	SnapshotID string
	ObservedAt ids.Timestamp
}

// ProjectedSignature is the merged view of one signature across every
// snapshot seen for its system.
type ProjectedSignature struct {
	SignatureID               string
	Group                      string
	SiteType                   *string
	Name                       *string
	LatestScanPercent          *float64
	HighestScanPercentSeen *float64
	MissingFromLatestSnapshot bool
}

// SystemSignatures is the projected signature inventory for one system.
type SystemSignatures struct {
	LastSnapshot   SnapshotMetadata
	SignaturesByID map[string]*ProjectedSignature
}

// Projection is the full in-memory materialized view.
type Projection struct {
	Characters         map[ids.CharacterID]CharacterStatus
	SignaturesBySystem map[ids.SolarSystemID]*SystemSignatures
}

// New returns an empty projection.
func New() *Projection {
	return &Projection{
		Characters:         make(map[ids.CharacterID]CharacterStatus),
		SignaturesBySystem: make(map[ids.SolarSystemID]*SystemSignatures),
	}
}

// State pairs a projection with the highest global_seq applied to it.
type State struct {
	Projection       *Projection
	LastProjectedSeq *int64
}

// NewState returns a fresh, empty runtime state.
func NewState() *State {
	return &State{Projection: New()}
}

// ProjectWithMonotonicGuard applies records in order, skipping any whose
// global_seq is already covered by state.LastProjectedSeq. Unknown event
// types advance the sequence without modifying the projection. A known
// type with an unsupported schema version aborts the whole batch.
func ProjectWithMonotonicGuard(state *State, records []events.Record) error {
	for _, record := range records {
		if state.LastProjectedSeq != nil && record.GlobalSeq <= *state.LastProjectedSeq {
			continue
		}

		if err := applyRecord(state.Projection, record); err != nil {
			return err
		}

		seq := record.GlobalSeq
		state.LastProjectedSeq = &seq
	}
	return nil
}

func applyRecord(projection *Projection, record events.Record) error {
	envelope := record.Envelope

	switch envelope.EventType {
	case events.CharacterMovedEventType:
		return applyCharacterMoved(projection, record)
	case events.SystemSignaturesObservedEventType:
		return applySystemSignaturesObserved(projection, record)
	default:
		// Unknown event type: the sequence already advanced in the caller;
		// nothing further to do.
		return nil
	}
}

func applyCharacterMoved(projection *Projection, record events.Record) error {
	envelope := record.Envelope

	if envelope.SchemaVersion != events.CharacterMovedSchemaVersion {
		return errkind.New("projection.applyCharacterMoved", errkind.UnsupportedSchemaVersion,
			"unsupported schema version for character_moved")
	}

	if envelope.AttributionCharacterID == nil {
		return errkind.New("projection.applyCharacterMoved", errkind.MissingAttribution,
			"character_moved event missing attribution_character_id")
	}

	var payload events.CharacterMovedPayload
	if err := json.Unmarshal([]byte(envelope.PayloadJSON), &payload); err != nil {
		return errkind.Wrap("projection.applyCharacterMoved", errkind.PayloadSerialization, err)
	}

	projection.Characters[*envelope.AttributionCharacterID] = CharacterStatus{
		CurrentSystemID:        payload.ToSystemID,
		LastMovementObservedAt: envelope.OccurredAt,
	}
	return nil
}

func applySystemSignaturesObserved(projection *Projection, record events.Record) error {
	envelope := record.Envelope

	if envelope.SchemaVersion != events.SystemSignaturesObservedSchemaVersion {
		return errkind.New("projection.applySystemSignaturesObserved", errkind.UnsupportedSchemaVersion,
			"unsupported schema version for system_signatures_observed")
	}

	var payload events.SystemSignaturesObservedPayload
	if err := json.Unmarshal([]byte(envelope.PayloadJSON), &payload); err != nil {
		return errkind.Wrap("projection.applySystemSignaturesObserved", errkind.PayloadSerialization, err)
	}

	system, ok := projection.SignaturesBySystem[payload.SystemID]
	if !ok {
		system = &SystemSignatures{SignaturesByID: make(map[string]*ProjectedSignature)}
		projection.SignaturesBySystem[payload.SystemID] = system
	}

	system.LastSnapshot = SnapshotMetadata{SnapshotID: payload.SnapshotID, ObservedAt: envelope.OccurredAt}
	mergeSnapshot(system, payload.Entries)
	return nil
}

// mergeSnapshot applies one signature snapshot's entries onto the
// system's running signature inventory: every existing signature is first
// marked missing, then every incoming entry is upserted and unmarked.
func mergeSnapshot(system *SystemSignatures, entries []events.SignatureEntryPayload) {
	for _, signature := range system.SignaturesByID {
		signature.MissingFromLatestSnapshot = true
	}

	for _, entry := range entries {
		signature, ok := system.SignaturesByID[entry.SignatureID]
		if !ok {
			signature = &ProjectedSignature{SignatureID: entry.SignatureID}
			system.SignaturesByID[entry.SignatureID] = signature
		}

		if entry.Group != "" {
			signature.Group = entry.Group
		}
		if entry.SiteType != nil {
			signature.SiteType = entry.SiteType
		}
		if entry.Name != nil {
			signature.Name = entry.Name
		}
		if entry.ScanPercent != nil {
			signature.LatestScanPercent = entry.ScanPercent
			highest := *entry.ScanPercent
			if signature.HighestScanPercentSeen != nil && *signature.HighestScanPercentSeen > highest {
				highest = *signature.HighestScanPercentSeen
			}
			signature.HighestScanPercentSeen = &highest
		}
		signature.MissingFromLatestSnapshot = false
	}
}
