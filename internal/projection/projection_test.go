package projection_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wormhole-tracker/internal/projection"
	"wormhole-tracker/pkg/events"
	"wormhole-tracker/pkg/ids"
)

func movementRecord(t *testing.T, seq int64, characterID ids.CharacterID, from *ids.SolarSystemID, to ids.SolarSystemID, occurredAt ids.Timestamp) events.Record {
	t.Helper()
	payload, err := json.Marshal(events.CharacterMovedPayload{FromSystemID: from, ToSystemID: to})
	require.NoError(t, err)

	return events.Record{
		GlobalSeq: seq,
		Envelope: events.Envelope{
			EventID:                 "evt-test",
			EventType:                events.CharacterMovedEventType,
			SchemaVersion:             events.CharacterMovedSchemaVersion,
			StreamKey:                 ids.CharacterStreamKey(characterID),
			OccurredAt:                 occurredAt,
			RecordedAt:                 occurredAt,
			AttributionCharacterID: &characterID,
			Source:                     events.SourceEsi,
			PayloadJSON:                string(payload),
		},
	}
}

func signaturesRecord(t *testing.T, seq int64, system ids.SolarSystemID, snapshotID string, entries []events.SignatureEntryPayload, occurredAt ids.Timestamp) events.Record {
	t.Helper()
	payload, err := json.Marshal(events.SystemSignaturesObservedPayload{SystemID: system, SnapshotID: snapshotID, Entries: entries})
	require.NoError(t, err)

	return events.Record{
		GlobalSeq: seq,
		Envelope: events.Envelope{
			EventID:      "evt-test",
			EventType:    events.SystemSignaturesObservedEventType,
			SchemaVersion: events.SystemSignaturesObservedSchemaVersion,
			StreamKey:    ids.SystemStreamKey(system),
			OccurredAt:   occurredAt,
			RecordedAt:   occurredAt,
			Source:       events.SourceManual,
			PayloadJSON:  string(payload),
		},
	}
}

// S1 — replay restores current system.
func TestReplayRestoresCurrentSystem(t *testing.T) {
	state := projection.NewState()
	character := ids.CharacterID(42)
	firstSystem := ids.SolarSystemID(30000142)
	secondSystem := ids.SolarSystemID(30002510)

	records := []events.Record{
		movementRecord(t, 1, character, nil, firstSystem, ids.FromEpochSeconds(1_700_000_000)),
		movementRecord(t, 2, character, &firstSystem, secondSystem, ids.FromEpochSeconds(1_700_000_120)),
	}

	require.NoError(t, projection.ProjectWithMonotonicGuard(state, records))

	status, ok := state.Projection.Characters[character]
	require.True(t, ok)
	assert.Equal(t, secondSystem, status.CurrentSystemID)
	require.NotNil(t, state.LastProjectedSeq)
	assert.EqualValues(t, 2, *state.LastProjectedSeq)
}

// S5 — mid-stream schema-unknown event type is skipped, sequence still advances.
func TestUnknownEventTypeAdvancesSequenceOnly(t *testing.T) {
	state := projection.NewState()
	character := ids.CharacterID(7)
	system := ids.SolarSystemID(30000142)

	unknown := events.Record{
		GlobalSeq: 2,
		Envelope: events.Envelope{
			EventID:       "evt-unknown",
			EventType:     "some_future_event",
			SchemaVersion: 1,
			StreamKey:     ids.CharacterStreamKey(character),
			OccurredAt:    ids.FromEpochSeconds(1_700_000_010),
			RecordedAt:    ids.FromEpochSeconds(1_700_000_010),
			Source:        events.SourceEsi,
			PayloadJSON:   `{}`,
		},
	}

	records := []events.Record{
		movementRecord(t, 1, character, nil, system, ids.FromEpochSeconds(1_700_000_000)),
		unknown,
	}

	require.NoError(t, projection.ProjectWithMonotonicGuard(state, records))

	status, ok := state.Projection.Characters[character]
	require.True(t, ok)
	assert.Equal(t, system, status.CurrentSystemID)
	require.NotNil(t, state.LastProjectedSeq)
	assert.EqualValues(t, 2, *state.LastProjectedSeq)
}

// S6 — overlapping/out-of-order batch is idempotent under the monotonic guard.
func TestMonotonicGuardSkipsStaleRecords(t *testing.T) {
	state := projection.NewState()
	character := ids.CharacterID(1)
	s1 := ids.SolarSystemID(1)
	s2 := ids.SolarSystemID(2)
	s3 := ids.SolarSystemID(3)

	all := []events.Record{
		movementRecord(t, 1, character, nil, s1, ids.FromEpochSeconds(100)),
		movementRecord(t, 2, character, &s1, s2, ids.FromEpochSeconds(101)),
		movementRecord(t, 3, character, &s2, s3, ids.FromEpochSeconds(102)),
	}
	require.NoError(t, projection.ProjectWithMonotonicGuard(state, all))

	// Apply an overlapping, out-of-order batch: should be a no-op.
	require.NoError(t, projection.ProjectWithMonotonicGuard(state, []events.Record{all[2], all[1]}))

	require.NotNil(t, state.LastProjectedSeq)
	assert.EqualValues(t, 3, *state.LastProjectedSeq)
	status := state.Projection.Characters[character]
	assert.Equal(t, s3, status.CurrentSystemID)
}

func floatPtr(f float64) *float64 { return &f }

// S7 — signature merge preserves the running max scan percent.
func TestSignatureMergePreservesHighestSeen(t *testing.T) {
	state := projection.NewState()
	system := ids.SolarSystemID(30000142)

	first := signaturesRecord(t, 1, system, "snap-1", []events.SignatureEntryPayload{
		{SignatureID: "ABC-123", Group: "Cosmic Signature", ScanPercent: floatPtr(70)},
	}, ids.FromEpochSeconds(100))
	second := signaturesRecord(t, 2, system, "snap-2", []events.SignatureEntryPayload{
		{SignatureID: "ABC-123", Group: "Cosmic Signature", ScanPercent: floatPtr(0)},
	}, ids.FromEpochSeconds(200))

	require.NoError(t, projection.ProjectWithMonotonicGuard(state, []events.Record{first, second}))

	signature := state.Projection.SignaturesBySystem[system].SignaturesByID["ABC-123"]
	require.NotNil(t, signature)
	require.NotNil(t, signature.LatestScanPercent)
	assert.Equal(t, 0.0, *signature.LatestScanPercent)
	require.NotNil(t, signature.HighestScanPercentSeen)
	assert.Equal(t, 70.0, *signature.HighestScanPercentSeen)
	assert.False(t, signature.MissingFromLatestSnapshot)
}

// Missing-flag property: a signature absent from the latest snapshot is
// flagged, one present in it is not.
func TestSignatureMissingFlag(t *testing.T) {
	state := projection.NewState()
	system := ids.SolarSystemID(30000142)

	first := signaturesRecord(t, 1, system, "snap-1", []events.SignatureEntryPayload{
		{SignatureID: "ABC-123", Group: "Cosmic Signature", ScanPercent: floatPtr(10)},
		{SignatureID: "DEF-456", Group: "Cosmic Signature", ScanPercent: floatPtr(20)},
	}, ids.FromEpochSeconds(100))
	second := signaturesRecord(t, 2, system, "snap-2", []events.SignatureEntryPayload{
		{SignatureID: "DEF-456", Group: "Cosmic Signature", ScanPercent: floatPtr(25)},
	}, ids.FromEpochSeconds(200))

	require.NoError(t, projection.ProjectWithMonotonicGuard(state, []events.Record{first, second}))

	byID := state.Projection.SignaturesBySystem[system].SignaturesByID
	assert.True(t, byID["ABC-123"].MissingFromLatestSnapshot)
	assert.False(t, byID["DEF-456"].MissingFromLatestSnapshot)
}

func TestMissingAttributionIsRejected(t *testing.T) {
	state := projection.NewState()
	system := ids.SolarSystemID(30000142)

	payload, err := json.Marshal(events.CharacterMovedPayload{ToSystemID: system})
	require.NoError(t, err)

	record := events.Record{
		GlobalSeq: 1,
		Envelope: events.Envelope{
			EventID:       "evt-1",
			EventType:     events.CharacterMovedEventType,
			SchemaVersion: events.CharacterMovedSchemaVersion,
			StreamKey:     "character:unknown",
			OccurredAt:    ids.FromEpochSeconds(100),
			RecordedAt:    ids.FromEpochSeconds(100),
			Source:        events.SourceEsi,
			PayloadJSON:   string(payload),
		},
	}

	err = projection.ProjectWithMonotonicGuard(state, []events.Record{record})
	assert.Error(t, err)
}
