package app

import (
	"context"

	"wormhole-tracker/internal/eventlog"
	"wormhole-tracker/pkg/events"
	"wormhole-tracker/pkg/ids"
	"wormhole-tracker/pkg/sigparse"
)

// SignatureSnapshotRecordContext says where a pasted scanner snapshot
// should be attributed and (for the auto-resolve case) which system the
// UI currently has focused.
//
// Grounded on jaytripper_app/src/signature_resolution.rs's
// SignatureTargetSystemResolution: Explicit names the system outright;
// Auto records at FocusedSystemID, but first checks it against the
// submitting character's last known location so a mismatch can be
// reported back to the caller instead of silently overridden.
type SignatureSnapshotRecordContext struct {
	Explicit                bool
	SystemID                ids.SolarSystemID // set when Explicit
	FocusedSystemID         ids.SolarSystemID // set when !Explicit
	AttributionCharacterID  *ids.CharacterID
}

// SignatureSnapshotOutcomeKind classifies the result of
// RecordSignatureSnapshot.
type SignatureSnapshotOutcomeKind int

const (
	// SnapshotRecorded: the snapshot was appended and the projection
	// caught up.
	SnapshotRecorded SignatureSnapshotOutcomeKind = iota
	// SnapshotNeedsConfirmation: the submitting character's projected
	// location disagrees with the UI's focused system, so nothing was
	// written; the caller must ask the operator to confirm which system
	// the snapshot belongs to.
	SnapshotNeedsConfirmation
)

// SignatureSnapshotOutcome is the result of RecordSignatureSnapshot.
type SignatureSnapshotOutcome struct {
	Kind              SignatureSnapshotOutcomeKind
	SystemID          ids.SolarSystemID // set when Kind == SnapshotRecorded
	FocusedSystemID   ids.SolarSystemID // set when Kind == SnapshotNeedsConfirmation
	CharacterSystemID ids.SolarSystemID // set when Kind == SnapshotNeedsConfirmation
	CharacterID       ids.CharacterID   // set when Kind == SnapshotNeedsConfirmation
}

// RecordSignatureSnapshot parses a pasted scanner snapshot, resolves
// which system it belongs to, and — absent a focus/location mismatch —
// appends it and catches the projection up.
//
// The snapshot text is parsed before the lock is acquired: parse errors
// never touch projection state. Resolution, append, and catch-up then
// happen inside one critical section, matching AppRuntime's
// record_signature_snapshot.
func (r *Runtime) RecordSignatureSnapshot(ctx context.Context, recordCtx SignatureSnapshotRecordContext, snapshotText string) (SignatureSnapshotOutcome, error) {
	entries, err := sigparse.Parse(snapshotText)
	if err != nil {
		return SignatureSnapshotOutcome{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	targetSystemID, needsConfirmation, confirmationDetail := r.resolveTargetSystem(recordCtx)
	if needsConfirmation {
		return SignatureSnapshotOutcome{
			Kind:              SnapshotNeedsConfirmation,
			FocusedSystemID:   confirmationDetail.focusedSystemID,
			CharacterSystemID: confirmationDetail.characterSystemID,
			CharacterID:       confirmationDetail.characterID,
		}, nil
	}

	event := events.SystemSignaturesObservedEvent{
		SystemID:               targetSystemID,
		SnapshotID:              eventlog.NewSnapshotID(),
		Entries:                 entries,
		ObservedAt:              ids.Now(),
		AttributionCharacterID: recordCtx.AttributionCharacterID,
		Source:                  events.SourceManual,
	}

	if _, err := r.store.AppendSignaturesObserved(ctx, event, ids.Now()); err != nil {
		return SignatureSnapshotOutcome{}, err
	}
	if err := r.catchUp(ctx); err != nil {
		return SignatureSnapshotOutcome{}, err
	}

	return SignatureSnapshotOutcome{Kind: SnapshotRecorded, SystemID: targetSystemID}, nil
}

type confirmationDetail struct {
	focusedSystemID   ids.SolarSystemID
	characterSystemID ids.SolarSystemID
	characterID       ids.CharacterID
}

// resolveTargetSystem must be called with r.mu held.
func (r *Runtime) resolveTargetSystem(recordCtx SignatureSnapshotRecordContext) (ids.SolarSystemID, bool, confirmationDetail) {
	if recordCtx.Explicit {
		return recordCtx.SystemID, false, confirmationDetail{}
	}

	if recordCtx.AttributionCharacterID != nil {
		status, ok := r.state.Projection.Characters[*recordCtx.AttributionCharacterID]
		if ok && status.CurrentSystemID != recordCtx.FocusedSystemID {
			return 0, true, confirmationDetail{
				focusedSystemID:   recordCtx.FocusedSystemID,
				characterSystemID: status.CurrentSystemID,
				characterID:       *recordCtx.AttributionCharacterID,
			}
		}
	}

	return recordCtx.FocusedSystemID, false, confirmationDetail{}
}
