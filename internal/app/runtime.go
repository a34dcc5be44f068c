// Package app is the application façade (component C9): it owns one
// event store handle and one projection runtime state behind a single
// mutex, and exposes the read/write operations the rest of the process
// drives (location ingestion, signature snapshot recording, location
// queries).
//
// Grounded on jaytripper_app/src/app.rs's AppRuntime: the same
// store-handle-plus-projection-state pairing behind one lock, and the
// same parse-outside-the-lock / resolve-append-catch-up ordering for
// signature recording.
package app

import (
	"context"
	"sync"

	"wormhole-tracker/internal/errkind"
	"wormhole-tracker/internal/eventlog"
	"wormhole-tracker/internal/ingestor"
	"wormhole-tracker/internal/projection"
	"wormhole-tracker/pkg/events"
	"wormhole-tracker/pkg/ids"
)

// Runtime is the application façade.
type Runtime struct {
	store *eventlog.Store

	mu    sync.Mutex
	state *projection.State
}

// Connect opens a SQLite-backed store at dbPath and replays its full
// history into a fresh projection.
func Connect(ctx context.Context, dbPath string) (*Runtime, error) {
	store, err := eventlog.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	return FromStore(ctx, store)
}

// FromStore wires a Runtime around an already-open store, replaying its
// full history into a fresh projection.
func FromStore(ctx context.Context, store *eventlog.Store) (*Runtime, error) {
	runtime := &Runtime{store: store, state: projection.NewState()}

	records, err := store.ReadOrdered(ctx)
	if err != nil {
		return nil, err
	}
	if err := projection.ProjectWithMonotonicGuard(runtime.state, records); err != nil {
		return nil, err
	}
	return runtime, nil
}

// Close releases the underlying store handle.
func (r *Runtime) Close() error {
	return r.store.Close()
}

// CharacterLocationView is one character's current projected location.
type CharacterLocationView struct {
	CharacterID            ids.CharacterID
	CurrentSystemID        ids.SolarSystemID
	LastMovementObservedAt ids.Timestamp
}

// CharacterLocations returns every character with a known projected
// location.
func (r *Runtime) CharacterLocations() []CharacterLocationView {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make([]CharacterLocationView, 0, len(r.state.Projection.Characters))
	for characterID, status := range r.state.Projection.Characters {
		views = append(views, CharacterLocationView{
			CharacterID:            characterID,
			CurrentSystemID:        status.CurrentSystemID,
			LastMovementObservedAt: status.LastMovementObservedAt,
		})
	}
	return views
}

// CharacterCurrentSystem returns the projected current system for
// characterID, if known.
func (r *Runtime) CharacterCurrentSystem(characterID ids.CharacterID) (ids.SolarSystemID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, ok := r.state.Projection.Characters[characterID]
	if !ok {
		return 0, false
	}
	return status.CurrentSystemID, true
}

// catchUp reads every record since the projection's last applied
// sequence and applies it under the caller's held lock.
func (r *Runtime) catchUp(ctx context.Context) error {
	since := int64(0)
	if r.state.LastProjectedSeq != nil {
		since = *r.state.LastProjectedSeq
	}

	records, err := r.store.ReadSince(ctx, since)
	if err != nil {
		return err
	}
	return projection.ProjectWithMonotonicGuard(r.state, records)
}

// movementSink adapts a Runtime into an events.MovementSink: it appends
// the movement event, then catches the projection up to the newly
// appended record.
type movementSink struct {
	ctx     context.Context
	runtime *Runtime
}

// MovementSink returns an events.MovementSink bound to this façade: it
// appends a movement event and catches the projection up.
func (r *Runtime) MovementSink(ctx context.Context) events.MovementSink {
	return movementSink{ctx: ctx, runtime: r}
}

func (s movementSink) EmitMovement(event events.MovementEvent) error {
	runtime := s.runtime

	if _, err := runtime.store.AppendMovement(s.ctx, event, ids.Now()); err != nil {
		return errkind.Wrap("app.movementSink.EmitMovement", errkind.SinkFailure, err)
	}

	runtime.mu.Lock()
	defer runtime.mu.Unlock()
	if err := runtime.catchUp(s.ctx); err != nil {
		return errkind.Wrap("app.movementSink.EmitMovement", errkind.SinkFailure, err)
	}
	return nil
}

// RunIngestionUntilShutdown constructs a movement sink bound to this
// façade and runs a location ingestor against it until shutdownCh
// closes or the ingestor hits a terminal error.
func (r *Runtime) RunIngestionUntilShutdown(ctx context.Context, client ingestor.LocationClient, config ingestor.LocationPollConfig, shutdownCh <-chan struct{}, opts ...ingestor.Option) error {
	ing := ingestor.New(client, r.MovementSink(ctx), config, opts...)
	return ing.RunUntilShutdown(ctx, shutdownCh)
}
