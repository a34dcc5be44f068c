// Package eventlog is the durable, append-only event store (component
// C3): an embedded SQLite log of event envelopes with a strictly
// increasing global sequence, plus ordered/since/by-stream reads.
//
// The opaque-constructor discipline and the error-hierarchy shape follow
// go-crablet's pkg/dcb package; the schema, pragmas, and connection
// routine follow jaytripper_store's EventLogStore::connect.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"

	_ "github.com/mattn/go-sqlite3"
	"go.jetify.com/typeid"

	"wormhole-tracker/pkg/events"
	"wormhole-tracker/pkg/ids"
)

// Store is the single durable writer for one SQLite-backed event log.
type Store struct {
	db *sql.DB
}

// Open connects to (creating if absent) the SQLite file at path, applies
// the required pragmas, and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, storageFatal("eventlog.Open", err)
	}
	// A single writer per file: the store is used from many goroutines but
	// SQLite in WAL mode only safely supports one writer connection at a
	// time, so the pool is pinned to one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storageFatal("eventlog.Open", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, storageFatal("eventlog.Open", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func newEventID(prefix string) string {
	id, err := typeid.WithPrefix(prefix)
	if err != nil {
		// typeid generation only fails on malformed prefixes, which are
		// compile-time constants here; fall back to a generic prefix
		// rather than surface a runtime error.
		id, _ = typeid.WithPrefix("event")
	}
	return id.String()
}

// NewSnapshotID mints a fresh, time-ordered snapshot identifier.
func NewSnapshotID() string {
	return newEventID("snap")
}

// Append atomically inserts envelope and returns its assigned global_seq.
func (s *Store) Append(ctx context.Context, envelope events.Envelope) (int64, error) {
	if envelope.EventID == "" {
		envelope.EventID = newEventID("evt")
	}

	var attributionCharacterID sql.NullInt64
	if envelope.AttributionCharacterID != nil {
		characterID := uint64(*envelope.AttributionCharacterID)
		if characterID > math.MaxInt64 {
			return 0, ErrCharacterIDOverflow
		}
		attributionCharacterID = sql.NullInt64{Int64: int64(characterID), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO event_log (
			event_id, event_type, schema_version, stream_key,
			occurred_at_epoch_millis, recorded_at_epoch_millis,
			attribution_character_id, source, payload_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		envelope.EventID,
		envelope.EventType,
		envelope.SchemaVersion,
		envelope.StreamKey,
		envelope.OccurredAt.AsEpochMillis(),
		envelope.RecordedAt.AsEpochMillis(),
		attributionCharacterID,
		string(envelope.Source),
		envelope.PayloadJSON,
	)
	if err != nil {
		return 0, storageTransient("eventlog.Append", err)
	}

	globalSeq, err := result.LastInsertId()
	if err != nil {
		return 0, storageTransient("eventlog.Append", err)
	}
	return globalSeq, nil
}

// AppendMovement serializes and appends a character_moved envelope.
func (s *Store) AppendMovement(ctx context.Context, event events.MovementEvent, recordedAt ids.Timestamp) (int64, error) {
	payloadJSON, err := marshalPayload(event.Payload())
	if err != nil {
		return 0, payloadSerialization("eventlog.AppendMovement", err)
	}

	characterID := event.CharacterID
	envelope := events.Envelope{
		EventType:                 events.CharacterMovedEventType,
		SchemaVersion:             events.CharacterMovedSchemaVersion,
		StreamKey:                 ids.CharacterStreamKey(event.CharacterID),
		OccurredAt:                 event.ObservedAt,
		RecordedAt:                 recordedAt,
		AttributionCharacterID: &characterID,
		Source:                     event.Source,
		PayloadJSON:                payloadJSON,
	}
	return s.Append(ctx, envelope)
}

// AppendSignaturesObserved serializes and appends a
// system_signatures_observed envelope.
func (s *Store) AppendSignaturesObserved(ctx context.Context, event events.SystemSignaturesObservedEvent, recordedAt ids.Timestamp) (int64, error) {
	payloadJSON, err := marshalPayload(event.Payload())
	if err != nil {
		return 0, payloadSerialization("eventlog.AppendSignaturesObserved", err)
	}

	envelope := events.Envelope{
		EventType:                 events.SystemSignaturesObservedEventType,
		SchemaVersion:             events.SystemSignaturesObservedSchemaVersion,
		StreamKey:                 ids.SystemStreamKey(event.SystemID),
		OccurredAt:                 event.ObservedAt,
		RecordedAt:                 recordedAt,
		AttributionCharacterID: event.AttributionCharacterID,
		Source:                     event.Source,
		PayloadJSON:                payloadJSON,
	}
	return s.Append(ctx, envelope)
}

// ReadOrdered returns every record in ascending global_seq order.
func (s *Store) ReadOrdered(ctx context.Context) ([]events.Record, error) {
	return s.query(ctx, `
		SELECT global_seq, event_id, event_type, schema_version, stream_key,
		       occurred_at_epoch_millis, recorded_at_epoch_millis,
		       attribution_character_id, source, payload_json
		FROM event_log ORDER BY global_seq ASC
	`)
}

// ReadSince returns records with global_seq > since, ascending.
func (s *Store) ReadSince(ctx context.Context, since int64) ([]events.Record, error) {
	return s.query(ctx, `
		SELECT global_seq, event_id, event_type, schema_version, stream_key,
		       occurred_at_epoch_millis, recorded_at_epoch_millis,
		       attribution_character_id, source, payload_json
		FROM event_log WHERE global_seq > ? ORDER BY global_seq ASC
	`, since)
}

// ReadByStream returns every record for one stream key, ascending.
func (s *Store) ReadByStream(ctx context.Context, streamKey string) ([]events.Record, error) {
	return s.query(ctx, `
		SELECT global_seq, event_id, event_type, schema_version, stream_key,
		       occurred_at_epoch_millis, recorded_at_epoch_millis,
		       attribution_character_id, source, payload_json
		FROM event_log WHERE stream_key = ? ORDER BY global_seq ASC
	`, streamKey)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]events.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageTransient("eventlog.query", err)
	}
	defer rows.Close()

	var records []events.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, storageTransient("eventlog.query", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storageTransient("eventlog.query", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (events.Record, error) {
	var (
		globalSeq               int64
		eventID                 string
		eventType                string
		schemaVersion             int64
		streamKey                 string
		occurredAtEpochMillis     int64
		recordedAtEpochMillis     int64
		attributionCharacterID sql.NullInt64
		source                     string
		payloadJSON                string
	)

	if err := row.Scan(
		&globalSeq, &eventID, &eventType, &schemaVersion, &streamKey,
		&occurredAtEpochMillis, &recordedAtEpochMillis,
		&attributionCharacterID, &source, &payloadJSON,
	); err != nil {
		return events.Record{}, err
	}

	var attribution *ids.CharacterID
	if attributionCharacterID.Valid {
		characterID := ids.CharacterID(attributionCharacterID.Int64)
		attribution = &characterID
	}

	return events.Record{
		GlobalSeq: globalSeq,
		Envelope: events.Envelope{
			EventID:                 eventID,
			EventType:                eventType,
			SchemaVersion:             schemaVersion,
			StreamKey:                 streamKey,
			OccurredAt:                 ids.FromEpochMillis(occurredAtEpochMillis),
			RecordedAt:                 ids.FromEpochMillis(recordedAtEpochMillis),
			AttributionCharacterID: attribution,
			Source:                     events.Source(source),
			PayloadJSON:                payloadJSON,
		},
	}, nil
}

func marshalPayload(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
