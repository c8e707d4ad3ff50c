package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duragraph/duragraph/internal/domain/instance"
	"github.com/duragraph/duragraph/internal/domain/journal"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// JournalRepository implements journal.Repository against the two-table
// schema of spec §6: an append-only events log plus an instances table kept
// as a live projection (model_path/state/variables_json) so ListUnfinished
// and point lookups don't require replaying every instance's full history. Grounded
// on the teacher's event_store.go tx-per-write idiom.
type JournalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository builds a JournalRepository over pool.
func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

// entryRow is the wire shape stored in events.payload_json: it carries both
// Entry.Payload and Entry.VariablesSnapshot, since the schema names one
// JSONB column but the domain type keeps them distinct (spec §4.7).
type entryRow struct {
	Payload           map[string]interface{} `json:"payload,omitempty"`
	VariablesSnapshot map[string]interface{} `json:"variables_snapshot,omitempty"`
}

// Append persists entries for instanceID, assigning Seq where zero, and
// keeps the instances projection row in sync within the same transaction.
func (r *JournalRepository) Append(ctx context.Context, instanceID string, entries []journal.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Internal("failed to begin journal transaction", err)
	}
	defer tx.Rollback(ctx)

	var nextSeq int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE instance_id = $1`, instanceID).Scan(&nextSeq); err != nil {
		return errors.Internal("failed to read next sequence", err)
	}

	for _, e := range entries {
		seq := e.Seq
		if seq == 0 {
			seq = nextSeq
			nextSeq++
		}

		row := entryRow{Payload: e.Payload, VariablesSnapshot: e.VariablesSnapshot}
		rowJSON, err := json.Marshal(row)
		if err != nil {
			return errors.Internal("failed to marshal journal entry", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO events (instance_id, seq, ts, kind, vertex_id, payload_json)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, instanceID, seq, timestampOrNow(e.Timestamp), string(e.EventKind), nullIfEmpty(e.VertexID), rowJSON); err != nil {
			return errors.Internal("failed to insert journal entry", err)
		}

		if err := applyProjection(ctx, tx, instanceID, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Internal("failed to commit journal transaction", err)
	}
	return nil
}

// applyProjection keeps the instances table's model_path/state/
// variables_json columns current as each entry kind demands it, in the same
// transaction as the event row so the projection never observes a partial
// write.
func applyProjection(ctx context.Context, tx pgx.Tx, instanceID string, e journal.Entry) error {
	switch e.EventKind {
	case journal.KindInstanceCreated:
		varsJSON, err := json.Marshal(e.VariablesSnapshot)
		if err != nil {
			return errors.Internal("failed to marshal initial variables", err)
		}
		modelPath, _ := e.Payload["model_ref"].(string)
		_, err = tx.Exec(ctx, `
			INSERT INTO instances (id, model_path, state, variables_json)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, instanceID, modelPath, instance.StatusRunning.String(), varsJSON)
		if err != nil {
			return errors.Internal("failed to project instance_created", err)
		}

	case journal.KindVariablesUpdated:
		varsJSON, err := json.Marshal(e.VariablesSnapshot)
		if err != nil {
			return errors.Internal("failed to marshal variables snapshot", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE instances SET variables_json = $1, updated_at = now() WHERE id = $2
		`, varsJSON, instanceID); err != nil {
			return errors.Internal("failed to project variables_updated", err)
		}

	case journal.KindTerminated:
		state, _ := e.Payload["state"].(string)
		if _, err := tx.Exec(ctx, `
			UPDATE instances SET state = $1, updated_at = now() WHERE id = $2
		`, state, instanceID); err != nil {
			return errors.Internal("failed to project terminated", err)
		}
	}
	return nil
}

// Load returns every entry for instanceID in Seq order.
func (r *JournalRepository) Load(ctx context.Context, instanceID string) ([]journal.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seq, ts, kind, vertex_id, payload_json
		FROM events WHERE instance_id = $1 ORDER BY seq ASC
	`, instanceID)
	if err != nil {
		return nil, errors.Internal("failed to load journal entries", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var seq int
		var ts time.Time
		var kind string
		var vertexID sql.NullString
		var payloadJSON []byte

		if err := rows.Scan(&seq, &ts, &kind, &vertexID, &payloadJSON); err != nil {
			return nil, errors.Internal("failed to scan journal entry", err)
		}

		var row entryRow
		if err := json.Unmarshal(payloadJSON, &row); err != nil {
			return nil, errors.Internal("failed to unmarshal journal entry", err)
		}

		entries = append(entries, journal.Entry{
			InstanceID:        instanceID,
			Seq:               seq,
			Timestamp:         ts,
			EventKind:         journal.EventKind(kind),
			VertexID:          vertexID.String,
			Payload:           row.Payload,
			VariablesSnapshot: row.VariablesSnapshot,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("failed to iterate journal entries", err)
	}

	return entries, nil
}

// ListUnfinished returns ids of instances whose projected state is not a
// terminal one (spec §4.7 "on restart").
func (r *JournalRepository) ListUnfinished(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM instances WHERE state NOT IN ($1, $2)
	`, instance.StatusFinished.String(), instance.StatusFailed.String())
	if err != nil {
		return nil, errors.Internal("failed to list unfinished instances", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Internal("failed to scan instance id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func timestampOrNow(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
