package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// InstanceRow is the instances table's own projection (spec §6 schema:
// id/model_path/state/variables_json), read directly rather than via journal
// replay for a pure point lookup of an instance this process hasn't touched.
type InstanceRow struct {
	ID        string                 `json:"id"`
	ModelPath string                 `json:"model_path"`
	State     string                 `json:"state"`
	Variables map[string]interface{} `json:"variables"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// InstanceQueries reads the instances projection table directly for
// GET /instance/{iid} lookups that have no need to replay a journal when
// the live projection already answers them. Search (spec §4.8) is a
// registry concern, not a query against this table: the registry's own
// in-memory instance table is what the "live instance table" in the spec's
// search definition refers to.
type InstanceQueries struct {
	pool *pgxpool.Pool
}

// NewInstanceQueries builds an InstanceQueries over pool.
func NewInstanceQueries(pool *pgxpool.Pool) *InstanceQueries {
	return &InstanceQueries{pool: pool}
}

// Get returns the projected row for id.
func (q *InstanceQueries) Get(ctx context.Context, id string) (InstanceRow, bool, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, model_path, state, variables_json, updated_at FROM instances WHERE id = $1
	`, id)

	var out InstanceRow
	var varsJSON []byte
	if err := row.Scan(&out.ID, &out.ModelPath, &out.State, &varsJSON, &out.UpdatedAt); err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return InstanceRow{}, false, nil
		}
		return InstanceRow{}, false, errors.Internal("failed to read instance row", err)
	}
	if err := json.Unmarshal(varsJSON, &out.Variables); err != nil {
		return InstanceRow{}, false, errors.Internal("failed to unmarshal instance variables", err)
	}
	return out, true, nil
}
