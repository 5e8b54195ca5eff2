package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DiagnosticTables are the tables TableSample may inspect.
var DiagnosticTables = []string{"profiles", "conversations", "conversation_participants"}

// diagnosticColumns lists what a sample may expose per table. Tables with no
// columns only report a count.
var diagnosticColumns = map[string][]string{
	"profiles":                  {"id", "display_name"},
	"conversations":             {"id"},
	"conversation_participants": nil,
}

type TableSample struct {
	Count  int64
	Sample []json.RawMessage
}

type DiagnosticsRepo struct {
	pool *pgxpool.Pool
}

func NewDiagnosticsRepo(pool *pgxpool.Pool) *DiagnosticsRepo {
	return &DiagnosticsRepo{pool: pool}
}

func (r *DiagnosticsRepo) Ping(ctx context.Context) error {
	if r.pool == nil {
		return ErrPoolUnavailable
	}
	return r.pool.Ping(ctx)
}

// TableSample counts rows and returns up to limit of them as JSON. Only
// names listed in DiagnosticTables are accepted.
func (r *DiagnosticsRepo) TableSample(ctx context.Context, table string, limit int) (TableSample, error) {
	if r.pool == nil {
		return TableSample{}, ErrPoolUnavailable
	}
	if !isDiagnosticTable(table) {
		return TableSample{}, fmt.Errorf("table %q is not inspectable", table)
	}
	if limit <= 0 {
		limit = 3
	}

	var out TableSample
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&out.Count); err != nil {
		return TableSample{}, fmt.Errorf("count %s: %w", table, err)
	}

	out.Sample = make([]json.RawMessage, 0, limit)
	query, ok := sampleQuery(table)
	if !ok {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return TableSample{}, fmt.Errorf("sample %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return TableSample{}, fmt.Errorf("scan %s sample: %w", table, err)
		}
		out.Sample = append(out.Sample, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return TableSample{}, fmt.Errorf("iterate %s sample: %w", table, err)
	}

	return out, nil
}

func isDiagnosticTable(table string) bool {
	_, ok := diagnosticColumns[table]
	return ok
}

// sampleQuery selects the exposable columns of table as JSON rows. It reports
// false when the table has nothing to expose.
func sampleQuery(table string) (string, bool) {
	columns := diagnosticColumns[table]
	if len(columns) == 0 {
		return "", false
	}
	return `SELECT row_to_json(t)::text FROM (SELECT ` + strings.Join(columns, ", ") + ` FROM ` + table + ` LIMIT $1) t`, true
}
