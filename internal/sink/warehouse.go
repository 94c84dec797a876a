package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"frestoload/lib/tabular"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// WarehouseConfig points at either a local sqlite file or a remote
// libsql database.
type WarehouseConfig struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (c WarehouseConfig) OpenDB() (*sql.DB, error) {
	if c.Url == "" {
		if c.File == "" {
			return nil, fmt.Errorf("warehouse config needs a file or a url")
		}
		return sql.Open("sqlite", c.File)
	}
	dsn := c.Url
	if c.AuthToken != "" {
		dsn = fmt.Sprintf("%s?authToken=%s", c.Url, c.AuthToken)
	}
	return sql.Open("libsql", dsn)
}

// WarehouseWriter appends batches to warehouse tables, creating each
// table on first sight with a schema inferred from the batch. Tables
// with a declared natural key are written as upserts so re-running a
// date range never duplicates rows; keyless tables are blind appends.
// The whole batch goes through one transaction.
type WarehouseWriter struct {
	db *sql.DB
	// natural key columns per table name
	keys map[string][]string
}

func NewWarehouseWriter(db *sql.DB, keys map[string][]string) *WarehouseWriter {
	return &WarehouseWriter{db: db, keys: keys}
}

func (w *WarehouseWriter) Write(ctx context.Context, batch Batch) (WriteResult, error) {
	ctx, span := tracer.Start(ctx, "WarehouseWriter.Write")
	defer span.End()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return WriteResult{}, &SinkError{Destination: "warehouse", Table: "", Err: err}
	}
	defer tx.Rollback()

	counts := map[string]int{}
	for _, table := range batch.Tables {
		err := w.writeTable(ctx, tx, table)
		if err != nil {
			span.SetStatus(codes.Error, "table write failed")
			return WriteResult{}, err
		}
		counts[table.Name] = len(table.Rows)
		span.SetAttributes(attribute.Int(table.Name, len(table.Rows)))
	}

	err = tx.Commit()
	if err != nil {
		return WriteResult{}, &SinkError{Destination: "warehouse", Table: "", Err: err}
	}
	return WriteResult{RowCounts: counts}, nil
}

func (w *WarehouseWriter) writeTable(ctx context.Context, tx *sql.Tx, table Table) error {
	if len(table.Rows) == 0 {
		return nil
	}
	columns := table.columns()
	key := presentKeys(w.keys[table.Name], columns, table.Name)

	err := w.ensureTable(ctx, tx, table, columns, key)
	if err != nil {
		return &SinkError{Destination: "warehouse", Table: table.Name, Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, upsertStatement(table.Name, columns, key))
	if err != nil {
		return &SinkError{Destination: "warehouse", Table: table.Name, Err: err}
	}
	defer stmt.Close()

	for _, rec := range table.Rows {
		args := make([]any, len(columns))
		for i, col := range columns {
			args[i], err = sqlValue(rec[col])
			if err != nil {
				return &SinkError{Destination: "warehouse", Table: table.Name, Err: err}
			}
		}
		_, err = stmt.ExecContext(ctx, args...)
		if err != nil {
			return &SinkError{Destination: "warehouse", Table: table.Name, Err: err}
		}
	}
	return nil
}

// presentKeys drops key columns the batch never carries. A table whose
// declared key is entirely absent degrades to a blind append, loudly.
func presentKeys(key, columns []string, table string) []string {
	have := map[string]struct{}{}
	for _, col := range columns {
		have[col] = struct{}{}
	}
	out := make([]string, 0, len(key))
	for _, k := range key {
		if _, ok := have[k]; ok {
			out = append(out, k)
			continue
		}
		slog.Warn("key column missing from batch, skipping it", "table", table, "column", k)
	}
	return out
}

func (w *WarehouseWriter) ensureTable(ctx context.Context, tx *sql.Tx, table Table, columns, key []string) error {
	defs := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdent(col), columnType(table.Rows, col)))
	}
	if len(key) > 0 {
		quoted := make([]string, len(key))
		for i, k := range key {
			quoted[i] = quoteIdent(k)
		}
		defs = append(defs, fmt.Sprintf("UNIQUE (%s)", strings.Join(quoted, ", ")))
	}

	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s)",
		quoteIdent(table.Name),
		strings.Join(defs, ", "),
	))
	return err
}

func upsertStatement(name string, columns, key []string) string {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col)
		placeholders[i] = "?"
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)
	if len(key) == 0 {
		return stmt
	}

	keyCols := make([]string, len(key))
	keySet := map[string]struct{}{}
	for i, k := range key {
		keyCols[i] = quoteIdent(k)
		keySet[k] = struct{}{}
	}

	var updates []string
	for _, col := range columns {
		if _, isKey := keySet[col]; isKey {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", quoteIdent(col), quoteIdent(col)))
	}
	if len(updates) == 0 {
		return stmt + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(keyCols, ", "))
	}
	return stmt + fmt.Sprintf(
		" ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(keyCols, ", "),
		strings.Join(updates, ", "),
	)
}

// columnType infers a sqlite affinity from the first non-nil value.
func columnType(rows tabular.Collection, col string) string {
	for _, rec := range rows {
		switch rec[col].(type) {
		case nil:
			continue
		case bool, int, int32, int64:
			return "INTEGER"
		case float32, float64:
			return "REAL"
		case []byte:
			return "BLOB"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// sqlValue rejects values the warehouse cannot store.
func sqlValue(v any) (any, error) {
	switch v := v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, []byte:
		return v, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	default:
		return nil, fmt.Errorf("unsupported column value of type %T", v)
	}
}
