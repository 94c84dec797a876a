// Package sink writes finished load batches to their destination, an
// xlsx workbook or a warehouse table. A batch is tagged once at write
// time and never mutated afterwards.
package sink

import (
	"context"
	"fmt"
	"time"

	"frestoload/lib/tabular"
)

// Table is one named collection inside a batch: a workbook sheet or a
// warehouse table.
type Table struct {
	Name string
	// Columns fixes the column order for destinations that care about
	// it. Empty derives the sorted union of row fields.
	Columns []string
	Rows    tabular.Collection
}

func (t Table) columns() []string {
	if len(t.Columns) > 0 {
		return t.Columns
	}
	return t.Rows.Columns()
}

type Batch struct {
	Tables []Table
}

type WriteResult struct {
	RowCounts map[string]int
}

type Writer interface {
	Write(ctx context.Context, batch Batch) (WriteResult, error)
}

// SinkError means the destination rejected the write. The batch is
// never partially applied when one is returned.
type SinkError struct {
	Destination string
	Table       string
	Err         error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: table %s: %s", e.Destination, e.Table, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Tag stamps every row of the batch with the source location and the
// load timestamp. The input batch is left untouched.
func Tag(batch Batch, locationSlug string, loadedAt time.Time) Batch {
	out := Batch{Tables: make([]Table, len(batch.Tables))}
	for i, table := range batch.Tables {
		rows := make(tabular.Collection, len(table.Rows))
		for j, rec := range table.Rows {
			row := rec.Clone()
			row["location_slug"] = locationSlug
			row["loaded_at"] = loadedAt.UTC().Format(time.RFC3339)
			rows[j] = row
		}

		columns := table.Columns
		if len(columns) > 0 {
			columns = append(append([]string{}, columns...), "location_slug", "loaded_at")
		}
		out.Tables[i] = Table{Name: table.Name, Columns: columns, Rows: rows}
	}
	return out
}
