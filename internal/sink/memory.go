package sink

import "context"

// MemoryWriter collects batches in memory. Used by pipeline tests to
// assert what reached the sink, and by dry runs.
type MemoryWriter struct {
	Batches []Batch
}

func (w *MemoryWriter) Write(_ context.Context, batch Batch) (WriteResult, error) {
	w.Batches = append(w.Batches, batch)
	counts := map[string]int{}
	for _, table := range batch.Tables {
		counts[table.Name] = len(table.Rows)
	}
	return WriteResult{RowCounts: counts}, nil
}
