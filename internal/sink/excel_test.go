package sink

import (
	"context"
	"path/filepath"
	"testing"

	"frestoload/lib/tabular"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExcelWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	writer := ExcelWriter{Path: path}

	batch := Batch{Tables: []Table{
		{
			Name:    "FinalReport",
			Columns: []string{"orderID", "productTitle", "price_line"},
			Rows: tabular.Collection{
				{"orderID": 1, "productTitle": "F1. Bella Vita", "price_line": 7.5},
				{"orderID": 2, "productTitle": "Pizza Margherita"},
			},
		},
		{
			Name: "Staff",
			Rows: tabular.Collection{{"staff_uid": "u1", "staff_name": "Ana"}},
		},
	}}

	res, err := writer.Write(context.Background(), batch)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, res.RowCounts["FinalReport"])
	require.Equal(t, 1, res.RowCounts["Staff"])

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	require.ElementsMatch(t, []string{"FinalReport", "Staff"}, f.GetSheetList())

	rows, err := f.GetRows("FinalReport")
	require.NoError(t, err)
	require.Equal(t, []string{"orderID", "productTitle", "price_line"}, rows[0])
	require.Equal(t, "F1. Bella Vita", rows[1][1])
	// unmatched field stays an empty cell
	require.Len(t, rows, 3)
}

func TestExcelWriterRejectsNestedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	writer := ExcelWriter{Path: path}

	batch := Batch{Tables: []Table{
		{Name: "Orders", Rows: tabular.Collection{
			{"orderID": 1, "lines": map[string]any{"productID": 2}},
		}},
	}}

	_, err := writer.Write(context.Background(), batch)
	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	require.Equal(t, "Orders", sinkErr.Table)

	// nothing was left on disk
	_, err = excelize.OpenFile(path)
	require.Error(t, err)
}
