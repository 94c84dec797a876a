package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("sink")

// ExcelWriter writes one sheet per table into a single workbook,
// header row first. The workbook is assembled fully in memory and
// saved in one step, so a failed batch leaves no partial file behind.
// An existing file at Path is overwritten.
type ExcelWriter struct {
	Path string
}

func (w ExcelWriter) Write(ctx context.Context, batch Batch) (WriteResult, error) {
	_, span := tracer.Start(ctx, "ExcelWriter.Write")
	defer span.End()
	span.SetAttributes(attribute.String("path", w.Path))

	f := excelize.NewFile()
	defer f.Close()

	for i, table := range batch.Tables {
		if i == 0 {
			// rename the default sheet instead of leaving an empty Sheet1
			err := f.SetSheetName("Sheet1", table.Name)
			if err != nil {
				span.SetStatus(codes.Error, "failed to name sheet")
				return WriteResult{}, &SinkError{Destination: w.Path, Table: table.Name, Err: err}
			}
		} else {
			_, err := f.NewSheet(table.Name)
			if err != nil {
				span.SetStatus(codes.Error, "failed to add sheet")
				return WriteResult{}, &SinkError{Destination: w.Path, Table: table.Name, Err: err}
			}
		}

		err := w.writeSheet(f, table)
		if err != nil {
			span.SetStatus(codes.Error, "failed to fill sheet")
			return WriteResult{}, err
		}
	}

	err := f.SaveAs(w.Path)
	if err != nil {
		span.SetStatus(codes.Error, "failed to save workbook")
		return WriteResult{}, &SinkError{Destination: w.Path, Table: "", Err: err}
	}

	counts := map[string]int{}
	for _, table := range batch.Tables {
		counts[table.Name] = len(table.Rows)
	}
	return WriteResult{RowCounts: counts}, nil
}

func (w ExcelWriter) writeSheet(f *excelize.File, table Table) error {
	columns := table.columns()

	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	err := f.SetSheetRow(table.Name, "A1", &header)
	if err != nil {
		return &SinkError{Destination: w.Path, Table: table.Name, Err: err}
	}

	for i, rec := range table.Rows {
		row := make([]any, len(columns))
		for j, col := range columns {
			cell, err := cellValue(rec[col])
			if err != nil {
				return &SinkError{Destination: w.Path, Table: table.Name, Err: err}
			}
			row[j] = cell
		}

		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return &SinkError{Destination: w.Path, Table: table.Name, Err: err}
		}
		err = f.SetSheetRow(table.Name, addr, &row)
		if err != nil {
			return &SinkError{Destination: w.Path, Table: table.Name, Err: err}
		}
	}
	return nil
}

// cellValue rejects values a spreadsheet cell cannot hold.
func cellValue(v any) (any, error) {
	switch v := v.(type) {
	case nil, string, bool,
		int, int32, int64, float32, float64,
		time.Time:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported cell value of type %T", v)
	}
}
