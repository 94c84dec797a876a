package pipeline

import (
	"frestoload/internal/sink"
	"frestoload/internal/transform"
	"frestoload/lib/tabular"
)

// friendly column names for the report sheets
var staffRenames = map[string]string{
	"uid":     "staff_uid",
	"name":    "staff_name",
	"email":   "staff_email",
	"posName": "staff_pos_name",
	"role":    "staff_role",
}

var productRenames = map[string]string{
	"id":    "productID",
	"title": "productTitle",
}

var salePointRenames = map[string]string{
	"title": "salePointTitle",
}

// buildReportBatch denormalizes orderlines into the FinalReport table.
// Orderlines drive; every join keeps all driving rows. The join order
// is fixed: orders, staff, products, salepoints. Both sides carry a
// `price` column, so the line price is renamed up front and the order
// price on copy.
func buildReportBatch(e entities, stage transform.Stage) sink.Batch {
	staff := tabular.RenameColumns(e.staff, staffRenames)
	products := tabular.RenameColumns(e.products, productRenames)
	salePoints := tabular.RenameColumns(e.salePoints, salePointRenames)

	report := tabular.RenameColumns(e.orderLines, map[string]string{"price": "price_line"})
	report = tabular.LeftJoin(report, e.orders, tabular.Join{
		LeftKey:  "orderID",
		RightKey: "orderID",
		Rename:   map[string]string{"price": "price_order"},
	})
	report = tabular.LeftJoin(report, staff, tabular.Join{
		LeftKey:  "userID",
		RightKey: "staff_uid",
	})
	report = tabular.LeftJoin(report, products, tabular.Join{
		LeftKey:  "productID",
		RightKey: "productID",
	})
	report = tabular.LeftJoin(report, tabular.DedupByKey(salePoints, "salePointID"), tabular.Join{
		LeftKey:  "salePointID",
		RightKey: "salePointID",
		Select:   []string{"salePointTitle"},
	})

	if stage != nil {
		report = stage.Apply(report)
	}

	tables := []sink.Table{{Name: "FinalReport", Rows: report}}
	for _, raw := range []sink.Table{
		{Name: "Orders", Rows: e.orders},
		{Name: "Orderlines", Rows: e.orderLines},
		{Name: "Staff", Rows: staff},
		{Name: "Products", Rows: products},
		{Name: "SalePoints", Rows: salePoints},
	} {
		if len(raw.Rows) == 0 {
			continue
		}
		tables = append(tables, raw)
	}
	return sink.Batch{Tables: tables}
}
