// Package pipeline sequences one end-to-end run: resolve the date
// range, acquire a token, fetch every endpoint, join and transform,
// then hand the batch to a sink. Any failure is fatal for the run and
// carries the stage and endpoint that failed; partial data silently
// loaded into a warehouse is worse than a visible failure.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"frestoload/internal/sink"
	"frestoload/internal/transform"
	"frestoload/lib/scrapers/fresto"
	"frestoload/lib/tabular"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("pipeline")

// Source is the slice of the Fresto client a run needs.
type Source interface {
	Authenticate(ctx context.Context) error
	Orders(ctx context.Context, r fresto.DateRange) (tabular.Collection, error)
	OrderLines(ctx context.Context, r fresto.DateRange) (tabular.Collection, error)
	Staff(ctx context.Context) (tabular.Collection, error)
	Products(ctx context.Context) (tabular.Collection, error)
	SalePoints(ctx context.Context, r fresto.DateRange) (tabular.Collection, error)
}

type Options struct {
	Source Source
	Sink   sink.Writer
	// LocationSlug tags warehouse rows with the source location.
	LocationSlug string
	// ReportTransform is applied to the joined report before writing.
	ReportTransform transform.Stage
	// TableTransforms are applied per raw table in load mode.
	TableTransforms map[string]transform.Stage
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

type Pipeline struct {
	opts Options
}

func New(opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{opts: opts}
}

type Summary struct {
	RowCounts map[string]int
}

func (s Summary) Log() {
	for name, n := range s.RowCounts {
		slog.Info("rows written", "table", name, "rows", n)
	}
}

type entities struct {
	orders     tabular.Collection
	orderLines tabular.Collection
	staff      tabular.Collection
	products   tabular.Collection
	salePoints tabular.Collection
}

func (p *Pipeline) fetch(ctx context.Context, r fresto.DateRange) (entities, error) {
	ctx, span := tracer.Start(ctx, "fetch")
	defer span.End()

	err := p.opts.Source.Authenticate(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "authentication failed")
		return entities{}, fmt.Errorf("authenticate: %w", err)
	}

	var e entities
	for _, fetch := range []struct {
		path string
		dst  *tabular.Collection
		run  func(context.Context) (tabular.Collection, error)
	}{
		{"/sales/orders", &e.orders, func(ctx context.Context) (tabular.Collection, error) {
			return p.opts.Source.Orders(ctx, r)
		}},
		{"/sales/orderlines", &e.orderLines, func(ctx context.Context) (tabular.Collection, error) {
			return p.opts.Source.OrderLines(ctx, r)
		}},
		{"/staff", &e.staff, p.opts.Source.Staff},
		{"/menu/products", &e.products, p.opts.Source.Products},
		{"/salepoints", &e.salePoints, func(ctx context.Context) (tabular.Collection, error) {
			return p.opts.Source.SalePoints(ctx, r)
		}},
	} {
		records, err := fetch.run(ctx)
		if err != nil {
			span.SetStatus(codes.Error, "fetch failed")
			return entities{}, fmt.Errorf("fetch %s: %w", fetch.path, err)
		}
		*fetch.dst = records
		slog.Info("fetched", "endpoint", fetch.path, "records", len(records))
		span.SetAttributes(attribute.Int(fetch.path, len(records)))
	}
	return e, nil
}

// RunReport fetches a date range and writes the joined FinalReport
// plus the raw entity sheets.
func (p *Pipeline) RunReport(ctx context.Context, r fresto.DateRange) (Summary, error) {
	ctx, span := tracer.Start(ctx, "RunReport")
	defer span.End()

	e, err := p.fetch(ctx, r)
	if err != nil {
		return Summary{}, err
	}

	batch := buildReportBatch(e, p.opts.ReportTransform)
	res, err := p.opts.Sink.Write(ctx, batch)
	if err != nil {
		span.SetStatus(codes.Error, "write failed")
		return Summary{}, fmt.Errorf("write report: %w", err)
	}
	return Summary{RowCounts: res.RowCounts}, nil
}

// RunLoad fetches a date range and appends the raw entity tables to
// the warehouse, tagged with the location slug and load timestamp.
func (p *Pipeline) RunLoad(ctx context.Context, r fresto.DateRange) (Summary, error) {
	ctx, span := tracer.Start(ctx, "RunLoad")
	defer span.End()
	span.SetAttributes(attribute.String("location_slug", p.opts.LocationSlug))

	e, err := p.fetch(ctx, r)
	if err != nil {
		return Summary{}, err
	}

	batch := sink.Batch{Tables: []sink.Table{
		{Name: "raw_orders", Rows: e.orders},
		{Name: "raw_orderlines", Rows: e.orderLines},
		{Name: "dim_staff", Rows: e.staff},
		{Name: "dim_products", Rows: e.products},
		{Name: "dim_salepoints", Rows: e.salePoints},
	}}
	for i, table := range batch.Tables {
		if stage, ok := p.opts.TableTransforms[table.Name]; ok {
			batch.Tables[i].Rows = stage.Apply(table.Rows)
		}
	}

	batch = sink.Tag(batch, p.opts.LocationSlug, p.opts.Now())
	res, err := p.opts.Sink.Write(ctx, batch)
	if err != nil {
		span.SetStatus(codes.Error, "write failed")
		return Summary{}, fmt.Errorf("write warehouse: %w", err)
	}
	return Summary{RowCounts: res.RowCounts}, nil
}
