package pipeline

import (
	"context"
	"testing"
	"time"

	"frestoload/internal/sink"
	"frestoload/internal/transform"
	"frestoload/lib/scrapers/fresto"
	"frestoload/lib/tabular"
	"frestoload/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type stubSource struct {
	authErr       error
	orderLinesErr error

	orders     tabular.Collection
	orderLines tabular.Collection
	staff      tabular.Collection
	products   tabular.Collection
	salePoints tabular.Collection
}

func (s *stubSource) Authenticate(context.Context) error { return s.authErr }

func (s *stubSource) Orders(context.Context, fresto.DateRange) (tabular.Collection, error) {
	return s.orders, nil
}

func (s *stubSource) OrderLines(context.Context, fresto.DateRange) (tabular.Collection, error) {
	if s.orderLinesErr != nil {
		return nil, s.orderLinesErr
	}
	return s.orderLines, nil
}

func (s *stubSource) Staff(context.Context) (tabular.Collection, error) { return s.staff, nil }

func (s *stubSource) Products(context.Context) (tabular.Collection, error) { return s.products, nil }

func (s *stubSource) SalePoints(context.Context, fresto.DateRange) (tabular.Collection, error) {
	return s.salePoints, nil
}

func fullSource() *stubSource {
	return &stubSource{
		orders: tabular.Collection{
			{"orderID": 1, "price": 20.0, "salePointID": 5},
		},
		orderLines: tabular.Collection{
			{"orderID": 1, "userID": "u1", "productID": 10, "price": 7.5, "salePointID": 5},
			{"orderID": 1, "userID": "u1", "productID": 11, "price": 12.5, "salePointID": 5},
		},
		staff: tabular.Collection{
			{"uid": "u1", "name": "Ana", "role": "waiter"},
		},
		products: tabular.Collection{
			{"id": 10, "title": "f1 - bella vita"},
			{"id": 11, "title": "pizza margherita"},
		},
		salePoints: tabular.Collection{
			{"salePointID": 5, "title": "Terrace", "address": "hidden"},
			{"salePointID": 5, "title": "Terrace dup"},
		},
	}
}

var testRange = fresto.DateRange{
	Start: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
}

func TestRunReport(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:pipeline")
	defer cleanup()

	memory := &sink.MemoryWriter{}
	p := New(Options{Source: fullSource(), Sink: memory})

	summary, err := p.RunReport(context.Background(), testRange)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, summary.RowCounts["FinalReport"])

	require.Len(t, memory.Batches, 1)
	report := memory.Batches[0].Tables[0]
	require.Equal(t, "FinalReport", report.Name)
	require.Len(t, report.Rows, 2)

	first := report.Rows[0]
	require.Equal(t, 7.5, first["price_line"])
	require.Equal(t, 20.0, first["price_order"])
	require.Equal(t, "Ana", first["staff_name"])
	require.Equal(t, "f1 - bella vita", first["productTitle"])
	require.Equal(t, "Terrace", first["salePointTitle"])
	// Select limits salepoint fields to the title
	_, ok := first["address"]
	require.False(t, ok)

	names := make([]string, len(memory.Batches[0].Tables))
	for i, table := range memory.Batches[0].Tables {
		names[i] = table.Name
	}
	require.Equal(t, []string{"FinalReport", "Orders", "Orderlines", "Staff", "Products", "SalePoints"}, names)
}

func TestRunReportWithTransform(t *testing.T) {
	memory := &sink.MemoryWriter{}
	p := New(Options{
		Source: fullSource(),
		Sink:   memory,
		ReportTransform: transform.Chain(
			transform.NormalizeTitle{Field: "productTitle"},
			transform.Classifier{
				Source:  "productTitle",
				Target:  "category",
				Default: "Other",
				Rules: []transform.Rule{
					{Prefix: "f", Category: "Focaccia"},
					{Contains: "pizza", Category: "Pizza"},
				},
			},
		),
	})

	_, err := p.RunReport(context.Background(), testRange)
	require.NoError(t, err)

	rows := memory.Batches[0].Tables[0].Rows
	require.Equal(t, "F1. Bella Vita", rows[0]["productTitle"])
	require.Equal(t, "Focaccia", rows[0]["category"])
	require.Equal(t, "Pizza Margherita", rows[1]["productTitle"])
	require.Equal(t, "Pizza", rows[1]["category"])
}

func TestRunLoadTagsTables(t *testing.T) {
	memory := &sink.MemoryWriter{}
	loadedAt := time.Date(2025, 8, 15, 4, 0, 0, 0, time.UTC)
	p := New(Options{
		Source:       fullSource(),
		Sink:         memory,
		LocationSlug: "la-posata",
		Now:          func() time.Time { return loadedAt },
	})

	summary, err := p.RunLoad(context.Background(), testRange)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, map[string]int{
		"raw_orders":     1,
		"raw_orderlines": 2,
		"dim_staff":      1,
		"dim_products":   2,
		"dim_salepoints": 2,
	}, summary.RowCounts)

	for _, table := range memory.Batches[0].Tables {
		for _, row := range table.Rows {
			require.Equal(t, "la-posata", row["location_slug"], table.Name)
			require.Equal(t, "2025-08-15T04:00:00Z", row["loaded_at"], table.Name)
		}
	}
}

func TestFetchFailureAbortsBeforeSink(t *testing.T) {
	source := fullSource()
	source.orderLinesErr = &fresto.AuthError{Status: 401, Body: "expired"}

	memory := &sink.MemoryWriter{}
	p := New(Options{Source: source, Sink: memory, LocationSlug: "la-posata"})

	_, err := p.RunLoad(context.Background(), testRange)
	var authErr *fresto.AuthError
	require.ErrorAs(t, err, &authErr)
	require.ErrorContains(t, err, "/sales/orderlines")

	// nothing reached the sink
	require.Empty(t, memory.Batches)
}

func TestAuthFailureAbortsRun(t *testing.T) {
	source := fullSource()
	source.authErr = &fresto.AuthError{Status: 401, Body: "invalid_client"}

	memory := &sink.MemoryWriter{}
	p := New(Options{Source: source, Sink: memory})

	_, err := p.RunReport(context.Background(), testRange)
	require.ErrorContains(t, err, "authenticate")
	require.Empty(t, memory.Batches)
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("2025-08-01", "2025-08-31")
	require.NoError(t, err)
	require.Equal(t, testRange, r)

	// end defaults to today
	r, err = ParseDateRange("2025-08-01", "")
	require.NoError(t, err)
	require.False(t, r.End.Before(r.Start))

	var validationErr *ValidationError
	_, err = ParseDateRange("", "")
	require.ErrorAs(t, err, &validationErr)

	_, err = ParseDateRange("01/08/2025", "")
	require.ErrorAs(t, err, &validationErr)

	_, err = ParseDateRange("2025-08-31", "2025-08-01")
	require.ErrorAs(t, err, &validationErr)
}
