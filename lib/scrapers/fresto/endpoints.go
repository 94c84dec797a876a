package fresto

import (
	"context"
	"time"

	"frestoload/lib/tabular"
)

const dateLayout = "2006-01-02"

// DateRange is a business-date window, inclusive on both ends, as the
// upstream startDate/endDate parameters are.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) params() map[string]string {
	return map[string]string{
		"startDate": r.Start.Format(dateLayout),
		"endDate":   r.End.Format(dateLayout),
	}
}

func (c *Client) dateParams(r DateRange) map[string]string {
	params := r.params()
	if c.opts.SalePointId != "" {
		params["salePointID"] = c.opts.SalePointId
	}
	return params
}

func (c *Client) Orders(ctx context.Context, r DateRange) (tabular.Collection, error) {
	return c.FetchAll(ctx, "/sales/orders", c.dateParams(r))
}

func (c *Client) OrderLines(ctx context.Context, r DateRange) (tabular.Collection, error) {
	return c.FetchAll(ctx, "/sales/orderlines", c.dateParams(r))
}

// Staff and Products are full-table dimension pulls, no date filter.
func (c *Client) Staff(ctx context.Context) (tabular.Collection, error) {
	return c.FetchAll(ctx, "/staff", nil)
}

func (c *Client) Products(ctx context.Context) (tabular.Collection, error) {
	return c.FetchAll(ctx, "/menu/products", nil)
}

func (c *Client) SalePoints(ctx context.Context, r DateRange) (tabular.Collection, error) {
	return c.FetchAll(ctx, "/salepoints", c.dateParams(r))
}
