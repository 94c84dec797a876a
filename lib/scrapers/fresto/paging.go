package fresto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"frestoload/lib/tabular"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FetchAll retrieves every page of a collection endpoint. Pages start
// at 0; a page shorter than the page size is the last one, so a page
// of exactly pagesize always triggers one more request. On any error
// the partial collection is discarded, downstream joins assume a
// complete fetch.
func (c *Client) FetchAll(ctx context.Context, path string, params map[string]string) (tabular.Collection, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("FetchAll %s", path))
	defer span.End()

	var out tabular.Collection
	reauthed := false

	for page := 0; ; page++ {
		res, err := c.pageRequest(ctx, path, params, page)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "page request failed")
			return nil, err
		}

		if res.StatusCode() == 401 && !reauthed && c.tokenExpired() {
			// cached token aged out mid-run, re-acquire once
			reauthed = true
			err = c.Authenticate(ctx)
			if err != nil {
				span.SetStatus(codes.Error, "reauthentication failed")
				return nil, err
			}
			res, err = c.pageRequest(ctx, path, params, page)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "page request failed")
				return nil, err
			}
		}

		if res.StatusCode() == 401 {
			span.SetStatus(codes.Error, "token rejected")
			return nil, &AuthError{Status: 401, Body: res.String()}
		}
		if res.IsError() {
			span.SetStatus(codes.Error, res.Status())
			return nil, &HttpError{Status: res.StatusCode(), Path: path, Body: res.String()}
		}

		records, err := decodePage(res.Body())
		if err != nil {
			span.SetStatus(codes.Error, "undecodable page body")
			return nil, &HttpError{
				Status: res.StatusCode(),
				Path:   path,
				Body:   fmt.Sprintf("undecodable page body: %s", err),
			}
		}

		out = append(out, records...)
		if len(records) < c.opts.PageSize {
			break
		}

		// courtesy pause between pages, upstream rate limits
		select {
		case <-time.After(c.opts.PageDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	span.SetAttributes(attribute.Int("records", len(out)))
	return out, nil
}

func (c *Client) pageRequest(ctx context.Context, path string, params map[string]string, page int) (*resty.Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("pagesize", strconv.Itoa(c.opts.PageSize))
	return req.Get(path)
}

type pageEnvelope struct {
	Data []tabular.Record `json:"data"`
}

// decodePage accepts both response shapes the API serves: an object
// with a `data` array, or a bare array.
func decodePage(body []byte) ([]tabular.Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	if body[0] == '[' {
		var records []tabular.Record
		err := json.Unmarshal(body, &records)
		if err != nil {
			return nil, err
		}
		return records, nil
	}

	var envelope pageEnvelope
	err := json.Unmarshal(body, &envelope)
	if err != nil {
		return nil, err
	}
	return envelope.Data, nil
}
