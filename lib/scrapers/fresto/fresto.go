// Package fresto is a client for the Fresto point-of-sale data API.
// It exchanges client credentials for a short-lived bearer token and
// pages through the sales, staff and menu endpoints.
package fresto

import (
	"context"
	"encoding/json"
	"time"

	"frestoload/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/fresto")

const (
	defaultPageSize  = 500
	defaultPageDelay = 120 * time.Millisecond
	defaultTimeout   = 60 * time.Second
	// fall back to a conservative lifetime when the token response
	// omits expires_in
	defaultTokenLifetime = 10 * time.Minute
)

type ClientOptions struct {
	BaseUrl      string `json:"base_url"`
	TokenUrl     string `json:"token_url"`
	ClientId     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Scope        string `json:"scope"`
	// SalePointId filters date-ranged endpoints to one location when set.
	SalePointId string `json:"sale_point_id"`

	PageSize  int           `json:"page_size"`
	PageDelay time.Duration `json:"-"`
	Timeout   time.Duration `json:"-"`
}

type Client struct {
	http *resty.Client
	opts ClientOptions

	token     string
	expiresAt time.Time
}

func NewClient(opts ClientOptions) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.PageDelay <= 0 {
		opts.PageDelay = defaultPageDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Scope == "" {
		opts.Scope = "fresto"
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "scrapers/fresto/http")

	return &Client{http: client, opts: opts}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate exchanges the client credentials for a bearer token and
// installs it on the client. Subsequent FetchAll calls reuse the token
// until it expires or a data endpoint returns 401.
func (c *Client) Authenticate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Authenticate")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBasicAuth(c.opts.ClientId, c.opts.ClientSecret).
		SetBody(map[string]string{
			"grant_type": "client_credentials",
			"scope":      c.opts.Scope,
		}).
		Post(c.opts.TokenUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token request failed")
		return err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "token endpoint rejected credentials")
		return &AuthError{Status: res.StatusCode(), Body: res.String()}
	}

	var body tokenResponse
	err = json.Unmarshal(res.Body(), &body)
	if err != nil || body.AccessToken == "" {
		span.SetStatus(codes.Error, "token response missing access_token")
		return &AuthError{Status: res.StatusCode(), Body: "token response missing access_token"}
	}

	lifetime := defaultTokenLifetime
	if body.ExpiresIn > 0 {
		lifetime = time.Duration(body.ExpiresIn) * time.Second
	}
	c.token = body.AccessToken
	c.expiresAt = time.Now().Add(lifetime)
	c.http.SetAuthToken(c.token)

	span.SetAttributes(attribute.String("expires_at", c.expiresAt.Format(time.RFC3339)))
	return nil
}

func (c *Client) tokenExpired() bool {
	return c.token == "" || time.Now().After(c.expiresAt)
}
