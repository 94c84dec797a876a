package fresto

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"frestoload/lib/telemetry"

	"github.com/stretchr/testify/require"
)

// fakeFresto serves a token endpoint and one paged data endpoint
// backed by a fixed number of records.
type fakeFresto struct {
	total        int
	pageRequests int
	tokenGrants  int
	envelope     bool
	expiresIn    int
}

func (f *fakeFresto) serve(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client-id" || secret != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
			return
		}
		var body map[string]string
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			t.Error(err)
		}
		if body["grant_type"] != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.tokenGrants++
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":%d}`, f.tokenGrants, f.expiresIn)
	})

	mux.HandleFunc("/sales/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != fmt.Sprintf("Bearer tok-%d", f.tokenGrants) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"expired"}`)
			return
		}
		f.pageRequests++

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pagesize, _ := strconv.Atoi(r.URL.Query().Get("pagesize"))

		start := page * pagesize
		end := start + pagesize
		if end > f.total {
			end = f.total
		}
		if start > f.total {
			start = f.total
		}

		var records []map[string]any
		for i := start; i < end; i++ {
			records = append(records, map[string]any{"orderID": i})
		}
		if f.envelope {
			json.NewEncoder(w).Encode(map[string]any{"data": records})
			return
		}
		if records == nil {
			records = []map[string]any{}
		}
		json.NewEncoder(w).Encode(records)
	})

	return httptest.NewServer(mux)
}

func newTestClient(server *httptest.Server, pageSize int) *Client {
	return NewClient(ClientOptions{
		BaseUrl:      server.URL,
		TokenUrl:     server.URL + "/auth/token",
		ClientId:     "client-id",
		ClientSecret: "client-secret",
		PageSize:     pageSize,
		PageDelay:    time.Millisecond,
	})
}

func TestFetchAllSinglePage(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/fresto")
	defer cleanup()

	fake := &fakeFresto{total: 3, envelope: true, expiresIn: 3600}
	server := fake.serve(t)
	defer server.Close()

	client := newTestClient(server, 500)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := client.Authenticate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	orders, err := client.FetchAll(ctx, "/sales/orders", nil)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, orders, 3)
	require.Equal(t, 1, fake.pageRequests)
}

func TestFetchAllFullPageConfirmsTermination(t *testing.T) {
	// exactly one full page must still trigger a second, empty request
	fake := &fakeFresto{total: 500, envelope: true, expiresIn: 3600}
	server := fake.serve(t)
	defer server.Close()

	client := newTestClient(server, 500)
	ctx := context.Background()
	require.NoError(t, client.Authenticate(ctx))

	orders, err := client.FetchAll(ctx, "/sales/orders", nil)
	require.NoError(t, err)
	require.Len(t, orders, 500)
	require.Equal(t, 2, fake.pageRequests)
}

func TestFetchAllPageCount(t *testing.T) {
	for _, tc := range []struct {
		total, pageSize, wantRequests int
	}{
		{0, 10, 1},
		{7, 10, 1},
		{10, 10, 2},
		{25, 10, 3},
		{30, 10, 4},
	} {
		fake := &fakeFresto{total: tc.total, envelope: true, expiresIn: 3600}
		server := fake.serve(t)

		client := newTestClient(server, tc.pageSize)
		ctx := context.Background()
		require.NoError(t, client.Authenticate(ctx))

		records, err := client.FetchAll(ctx, "/sales/orders", nil)
		require.NoError(t, err)
		require.Len(t, records, tc.total, "total=%d", tc.total)
		require.Equal(t, tc.wantRequests, fake.pageRequests, "total=%d pagesize=%d", tc.total, tc.pageSize)

		server.Close()
	}
}

func TestFetchAllBareArrayBody(t *testing.T) {
	fake := &fakeFresto{total: 12, envelope: false, expiresIn: 3600}
	server := fake.serve(t)
	defer server.Close()

	client := newTestClient(server, 5)
	ctx := context.Background()
	require.NoError(t, client.Authenticate(ctx))

	records, err := client.FetchAll(ctx, "/sales/orders", nil)
	require.NoError(t, err)
	require.Len(t, records, 12)
}

func TestAuthenticateBadCredentials(t *testing.T) {
	fake := &fakeFresto{expiresIn: 3600}
	server := fake.serve(t)
	defer server.Close()

	client := NewClient(ClientOptions{
		BaseUrl:      server.URL,
		TokenUrl:     server.URL + "/auth/token",
		ClientId:     "client-id",
		ClientSecret: "wrong",
	})

	err := client.Authenticate(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, 401, authErr.Status)
}

func TestAuthenticateMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token_type":"Bearer"}`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{
		TokenUrl:     server.URL,
		ClientId:     "x",
		ClientSecret: "y",
	})

	err := client.Authenticate(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestFetchAllRejectedTokenIsAuthError(t *testing.T) {
	fake := &fakeFresto{total: 3, envelope: true, expiresIn: 3600}
	server := fake.serve(t)
	defer server.Close()

	client := newTestClient(server, 500)
	require.NoError(t, client.Authenticate(context.Background()))

	// revoke: the fake only accepts the latest grant
	fake.tokenGrants++

	_, err := client.FetchAll(context.Background(), "/sales/orders", nil)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, 401, authErr.Status)
}

func TestFetchAllReauthenticatesExpiredToken(t *testing.T) {
	fake := &fakeFresto{total: 3, envelope: true, expiresIn: 1}
	server := fake.serve(t)
	defer server.Close()

	client := newTestClient(server, 500)
	require.NoError(t, client.Authenticate(context.Background()))

	// simulate an aged-out token: stale locally and rejected upstream
	client.token = "stale"
	client.http.SetAuthToken("stale")
	client.expiresAt = time.Now().Add(-time.Second)

	records, err := client.FetchAll(context.Background(), "/sales/orders", nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, 2, fake.tokenGrants)
}

func TestFetchAllHttpError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseUrl: server.URL})
	client.token = "tok"
	client.expiresAt = time.Now().Add(time.Hour)

	_, err := client.FetchAll(context.Background(), "/sales/orders", nil)
	var httpErr *HttpError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, 500, httpErr.Status)
	require.Equal(t, "/sales/orders", httpErr.Path)
}

func TestDecodePage(t *testing.T) {
	records, err := decodePage([]byte(`{"data":[{"a":1}]}`))
	require.NoError(t, err)
	require.Len(t, records, 1)

	records, err = decodePage([]byte(` [{"a":1},{"a":2}]`))
	require.NoError(t, err)
	require.Len(t, records, 2)

	records, err = decodePage([]byte(``))
	require.NoError(t, err)
	require.Len(t, records, 0)

	_, err = decodePage([]byte(`<html>`))
	require.Error(t, err)
}
