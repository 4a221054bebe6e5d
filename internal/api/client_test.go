package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonsec/triage-console/internal/pagination"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:   server.URL,
		Token:     "test-token",
		Workspace: "ws-1",
		Timeout:   5 * time.Second,
	}, nil)
	require.NoError(t, err)
	client.retryBackoff = time.Millisecond
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Workspace: "ws"}, nil)
	assert.Error(t, err, "base URL is required")

	_, err = NewClient(Config{BaseURL: "http://localhost"}, nil)
	assert.Error(t, err, "workspace is required")
}

func TestListAlertsDecodesPage(t *testing.T) {
	var gotQuery map[string][]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/alerts", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		gotQuery = r.URL.Query()

		next := "cursor-2"
		total := 137
		json.NewEncoder(w).Encode(wirePage{
			Items:         json.RawMessage(`[{"id":"a1","short_id":"ALERT-0001","summary":"vpn brute force","status":"new","priority":"high","severity":"high"}]`),
			NextCursor:    &next,
			HasMore:       true,
			TotalEstimate: &total,
		})
	}))

	page, err := client.ListAlerts(context.Background(), pagination.PageRequest{
		Cursor: "cursor-1",
		Limit:  20,
		Filters: pagination.Filters{
			SearchTerm: "vpn",
			Status:     StatusNew,
			Tags:       []string{"vip", "external"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"20"}, gotQuery["limit"])
	assert.Equal(t, []string{"cursor-1"}, gotQuery["cursor"])
	assert.Equal(t, []string{"vpn"}, gotQuery["search_term"])
	assert.Equal(t, []string{"new"}, gotQuery["status"])
	assert.Equal(t, []string{"vip", "external"}, gotQuery["tags"])
	assert.Equal(t, []string{"ws-1"}, gotQuery["workspace_id"])

	require.Len(t, page.Items, 1)
	assert.Equal(t, "a1", page.Items[0].ID)
	assert.Equal(t, "vpn brute force", page.Items[0].Summary)
	assert.True(t, page.HasMore)
	assert.Equal(t, "cursor-2", page.NextCursor)
	assert.Equal(t, 137, page.TotalEstimate)
}

func TestListAlertsFirstPageOmitsCursor(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasCursor := r.URL.Query()["cursor"]
		assert.False(t, hasCursor, "first-page requests carry no cursor param")
		json.NewEncoder(w).Encode(wirePage{Items: json.RawMessage(`[]`)})
	}))

	page, err := client.ListAlerts(context.Background(), pagination.PageRequest{
		Cursor: pagination.FirstPageCursor,
		Limit:  20,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, -1, page.TotalEstimate, "missing estimate decodes as unknown")
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"detail":"search term too long"}`, http.StatusUnprocessableEntity)
	}))

	_, err := client.ListAlerts(context.Background(), pagination.PageRequest{Limit: 20})
	var verr *pagination.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, http.StatusUnprocessableEntity, verr.Status)
	assert.Contains(t, verr.Reason, "search term too long")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestServerErrorRetriedThenFails(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))

	_, err := client.ListAlerts(context.Background(), pagination.PageRequest{Limit: 20})
	var ferr *pagination.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, http.StatusBadGateway, ferr.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "5xx retries up to the attempt cap")
}

func TestServerErrorRecoversWithinRetries(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(wirePage{Items: json.RawMessage(`[{"id":"a1"}]`)})
	}))

	page, err := client.ListAlerts(context.Background(), pagination.PageRequest{Limit: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestUpdateAlertSendsSparseBody(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]interface{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	err := client.UpdateAlert(context.Background(), "a1", AlertUpdate{
		Status: String(StatusResolved),
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/alerts/a1", gotPath)
	assert.Equal(t, map[string]interface{}{"status": "resolved"}, gotBody,
		"unset fields are omitted from the patch body")
}

func TestTagRoutes(t *testing.T) {
	type call struct{ method, path string }
	var calls []call
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		w.WriteHeader(http.StatusOK)
	}))

	ctx := context.Background()
	require.NoError(t, client.AddAlertTag(ctx, "a1", "t1"))
	require.NoError(t, client.RemoveAlertTag(ctx, "a1", "t1"))
	require.NoError(t, client.DeleteAlert(ctx, "a1"))

	require.Len(t, calls, 3)
	assert.Equal(t, call{http.MethodPost, "/alerts/a1/tags"}, calls[0])
	assert.Equal(t, call{http.MethodDelete, "/alerts/a1/tags/t1"}, calls[1])
	assert.Equal(t, call{http.MethodDelete, "/alerts/a1"}, calls[2])
}

func TestNetworkErrorBecomesFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client, err := NewClient(Config{
		BaseURL:   server.URL,
		Workspace: "ws-1",
		Timeout:   time.Second,
	}, nil)
	require.NoError(t, err)
	client.retryBackoff = time.Millisecond

	_, err = client.ListAlerts(context.Background(), pagination.PageRequest{Limit: 20})
	var ferr *pagination.FetchError
	require.ErrorAs(t, err, &ferr)
}
