package impact

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/affiliatehq/reporting-service/internal/config"
	"github.com/affiliatehq/reporting-service/internal/models"
)

func testClient(baseURL string) *Client {
	return NewClient(config.ImpactConfig{
		BaseURL:    baseURL,
		AccountSID: "test-sid",
		AuthToken:  "test-token",
		Timeout:    5 * time.Second,
	})
}

func TestClient_ListReports(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "test-sid", user)
		assert.Equal(t, "test-token", pass)
		assert.Equal(t, "/Reports", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Reports":[
			{"Id":"adv_performance","Name":"Performance by Ad","ApiAccessible":true},
			{"Id":"internal_only","Name":"Internal","ApiAccessible":false},
			{"Id":"action_listing","Name":"Action Listing","ApiAccessible":true}
		]}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	reports, err := client.ListReports(context.Background())

	assert.NoError(t, err)
	assert.Len(t, reports, 2)
	assert.Equal(t, "adv_performance", reports[0].ID)
	assert.Equal(t, "action_listing", reports[1].ID)
}

func TestClient_ListReports_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := testClient(server.URL)
	reports, err := client.ListReports(context.Background())

	assert.Error(t, err)
	assert.Nil(t, reports)

	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestClient_ListReports_RemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.ListReports(context.Background())

	var remoteErr *RemoteError
	assert.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
}

func TestClient_ScheduleExport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ReportExport/adv_performance", r.URL.Path)
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("START_DATE"))

		w.Write([]byte(`{"Status":"QUEUED","QueuedUri":"/Advertisers/test-sid/Jobs/job-abc-123"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	filters := map[string][]string{"START_DATE": {"2026-01-01"}}
	jobID, err := client.ScheduleExport(context.Background(), "adv_performance", filters)

	assert.NoError(t, err)
	assert.Equal(t, "job-abc-123", jobID)
}

func TestClient_ScheduleExport_NoJobReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Status":"QUEUED"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	jobID, err := client.ScheduleExport(context.Background(), "adv_performance", nil)

	assert.Empty(t, jobID)
	var remoteErr *RemoteError
	assert.True(t, errors.As(err, &remoteErr))
}

func TestClient_CheckStatus(t *testing.T) {
	cases := []struct {
		remote string
		want   models.RemoteJobState
	}{
		{"QUEUED", models.RemoteQueued},
		{"RUNNING", models.RemoteProcessing},
		{"COMPLETED", models.RemoteCompleted},
		{"FAILED", models.RemoteFailed},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/Jobs/job-1", r.URL.Path)
			w.Write([]byte(`{"Status":"` + tc.remote + `","ResultUri":"/Download/job-1"}`))
		}))

		client := testClient(server.URL)
		reply, err := client.CheckStatus(context.Background(), "job-1")
		server.Close()

		assert.NoError(t, err)
		assert.Equal(t, tc.want, reply.State)
		assert.Equal(t, "/Download/job-1", reply.ResultLocation)
	}
}

func TestClient_CheckStatus_UnknownState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Status":"EXPLODED"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.CheckStatus(context.Background(), "job-1")

	var remoteErr *RemoteError
	assert.True(t, errors.As(err, &remoteErr))
}

func TestClient_FetchResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Download/job-1", r.URL.Path)
		w.Write([]byte("SubID,SaleAmount\nalpha_1,100\n"))
	}))
	defer server.Close()

	client := testClient(server.URL)
	payload, err := client.FetchResult(context.Background(), "/Download/job-1")

	assert.NoError(t, err)
	assert.Equal(t, "SubID,SaleAmount\nalpha_1,100\n", payload)
}

func TestClient_FetchResult_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.FetchResult(context.Background(), "/Download/missing")

	var remoteErr *RemoteError
	assert.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusNotFound, remoteErr.StatusCode)
}
