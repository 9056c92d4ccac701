package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/affiliatehq/reporting-service/internal/aggregate"
	"github.com/affiliatehq/reporting-service/internal/config"
	"github.com/affiliatehq/reporting-service/internal/impact"
	"github.com/affiliatehq/reporting-service/internal/models"
	"github.com/affiliatehq/reporting-service/internal/poller"
	"github.com/affiliatehq/reporting-service/internal/rules"
	"github.com/affiliatehq/reporting-service/internal/storage"
)

// fakeImpact serves all four remote endpoints for the pipeline tests.
// Each job reports processing once before completing, so the poller has to
// take more than one attempt.
type fakeImpact struct {
	mu          sync.Mutex
	statusCalls map[string]int
	downloads   int
	csv         string
	failJob     bool
	failFetch   bool
}

func (f *fakeImpact) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case strings.HasPrefix(r.URL.Path, "/ReportExport/"):
			reportID := strings.TrimPrefix(r.URL.Path, "/ReportExport/")
			w.Write([]byte(`{"Status":"QUEUED","QueuedUri":"/Jobs/job-` + reportID + `"}`))

		case strings.HasPrefix(r.URL.Path, "/Jobs/"):
			jobID := strings.TrimPrefix(r.URL.Path, "/Jobs/")
			f.statusCalls[jobID]++
			if f.statusCalls[jobID] < 2 {
				w.Write([]byte(`{"Status":"RUNNING"}`))
				return
			}
			if f.failJob {
				w.Write([]byte(`{"Status":"FAILED","Error":"export source unavailable"}`))
				return
			}
			w.Write([]byte(`{"Status":"COMPLETED","ResultUri":"/Download/` + jobID + `"}`))

		case strings.HasPrefix(r.URL.Path, "/Download/"):
			f.downloads++
			if f.failFetch {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(f.csv))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestPipeline(t *testing.T, baseURL string) *Pipeline {
	t.Helper()
	ctx := context.Background()

	backend, err := storage.NewFileStore(config.StorageConfig{Directory: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	store := rules.NewStore(ctx, backend, "Unassigned")
	assert.NoError(t, store.AddTeam(ctx, "Alpha", rules.TeamMeta{Active: true}))
	assert.NoError(t, store.AddTeam(ctx, "Beta", rules.TeamMeta{Active: true}))
	assert.NoError(t, store.AddPatternRule(ctx, "Alpha", rules.RuleSubID, []string{"alpha", "team_a"}))
	assert.NoError(t, store.AddPatternRule(ctx, "Beta", rules.RuleSubID, []string{"beta"}))

	client := impact.NewClient(config.ImpactConfig{
		BaseURL:    baseURL,
		AccountSID: "sid",
		AuthToken:  "token",
		Timeout:    5 * time.Second,
	})
	jobPoller := poller.NewPoller(config.PollerConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   1.5,
		MaxAttempts:  10,
	})

	return New(client, jobPoller, store, config.BatchConfig{DefaultTeam: "Unassigned"})
}

func TestPipeline_RunEndToEnd(t *testing.T) {
	fake := &fakeImpact{
		statusCalls: map[string]int{},
		csv:         "SubID,SaleAmount\nteam_a_1,100\nbeta_2,50\nxyz,10\n",
	}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	pipe := newTestPipeline(t, server.URL)
	result, err := pipe.Run(context.Background(), "r1")

	assert.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Job.Status)
	assert.Equal(t, "job-r1", result.Job.JobID)
	assert.Equal(t, 2, result.Job.Attempts)
	assert.NotEmpty(t, result.Job.ResultLocation)

	assert.Len(t, result.Records, 3)
	assert.Equal(t, "Alpha", result.Records[0][models.FieldTeam])
	assert.Equal(t, "Beta", result.Records[1][models.FieldTeam])
	assert.Equal(t, "Unassigned", result.Records[2][models.FieldTeam])

	// Attributed records aggregate into the expected per-team rollup
	summary := aggregate.Aggregate(result.Records)
	assert.Len(t, summary.Teams, 3)
	byName := map[string]*models.TeamSummary{}
	for _, s := range summary.Teams {
		byName[s.Team] = s
	}
	assert.Equal(t, 100.0, byName["Alpha"].TotalRevenue)
	assert.Equal(t, 1, byName["Alpha"].Conversions)
	assert.Equal(t, 50.0, byName["Beta"].TotalRevenue)
	assert.Equal(t, 1, byName["Beta"].Conversions)
	assert.Equal(t, 10.0, byName["Unassigned"].TotalRevenue)
	assert.Equal(t, 1, byName["Unassigned"].Conversions)
}

func TestPipeline_FailedJobSkipsDownload(t *testing.T) {
	fake := &fakeImpact{statusCalls: map[string]int{}, failJob: true}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	pipe := newTestPipeline(t, server.URL)
	result, err := pipe.Run(context.Background(), "r1")

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "export source unavailable")
	assert.Equal(t, 0, fake.downloads)

	var procErr *ResultProcessingError
	assert.False(t, errors.As(err, &procErr))
}

func TestPipeline_UnusableResultIsDistinctError(t *testing.T) {
	fake := &fakeImpact{statusCalls: map[string]int{}, failFetch: true}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	pipe := newTestPipeline(t, server.URL)
	result, err := pipe.Run(context.Background(), "r1")

	assert.Error(t, err)
	assert.Nil(t, result)

	var procErr *ResultProcessingError
	assert.True(t, errors.As(err, &procErr))
	assert.Equal(t, "r1", procErr.ReportID)
}

func TestPipeline_ScheduleFailureAbortsImmediately(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	pipe := newTestPipeline(t, server.URL)
	result, err := pipe.Run(context.Background(), "r1")

	assert.Error(t, err)
	assert.Nil(t, result)

	var remoteErr *impact.RemoteError
	assert.True(t, errors.As(err, &remoteErr))
}

func TestPipeline_RunBatchCollectsSuccessesAndFailures(t *testing.T) {
	fake := &fakeImpact{
		statusCalls: map[string]int{},
		csv:         "SubID,SaleAmount\nteam_a_1,100\n",
	}
	mux := http.NewServeMux()
	mux.Handle("/", fake.handler())
	// One report schedules fine, the other doesn't exist
	mux.HandleFunc("/ReportExport/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	pipe := newTestPipeline(t, server.URL)
	batch := pipe.RunBatch(context.Background(), []string{"good", "missing"})

	assert.NotEmpty(t, batch.RunID)
	assert.Len(t, batch.Succeeded, 1)
	assert.Len(t, batch.Failed, 1)
	assert.Equal(t, "good", batch.Succeeded[0].ReportID)
	assert.Equal(t, "missing", batch.Failed[0].ReportID)
	assert.False(t, batch.FinishedAt.Before(batch.StartedAt))
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(2)

	_, ok := registry.Latest()
	assert.False(t, ok)

	registry.Record(&models.BatchResult{RunID: "a"})
	registry.Record(&models.BatchResult{RunID: "b"})
	registry.Record(&models.BatchResult{RunID: "c"})

	// Oldest run evicted at capacity
	_, ok = registry.Get("a")
	assert.False(t, ok)

	latest, ok := registry.Latest()
	assert.True(t, ok)
	assert.Equal(t, "c", latest.RunID)
	assert.Equal(t, []string{"b", "c"}, registry.List())
}
