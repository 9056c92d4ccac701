package pipeline

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/affiliatehq/reporting-service/internal/config"
	"github.com/affiliatehq/reporting-service/internal/csvparse"
	"github.com/affiliatehq/reporting-service/internal/impact"
	"github.com/affiliatehq/reporting-service/internal/models"
	"github.com/affiliatehq/reporting-service/internal/poller"
	"github.com/affiliatehq/reporting-service/internal/rules"
)

// ResultProcessingError indicates the remote job completed but its payload
// could not be downloaded or parsed. Distinct from polling failures: this
// is a data-quality problem, not a scheduling problem.
type ResultProcessingError struct {
	ReportID string
	JobID    string
	Err      error
}

func (e *ResultProcessingError) Error() string {
	return fmt.Sprintf("report %s job %s completed but result was unusable: %v", e.ReportID, e.JobID, e.Err)
}

func (e *ResultProcessingError) Unwrap() error {
	return e.Err
}

// Pipeline orchestrates one end-to-end report pull: schedule the export,
// poll to a terminal state, download and parse the result, and attribute
// every record to a team.
type Pipeline struct {
	client   *impact.Client
	poller   *poller.Poller
	store    *rules.Store
	resolver *rules.Resolver
	batchCfg config.BatchConfig
}

// New creates a new export pipeline
func New(client *impact.Client, p *poller.Poller, store *rules.Store, batchCfg config.BatchConfig) *Pipeline {
	return &Pipeline{
		client:   client,
		poller:   p,
		store:    store,
		resolver: rules.NewResolver(store),
		batchCfg: batchCfg,
	}
}

// Run performs one end-to-end pull for a single report. The pipeline does
// no retries of its own: a failed run is retried wholesale by the caller,
// which schedules a brand-new remote job.
func (p *Pipeline) Run(ctx context.Context, reportID string) (*models.RunResult, error) {
	job := models.ExportJob{
		ReportID:    reportID,
		Status:      models.StatusScheduled,
		ScheduledAt: time.Now().UTC(),
	}

	jobID, err := p.client.ScheduleExport(ctx, reportID, p.exportFilters())
	if err != nil {
		// No partial job exists to clean up
		return nil, fmt.Errorf("failed to schedule export for report %s: %w", reportID, err)
	}
	job.JobID = jobID

	job, err = p.poller.PollUntilDone(ctx, job, p.client)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", reportID, err)
	}

	rawCSV, err := p.client.FetchResult(ctx, job.ResultLocation)
	if err != nil {
		return nil, &ResultProcessingError{ReportID: reportID, JobID: job.JobID, Err: err}
	}

	parsed, err := csvparse.Parse(rawCSV)
	if err != nil {
		return nil, &ResultProcessingError{ReportID: reportID, JobID: job.JobID, Err: err}
	}

	return &models.RunResult{
		ReportID: reportID,
		Job:      job,
		Headers:  parsed.Headers,
		Records:  p.resolver.EnrichAll(parsed.Records),
	}, nil
}

// RunBatch runs every report concurrently and collects both successes and
// failures; one failed report never aborts the batch. The rule store is
// reloaded first so rule edits made since the last batch apply.
func (p *Pipeline) RunBatch(ctx context.Context, reportIDs []string) *models.BatchResult {
	batch := &models.BatchResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Succeeded: []*models.RunResult{},
		Failed:    []models.RunFailure{},
	}

	if err := p.store.Reload(ctx); err != nil {
		log.Printf("batch %s: rule reload: %v (continuing with defaults)", batch.RunID, err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, reportID := range reportIDs {
		wg.Add(1)
		go func(reportID string) {
			defer wg.Done()

			result, err := p.Run(ctx, reportID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("batch %s: report %s failed: %v", batch.RunID, reportID, err)
				batch.Failed = append(batch.Failed, models.RunFailure{
					ReportID: reportID,
					Error:    err.Error(),
				})
				return
			}
			batch.Succeeded = append(batch.Succeeded, result)
		}(reportID)
	}
	wg.Wait()

	batch.FinishedAt = time.Now().UTC()
	return batch
}

// Start runs an initial batch and then re-runs on the configured interval
// until ctx is cancelled. Each finished batch is handed to record.
func (p *Pipeline) Start(ctx context.Context, record func(*models.BatchResult)) error {
	record(p.RunBatch(ctx, p.batchCfg.ReportIDs))

	ticker := time.NewTicker(p.batchCfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			record(p.RunBatch(ctx, p.batchCfg.ReportIDs))
		}
	}
}

// exportFilters builds the query filter parameters for export scheduling
func (p *Pipeline) exportFilters() url.Values {
	filters := url.Values{}
	if p.batchCfg.StartDate != "" {
		filters.Set("START_DATE", p.batchCfg.StartDate)
	}
	if p.batchCfg.EndDate != "" {
		filters.Set("END_DATE", p.batchCfg.EndDate)
	}
	return filters
}
