package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/affiliatehq/reporting-service/internal/config"
	"github.com/affiliatehq/reporting-service/internal/impact"
	"github.com/affiliatehq/reporting-service/internal/models"
)

// ErrTimedOut indicates the attempt ceiling was reached without the remote
// job ever reaching a terminal status.
var ErrTimedOut = errors.New("job polling timed out")

// PollingError wraps the last transient failure seen before the attempt
// ceiling was exhausted.
type PollingError struct {
	JobID    string
	Attempts int
	Err      error
}

func (e *PollingError) Error() string {
	return fmt.Sprintf("polling job %s failed after %d attempts: %v", e.JobID, e.Attempts, e.Err)
}

func (e *PollingError) Unwrap() error {
	return e.Err
}

// StatusChecker is the narrow slice of the API client the poller needs
type StatusChecker interface {
	CheckStatus(ctx context.Context, jobID string) (models.JobStatusReply, error)
}

// Poller drives an export job to a terminal state by repeated status
// checks with bounded exponential backoff.
type Poller struct {
	config config.PollerConfig
}

// NewPoller creates a new job poller
func NewPoller(cfg config.PollerConfig) *Poller {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 5 * time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1.5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 20
	}
	return &Poller{config: cfg}
}

// PollUntilDone polls the job until it completes, fails, or the attempt
// ceiling is reached. Transient status-check errors count against the same
// ceiling rather than failing the job; auth failures abort immediately.
// The returned job is terminal unless ctx was cancelled.
func (p *Poller) PollUntilDone(ctx context.Context, job models.ExportJob, client StatusChecker) (models.ExportJob, error) {
	job.Status = models.StatusPolling

	delay := p.config.InitialDelay
	var lastErr error

	for job.Attempts < p.config.MaxAttempts {
		// Wait before checking, but respect context cancellation
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-time.After(delay):
		}

		job.Attempts++

		reply, err := client.CheckStatus(ctx, job.JobID)
		if err != nil {
			var authErr *impact.AuthError
			if errors.As(err, &authErr) {
				job.Status = models.StatusFailed
				job.Error = err.Error()
				return job, err
			}
			lastErr = err
		} else {
			switch reply.State {
			case models.RemoteCompleted:
				job.Status = models.StatusCompleted
				job.ResultLocation = reply.ResultLocation
				return job, nil
			case models.RemoteFailed:
				job.Status = models.StatusFailed
				job.Error = reply.Error
				return job, fmt.Errorf("remote job %s failed: %s", job.JobID, reply.Error)
			}
			// Queued or processing: keep waiting
			lastErr = nil
		}

		delay = p.nextDelay(delay)
	}

	job.Status = models.StatusTimedOut
	if lastErr == nil {
		lastErr = ErrTimedOut
	}
	pollErr := &PollingError{JobID: job.JobID, Attempts: job.Attempts, Err: lastErr}
	job.Error = pollErr.Error()
	return job, pollErr
}

// nextDelay grows the delay by the backoff multiplier, capped at MaxDelay
func (p *Poller) nextDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * p.config.Multiplier)
	if next > p.config.MaxDelay {
		next = p.config.MaxDelay
	}
	return next
}
