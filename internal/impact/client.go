package impact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/affiliatehq/reporting-service/internal/config"
	"github.com/affiliatehq/reporting-service/internal/models"
)

// Client issues authenticated calls to the remote reporting API. It is a
// thin transport layer: no retry logic lives here, that is the poller's
// responsibility.
type Client struct {
	config     config.ImpactConfig
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(cfg config.ImpactConfig) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// ListReports fetches the report catalog and filters out reports the
// account cannot access through the API.
func (c *Client) ListReports(ctx context.Context) ([]models.ReportDescriptor, error) {
	body, err := c.get(ctx, "/Reports", nil, "list reports")
	if err != nil {
		return nil, err
	}

	var reply struct {
		Reports []models.ReportDescriptor `json:"Reports"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, &RemoteError{Op: "list reports", Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	accessible := make([]models.ReportDescriptor, 0, len(reply.Reports))
	for _, r := range reply.Reports {
		if r.Accessible {
			accessible = append(accessible, r)
		}
	}
	return accessible, nil
}

// ScheduleExport requests an asynchronous export of one report. The remote
// system responds with a queued job-location reference; the job ID is its
// last path segment.
func (c *Client) ScheduleExport(ctx context.Context, reportID string, filters url.Values) (string, error) {
	path := "/ReportExport/" + reportID
	body, err := c.get(ctx, path, filters, "schedule export")
	if err != nil {
		return "", err
	}

	var reply struct {
		Status    string `json:"Status"`
		QueuedURI string `json:"QueuedUri"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", &RemoteError{Op: "schedule export", Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	jobID := lastPathSegment(reply.QueuedURI)
	if jobID == "" {
		return "", &RemoteError{Op: "schedule export", Err: fmt.Errorf("response carried no job reference: %q", reply.QueuedURI)}
	}
	return jobID, nil
}

// CheckStatus queries the current state of one export job
func (c *Client) CheckStatus(ctx context.Context, jobID string) (models.JobStatusReply, error) {
	body, err := c.get(ctx, "/Jobs/"+jobID, nil, "check status")
	if err != nil {
		return models.JobStatusReply{}, err
	}

	var reply struct {
		Status    string `json:"Status"`
		ResultURI string `json:"ResultUri"`
		Error     string `json:"Error"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return models.JobStatusReply{}, &RemoteError{Op: "check status", Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	out := models.JobStatusReply{ResultLocation: reply.ResultURI, Error: reply.Error}
	switch strings.ToUpper(reply.Status) {
	case "QUEUED":
		out.State = models.RemoteQueued
	case "RUNNING", "PROCESSING":
		out.State = models.RemoteProcessing
	case "COMPLETED":
		out.State = models.RemoteCompleted
	case "FAILED":
		out.State = models.RemoteFailed
	default:
		return models.JobStatusReply{}, &RemoteError{Op: "check status", Err: fmt.Errorf("unknown job status %q", reply.Status)}
	}
	return out, nil
}

// FetchResult downloads the completed export payload as raw delimited text
func (c *Client) FetchResult(ctx context.Context, resultLocation string) (string, error) {
	body, err := c.get(ctx, resultLocation, nil, "fetch result")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// get performs one authenticated GET against the API and returns the body
func (c *Client) get(ctx context.Context, path string, query url.Values, op string) ([]byte, error) {
	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.config.AccountSID, c.config.AuthToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Op: op, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return body, nil
}

func lastPathSegment(uri string) string {
	trimmed := strings.TrimRight(uri, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
