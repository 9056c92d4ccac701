package models

import "time"

// ReportDescriptor describes one report type available on the remote API
type ReportDescriptor struct {
	ID         string `json:"Id"`
	Name       string `json:"Name"`
	Accessible bool   `json:"ApiAccessible"`
}

// JobStatus represents the lifecycle state of an export job
type JobStatus string

const (
	StatusScheduled JobStatus = "scheduled"
	StatusPolling   JobStatus = "polling"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusTimedOut  JobStatus = "timed_out"
)

// Terminal reports whether the status is final. Once a job reaches a
// terminal status it is never mutated again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

// ExportJob represents one scheduled remote export and its polling progress.
// ResultLocation is set if and only if Status is StatusCompleted.
type ExportJob struct {
	ReportID       string    `json:"report_id"`
	JobID          string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	ResultLocation string    `json:"result_location,omitempty"`
	Error          string    `json:"error,omitempty"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Attempts       int       `json:"attempts"`
}

// RemoteJobState is the status of a job as reported by the remote API
type RemoteJobState string

const (
	RemoteQueued     RemoteJobState = "queued"
	RemoteProcessing RemoteJobState = "processing"
	RemoteCompleted  RemoteJobState = "completed"
	RemoteFailed     RemoteJobState = "failed"
)

// JobStatusReply is one status-check response from the remote API
type JobStatusReply struct {
	State          RemoteJobState
	ResultLocation string
	Error          string
}

// Record is one row of exported data keyed by canonical field name.
// Field presence is not guaranteed; lookups must tolerate absent keys.
type Record map[string]string

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Canonical field names produced by the CSV parser's alias resolution
const (
	FieldSubID      = "SubID"
	FieldPartner    = "Partner"
	FieldCampaign   = "Campaign"
	FieldSaleAmount = "SaleAmount"
	FieldQuantity   = "Quantity"
	FieldSKU        = "SKU"
	FieldStatus     = "ActionStatus"
	FieldTrackerID  = "TrackerID"
	FieldActionID   = "ActionID"
	FieldOrderID    = "OrderID"
	FieldEventDate  = "EventDate"
	FieldPubSubid3  = "PubSubid3"
	FieldConvoID    = "ConversationID"
	FieldTeam       = "Team"
)

// RunResult is the outcome of one end-to-end pipeline run for a single report
type RunResult struct {
	ReportID string    `json:"report_id"`
	Job      ExportJob `json:"job"`
	Headers  []string  `json:"headers"`
	Records  []Record  `json:"records"`
}

// RunFailure captures a failed single-report run inside a batch
type RunFailure struct {
	ReportID string `json:"report_id"`
	Error    string `json:"error"`
}

// BatchResult collects successes and failures across a multi-report batch.
// A failed single-report run never aborts the batch.
type BatchResult struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Succeeded  []*RunResult `json:"succeeded"`
	Failed     []RunFailure `json:"failed"`
}

// TeamSummary is the per-team rollup produced by the aggregator
type TeamSummary struct {
	Team            string  `json:"team"`
	TotalRevenue    float64 `json:"total_revenue"`
	Conversions     int     `json:"conversions"`
	Units           int     `json:"units"`
	UniqueSKUs      int     `json:"unique_skus"`
	AvgOrderValue   float64 `json:"avg_order_value"`
	ApprovedRevenue float64 `json:"approved_revenue"`
	PendingRevenue  float64 `json:"pending_revenue"`
}

// SKUSummary is the per-team, per-SKU rollup
type SKUSummary struct {
	Team        string  `json:"team"`
	SKU         string  `json:"sku"`
	Revenue     float64 `json:"revenue"`
	Conversions int     `json:"conversions"`
	Units       int     `json:"units"`
}

// AggregateResult bundles both rollup levels for one record set
type AggregateResult struct {
	Teams    []*TeamSummary `json:"teams"`
	TeamSKUs []*SKUSummary  `json:"team_skus"`
}
