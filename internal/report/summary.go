package report

import (
	"time"
)

// Connection statuses.
const (
	Connected = "connected"
	Failed    = "failed"
	Skipped   = "skipped"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Summary is what a sync run reports. It is filled in as the run progresses and rendered
// once at the end, whether or not the run succeeded.
type Summary struct {
	Table       string `json:"table"`
	TargetTable string `json:"target_table"`
	Driver      string `json:"driver"`

	SourceStatus string `json:"source_status"`
	TargetStatus string `json:"target_status"`
	TableStatus  string `json:"table_status"`

	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	Errors []string `json:"errors,omitempty"`
	DryRun bool     `json:"dry_run"`

	Outcome   string        `json:"outcome"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// New returns a summary with every status set to skipped until the run says otherwise.
func New(table, targetTable, driver string, startedAt time.Time) *Summary {
	if targetTable == "" {
		targetTable = table
	}
	return &Summary{
		Table:        table,
		TargetTable:  targetTable,
		Driver:       driver,
		SourceStatus: Skipped,
		TargetStatus: Skipped,
		TableStatus:  Skipped,
		StartedAt:    startedAt,
	}
}

// AddError records a message for the report.
func (s *Summary) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// Finish stamps the duration and decides the outcome. A non-nil err is the fatal error that
// ended the run.
func (s *Summary) Finish(err error, now time.Time) {
	s.Duration = now.Sub(s.StartedAt)
	switch {
	case err != nil:
		s.AddError(err.Error())
		s.Outcome = OutcomeFailed
	case s.Failed > 0 || s.Skipped > 0:
		s.Outcome = OutcomePartial
	default:
		s.Outcome = OutcomeSuccess
	}
}

// Changed is the number of rows written (or, in a dry run, that would be written).
func (s *Summary) Changed() int {
	return s.Inserted + s.Updated + s.Deleted
}
