package entity

import (
	"encoding/json"
	"time"
)

// CleanseRun is one batch invocation recorded in the session ledger.
type CleanseRun struct {
	ID         string     `json:"id"`
	ClientName string     `json:"client_name,omitempty"`
	Documents  int        `json:"documents"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// CleanseJob represents one document's pass through the pipeline for data transfer between layers.
type CleanseJob struct {
	ID             string          `json:"id"`
	RunID          string          `json:"run_id"`
	Seq            int             `json:"seq"`
	DocumentID     string          `json:"document_id"`
	DocumentName   string          `json:"document_name"`
	Format         string          `json:"format"`
	Status         string          `json:"status"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	RedactionCount int             `json:"redaction_count"`
	WarningCount   int             `json:"warning_count"`
	FindingCount   int             `json:"finding_count"`
	FindingsJSON   json.RawMessage `json:"findings_json,omitempty"`
}
