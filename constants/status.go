package constants

// JobStatus is the canonical status for rows in cleanse_job.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusExtracted JobStatus = "EXTRACTED" // stage 1 completed
	JobStatusRedacted  JobStatus = "REDACTED"  // stage 2 completed
	JobStatusCompleted JobStatus = "COMPLETED" // findings extracted (possibly with warnings)
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure
)

// Provenance tags where a text block came from.
type Provenance string

const (
	ProvenanceNative Provenance = "NATIVE"
	ProvenanceOCR    Provenance = "OCR"
)

// Sensitivity is the coarse PII sensitivity of a document.
type Sensitivity string

const (
	SensitivityLow      Sensitivity = "Low"
	SensitivityMedium   Sensitivity = "Medium"
	SensitivityHigh     Sensitivity = "High"
	SensitivityCritical Sensitivity = "Critical"
)
