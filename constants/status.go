package constants

// Stage identifies the pipeline stage at which a file failed.
type Stage string

const (
	StageExtraction  Stage = "EXTRACTION"
	StageStructuring Stage = "STRUCTURING"
	StageValidation  Stage = "VALIDATION"
)

// FailureState is the canonical per-fingerprint state in the failure tracker.
// Stable values (store these exact strings).
type FailureState string

const (
	FailureRetryScheduled FailureState = "RETRY_SCHEDULED" // failed, retry window set
	FailureExhausted      FailureState = "EXHAUSTED"       // attempt cap reached, terminal
	FailureResolved       FailureState = "RESOLVED"        // later attempt succeeded
)

// ConfidenceTier is a coarse quality label attached to extracted text,
// reflecting which strategy produced it.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "HIGH"
	TierMedium ConfidenceTier = "MEDIUM"
	TierLow    ConfidenceTier = "LOW"
)
