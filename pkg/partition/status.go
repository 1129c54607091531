package partition

// Status is the outcome of processing one partition.
type Status string

const (
	// StatusWritten means records were fetched and the object was stored.
	StatusWritten Status = "written"

	// StatusPartial means pagination failed part-way and the records fetched
	// before the failure were written.
	StatusPartial Status = "partial"

	// StatusEmpty means pagination completed with zero records; no object
	// was written.
	StatusEmpty Status = "empty"

	// StatusFetchFailed means pagination stopped early; no object was written.
	StatusFetchFailed Status = "fetch_failed"

	// StatusWriteFailed means the storage put failed.
	StatusWriteFailed Status = "write_failed"

	// StatusSkipped means the partition was never started (run cancelled).
	StatusSkipped Status = "skipped"
)

// Failed reports whether the status represents a failure.
func (s Status) Failed() bool {
	return s == StatusFetchFailed || s == StatusWriteFailed || s == StatusPartial
}

// Wrote reports whether an object was stored for the partition.
func (s Status) Wrote() bool {
	return s == StatusWritten || s == StatusPartial
}
