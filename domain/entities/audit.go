package entities

// AuditEntry is one parsed line of the audit log.
type AuditEntry struct {
	// Line is the 1-based line number in the log file.
	Line int `json:"line"`

	// Accumulator is the hex-encoded chain value stored with the entry.
	Accumulator string `json:"accumulator"`

	// Message is the entry message as stored on disk (escaped, single line).
	Message string `json:"message"`
}

// VerifyResult holds the outcome of recomputing the audit chain over a log.
type VerifyResult struct {
	// ExpectedAccumulator is the recomputed value at BrokenAt.
	ExpectedAccumulator string `json:"expected_accumulator,omitempty"`

	// ActualAccumulator is the stored value at BrokenAt.
	ActualAccumulator string `json:"actual_accumulator,omitempty"`

	// Head is the last verified accumulator value.
	Head string `json:"head,omitempty"`

	// Unverifiable lists skipped line numbers: a trailing partial line, or a
	// torn-write remnant followed by its recovery entry.
	Unverifiable []int `json:"unverifiable,omitempty"`

	// EntriesChecked counts entries whose accumulator was recomputed.
	EntriesChecked int `json:"entries_checked"`

	// BrokenAt is the line number of the first mismatch, 0 if none.
	BrokenAt int `json:"broken_at,omitempty"`

	// Valid is true when every entry matched its recomputed value.
	Valid bool `json:"valid"`
}
