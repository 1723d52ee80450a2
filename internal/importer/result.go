package importer

import (
	"time"

	"github.com/ryanm101/gamemeta/internal/merge"
)

// Status is the outcome of one record.
type Status int

const (
	StatusSucceeded Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Skip reasons.
const (
	ReasonCancelled     = "cancelled"
	ReasonNoBarcode     = "no barcode"
	ReasonNoName        = "no name"
	ReasonNoMatch       = "no match"
	ReasonNoSelection   = "no selection"
	ReasonNeedsConfirm  = "needs confirmation"
	ReasonNotInCategory = "not in category"
	ReasonNoChanges     = "no changes"
)

// Result is the outcome of importing into one record.
type Result struct {
	RecordID string
	Name     string
	Status   Status
	Reason   string
	Err      error
	// Match is the name of the accepted candidate.
	Match   string
	Changes merge.Changes
}

// Summary aggregates a workflow run. Results follow the input record order.
type Summary struct {
	Workflow  string
	Succeeded int
	Skipped   int
	Failed    int
	Results   []Result
	DryRun    bool
	Duration  time.Duration
}

func (s *Summary) add(r Result) {
	switch r.Status {
	case StatusSucceeded:
		s.Succeeded++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Total returns the number of records processed.
func (s *Summary) Total() int {
	return s.Succeeded + s.Skipped + s.Failed
}
