package ending

import (
	"sync"
	"time"

	"github.com/mensylisir/xmupgrade/common"
)

// Entry is one line of the summary.
type Entry struct {
	Name     string
	Phase    string
	Outcome  Outcome
	Duration time.Duration
}

// Report collects outcomes in the order they were produced.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	mu      sync.Mutex
	entries []Entry
}

func NewReport(runID string) *Report {
	return &Report{RunID: runID, Started: time.Now()}
}

func (r *Report) Add(name, phase string, outcome Outcome, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Name: name, Phase: phase, Outcome: outcome, Duration: d})
}

// Entries returns a copy of the recorded entries.
func (r *Report) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lookup returns the first entry with the given name.
func (r *Report) Lookup(name string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

func (r *Report) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Finished.IsZero() {
		r.Finished = time.Now()
	}
}

// Duration is the wall-clock time of the run. Before Finish it is the time
// elapsed so far.
func (r *Report) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Finished.IsZero() {
		return time.Since(r.Started)
	}
	return r.Finished.Sub(r.Started)
}

// Counts returns the number of successful, skipped and failed entries.
func (r *Report) Counts() (success, skipped, failed int) {
	for _, e := range r.Entries() {
		switch e.Outcome.Status {
		case StatusSuccess:
			success++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return
}

func (r *Report) HasFailures() bool {
	_, _, failed := r.Counts()
	return failed > 0
}

// ExitCode is ExitFailed when any entry failed and ExitOK otherwise.
func (r *Report) ExitCode() int {
	entries := r.Entries()
	outcomes := make([]Outcome, 0, len(entries))
	for _, e := range entries {
		outcomes = append(outcomes, e.Outcome)
	}
	return ExitCode(outcomes)
}

// ExitCode is zero iff no outcome failed.
func ExitCode(outcomes []Outcome) int {
	for _, o := range outcomes {
		if o.IsFailed() {
			return common.ExitFailed
		}
	}
	return common.ExitOK
}
