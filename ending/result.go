package ending

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status is the final state of a unit of work.
type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusSkipped:
		return "SKIPPED"
	case StatusFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN_STATUS_%d", int(s))
	}
}

// Standard skip reasons.
const (
	ReasonNotInstalled  = "tool not installed"
	ReasonDisabled      = "disabled by config"
	ReasonNotApplicable = "not applicable on this platform"
	ReasonNoElevation   = "no privilege escalation available"
	ReasonDeclined      = "user declined"
	ReasonQuit          = "user quit"
)

// Outcome is the result of one step, custom command or remote host. It is a
// value and is never changed once created.
type Outcome struct {
	Status Status
	// Reason is set for skipped outcomes.
	Reason string
	// Err is set for failed outcomes.
	Err error
}

func Success() Outcome { return Outcome{Status: StatusSuccess} }

func Skipped(reason string) Outcome { return Outcome{Status: StatusSkipped, Reason: reason} }

// Failed wraps err. A nil err still yields a failed outcome.
func Failed(err error) Outcome {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Outcome{Status: StatusFailed, Err: err}
}

func (o Outcome) IsSuccess() bool { return o.Status == StatusSuccess }
func (o Outcome) IsSkipped() bool { return o.Status == StatusSkipped }
func (o Outcome) IsFailed() bool  { return o.Status == StatusFailed }

// Detail is the human readable reason or error text.
func (o Outcome) Detail() string {
	switch o.Status {
	case StatusSkipped:
		return o.Reason
	case StatusFailed:
		if o.Err != nil {
			return o.Err.Error()
		}
	}
	return ""
}

func (o Outcome) String() string {
	if d := o.Detail(); d != "" {
		return fmt.Sprintf("%s: %s", o.Status, d)
	}
	return o.Status.String()
}

// SkipError lets code that returns plain errors signal a skip.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// Skip returns a *SkipError for reason.
func Skip(reason string) error { return &SkipError{Reason: reason} }

// FromError converts an error returned at a step boundary into an outcome.
func FromError(err error) Outcome {
	if err == nil {
		return Success()
	}
	var skip *SkipError
	if errors.As(err, &skip) {
		return Skipped(skip.Reason)
	}
	return Failed(err)
}

// AsError turns an outcome back into an error. Success and Skipped return nil.
func (o Outcome) AsError() error {
	if o.IsFailed() {
		return o.Err
	}
	return nil
}
