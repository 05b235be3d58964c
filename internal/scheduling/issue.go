// Package scheduling holds the pure calculators behind the scheduler: conflict
// detection, SLS parameter checks, powder changeover, cost estimation, machine
// row layout and the view grid. Nothing here performs I/O except ViewBuilder,
// which reads the machine list through a narrow interface.
package scheduling

import "fmt"

// IssueKind separates hard failures from advisory findings.
type IssueKind string

const (
	KindValidation IssueKind = "validation"
	KindConflict   IssueKind = "conflict"
	KindWarning    IssueKind = "warning"
)

// Issue is one finding about a candidate job.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

// Result collects the issues of one validation run.
type Result struct {
	Issues []Issue `json:"issues"`
}

// OK reports whether the result has no validation or conflict issues.
func (r Result) OK() bool {
	for _, i := range r.Issues {
		if i.Kind != KindWarning {
			return false
		}
	}
	return true
}

// Errors returns the messages of validation and conflict issues.
func (r Result) Errors() []string {
	out := []string{}
	for _, i := range r.Issues {
		if i.Kind != KindWarning {
			out = append(out, i.Message)
		}
	}
	return out
}

// Warnings returns the advisory messages.
func (r Result) Warnings() []string {
	out := []string{}
	for _, i := range r.Issues {
		if i.Kind == KindWarning {
			out = append(out, i.Message)
		}
	}
	return out
}

// Count returns the number of issues of a kind.
func (r Result) Count(kind IssueKind) int {
	n := 0
	for _, i := range r.Issues {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Result) add(kind IssueKind, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) merge(issues []Issue) {
	r.Issues = append(r.Issues, issues...)
}
