package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the status in lower case.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(s.String()))
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Check is one named system check. Run returns a short message on success. An error
// fails a required check and only warns for an optional one.
type Check struct {
	Name     string
	Required bool
	Run      func(ctx context.Context) (string, error)
}

// checkError lets a check attach a hint to its failure.
type checkError struct {
	msg     string
	details string
}

func (e *checkError) Error() string { return e.msg }

// Failure builds a check error carrying details for verbose output.
func Failure(msg, details string) error {
	return &checkError{msg: msg, details: details}
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs checks in order. A cancelled context fails the remaining ones.
func (c *Checker) RunAll(ctx context.Context, checks ...Check) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		results = append(results, run(ctx, check))
	}
	return results
}

func run(ctx context.Context, check Check) CheckResult {
	result := CheckResult{Name: check.Name, Required: check.Required}
	if err := ctx.Err(); err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	msg, err := check.Run(ctx)
	if err == nil {
		result.Status = StatusPass
		result.Message = msg
		return result
	}

	result.Status = StatusWarn
	if check.Required {
		result.Status = StatusFail
	}
	result.Message = err.Error()
	if ce, ok := err.(*checkError); ok {
		result.Details = ce.details
	}
	return result
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "srch System Check")
	_, _ = fmt.Fprintln(c.output, "=================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}
	printIssues(c.output, "error(s)", errors)
	printIssues(c.output, "warning(s)", warnings)
}

func printIssues(w io.Writer, label string, issues []string) {
	if len(issues) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%d %s:\n", len(issues), label)
	for _, issue := range issues {
		_, _ = fmt.Fprintf(w, "  - %s\n", issue)
	}
}

// WritePermissions checks that a file can be created in dir, creating dir
// first when it does not exist.
func WritePermissions(dir string) Check {
	return Check{
		Name:     "write_permissions",
		Required: true,
		Run: func(context.Context) (string, error) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return "", fmt.Errorf("cannot create %s: %w", dir, err)
			}
			f, err := os.CreateTemp(dir, ".srch-preflight-*")
			if err != nil {
				return "", fmt.Errorf("permission denied: %w", err)
			}
			name := f.Name()
			_ = f.Close()
			_ = os.Remove(name)
			return "OK", nil
		},
	}
}

// nearestExisting walks up from path to the first directory that exists, so
// space can be measured before the index directory is created.
func nearestExisting(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
