package pipeline

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Report is the result of one step execution.
type Report struct {
	ID string `json:"id"`
	// Key identifies the pipeline run the step belonged to.
	Key       string       `json:"key"`
	Def       Definition   `json:"definition"`
	Output    any          `json:"output"`
	Timestamp *time.Time   `json:"timestamp"`
	Err       *ReportError `json:"error"`
}

// NewReport creates a new report.
func NewReport(key string, def Definition, output any, err error) Report {
	now := time.Now()
	r := Report{
		ID:        uuid.New().String(),
		Key:       key,
		Def:       def,
		Output:    output,
		Timestamp: &now,
	}
	if err != nil {
		r.Err = &ReportError{Message: err.Error()}
	}

	return r
}

// Succeeded reports whether the step finished without error.
func (r Report) Succeeded() bool {
	return r.Err == nil
}

// ReportError holds the message of a failed step in a serializable form.
type ReportError struct {
	Message string `json:"message"`
}

// Error implements the error interface.
func (o ReportError) Error() string {
	return o.Message
}

var ErrReportNotFound = errors.New("report not found")

// Reporter stores reports.
type Reporter interface {
	GetReport(id string) (Report, error)
	GetReports() ([]Report, error)
	AddReport(report Report) error
}

// MemoryReporter stores reports in memory. It is safe for concurrent use.
type MemoryReporter struct {
	reports []Report
	mu      sync.RWMutex
}

// NewMemoryReporter creates a new MemoryReporter seeded with reports.
func NewMemoryReporter(reports ...Report) *MemoryReporter {
	return &MemoryReporter{reports: slices.Clone(reports)}
}

// AddReport adds a report to the memory reporter.
func (e *MemoryReporter) AddReport(report Report) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reports = append(e.reports, report)

	return nil
}

// GetReports returns a copy of all reports in insertion order.
func (e *MemoryReporter) GetReports() ([]Report, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return slices.Clone(e.reports), nil
}

// GetReport returns the report with the given id.
func (e *MemoryReporter) GetReport(id string) (Report, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, report := range e.reports {
		if report.ID == id {
			return report, nil
		}
	}

	return Report{}, ErrReportNotFound
}

type reporterKey struct{}

// WithReporter attaches r to ctx. Sends run with that context record their steps in r and
// skip the steps r already holds successful reports for.
func WithReporter(ctx context.Context, r Reporter) context.Context {
	return context.WithValue(ctx, reporterKey{}, r)
}

// ReporterFromContext returns the reporter attached to ctx, or a fresh MemoryReporter.
func ReporterFromContext(ctx context.Context) Reporter {
	if r, ok := ctx.Value(reporterKey{}).(Reporter); ok && r != nil {
		return r
	}

	return NewMemoryReporter()
}

type runKey struct{}

// WithRunKey attaches a caller chosen identifier to ctx. Sends prefix their pipeline key with
// it, so two otherwise identical transfers sharing a reporter run separately.
func WithRunKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, runKey{}, key)
}

// RunKeyFromContext returns the identifier attached by WithRunKey, or "".
func RunKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(runKey{}).(string)

	return key
}
