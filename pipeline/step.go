// Package pipeline runs the ordered, named steps that make up a multi transaction send.
//
// Every step produces a Report. A failing step stops the pipeline with a StepError naming
// it. Running the same pipeline again against the same Reporter skips the steps that already
// succeeded, so a send resumes from the step that failed.
package pipeline

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/avast/retry-go/v4"
)

// Definition is the metadata of a step. ID and Version together identify a step across runs.
type Definition struct {
	ID          string          `json:"id"`
	Version     *semver.Version `json:"version"`
	Description string          `json:"description"`
}

func (d Definition) String() string {
	return fmt.Sprintf("%s@%s", d.ID, d.Version)
}

// Handler performs the side effect of a step and returns its output.
type Handler[OUT any] func(ctx context.Context) (OUT, error)

// Step is one unit of a pipeline. Use NewStep to build one.
type Step struct {
	def     Definition
	handler func(ctx context.Context) (any, error)
	retry   *RetryPolicy
}

// StepOption configures a Step.
type StepOption func(*Step)

// RetryPolicy controls retries of a failing step. Steps should only retry reads or
// idempotent writes.
type RetryPolicy struct {
	Attempts uint
	Options  []retry.Option
}

// WithRetry retries the step handler. Return retry.Unrecoverable to stop early.
func WithRetry(attempts uint, opts ...retry.Option) StepOption {
	return func(s *Step) {
		s.retry = &RetryPolicy{Attempts: attempts, Options: opts}
	}
}

// NewStep creates a step. Version can be created with semver.MustParse("1.0.0").
func NewStep[OUT any](id string, version *semver.Version, description string, handler Handler[OUT], opts ...StepOption) Step {
	s := Step{
		def: Definition{
			ID:          id,
			Version:     version,
			Description: description,
		},
		handler: func(ctx context.Context) (any, error) {
			return handler(ctx)
		},
	}
	for _, opt := range opts {
		opt(&s)
	}

	return s
}

// Def returns the step definition.
func (s Step) Def() Definition {
	return s.def
}

func (s Step) execute(ctx context.Context) (any, error) {
	if s.retry == nil {
		return s.handler(ctx)
	}

	opts := append([]retry.Option{
		retry.Context(ctx),
		retry.Attempts(s.retry.Attempts),
		retry.LastErrorOnly(true),
	}, s.retry.Options...)

	return retry.DoWithData(func() (any, error) {
		return s.handler(ctx)
	}, opts...)
}

// StepError is returned when a step fails. Err is the unchanged error of the step.
type StepError struct {
	Step Definition
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step.ID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
