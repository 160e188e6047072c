package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
)

const tracerName = "github.com/wormhole-foundation/wormhole-connect-go/pipeline"

// Bundle carries the dependencies of a pipeline run.
type Bundle struct {
	Logger   logger.Logger
	Reporter Reporter
}

// NewBundle creates a Bundle. A nil reporter is replaced by a fresh MemoryReporter.
func NewBundle(lggr logger.Logger, reporter Reporter) Bundle {
	if reporter == nil {
		reporter = NewMemoryReporter()
	}

	return Bundle{Logger: lggr, Reporter: reporter}
}

// Result is the outcome of a successful run.
type Result struct {
	Key     string
	Reports []Report
}

// Output returns the output of the last step.
func (r Result) Output() any {
	if len(r.Reports) == 0 {
		return nil
	}

	return r.Reports[len(r.Reports)-1].Output
}

// OutputAs returns the output of the last step of res asserted to T.
func OutputAs[T any](res Result) (T, error) {
	out, ok := res.Output().(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("pipeline %s: last step output is %T, not %T", res.Key, res.Output(), zero)
	}

	return out, nil
}

// Run executes steps in order. key identifies the run, so a second Run with the same key and
// reporter reuses the output of every step that already succeeded. The first failure stops the
// run and is returned as a StepError.
func Run(ctx context.Context, b Bundle, key string, steps ...Step) (Result, error) {
	res := Result{Key: key}
	tracer := otel.Tracer(tracerName)

	for _, step := range steps {
		def := step.Def()

		if prev, found := previousSuccess(b.Reporter, key, def); found {
			b.Logger.Infow("Step already executed. Reusing previous result",
				"key", key, "step", def.ID, "version", def.Version)
			res.Reports = append(res.Reports, prev)

			continue
		}

		if err := ctx.Err(); err != nil {
			return res, &StepError{Step: def, Err: err}
		}

		b.Logger.Infow("Executing step", "key", key, "step", def.ID, "version", def.Version,
			"description", def.Description)

		stepCtx, span := tracer.Start(ctx, "pipeline."+def.ID, trace.WithAttributes(
			attribute.String("pipeline.key", key),
			attribute.String("step.version", def.Version.String()),
		))
		output, err := step.execute(stepCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		report := NewReport(key, def, output, err)
		if addErr := b.Reporter.AddReport(report); addErr != nil {
			return res, fmt.Errorf("failed to record report of step %s: %w", def.ID, addErr)
		}

		if err != nil {
			b.Logger.Warnw("Step failed", "key", key, "step", def.ID, "error", err)
			return res, &StepError{Step: def, Err: err}
		}

		res.Reports = append(res.Reports, report)
	}

	return res, nil
}

func previousSuccess(r Reporter, key string, def Definition) (Report, bool) {
	reports, err := r.GetReports()
	if err != nil {
		return Report{}, false
	}

	for _, rep := range reports {
		if rep.Key == key && rep.Def.ID == def.ID && rep.Succeeded() &&
			rep.Def.Version != nil && def.Version != nil && rep.Def.Version.Equal(def.Version) {
			return rep, true
		}
	}

	return Report{}, false
}
