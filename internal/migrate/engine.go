package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/trackmigrate/internal/telemetry"
	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/usermap"
)

const scopeName = "github.com/steveyegge/trackmigrate/migrate"

// ErrNothingToMigrate is returned when the source has no projects or no issues.
var ErrNothingToMigrate = errors.New("nothing to migrate")

// Engine runs a full migration: extract from Source, transform, import
// into Dest.
type Engine struct {
	Source  tracker.Source
	Dest    tracker.Destination
	Users   usermap.Mapping
	Mapping *tracker.MappingConfig
	Logger  *slog.Logger

	Extract ExtractOptions
	DryRun  bool
}

// Summary reports a finished (or failed) run.
type Summary struct {
	Source    string        `json:"source" yaml:"source"`
	DryRun    bool          `json:"dry_run" yaml:"dry_run"`
	Projects  int           `json:"projects" yaml:"projects"`
	Extracted int           `json:"extracted" yaml:"extracted"`
	Queues    int           `json:"queues" yaml:"queues"`
	Processed int           `json:"processed" yaml:"processed"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	Import    *ImportResult `json:"import,omitempty" yaml:"import,omitempty"`
}

// Run executes the three phases in order. When the import fails, the partial
// Summary is returned alongside the error.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	if err := e.Source.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	summary := &Summary{Source: e.Source.Name(), DryRun: e.DryRun, StartedAt: start}
	defer func() { summary.Elapsed = time.Since(start) }()

	tracer := telemetry.Tracer(scopeName)
	ctx, span := tracer.Start(ctx, "migrate.run", trace.WithAttributes(
		attribute.String("tm.source", e.Source.Name()),
		attribute.Bool("tm.dry_run", e.DryRun),
	))
	defer span.End()

	e.Logger.Info("migration started", "source", e.Source.DisplayName(), "dry_run", e.DryRun)

	xctx, xspan := tracer.Start(ctx, "migrate.extract")
	extraction, err := Extract(xctx, e.Source, e.Extract, e.Logger)
	if err == nil {
		summary.Projects = len(extraction.Projects)
		summary.Extracted = len(extraction.Issues)
		xspan.SetAttributes(
			attribute.Int("tm.projects", summary.Projects),
			attribute.Int("tm.issues", summary.Extracted),
		)
		if summary.Projects == 0 || summary.Extracted == 0 {
			err = fmt.Errorf("%s returned %d projects and %d issues: %w",
				e.Source.DisplayName(), summary.Projects, summary.Extracted, ErrNothingToMigrate)
		}
	}
	endSpan(xspan, err)
	if err != nil {
		return e.fail(span, summary, err)
	}

	t := &Transformer{
		Users:   e.Users,
		Mapping: e.Mapping,
		Fetcher: tracker.Fetcher(e.Source),
		Logger:  e.Logger,
	}
	tctx, tspan := tracer.Start(ctx, "migrate.transform")
	queues, issues, err := t.Transform(tctx, extraction.Projects, extraction.Issues)
	endSpan(tspan, err)
	if err != nil {
		return e.fail(span, summary, err)
	}
	summary.Queues = len(queues)
	summary.Processed = len(issues)

	im := &Importer{Dest: telemetry.WrapDestination(e.Dest), Logger: e.Logger, DryRun: e.DryRun}
	ictx, ispan := tracer.Start(ctx, "migrate.import", trace.WithAttributes(
		attribute.Int("tm.queues", len(queues)),
		attribute.Int("tm.issues", len(issues)),
	))
	result, err := im.Import(ictx, queues, issues)
	endSpan(ispan, err)
	summary.Import = result
	if err != nil {
		return e.fail(span, summary, err)
	}

	span.SetAttributes(
		attribute.Int("tm.issues.created", result.Created),
		attribute.Int("tm.issues.skipped", result.Skipped),
		attribute.Int("tm.warnings", len(result.Warnings)),
	)
	e.Logger.Info("migration finished",
		"processed", summary.Processed, "created", result.Created, "skipped", result.Skipped,
		"warnings", len(result.Warnings), "elapsed", time.Since(start).Round(time.Millisecond))
	return summary, nil
}

func (e *Engine) fail(span trace.Span, summary *Summary, err error) (*Summary, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.Logger.Error("migration aborted", "error", err)
	return summary, err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
