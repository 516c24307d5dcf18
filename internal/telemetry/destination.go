package telemetry

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/trackmigrate/internal/tracker"
	"github.com/steveyegge/trackmigrate/internal/types"
)

const destinationScopeName = "github.com/steveyegge/trackmigrate/destination"

// InstrumentedDestination wraps tracker.Destination with OTel tracing and metrics.
// Every method gets a span and is counted in tm.destination.* metrics.
// Use WrapDestination to create one; it returns the original destination
// unchanged when telemetry is disabled.
type InstrumentedDestination struct {
	inner  tracker.Destination
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapDestination returns d decorated with OTel instrumentation.
// When telemetry is disabled, d is returned as-is.
func WrapDestination(d tracker.Destination) tracker.Destination {
	if !Enabled() {
		return d
	}
	m := Meter(destinationScopeName)
	ops, _ := m.Int64Counter("tm.destination.operations",
		metric.WithDescription("Total destination API operations executed"),
	)
	dur, _ := m.Float64Histogram("tm.destination.operation.duration",
		metric.WithDescription("Destination API operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("tm.destination.errors",
		metric.WithDescription("Total destination API operation errors"),
	)
	return &InstrumentedDestination{
		inner:  d,
		tracer: Tracer(destinationScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named destination operation.
func (d *InstrumentedDestination) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("tm.operation", name)}, attrs...)
	ctx, span := d.tracer.Start(ctx, "destination."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	d.ops.Add(ctx, 1, metric.WithAttributes(attribute.String("tm.operation", name)))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (d *InstrumentedDestination) done(ctx context.Context, span trace.Span, start time.Time, name string, err error) {
	attrs := metric.WithAttributes(attribute.String("tm.operation", name))
	d.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.errs.Add(ctx, 1, attrs)
	}
	span.End()
}

func (d *InstrumentedDestination) GetQueue(ctx context.Context, key string) (*types.Queue, error) {
	ctx, span, t := d.op(ctx, "GetQueue", attribute.String("tm.queue", key))
	v, err := d.inner.GetQueue(ctx, key)
	d.done(ctx, span, t, "GetQueue", err)
	return v, err
}

func (d *InstrumentedDestination) CreateQueue(ctx context.Context, queue types.Queue) (*types.Queue, error) {
	ctx, span, t := d.op(ctx, "CreateQueue", attribute.String("tm.queue", queue.Key))
	v, err := d.inner.CreateQueue(ctx, queue)
	d.done(ctx, span, t, "CreateQueue", err)
	return v, err
}

func (d *InstrumentedDestination) GetUser(ctx context.Context, uid string) (*types.User, error) {
	ctx, span, t := d.op(ctx, "GetUser", attribute.String("tm.user", uid))
	v, err := d.inner.GetUser(ctx, uid)
	d.done(ctx, span, t, "GetUser", err)
	return v, err
}

func (d *InstrumentedDestination) ListUsers(ctx context.Context) ([]types.User, error) {
	ctx, span, t := d.op(ctx, "ListUsers")
	v, err := d.inner.ListUsers(ctx)
	span.SetAttributes(attribute.Int("tm.user.count", len(v)))
	d.done(ctx, span, t, "ListUsers", err)
	return v, err
}

func (d *InstrumentedDestination) GetIssue(ctx context.Context, key string) (*types.Issue, error) {
	ctx, span, t := d.op(ctx, "GetIssue", attribute.String("tm.issue", key))
	v, err := d.inner.GetIssue(ctx, key)
	d.done(ctx, span, t, "GetIssue", err)
	return v, err
}

func (d *InstrumentedDestination) CreateIssue(ctx context.Context, issue *types.NormalizedIssue) (*types.Issue, error) {
	ctx, span, t := d.op(ctx, "CreateIssue",
		attribute.String("tm.queue", issue.QueueKey),
		attribute.String("tm.source_key", issue.SourceKey),
	)
	v, err := d.inner.CreateIssue(ctx, issue)
	if v != nil {
		span.SetAttributes(attribute.String("tm.issue", v.Key))
	}
	d.done(ctx, span, t, "CreateIssue", err)
	return v, err
}

func (d *InstrumentedDestination) UpdateIssue(ctx context.Context, key string, update types.IssueUpdate) error {
	ctx, span, t := d.op(ctx, "UpdateIssue", attribute.String("tm.issue", key))
	err := d.inner.UpdateIssue(ctx, key, update)
	d.done(ctx, span, t, "UpdateIssue", err)
	return err
}

func (d *InstrumentedDestination) UpdateFollowers(ctx context.Context, key string, add, remove []string) error {
	ctx, span, t := d.op(ctx, "UpdateFollowers",
		attribute.String("tm.issue", key),
		attribute.Int("tm.followers.add", len(add)),
		attribute.Int("tm.followers.remove", len(remove)),
	)
	err := d.inner.UpdateFollowers(ctx, key, add, remove)
	d.done(ctx, span, t, "UpdateFollowers", err)
	return err
}

func (d *InstrumentedDestination) CreateComment(ctx context.Context, issueKey string, comment types.Comment) error {
	ctx, span, t := d.op(ctx, "CreateComment", attribute.String("tm.issue", issueKey))
	err := d.inner.CreateComment(ctx, issueKey, comment)
	d.done(ctx, span, t, "CreateComment", err)
	return err
}

func (d *InstrumentedDestination) UploadAttachment(ctx context.Context, issueKey, filename string, content io.Reader) error {
	ctx, span, t := d.op(ctx, "UploadAttachment",
		attribute.String("tm.issue", issueKey),
		attribute.String("tm.filename", filename),
	)
	err := d.inner.UploadAttachment(ctx, issueKey, filename, content)
	d.done(ctx, span, t, "UploadAttachment", err)
	return err
}

func (d *InstrumentedDestination) CreateLink(ctx context.Context, issueKey, relationship, targetKey string) error {
	ctx, span, t := d.op(ctx, "CreateLink",
		attribute.String("tm.issue", issueKey),
		attribute.String("tm.link.type", relationship),
		attribute.String("tm.link.target", targetKey),
	)
	err := d.inner.CreateLink(ctx, issueKey, relationship, targetKey)
	d.done(ctx, span, t, "CreateLink", err)
	return err
}

func (d *InstrumentedDestination) FindIssues(ctx context.Context, filter map[string]string, page, perPage int) (*types.IssuePage, error) {
	attrs := []attribute.KeyValue{attribute.Int("tm.page", page), attribute.Int("tm.per_page", perPage)}
	for k, v := range filter {
		attrs = append(attrs, attribute.String("tm.filter."+k, v))
	}
	ctx, span, t := d.op(ctx, "FindIssues", attrs...)
	v, err := d.inner.FindIssues(ctx, filter, page, perPage)
	d.done(ctx, span, t, "FindIssues", err)
	return v, err
}

var _ tracker.Destination = (*InstrumentedDestination)(nil)
