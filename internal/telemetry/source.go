package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskmill/taskmill/internal/fetch"
	"github.com/taskmill/taskmill/internal/notion"
)

const sourceScopeName = "github.com/taskmill/taskmill/source"

// InstrumentedSource wraps a fetch.Source with OTel tracing and metrics.
// Every remote call gets a span and is counted in tm.source.* metrics.
// Use WrapSource to create one; it returns the original source unchanged
// when telemetry is disabled.
type InstrumentedSource struct {
	inner  fetch.Source
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapSource returns src decorated with OTel instrumentation.
// When telemetry is disabled, src is returned as-is with zero overhead.
func WrapSource(src fetch.Source) fetch.Source {
	if !Enabled() {
		return src
	}
	m := Meter(sourceScopeName)
	ops, _ := m.Int64Counter("tm.source.requests",
		metric.WithDescription("Total remote source requests"),
	)
	dur, _ := m.Float64Histogram("tm.source.request.duration",
		metric.WithDescription("Remote source request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("tm.source.errors",
		metric.WithDescription("Total remote source request failures"),
	)
	return &InstrumentedSource{
		inner:  src,
		tracer: Tracer(sourceScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and counts the named source operation.
func (s *InstrumentedSource) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	ctx, span := s.tracer.Start(ctx, "source."+name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

// done ends the span and records duration and optional error.
func (s *InstrumentedSource) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (s *InstrumentedSource) ListRecords(ctx context.Context, cursor string) ([]notion.Record, string, error) {
	attrs := []attribute.KeyValue{attribute.String("tm.source.op", "list_records")}
	ctx, span, t := s.op(ctx, "ListRecords", attrs...)
	records, next, err := s.inner.ListRecords(ctx, cursor)
	s.done(ctx, span, t, err, attrs...)
	return records, next, err
}

func (s *InstrumentedSource) BlockTree(ctx context.Context, pageID string) ([]notion.Block, error) {
	attrs := []attribute.KeyValue{
		attribute.String("tm.source.op", "block_tree"),
		attribute.String("tm.task.id", pageID),
	}
	ctx, span, t := s.op(ctx, "BlockTree", attrs...)
	blocks, err := s.inner.BlockTree(ctx, pageID)
	s.done(ctx, span, t, err, attrs...)
	return blocks, err
}

func (s *InstrumentedSource) Comments(ctx context.Context, pageID string) ([]notion.Comment, error) {
	attrs := []attribute.KeyValue{
		attribute.String("tm.source.op", "comments"),
		attribute.String("tm.task.id", pageID),
	}
	ctx, span, t := s.op(ctx, "Comments", attrs...)
	comments, err := s.inner.Comments(ctx, pageID)
	s.done(ctx, span, t, err, attrs...)
	return comments, err
}

func (s *InstrumentedSource) DownloadFile(ctx context.Context, fileURL string) ([]byte, error) {
	// Attachment URLs are presigned; they stay out of span attributes.
	attrs := []attribute.KeyValue{attribute.String("tm.source.op", "download_file")}
	ctx, span, t := s.op(ctx, "DownloadFile", attrs...)
	data, err := s.inner.DownloadFile(ctx, fileURL)
	s.done(ctx, span, t, err, attrs...)
	return data, err
}
