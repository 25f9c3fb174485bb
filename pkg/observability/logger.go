package observability

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/crmacl/pkg/contextkeys"
)

// NewLogger creates a JSON logger. Unknown levels fall back to info.
func NewLogger(level string, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	log := logrus.New()
	log.SetOutput(output)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.JSONFormatter{})
	return log
}

// FromContext returns the request logger stored in ctx, or an entry of base
// carrying the request and user ids found in ctx.
func FromContext(ctx context.Context, base *logrus.Logger) *logrus.Entry {
	if entry := contextkeys.GetLogger(ctx); entry != nil {
		return WithTraceContext(ctx, entry)
	}
	if base == nil {
		base = logrus.StandardLogger()
	}

	fields := logrus.Fields{}
	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	if userID := contextkeys.GetUserID(ctx); userID != "" {
		fields["user_id"] = userID
	}
	return WithTraceContext(ctx, base.WithFields(fields))
}

// WithTraceContext adds the trace and span ids of a recording span.
func WithTraceContext(ctx context.Context, entry *logrus.Entry) *logrus.Entry {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return entry
	}

	spanCtx := span.SpanContext()
	return entry.WithFields(logrus.Fields{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	})
}
