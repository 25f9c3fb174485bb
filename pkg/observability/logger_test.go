package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/platinummonkey/crmacl/pkg/contextkeys"
	"github.com/platinummonkey/crmacl/pkg/entity"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("scope", "Lead").Debug("table built")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "table built", line["msg"])
	assert.Equal(t, "Lead", line["scope"])

	assert.Equal(t, logrus.InfoLevel, NewLogger("loud", &buf).GetLevel())
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("info", &buf)

	ctx := contextkeys.WithRequestID(context.Background(), "req-1")
	ctx = contextkeys.WithUser(ctx, &entity.User{ID: "u1"})

	entry := FromContext(ctx, log)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, "u1", entry.Data["user_id"])

	stored := log.WithField("component", "api")
	entry = FromContext(contextkeys.WithLogger(ctx, stored), log)
	assert.Equal(t, "api", entry.Data["component"])
	assert.NotContains(t, entry.Data, "request_id")
}

func TestWithTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	entry := logrus.NewEntry(logrus.New())
	assert.Empty(t, WithTraceContext(context.Background(), entry).Data)

	ctx, span := tp.Tracer("test").Start(context.Background(), "check")
	defer span.End()

	got := WithTraceContext(ctx, entry)
	assert.Equal(t, span.SpanContext().TraceID().String(), got.Data["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), got.Data["span_id"])
}
