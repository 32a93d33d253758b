package observability

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// InitLogger sets the global logger. Development output is human readable;
// every other environment writes JSON lines tagged with the service name.
func InitLogger(serviceName, env string) {
	log.Logger = NewLogger(os.Stdout, serviceName, env)
}

// NewLogger builds the logger InitLogger installs
func NewLogger(out io.Writer, serviceName, env string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	}
	return zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Str("environment", env).
		Logger()
}

// LogFields identify the coverage work a log line belongs to
type LogFields struct {
	Insurer    string
	ProposalID string
	RowID      string
	EventID    string
}

type logFieldsKey struct{}

// WithLogFields returns a context carrying f. Empty fields keep the value
// already present in ctx.
func WithLogFields(ctx context.Context, f LogFields) context.Context {
	cur := LogFieldsFromContext(ctx)
	if f.Insurer != "" {
		cur.Insurer = f.Insurer
	}
	if f.ProposalID != "" {
		cur.ProposalID = f.ProposalID
	}
	if f.RowID != "" {
		cur.RowID = f.RowID
	}
	if f.EventID != "" {
		cur.EventID = f.EventID
	}
	return context.WithValue(ctx, logFieldsKey{}, cur)
}

// LogFieldsFromContext returns the fields attached with WithLogFields
func LogFieldsFromContext(ctx context.Context) LogFields {
	f, _ := ctx.Value(logFieldsKey{}).(LogFields)
	return f
}

// LoggerFromContext returns the global logger with trace ids and any log
// fields carried by ctx
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	return loggerFrom(ctx, log.Logger)
}

func loggerFrom(ctx context.Context, base zerolog.Logger) *zerolog.Logger {
	b := base.With()

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		b = b.Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String())
	}

	f := LogFieldsFromContext(ctx)
	if f.Insurer != "" {
		b = b.Str("insurer", f.Insurer)
	}
	if f.ProposalID != "" {
		b = b.Str("proposal_id", f.ProposalID)
	}
	if f.RowID != "" {
		b = b.Str("universe_row_id", f.RowID)
	}
	if f.EventID != "" {
		b = b.Str("event_id", f.EventID)
	}

	logger := b.Logger()
	return &logger
}
