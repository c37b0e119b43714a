package store

import (
	"context"
	"time"

	"github.com/samims/taskpulse/pkg/tracing"
)

// queryTracer opens one client span per statement against table.
type queryTracer struct {
	tracer *tracing.Tracer
	table  string
}

func newQueryTracer(table string) queryTracer {
	return queryTracer{
		tracer: tracing.NewTracer(tracing.GetTracer("postgres-store")),
		table:  table,
	}
}

// start returns the span context and the func that closes the span with the
// statement's duration.
func (q queryTracer) start(ctx context.Context, op string) (context.Context, func()) {
	ctx, span := q.tracer.StartClientSpan(ctx, q.table+"."+op)
	begin := time.Now()
	return ctx, func() {
		q.tracer.AddDatabaseAttributes(span, op, q.table, time.Since(begin))
		span.End()
	}
}
