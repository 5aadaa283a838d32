package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "db_query_duration_seconds",
	Help:    "Postgres statement latency by leading SQL verb and outcome.",
	Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
}, []string{"op", "result"})

type queryStartKey struct{}

type queryStart struct {
	at  time.Time
	sql string
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

// queryTracer records every statement in queryDuration and logs the slow ones.
type queryTracer struct {
	slow time.Duration
	log  *zap.Logger
}

func newQueryTracer(slow time.Duration, l *zap.Logger) *queryTracer {
	return &queryTracer{slow: slow, log: l.With(zap.String("component", "postgres"))}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), sql: data.SQL})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	took := time.Since(qs.at)
	result := "ok"
	if data.Err != nil {
		result = "error"
	}
	queryDuration.WithLabelValues(sqlVerb(qs.sql), result).Observe(took.Seconds())
	if t.slow > 0 && took >= t.slow {
		t.log.Warn("slow query", zap.String("op", sqlVerb(qs.sql)), zap.Duration("took", took))
	}
}

// sqlVerb is the first keyword of a statement, lowercased; CTEs report "with".
func sqlVerb(sql string) string {
	f := strings.Fields(sql)
	if len(f) == 0 {
		return "unknown"
	}
	return strings.ToLower(f[0])
}
