package repos

import (
	"context"
	"log/slog"
	"time"

	"github.com/DataDog/go-sqllexer"
	"github.com/jackc/pgx/v5"
)

// tracer logs failed and slow database calls with normalized SQL.
type tracer struct{}

var normalizer = sqllexer.NewNormalizer()

type ctxKey int

const (
	_ ctxKey = iota
	traceQueryCtxKey
	traceBatchCtxKey
	traceCopyFromCtxKey
	traceConnectCtxKey
)

const slowQueryThreshold = 200 * time.Millisecond

func normalize(sql string) string {
	out, _, err := normalizer.Normalize(sql)
	if err != nil {
		slog.Debug("normalize sql", "err", err)
		return sql
	}
	return out
}

type traceQueryData struct {
	startTime time.Time
	sql       string
}

func (tl *tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceQueryCtxKey, &traceQueryData{
		startTime: time.Now(),
		sql:       normalize(data.SQL),
	})
}

func (tl *tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	queryData, ok := ctx.Value(traceQueryCtxKey).(*traceQueryData)
	if !ok {
		return
	}
	interval := time.Since(queryData.startTime)

	if data.Err != nil {
		slog.Warn("query failed", "sql", queryData.sql, "elapsed", interval, "err", data.Err)
		return
	}
	if interval > slowQueryThreshold {
		slog.Info("slow query", "sql", queryData.sql, "elapsed", interval, "tag", data.CommandTag.String())
	}
}

type traceBatchData struct {
	startTime time.Time
	sql       map[string]int
}

func (tl *tracer) TraceBatchStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchStartData) context.Context {
	sql := make(map[string]int)
	for _, q := range data.Batch.QueuedQueries {
		sql[normalize(q.SQL)]++
	}
	return context.WithValue(ctx, traceBatchCtxKey, &traceBatchData{
		startTime: time.Now(),
		sql:       sql,
	})
}

func (tl *tracer) TraceBatchQuery(_ context.Context, _ *pgx.Conn, data pgx.TraceBatchQueryData) {
	if data.Err != nil {
		slog.Warn("batch query failed", "sql", normalize(data.SQL), "err", data.Err)
	}
}

func (tl *tracer) TraceBatchEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchEndData) {
	batchData, ok := ctx.Value(traceBatchCtxKey).(*traceBatchData)
	if !ok {
		return
	}
	interval := time.Since(batchData.startTime)

	if data.Err != nil {
		slog.Warn("batch failed", "elapsed", interval, "err", data.Err)
		return
	}
	if interval > slowQueryThreshold {
		slog.Info("slow batch", "queries", batchData.sql, "elapsed", interval)
	}
}

type traceCopyFromData struct {
	startTime   time.Time
	tableName   pgx.Identifier
	columnNames []string
}

func (tl *tracer) TraceCopyFromStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceCopyFromStartData) context.Context {
	return context.WithValue(ctx, traceCopyFromCtxKey, &traceCopyFromData{
		startTime:   time.Now(),
		tableName:   data.TableName,
		columnNames: data.ColumnNames,
	})
}

func (tl *tracer) TraceCopyFromEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceCopyFromEndData) {
	copyData, ok := ctx.Value(traceCopyFromCtxKey).(*traceCopyFromData)
	if !ok {
		return
	}
	interval := time.Since(copyData.startTime)

	if data.Err != nil {
		slog.Warn("copy failed", "table", copyData.tableName.Sanitize(), "columns", copyData.columnNames, "elapsed", interval, "err", data.Err)
		return
	}
	slog.Debug("copied rows", "table", copyData.tableName.Sanitize(), "rows", data.CommandTag.RowsAffected(), "elapsed", interval)
}

type traceConnectData struct {
	startTime  time.Time
	connConfig *pgx.ConnConfig
}

func (tl *tracer) TraceConnectStart(ctx context.Context, data pgx.TraceConnectStartData) context.Context {
	return context.WithValue(ctx, traceConnectCtxKey, &traceConnectData{
		startTime:  time.Now(),
		connConfig: data.ConnConfig,
	})
}

func (tl *tracer) TraceConnectEnd(ctx context.Context, data pgx.TraceConnectEndData) {
	connectData, ok := ctx.Value(traceConnectCtxKey).(*traceConnectData)
	if !ok {
		return
	}
	if data.Err != nil {
		cfg := connectData.connConfig
		slog.Warn("connect failed", "host", cfg.Host, "port", cfg.Port, "database", cfg.Database,
			"elapsed", time.Since(connectData.startTime), "err", data.Err)
	}
}

func (tl *tracer) TracePrepareStart(ctx context.Context, _ *pgx.Conn, _ pgx.TracePrepareStartData) context.Context {
	return ctx
}

func (tl *tracer) TracePrepareEnd(context.Context, *pgx.Conn, pgx.TracePrepareEndData) {}
