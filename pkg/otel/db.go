package otel

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TxSpan 包装一次数据库事务，system 为 postgresql 或 sqlite
func TxSpan(ctx context.Context, system string, fn func(context.Context) error) error {
	ctx, span := Tracer().Start(ctx, "db.tx",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", system)),
	)
	defer span.End()

	err := fn(ctx)
	RecordDBError(span, err)
	return err
}

// RecordDBError 记录数据库错误到 span；no rows 不算错误
func RecordDBError(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, pgx.ErrNoRows):
		span.SetStatus(codes.Ok, "no rows")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
