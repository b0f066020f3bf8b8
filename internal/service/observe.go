// Package service holds helpers shared by the domain services under it.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"symbio/internal/apperr"
	"symbio/internal/store"
	"symbio/pkg/metrics"
	"symbio/pkg/otel"
)

// Observe 为一次业务操作打点：span、耗时直方图、按结果分类的计数
func Observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := otel.StartSpan(ctx, "service."+op)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	outcome := Outcome(err)
	metrics.RecordLifecycle(op, outcome, time.Since(start))

	span.SetAttributes(attribute.String("symbio.outcome", outcome))
	if err != nil && outcome == "internal" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Outcome 把错误归类为指标标签
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

// Translate 把 store 的哨兵错误转换为 apperr；已是 apperr 的错误原样返回
func Translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case apperr.KindOf(err) != apperr.KindInternal:
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(op, "resource not found")
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Conflict(op, "resource already exists")
	case errors.Is(err, store.ErrStale):
		return apperr.InvalidState(op, "status changed concurrently")
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
