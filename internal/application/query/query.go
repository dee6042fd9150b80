// Package query contains read operations (CQRS - Queries).
// Aggregate queries read through an optional cache and collapse concurrent
// identical misses into one storage round trip, never across a write.
package query

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
)

var tracer = otel.Tracer("gradebook/application/query")

func endSpan(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case shared.IsNotFound(err) || shared.IsValidation(err):
		// Caller errors are not span failures.
		span.SetAttributes(errorKind(err))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func studentCacheOrNop(c student.Cache) student.Cache {
	if c == nil {
		return student.NopCache{}
	}
	return c
}

func aggregateCacheOrNop(c score.AggregateCache) score.AggregateCache {
	if c == nil {
		return score.NopAggregateCache{}
	}
	return c
}
