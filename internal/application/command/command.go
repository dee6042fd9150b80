// Package command contains write operations (CQRS - Commands).
// Every command validates its input, writes through a repository and, once
// the write has committed, publishes a domain event.
package command

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

var tracer = otel.Tracer("gradebook/application/command")

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, shared.Event) error { return nil }

func publisherOrNop(p shared.EventPublisher) shared.EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
