package query

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

func errorKind(err error) attribute.KeyValue {
	kind := "other"
	switch {
	case shared.IsNotFound(err):
		kind = "not_found"
	case shared.IsValidation(err):
		kind = "validation"
	}
	return attribute.String("error.kind", kind)
}

func cacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool("cache.hit", hit)
}
