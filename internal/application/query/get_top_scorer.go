package query

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TOP SCORER QUERY
// Highest score of a subject across all students. Equal values resolve to
// the lowest score id, so repeated calls on unchanged data agree.
// ══════════════════════════════════════════════════════════════════════════════

// GetTopScorerQuery names the subject, matched case-insensitively.
type GetTopScorerQuery struct {
	Subject string
}

// GetTopScorerHandler answers GetTopScorerQuery.
type GetTopScorerHandler struct {
	scores score.Repository
	cache  score.AggregateCache
	clock  *WriteClock
	reads  flights
}

// NewGetTopScorerHandler creates a new handler. cache and clock may be nil.
func NewGetTopScorerHandler(scores score.Repository, cache score.AggregateCache, clock *WriteClock) *GetTopScorerHandler {
	return &GetTopScorerHandler{
		scores: scores,
		cache:  aggregateCacheOrNop(cache),
		clock:  clock,
		reads:  flights{clock: clock},
	}
}

// Handle returns the winning score or shared.ErrSubjectNotFound. A blank
// subject matches nothing.
func (h *GetTopScorerHandler) Handle(ctx context.Context, q GetTopScorerQuery) (top *score.Score, err error) {
	ctx, span := tracer.Start(ctx, "GetTopScorer")
	defer func() { endSpan(span, err) }()

	subject := strings.TrimSpace(q.Subject)
	span.SetAttributes(attribute.String("score.subject", subject))
	if subject == "" {
		return nil, shared.ErrSubjectNotFound
	}

	if cached, err := h.cache.GetTopScorer(ctx, subject); err == nil {
		span.SetAttributes(cacheHit(true))
		return cached, nil
	}
	span.SetAttributes(cacheHit(false))

	v, err := h.reads.do(ctx, subject, func(ctx context.Context) (any, error) {
		start := h.clock.Now()
		top, err := h.scores.TopScorer(ctx, subject)
		if err != nil {
			return nil, fmt.Errorf("top_scorer: %w", err)
		}

		fill(ctx, h.clock, start,
			func(ctx context.Context) error { return h.cache.SetTopScorer(ctx, subject, top) },
			func(ctx context.Context) error { return h.cache.DeleteTopScorer(ctx, subject) },
		)
		return top, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers sharing a flight must not share the pointer.
	result := *v.(*score.Score)
	return &result, nil
}
