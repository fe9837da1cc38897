package factcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// ResolveReview transitions a pending review to one of {accepted-new,
// kept-old, kept-both, dismissed}. accepted-new and kept-both commit the new
// claim to the graph before the review row is marked resolved; kept-old and
// dismissed leave the graph untouched.
func (c *Checker) ResolveReview(ctx context.Context, reviewID, status, resolver, reason string, now time.Time) error {
	switch status {
	case store.ReviewStatusAcceptedNew, store.ReviewStatusKeptOld, store.ReviewStatusKeptBoth, store.ReviewStatusDismissed:
	default:
		return fmt.Errorf("factcheck: invalid resolution status %q", status)
	}

	review, err := c.reviews.Get(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.Status != store.ReviewStatusPending {
		return fmt.Errorf("factcheck: review %s is not pending", reviewID)
	}

	if status == store.ReviewStatusAcceptedNew || status == store.ReviewStatusKeptBoth {
		if _, err := c.graph.AddFact(ctx, graph.AddFactInput{
			Fact:    review.NewClaim,
			GroupID: review.GroupID,
			Source:  review.Source,
		}); err != nil {
			return fmt.Errorf("factcheck: commit resolved claim: %w", err)
		}
	}

	return c.reviews.Resolve(ctx, reviewID, status, resolver, reason, now)
}
