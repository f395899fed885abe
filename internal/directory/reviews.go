package directory

import (
	"context"

	"casinodir/internal/domain/entries"
	"casinodir/internal/domain/reviews"
	"casinodir/internal/domain/storage"
	"casinodir/internal/metrics"
	"casinodir/internal/rating"
)

type ReviewInput struct {
	Username string `json:"username" validate:"required,max=100"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Comment  string `json:"comment" validate:"required,max=5000"`
}

// recompute refreshes the aggregate of entryID inside an open unit of work.
func (s *Service) recompute(ctx context.Context, r *storage.Repos, entryID string) (rating.Aggregate, error) {
	agg, err := rating.Recompute(ctx, entryID, r.Reviews.Ratings, r.Entries.WriteAggregate)
	if err != nil {
		metrics.AggregateErrors.Inc()
		return rating.Aggregate{}, err
	}
	metrics.AggregateRecomputes.Inc()
	return agg, nil
}

// SubmitReview stores a review and refreshes the entry aggregate in the
// same transaction. entryID may also be a slug. The entry row is locked
// first so concurrent submissions on one entry cannot overwrite each
// other's aggregate.
func (s *Service) SubmitReview(ctx context.Context, userID, entryID string, in ReviewInput) (*reviews.Review, rating.Aggregate, error) {
	rv := &reviews.Review{
		EntryID:  entryID,
		UserID:   userID,
		Username: in.Username,
		Rating:   in.Rating,
		Comment:  in.Comment,
	}
	if err := reviews.Validate(rv); err != nil {
		return nil, rating.Aggregate{}, err
	}
	if !validID(entryID) {
		e, err := s.lookup(ctx, entryID)
		if err != nil {
			return nil, rating.Aggregate{}, err
		}
		entryID = e.ID
		rv.EntryID = e.ID
	}

	var agg rating.Aggregate
	err := s.uow.WithTx(ctx, func(r *storage.Repos) error {
		if err := r.Entries.LockForUpdate(ctx, entryID); err != nil {
			return err
		}
		if err := r.Reviews.Create(ctx, rv); err != nil {
			return err
		}
		var err error
		agg, err = s.recompute(ctx, r, entryID)
		return err
	})
	if err != nil {
		s.logger.Errorw("review submission rolled back", "entry_id", entryID, "user_id", userID, "error", err)
		return nil, rating.Aggregate{}, err
	}

	metrics.ReviewsSubmitted.Inc()
	s.logger.Infow("review submitted", "review_id", rv.ID, "entry_id", entryID, "rating_avg", agg.Avg, "rating_count", agg.Count)
	return rv, agg, nil
}

// DeleteReview removes a review on behalf of its author or an
// administrator and refreshes the aggregate atomically.
func (s *Service) DeleteReview(ctx context.Context, actor Actor, reviewID string) (rating.Aggregate, error) {
	if !validID(reviewID) {
		return rating.Aggregate{}, reviews.ErrNotFound
	}

	rv, err := s.repos.Reviews.GetByID(ctx, reviewID)
	if err != nil {
		return rating.Aggregate{}, err
	}
	if rv.UserID != actor.ID && !actor.IsAdmin {
		return rating.Aggregate{}, ErrForbidden
	}

	var agg rating.Aggregate
	err = s.uow.WithTx(ctx, func(r *storage.Repos) error {
		if err := r.Entries.LockForUpdate(ctx, rv.EntryID); err != nil {
			return err
		}
		if err := r.Reviews.Delete(ctx, reviewID); err != nil {
			return err
		}
		var err error
		agg, err = s.recompute(ctx, r, rv.EntryID)
		return err
	})
	if err != nil {
		s.logger.Errorw("review deletion rolled back", "review_id", reviewID, "error", err)
		return rating.Aggregate{}, err
	}

	metrics.ReviewsDeleted.Inc()
	s.logger.Infow("review deleted", "review_id", reviewID, "entry_id", rv.EntryID, "by_admin", rv.UserID != actor.ID)
	return agg, nil
}

// RecomputeEntry rewrites the aggregate from the current reviews. It heals
// an aggregate left stale by writes made outside this service.
func (s *Service) RecomputeEntry(ctx context.Context, entryID string) (rating.Aggregate, error) {
	if !validID(entryID) {
		return rating.Aggregate{}, entries.ErrNotFound
	}

	var agg rating.Aggregate
	err := s.uow.WithTx(ctx, func(r *storage.Repos) error {
		if err := r.Entries.LockForUpdate(ctx, entryID); err != nil {
			return err
		}
		var err error
		agg, err = s.recompute(ctx, r, entryID)
		return err
	})
	if err != nil {
		return rating.Aggregate{}, err
	}
	s.logger.Infow("aggregate recomputed", "entry_id", entryID, "rating_avg", agg.Avg, "rating_count", agg.Count)
	return agg, nil
}

// RecomputeAll runs RecomputeEntry for every entry and returns how many
// were refreshed.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	list, err := s.repos.Entries.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, e := range list {
		if _, err := s.RecomputeEntry(ctx, e.ID); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

// Reviews lists the reviews of an entry, newest first. The entry is given
// by slug or id.
func (s *Service) Reviews(ctx context.Context, slugOrID string) ([]reviews.Review, error) {
	e, err := s.lookup(ctx, slugOrID)
	if err != nil {
		return nil, err
	}
	return s.repos.Reviews.ListByEntry(ctx, e.ID)
}
