package reviews

import (
	"context"
	"strings"
	"time"

	"github.com/mysellum/marketplace-api/internal/common"
)

// Review is a buyer's rating of a store. ReviewID is a per-store ordinal
// rendered as a string.
type Review struct {
	ID        string    `json:"reviewId"`
	StoreID   string    `json:"storeId"`
	UserEmail string    `json:"userEmail"`
	UserName  string    `json:"userName"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"datetimeCreated"`
	UpdatedAt time.Time `json:"datetimeAdjusted"`
}

// Repository persists reviews. Mutations recompute and store the owning
// store's average rating in the same transaction.
type Repository interface {
	Add(ctx context.Context, r Review) (Review, string, error)
	Update(ctx context.Context, storeID, reviewID, userEmail string, rating int, text string) (Review, string, error)
	Delete(ctx context.Context, storeID, reviewID, userEmail string) (string, error)
	ListByStore(ctx context.Context, storeID string, limit, offset int) ([]Review, error)
	UserHasReview(ctx context.Context, storeID, userEmail string) (bool, error)
}

// UserDirectory resolves reviewer display names.
type UserDirectory interface {
	UserName(ctx context.Context, email string) (firstName, lastName string, err error)
}

// Input is the payload for adding or editing a review.
type Input struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Text   string `json:"text"`
}

// Service implements store review CRUD.
type Service struct {
	Repo  Repository
	Users UserDirectory
}

// Add creates a review for the store; a user may review a store once. It
// returns the created review and the store's new average rating.
func (s *Service) Add(ctx context.Context, actor, storeID string, in Input) (Review, string, error) {
	exists, err := s.Repo.UserHasReview(ctx, storeID, actor)
	if err != nil {
		return Review{}, "", err
	}
	if exists {
		return Review{}, "", common.InvalidInput("user already submitted a review for this store", nil)
	}
	first, last, err := s.Users.UserName(ctx, actor)
	if err != nil {
		return Review{}, "", err
	}
	r := Review{
		StoreID:   storeID,
		UserEmail: actor,
		UserName:  last + ", " + first,
		Rating:    in.Rating,
		Text:      strings.TrimSpace(in.Text),
	}
	return s.Repo.Add(ctx, r)
}

// Edit updates the actor's own review and returns the new average rating.
func (s *Service) Edit(ctx context.Context, actor, storeID, reviewID string, in Input) (Review, string, error) {
	return s.Repo.Update(ctx, storeID, reviewID, actor, in.Rating, strings.TrimSpace(in.Text))
}

// Delete removes the actor's own review. A delete attempt against someone
// else's review reports not-found rather than leaking existence.
func (s *Service) Delete(ctx context.Context, actor, storeID, reviewID string) (string, error) {
	return s.Repo.Delete(ctx, storeID, reviewID, actor)
}

// ListByStore returns a page of the store's reviews, newest first.
func (s *Service) ListByStore(ctx context.Context, storeID string, page, limit int) ([]Review, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return s.Repo.ListByStore(ctx, storeID, limit, (page-1)*limit)
}
