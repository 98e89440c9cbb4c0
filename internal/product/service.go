package product

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mysellum/marketplace-api/internal/common"
	"github.com/mysellum/marketplace-api/internal/events"
)

// Repository is the persistence surface the product service depends on.
type Repository interface {
	Create(ctx context.Context, p Product) (Product, error)
	Find(ctx context.Context, id string) (Product, error)
	ListByStore(ctx context.Context, storeID string) ([]Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	UpdateStock(ctx context.Context, id string, stockAmount int) (Product, error)
	Delete(ctx context.Context, id string) error
}

// StoreOwnership answers who owns a store; mutations are restricted to the
// store owner.
type StoreOwnership interface {
	OwnerEmail(ctx context.Context, storeID string) (string, error)
}

// CreateInput is the payload for creating a product.
type CreateInput struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"priceFloat" validate:"required"`
	StockAmount int             `json:"stockAmount" validate:"min=0"`
	ImgSrc      string          `json:"imgSrc"`
}

// EditInput carries partial product updates.
type EditInput struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"priceFloat"`
	ImgSrc      *string          `json:"imgSrc"`
}

// Service implements product CRUD. Create, delete and stock-reaching-zero
// trigger re-evaluation of the owning store's activation status.
type Service struct {
	Repo   Repository
	Stores StoreOwnership
	Events *events.Bus
	Logger zerolog.Logger
}

// Create inserts a product for the store after an ownership check.
func (s *Service) Create(ctx context.Context, actor, storeID string, in CreateInput) (Product, error) {
	if err := s.authorize(ctx, actor, storeID); err != nil {
		return Product{}, err
	}
	if in.Price.IsNegative() {
		return Product{}, common.InvalidInput("priceFloat must not be negative", nil)
	}
	p := Product{
		StoreID:     storeID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		StockAmount: in.StockAmount,
		ImgSrc:      in.ImgSrc,
	}
	created, err := s.Repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.emit(ctx, events.TopicProductCreated, storeID, map[string]any{"productId": created.ID})
	return created, nil
}

// Get returns a single product by id.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return s.Repo.Find(ctx, id)
}

// ListByStore returns all products belonging to a store.
func (s *Service) ListByStore(ctx context.Context, storeID string) ([]Product, error) {
	return s.Repo.ListByStore(ctx, storeID)
}

// Edit applies a partial update to a product owned by the actor's store.
func (s *Service) Edit(ctx context.Context, actor, id string, in EditInput) (Product, error) {
	p, err := s.Repo.Find(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.authorize(ctx, actor, p.StoreID); err != nil {
		return Product{}, err
	}
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return Product{}, common.InvalidInput("priceFloat must not be negative", nil)
		}
		p.Price = *in.Price
	}
	if in.ImgSrc != nil {
		p.ImgSrc = *in.ImgSrc
	}
	updated, err := s.Repo.Update(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.emit(ctx, events.TopicProductUpdated, p.StoreID, map[string]any{"productId": id})
	return updated, nil
}

// UpdateStock sets the product's stock amount. Hitting zero notifies the
// activation evaluator.
func (s *Service) UpdateStock(ctx context.Context, actor, id string, stockAmount int) (Product, error) {
	if stockAmount < 0 {
		return Product{}, common.InvalidInput("stockAmount must not be negative", nil)
	}
	p, err := s.Repo.Find(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.authorize(ctx, actor, p.StoreID); err != nil {
		return Product{}, err
	}
	updated, err := s.Repo.UpdateStock(ctx, id, stockAmount)
	if err != nil {
		return Product{}, err
	}
	if stockAmount == 0 {
		s.emit(ctx, events.TopicProductStockZero, p.StoreID, map[string]any{"productId": id})
	}
	return updated, nil
}

// Delete removes a product owned by the actor's store.
func (s *Service) Delete(ctx context.Context, actor, id string) error {
	p, err := s.Repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, p.StoreID); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, events.TopicProductDeleted, p.StoreID, map[string]any{"productId": id})
	return nil
}

func (s *Service) authorize(ctx context.Context, actor, storeID string) error {
	owner, err := s.Stores.OwnerEmail(ctx, storeID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(owner, actor) {
		return common.Unauthorized("user is not the store owner")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, topic, storeID string, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Emit(ctx, topic, storeID, payload); err != nil {
		s.Logger.Error().Err(err).Str("topic", topic).Str("store_id", storeID).Msg("emit event")
	}
}
