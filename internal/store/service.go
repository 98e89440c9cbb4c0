package store

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mysellum/marketplace-api/internal/cache"
	"github.com/mysellum/marketplace-api/internal/common"
	"github.com/mysellum/marketplace-api/internal/events"
	"github.com/mysellum/marketplace-api/internal/pricing"
)

// Repository is the persistence surface the store service depends on.
type Repository interface {
	CreateWithOwner(ctx context.Context, st Store) (Store, error)
	Find(ctx context.Context, id string) (Store, error)
	List(ctx context.Context) ([]Store, error)
	FilterByTags(ctx context.Context, tags []string) ([]Store, error)
	Update(ctx context.Context, st Store) (Store, error)
	DeleteWithOwner(ctx context.Context, id, ownerEmail string) error
	SetMerchantID(ctx context.Context, id, merchantID string) error
}

// MerchantDirectory is the slice of the payment processor used during seller
// onboarding.
type MerchantDirectory interface {
	ValidateMerchantID(ctx context.Context, merchantID string) error
	CreateSignUpLink(ctx context.Context, returnURL, trackingID string) (string, error)
}

// CreateInput is the payload for creating a store.
type CreateInput struct {
	Title       string   `json:"title" validate:"required"`
	Subtitle    string   `json:"subtitle"`
	Description string   `json:"description" validate:"required"`
	Tags        []string `json:"tags"`
	Images      []string `json:"images"`
	Address     Address  `json:"address" validate:"required"`
	Location    Location `json:"location"`
}

// EditInput carries partial profile updates. Nil fields are left untouched;
// the store entity is typed, so updates set named sub-fields explicitly.
type EditInput struct {
	Title       *string          `json:"title"`
	Subtitle    *string          `json:"subtitle"`
	Description *string          `json:"description"`
	Tags        []string         `json:"tags"`
	Images      []string         `json:"images"`
	Address     *Address         `json:"address"`
	Location    *Location        `json:"location"`
	FeeRate     *decimal.Decimal `json:"platformFeeRate"`
}

// Service implements store CRUD and seller onboarding. Reads go through the
// cache when one is configured; mutations invalidate it.
type Service struct {
	Repo      Repository
	Merchants MerchantDirectory
	Cache     *cache.Cache
	Events    *events.Bus
	Logger    zerolog.Logger
}

// Create inserts a new store and links it to its owner in one transaction.
// A user owns at most one store.
func (s *Service) Create(ctx context.Context, ownerEmail string, in CreateInput) (Store, error) {
	st := Store{
		OwnerEmail: ownerEmail,
		Profile: Profile{
			Title:       strings.TrimSpace(in.Title),
			Subtitle:    strings.TrimSpace(in.Subtitle),
			Description: strings.TrimSpace(in.Description),
			Tags:        in.Tags,
			Images:      in.Images,
		},
		Address:   in.Address,
		Location:  in.Location,
		AvgRating: "0",
	}
	created, err := s.Repo.CreateWithOwner(ctx, st)
	if err != nil {
		return Store{}, err
	}
	s.invalidate(ctx, created.ID)
	s.emit(ctx, events.TopicStoreCreated, created.ID, nil)
	return created, nil
}

// Get returns a single store by id.
func (s *Service) Get(ctx context.Context, id string) (Store, error) {
	var cached Store
	if hit, err := s.Cache.GetJSON(ctx, cache.KeyStore(id), &cached); err == nil && hit {
		return cached, nil
	}
	st, err := s.Repo.Find(ctx, id)
	if err != nil {
		return Store{}, err
	}
	if err := s.Cache.SetJSON(ctx, cache.KeyStore(id), st); err != nil {
		s.Logger.Warn().Err(err).Str("store_id", id).Msg("cache store")
	}
	return st, nil
}

// List returns every store.
func (s *Service) List(ctx context.Context) ([]Store, error) {
	var cached []Store
	if hit, err := s.Cache.GetJSON(ctx, cache.KeyStoreList, &cached); err == nil && hit {
		return cached, nil
	}
	stores, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.SetJSON(ctx, cache.KeyStoreList, stores); err != nil {
		s.Logger.Warn().Err(err).Msg("cache store list")
	}
	return stores, nil
}

// FilterByTags returns stores whose profile carries all the given tags.
func (s *Service) FilterByTags(ctx context.Context, tags []string) ([]Store, error) {
	if len(tags) == 0 {
		return nil, common.InvalidInput("invalid filter provided", nil)
	}
	return s.Repo.FilterByTags(ctx, tags)
}

// Edit applies a partial update after verifying the actor owns the store.
func (s *Service) Edit(ctx context.Context, actor, id string, in EditInput) (Store, error) {
	st, err := s.authorize(ctx, actor, id)
	if err != nil {
		return Store{}, err
	}
	if in.Title != nil {
		st.Profile.Title = strings.TrimSpace(*in.Title)
	}
	if in.Subtitle != nil {
		st.Profile.Subtitle = strings.TrimSpace(*in.Subtitle)
	}
	if in.Description != nil {
		st.Profile.Description = strings.TrimSpace(*in.Description)
	}
	if in.Tags != nil {
		st.Profile.Tags = in.Tags
	}
	if in.Images != nil {
		st.Profile.Images = in.Images
	}
	if in.Address != nil {
		st.Address = *in.Address
	}
	if in.Location != nil {
		st.Location = *in.Location
	}
	if in.FeeRate != nil {
		if !pricing.ValidFeeRate(*in.FeeRate) {
			return Store{}, common.InvalidInput("platformFeeRate must be between 0 and 1", nil)
		}
		st.Payment.PlatformFeeRate = in.FeeRate
	}
	updated, err := s.Repo.Update(ctx, st)
	if err != nil {
		return Store{}, err
	}
	s.invalidate(ctx, id)
	s.emit(ctx, events.TopicStoreUpdated, id, nil)
	return updated, nil
}

// Delete removes the store and unlinks it from its owner.
func (s *Service) Delete(ctx context.Context, actor, id string) error {
	st, err := s.authorize(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteWithOwner(ctx, id, st.OwnerEmail); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.emit(ctx, events.TopicStoreDeleted, id, nil)
	return nil
}

// RegisterMerchant validates the PayPal merchant id with the processor and
// persists it on the store.
func (s *Service) RegisterMerchant(ctx context.Context, actor, id, merchantID string) error {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return common.InvalidInput("merchantId is required", nil)
	}
	if s.Merchants != nil {
		if err := s.Merchants.ValidateMerchantID(ctx, merchantID); err != nil {
			return err
		}
	}
	if err := s.Repo.SetMerchantID(ctx, id, merchantID); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.emit(ctx, events.TopicStorePaymentRegistered, id, map[string]any{"merchantId": merchantID})
	return nil
}

// SignUpLink creates a processor onboarding link for the store, using the
// store id as tracking id.
func (s *Service) SignUpLink(ctx context.Context, actor, id, returnURL string) (string, error) {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return "", err
	}
	if s.Merchants == nil {
		return "", common.UpstreamFailure("payment processor not configured", nil)
	}
	return s.Merchants.CreateSignUpLink(ctx, returnURL, id)
}

func (s *Service) authorize(ctx context.Context, actor, id string) (Store, error) {
	st, err := s.Repo.Find(ctx, id)
	if err != nil {
		return Store{}, err
	}
	if !strings.EqualFold(st.OwnerEmail, actor) {
		return Store{}, common.Unauthorized("user is not the store owner")
	}
	return st, nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.Cache.Invalidate(ctx, cache.KeyStoreList, cache.KeyStore(id)); err != nil {
		s.Logger.Warn().Err(err).Str("store_id", id).Msg("invalidate store cache")
	}
}

func (s *Service) emit(ctx context.Context, topic, storeID string, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Emit(ctx, topic, storeID, payload); err != nil {
		s.Logger.Error().Err(err).Str("topic", topic).Str("store_id", storeID).Msg("emit event")
	}
}
