package store

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mysellum/marketplace-api/internal/common"
)

type stubRepo struct {
	stores map[string]Store

	setMerchant string
	deleted     bool
}

func (s *stubRepo) CreateWithOwner(_ context.Context, st Store) (Store, error) {
	st.ID = "store1"
	s.stores[st.ID] = st
	return st, nil
}

func (s *stubRepo) Find(_ context.Context, id string) (Store, error) {
	st, ok := s.stores[id]
	if !ok {
		return Store{}, common.NotFound("store not found")
	}
	return st, nil
}

func (s *stubRepo) List(_ context.Context) ([]Store, error) { return nil, nil }

func (s *stubRepo) FilterByTags(_ context.Context, _ []string) ([]Store, error) { return nil, nil }

func (s *stubRepo) Update(_ context.Context, st Store) (Store, error) {
	s.stores[st.ID] = st
	return st, nil
}

func (s *stubRepo) DeleteWithOwner(_ context.Context, id, _ string) error {
	delete(s.stores, id)
	s.deleted = true
	return nil
}

func (s *stubRepo) SetMerchantID(_ context.Context, _, merchantID string) error {
	s.setMerchant = merchantID
	return nil
}

type stubMerchants struct {
	invalid bool
}

func (s *stubMerchants) ValidateMerchantID(_ context.Context, _ string) error {
	if s.invalid {
		return common.InvalidInput("invalid PayPal merchant id provided", nil)
	}
	return nil
}

func (s *stubMerchants) CreateSignUpLink(_ context.Context, returnURL, trackingID string) (string, error) {
	return "https://onboard.example/" + trackingID, nil
}

func newStoreService(repo *stubRepo) *Service {
	return &Service{Repo: repo, Merchants: &stubMerchants{}, Logger: zerolog.Nop()}
}

func TestEditRequiresOwnership(t *testing.T) {
	repo := &stubRepo{stores: map[string]Store{
		"store1": {ID: "store1", OwnerEmail: "owner@example.com"},
	}}
	svc := newStoreService(repo)

	title := "Another Store Title"
	_, err := svc.Edit(context.Background(), "intruder@example.com", "store1", EditInput{Title: &title})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeUnauthorized, appErr.Code)
}

func TestEditAppliesPartialUpdate(t *testing.T) {
	repo := &stubRepo{stores: map[string]Store{
		"store1": {
			ID:         "store1",
			OwnerEmail: "owner@example.com",
			Profile:    Profile{Title: "Old Store Title", Subtitle: "keep me"},
		},
	}}
	svc := newStoreService(repo)

	title := "Renamed Store Title"
	updated, err := svc.Edit(context.Background(), "owner@example.com", "store1", EditInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Store Title", updated.Profile.Title)
	assert.Equal(t, "keep me", updated.Profile.Subtitle)
}

func TestEditRejectsOutOfRangeFeeRate(t *testing.T) {
	repo := &stubRepo{stores: map[string]Store{
		"store1": {ID: "store1", OwnerEmail: "owner@example.com"},
	}}
	svc := newStoreService(repo)

	for _, rate := range []string{"-0.50", "1.01", "2.00"} {
		override, err := decimal.NewFromString(rate)
		require.NoError(t, err)

		_, err = svc.Edit(context.Background(), "owner@example.com", "store1", EditInput{FeeRate: &override})
		require.Error(t, err, "rate %s", rate)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, common.CodeInvalidInput, appErr.Code)
		assert.Nil(t, repo.stores["store1"].Payment.PlatformFeeRate)
	}

	override, err := decimal.NewFromString("0.05")
	require.NoError(t, err)
	updated, err := svc.Edit(context.Background(), "owner@example.com", "store1", EditInput{FeeRate: &override})
	require.NoError(t, err)
	require.NotNil(t, updated.Payment.PlatformFeeRate)
	assert.Equal(t, "0.05", updated.Payment.PlatformFeeRate.String())
}

func TestDeleteRequiresOwnership(t *testing.T) {
	repo := &stubRepo{stores: map[string]Store{
		"store1": {ID: "store1", OwnerEmail: "owner@example.com"},
	}}
	svc := newStoreService(repo)

	err := svc.Delete(context.Background(), "intruder@example.com", "store1")
	require.Error(t, err)
	assert.False(t, repo.deleted)

	require.NoError(t, svc.Delete(context.Background(), "owner@example.com", "store1"))
	assert.True(t, repo.deleted)
}

func TestRegisterMerchantValidatesWithProcessor(t *testing.T) {
	repo := &stubRepo{stores: map[string]Store{
		"store1": {ID: "store1", OwnerEmail: "owner@example.com"},
	}}
	svc := newStoreService(repo)
	svc.Merchants = &stubMerchants{invalid: true}

	err := svc.RegisterMerchant(context.Background(), "owner@example.com", "store1", "BOGUS")
	require.Error(t, err)
	assert.Empty(t, repo.setMerchant)

	svc.Merchants = &stubMerchants{}
	require.NoError(t, svc.RegisterMerchant(context.Background(), "owner@example.com", "store1", "MERCHANT1"))
	assert.Equal(t, "MERCHANT1", repo.setMerchant)
}

func TestFilterByTagsRejectsEmptyFilter(t *testing.T) {
	svc := newStoreService(&stubRepo{stores: map[string]Store{}})
	_, err := svc.FilterByTags(context.Background(), nil)
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeInvalidInput, appErr.Code)
}
