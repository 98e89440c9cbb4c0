package reviews

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mysellum/marketplace-api/internal/common"
)

// memRepo keeps reviews per store and recomputes the average rating the way
// the persistence layer does, so average assertions are meaningful.
type memRepo struct {
	byStore map[string][]Review
	nextID  int
}

func newMemRepo() *memRepo {
	return &memRepo{byStore: map[string][]Review{}, nextID: 1}
}

func (m *memRepo) avg(storeID string) string {
	list := m.byStore[storeID]
	if len(list) == 0 {
		return "0"
	}
	sum := decimal.Zero
	for _, r := range list {
		sum = sum.Add(decimal.NewFromInt(int64(r.Rating)))
	}
	return sum.Div(decimal.NewFromInt(int64(len(list)))).Round(2).String()
}

func (m *memRepo) Add(_ context.Context, r Review) (Review, string, error) {
	r.ID = strconv.Itoa(m.nextID)
	m.nextID++
	m.byStore[r.StoreID] = append(m.byStore[r.StoreID], r)
	return r, m.avg(r.StoreID), nil
}

func (m *memRepo) Update(_ context.Context, storeID, reviewID, userEmail string, rating int, text string) (Review, string, error) {
	for i, r := range m.byStore[storeID] {
		if r.ID == reviewID && r.UserEmail == userEmail {
			r.Rating = rating
			r.Text = text
			m.byStore[storeID][i] = r
			return r, m.avg(storeID), nil
		}
	}
	return Review{}, "", common.NotFound("review not found")
}

func (m *memRepo) Delete(_ context.Context, storeID, reviewID, userEmail string) (string, error) {
	list := m.byStore[storeID]
	for i, r := range list {
		if r.ID == reviewID && r.UserEmail == userEmail {
			m.byStore[storeID] = append(list[:i], list[i+1:]...)
			return m.avg(storeID), nil
		}
	}
	return "", common.NotFound("review not found")
}

func (m *memRepo) ListByStore(_ context.Context, storeID string, limit, offset int) ([]Review, error) {
	list := m.byStore[storeID]
	if offset >= len(list) {
		return nil, nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}

func (m *memRepo) UserHasReview(_ context.Context, storeID, userEmail string) (bool, error) {
	for _, r := range m.byStore[storeID] {
		if r.UserEmail == userEmail {
			return true, nil
		}
	}
	return false, nil
}

type stubUsers struct{}

func (stubUsers) UserName(_ context.Context, email string) (string, string, error) {
	if email == "ghost@example.com" {
		return "", "", common.NotFound("user not found")
	}
	return "Erika", "Mustermann", nil
}

func newReviewService() (*Service, *memRepo) {
	repo := newMemRepo()
	return &Service{Repo: repo, Users: stubUsers{}}, repo
}

func TestAddFormatsUserNameAndReturnsAverage(t *testing.T) {
	svc, _ := newReviewService()

	review, avg, err := svc.Add(context.Background(), "erika@example.com", "store1", Input{Rating: 4, Text: "solid"})
	require.NoError(t, err)
	assert.Equal(t, "Mustermann, Erika", review.UserName)
	assert.Equal(t, "4", avg)
}

func TestAddRecomputesAverageAcrossUsers(t *testing.T) {
	svc, _ := newReviewService()

	_, _, err := svc.Add(context.Background(), "a@example.com", "store1", Input{Rating: 5})
	require.NoError(t, err)
	_, avg, err := svc.Add(context.Background(), "b@example.com", "store1", Input{Rating: 2})
	require.NoError(t, err)
	assert.Equal(t, "3.5", avg)
}

func TestAddRejectsSecondReviewBySameUser(t *testing.T) {
	svc, _ := newReviewService()

	_, _, err := svc.Add(context.Background(), "a@example.com", "store1", Input{Rating: 5})
	require.NoError(t, err)
	_, _, err = svc.Add(context.Background(), "a@example.com", "store1", Input{Rating: 1})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeInvalidInput, appErr.Code)
}

func TestEditRecomputesAverage(t *testing.T) {
	svc, _ := newReviewService()

	created, _, err := svc.Add(context.Background(), "a@example.com", "store1", Input{Rating: 5})
	require.NoError(t, err)
	_, avg, err := svc.Edit(context.Background(), "a@example.com", "store1", created.ID, Input{Rating: 1})
	require.NoError(t, err)
	assert.Equal(t, "1", avg)
}

func TestDeleteByNonAuthorReportsNotFound(t *testing.T) {
	svc, _ := newReviewService()

	created, _, err := svc.Add(context.Background(), "a@example.com", "store1", Input{Rating: 5})
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), "b@example.com", "store1", created.ID)
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeNotFound, appErr.Code)
}

func TestListByStorePaginates(t *testing.T) {
	svc, _ := newReviewService()
	for i := 0; i < 15; i++ {
		_, _, err := svc.Add(context.Background(), fmt.Sprintf("u%d@example.com", i), "store1", Input{Rating: 3})
		require.NoError(t, err)
	}

	page1, err := svc.ListByStore(context.Background(), "store1", 1, 10)
	require.NoError(t, err)
	assert.Len(t, page1, 10)

	page2, err := svc.ListByStore(context.Background(), "store1", 2, 10)
	require.NoError(t, err)
	assert.Len(t, page2, 5)
}
