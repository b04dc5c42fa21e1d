package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/binder-tracker/backend/internal/database"
	"github.com/codyseavey/binder-tracker/backend/internal/models"
)

func newTestBinder(t *testing.T) (*BinderService, *models.Binder) {
	t.Helper()
	svc := NewBinderService(database.OpenTestDB(t))
	binder, err := svc.CreateBinder(context.Background(), models.CreateBinderRequest{
		OwnerID: "owner-1",
		Name:    "Base Set",
	})
	require.NoError(t, err)
	return svc, binder
}

func TestCreateBinderValidation(t *testing.T) {
	svc := NewBinderService(database.OpenTestDB(t))

	_, err := svc.CreateBinder(context.Background(), models.CreateBinderRequest{OwnerID: "owner-1", Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidBinder)
}

func TestAddCardIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, binder := newTestBinder(t)

	first, created, err := svc.AddCard(ctx, binder.ID, models.AddBinderCardRequest{CardID: "base1-4", Quantity: 2})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.AddCard(ctx, binder.ID, models.AddBinderCardRequest{CardID: "base1-4", Quantity: 5})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Quantity, "duplicate add must not change the membership")

	cards, err := svc.ListBinderCards(ctx, binder.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestAddCardValidation(t *testing.T) {
	ctx := context.Background()
	svc, binder := newTestBinder(t)

	_, _, err := svc.AddCard(ctx, binder.ID, models.AddBinderCardRequest{CardID: "base1-4", Quantity: MaxQuantity + 1})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, _, err = svc.AddCard(ctx, "missing", models.AddBinderCardRequest{CardID: "base1-4"})
	assert.ErrorIs(t, err, ErrBinderNotFound)
}

func TestUpdateAndRemoveCard(t *testing.T) {
	ctx := context.Background()
	svc, binder := newTestBinder(t)

	item, _, err := svc.AddCard(ctx, binder.ID, models.AddBinderCardRequest{CardID: "base1-4"})
	require.NoError(t, err)

	qty := 3
	cond := models.ConditionNearMint
	updated, err := svc.UpdateCard(ctx, binder.ID, item.ID, models.UpdateBinderCardRequest{Quantity: &qty, Condition: &cond})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Quantity)
	require.NotNil(t, updated.Condition)
	assert.Equal(t, models.ConditionNearMint, *updated.Condition)

	zero := 0
	_, err = svc.UpdateCard(ctx, binder.ID, item.ID, models.UpdateBinderCardRequest{Quantity: &zero})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	require.NoError(t, svc.RemoveCard(ctx, binder.ID, item.ID))
	assert.ErrorIs(t, svc.RemoveCard(ctx, binder.ID, item.ID), ErrBinderCardNotFound)
}

func TestToggleVisibilityAndPublicList(t *testing.T) {
	ctx := context.Background()
	svc, binder := newTestBinder(t)

	public, err := svc.ListPublicBinders(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, public)

	toggled, err := svc.ToggleVisibility(ctx, binder.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsPublic)

	public, err = svc.ListPublicBinders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, binder.ID, public[0].ID)
}

func TestDuplicateBinder(t *testing.T) {
	ctx := context.Background()
	svc, binder := newTestBinder(t)

	for _, id := range []string{"base1-4", "base1-58"} {
		_, _, err := svc.AddCard(ctx, binder.ID, models.AddBinderCardRequest{CardID: id})
		require.NoError(t, err)
	}

	dup, err := svc.DuplicateBinder(ctx, binder.ID, "")
	require.NoError(t, err)
	assert.NotEqual(t, binder.ID, dup.ID)
	assert.Equal(t, "Base Set (Copy)", dup.Name)
	assert.False(t, dup.IsPublic)

	cards, err := svc.ListBinderCards(ctx, dup.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	owned, err := svc.ListBinders(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}

func TestDeleteBinderKeepsOtherMemberships(t *testing.T) {
	ctx := context.Background()
	svc, binder := newTestBinder(t)

	other, err := svc.CreateBinder(ctx, models.CreateBinderRequest{OwnerID: "owner-1", Name: "Other"})
	require.NoError(t, err)
	for _, b := range []string{binder.ID, other.ID} {
		_, _, err := svc.AddCard(ctx, b, models.AddBinderCardRequest{CardID: "base1-4"})
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeleteBinder(ctx, binder.ID))
	assert.ErrorIs(t, svc.DeleteBinder(ctx, binder.ID), ErrBinderNotFound)

	ids, err := svc.DistinctCardIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"base1-4"}, ids)
}

func TestSortBinderCards(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	items := []models.BinderCard{
		{ID: "1", Card: testCard("a-1", "bulbasaur", floatPtr(5)), PurchasePrice: floatPtr(1), PurchaseDate: &early},
		{ID: "2", Card: testCard("b-1", "Arbok", floatPtr(50)), PurchasePrice: floatPtr(60)},
		{ID: "3", Card: testCard("c-1", "Charmander", nil), PurchaseDate: &late},
	}

	order := func() []string {
		ids := make([]string, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}
		return ids
	}

	SortBinderCards(items, SortByName)
	assert.Equal(t, []string{"2", "1", "3"}, order())

	SortBinderCards(items, SortByPriceHigh)
	assert.Equal(t, []string{"2", "1", "3"}, order())

	SortBinderCards(items, SortByPriceLow)
	assert.Equal(t, []string{"3", "1", "2"}, order())

	SortBinderCards(items, SortByPurchaseDate)
	assert.Equal(t, []string{"3", "1", "2"}, order())

	SortBinderCards(items, SortByProfit)
	assert.Equal(t, []string{"1", "3", "2"}, order())
}
