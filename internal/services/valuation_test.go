package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/binder-tracker/backend/internal/database"
	"github.com/codyseavey/binder-tracker/backend/internal/models"
)

func newTestValuation(t *testing.T, catalog *fakeCatalog) (*ValuationService, *BinderService, *CardResolver) {
	t.Helper()
	db := database.OpenTestDB(t)
	resolver := NewCardResolver(NewCardStore(db), catalog, (&delayLog{}).policy(), 5)
	binders := NewBinderService(db)
	return NewValuationService(resolver, binders), binders, resolver
}

func TestValueOfSumsPriceTimesQuantity(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	valuation, _, resolver := newTestValuation(t, catalog)

	require.NoError(t, resolver.Store().Upsert(ctx, testCard("a-1", "A", floatPtr(10))))
	require.NoError(t, resolver.Store().Upsert(ctx, testCard("b-1", "B", nil)))

	v, err := valuation.ValueOf(ctx, []models.BinderCard{
		{CardID: "a-1", Quantity: 2},
		{CardID: "b-1", Quantity: 1},
	})
	require.NoError(t, err)
	assert.InDelta(t, 20.0, v.TotalValue, 0.0001)
	assert.Equal(t, "$20.00", v.TotalDisplay)
	assert.Equal(t, 3, v.TotalCards)
	assert.Equal(t, 2, v.UniqueCards)
	assert.Equal(t, 1, v.PricedCards)
	assert.Equal(t, 0, v.UnresolvedCards)
	assert.Equal(t, 0, catalog.totalCalls())
}

func TestValueOfUnresolvableCountsZero(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	catalog.prices["a-1"] = 2.5
	catalog.failures["down-1"] = transient(10)
	catalog.missing["gone-1"] = true
	valuation, _, _ := newTestValuation(t, catalog)

	v, err := valuation.ValueOf(ctx, []models.BinderCard{
		{CardID: "a-1", Quantity: 4},
		{CardID: "down-1", Quantity: 3},
		{CardID: "gone-1", Quantity: 0},
	})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, v.TotalValue, 0.0001)
	assert.Equal(t, 2, v.UnresolvedCards)
	assert.Equal(t, 8, v.TotalCards, "non-positive quantity counts as one")
}

func TestValueOfIsDeterministic(t *testing.T) {
	ctx := context.Background()
	valuation, _, resolver := newTestValuation(t, newFakeCatalog())

	require.NoError(t, resolver.Store().Upsert(ctx, testCard("a-1", "A", floatPtr(0.1))))
	require.NoError(t, resolver.Store().Upsert(ctx, testCard("b-1", "B", floatPtr(0.2))))

	items := []models.BinderCard{{CardID: "a-1", Quantity: 3}, {CardID: "b-1", Quantity: 1}}
	first, err := valuation.ValueOf(ctx, items)
	require.NoError(t, err)
	second, err := valuation.ValueOf(ctx, items)
	require.NoError(t, err)

	assert.Equal(t, 0.5, first.TotalValue)
	assert.Equal(t, first, second)
}

func TestSummarizeProfit(t *testing.T) {
	svc := &ValuationService{currency: "USD"}
	items := []models.BinderCard{
		{Quantity: 2, PurchasePrice: floatPtr(5), Card: testCard("a-1", "A", floatPtr(10))},
		{Quantity: 1, PurchasePrice: floatPtr(10), Card: testCard("b-1", "B", floatPtr(1234.5))},
	}

	v := svc.Summarize(items, 0)
	assert.InDelta(t, 1254.5, v.TotalValue, 0.0001)
	assert.InDelta(t, 20.0, v.PurchaseValue, 0.0001)
	assert.InDelta(t, 1234.5, v.Profit, 0.0001)
	assert.InDelta(t, 6172.5, v.ProfitPercentage, 0.0001)
	assert.Equal(t, "$1,254.50", v.TotalDisplay)
}

func TestBinderDetailSortsAndResolves(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	catalog.missing["gone-1"] = true
	valuation, binders, resolver := newTestValuation(t, catalog)

	require.NoError(t, resolver.Store().Upsert(ctx, testCard("a-1", "Abra", floatPtr(1))))
	require.NoError(t, resolver.Store().Upsert(ctx, testCard("c-1", "Charizard", floatPtr(300))))

	binder, err := binders.CreateBinder(ctx, models.CreateBinderRequest{OwnerID: "u1", Name: "Vintage"})
	require.NoError(t, err)
	for _, id := range []string{"a-1", "gone-1", "c-1"} {
		_, _, err := binders.AddCard(ctx, binder.ID, models.AddBinderCardRequest{CardID: id})
		require.NoError(t, err)
	}

	detail, err := valuation.BinderDetail(ctx, binder.ID, SortByPriceHigh)
	require.NoError(t, err)
	require.Len(t, detail.Cards, 3)
	assert.Equal(t, "Charizard", detail.Cards[0].Card.Name)
	assert.Equal(t, "Abra", detail.Cards[1].Card.Name)
	assert.Equal(t, models.UnknownCardName, detail.Cards[2].Card.Name)
	assert.Equal(t, 1, detail.Valuation.UnresolvedCards)
	assert.InDelta(t, 301.0, detail.Valuation.TotalValue, 0.0001)

	_, err = valuation.ValueBinder(ctx, "missing")
	assert.ErrorIs(t, err, ErrBinderNotFound)
}
