package services

import (
	"context"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/codyseavey/binder-tracker/backend/internal/metrics"
	"github.com/codyseavey/binder-tracker/backend/internal/models"
)

// ValuationService computes what a set of memberships is worth.
type ValuationService struct {
	resolver *CardResolver
	binders  *BinderService
	currency string
}

func NewValuationService(resolver *CardResolver, binders *BinderService) *ValuationService {
	return &ValuationService{
		resolver: resolver,
		binders:  binders,
		currency: money.USD,
	}
}

// ResolveCards returns a copy of items with Card filled in. Items whose card
// cannot be resolved get a placeholder and are counted as unresolved. Only
// store failures are returned as errors.
func (s *ValuationService) ResolveCards(ctx context.Context, items []models.BinderCard) ([]models.BinderCard, int, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.CardID
	}

	resolutions, err := s.resolver.ResolveMany(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	out := make([]models.BinderCard, len(items))
	unresolved := 0
	for i, item := range items {
		out[i] = item
		res := resolutions[item.CardID]
		if res.Card != nil {
			out[i].Card = res.Card
			continue
		}
		placeholder := models.PlaceholderCard(item.CardID)
		out[i].Card = &placeholder
		unresolved++
	}
	return out, unresolved, nil
}

// ValueOf resolves every card and sums price x quantity. Cards without a
// price, and cards that could not be resolved, contribute zero.
func (s *ValuationService) ValueOf(ctx context.Context, items []models.BinderCard) (*models.Valuation, error) {
	start := time.Now()
	defer func() {
		metrics.ValuationDuration.Observe(time.Since(start).Seconds())
	}()

	resolved, unresolved, err := s.ResolveCards(ctx, items)
	if err != nil {
		return nil, err
	}
	if unresolved > 0 {
		metrics.UnresolvedCardsTotal.Add(float64(unresolved))
	}
	return s.Summarize(resolved, unresolved), nil
}

// ValueBinder values every membership of a binder.
func (s *ValuationService) ValueBinder(ctx context.Context, binderID string) (*models.Valuation, error) {
	if _, err := s.binders.GetBinder(ctx, binderID); err != nil {
		return nil, err
	}
	items, err := s.binders.ListBinderCards(ctx, binderID)
	if err != nil {
		return nil, err
	}
	return s.ValueOf(ctx, items)
}

// BinderDetail loads a binder with resolved, sorted cards and its valuation.
func (s *ValuationService) BinderDetail(ctx context.Context, binderID, sortBy string) (*models.BinderDetail, error) {
	binder, err := s.binders.GetBinder(ctx, binderID)
	if err != nil {
		return nil, err
	}
	items, err := s.binders.ListBinderCards(ctx, binderID)
	if err != nil {
		return nil, err
	}

	resolved, unresolved, err := s.ResolveCards(ctx, items)
	if err != nil {
		return nil, err
	}
	SortBinderCards(resolved, sortBy)

	return &models.BinderDetail{
		Binder:    *binder,
		Cards:     resolved,
		Valuation: s.Summarize(resolved, unresolved),
	}, nil
}

// Summarize totals already-resolved memberships. Sums are exact decimals and
// rounded to cents once at the end.
func (s *ValuationService) Summarize(items []models.BinderCard, unresolved int) *models.Valuation {
	total := decimal.Zero
	purchase := decimal.Zero
	totalCards := 0
	priced := 0

	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.EffectiveQuantity()))
		totalCards += item.EffectiveQuantity()

		if item.Card.HasPrice() {
			priced++
			total = total.Add(decimal.NewFromFloat(item.Card.Price()).Mul(qty))
		}
		if item.PurchasePrice != nil {
			purchase = purchase.Add(decimal.NewFromFloat(*item.PurchasePrice).Mul(qty))
		}
	}

	total = total.Round(2)
	purchase = purchase.Round(2)
	profit := total.Sub(purchase)

	profitPct := decimal.Zero
	if purchase.IsPositive() {
		profitPct = profit.Div(purchase).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return &models.Valuation{
		TotalValue:       total.InexactFloat64(),
		TotalDisplay:     s.display(total),
		PurchaseValue:    purchase.InexactFloat64(),
		Profit:           profit.InexactFloat64(),
		ProfitPercentage: profitPct.InexactFloat64(),
		TotalCards:       totalCards,
		UniqueCards:      len(items),
		PricedCards:      priced,
		UnresolvedCards:  unresolved,
	}
}

// display formats an amount in the service currency, e.g. "$1,234.50".
func (s *ValuationService) display(amount decimal.Decimal) string {
	cur := money.GetCurrency(s.currency)
	factor := decimal.New(1, int32(cur.Fraction))
	return money.New(amount.Mul(factor).Round(0).IntPart(), s.currency).Display()
}
