package services

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/codyseavey/binder-tracker/backend/internal/models"
)

const (
	defaultHistoryPrice = 10.0
	minHistoryPrice     = 0.99
)

// PriceSources are the stores shown on the price chart
var PriceSources = []string{"eBay", "TCGPlayer", "CardMarket", "Troll and Toad", "CoolStuffInc"}

var historyConditions = []models.Condition{
	models.ConditionMint,
	models.ConditionNearMint,
	models.ConditionExcellent,
	models.ConditionGood,
	models.ConditionPoor,
}

// PriceHistoryService produces per-store price observations for a card.
// The catalog only knows today's market price, so the last RealHistoryDays
// are estimated per store around it; nothing is persisted.
type PriceHistoryService struct {
	resolver *CardResolver

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPriceHistoryService(resolver *CardResolver, seed int64) *PriceHistoryService {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &PriceHistoryService{
		resolver: resolver,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Float64 lets the service act as the synthesizer's jitter source.
func (s *PriceHistoryService) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Observations returns RealHistoryDays of observations per store ending at
// now. A card that cannot be resolved has no history.
func (s *PriceHistoryService) Observations(ctx context.Context, cardID string, now time.Time) ([]models.PriceObservation, error) {
	card, err := s.resolver.Resolve(ctx, cardID)
	if IsUnavailable(err) {
		return []models.PriceObservation{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.generate(card, now), nil
}

func (s *PriceHistoryService) generate(card *models.Card, now time.Time) []models.PriceObservation {
	current := card.Price()
	if current <= 0 {
		current = defaultHistoryPrice
	}
	today := truncateDay(now)

	obs := make([]models.PriceObservation, 0, len(PriceSources)*RealHistoryDays)
	for _, store := range PriceSources {
		// each store sits somewhere between 80% and 120% of market
		base := current * (0.8 + s.Float64()*0.4)
		for i := 0; i < RealHistoryDays; i++ {
			fluctuation := base * (s.Float64()*0.2 - 0.1)
			obs = append(obs, models.PriceObservation{
				Source:    store,
				Date:      today.AddDate(0, 0, -i),
				Price:     roundCents(math.Max(minHistoryPrice, base+fluctuation)),
				Condition: historyConditions[int(s.Float64()*float64(len(historyConditions)))%len(historyConditions)].Label(),
			})
		}
	}
	return obs
}

// Series builds the chart series for a card. An empty source list selects
// every store.
func (s *PriceHistoryService) Series(ctx context.Context, cardID string, spanDays int, sources []string, now time.Time) (*models.PriceSeries, error) {
	observations, err := s.Observations(ctx, cardID, now)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		sources = PriceSources
	}

	series := BuildPriceSeries(observations, PriceSeriesOptions{
		SpanDays: spanDays,
		Sources:  sources,
		Now:      now,
		Rand:     s,
	})
	series.CardID = cardID
	return &series, nil
}
