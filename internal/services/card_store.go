package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/binder-tracker/backend/internal/models"
)

// ErrStore wraps every persistence failure of the card cache.
var ErrStore = errors.New("card store failure")

// storeError classifies a database error. A cancelled or expired ctx is
// returned as is, since it is not a store failure.
func storeError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// CardStore is the local cache of normalized catalog cards, keyed by the
// encoded card key.
type CardStore struct {
	db *gorm.DB
}

func NewCardStore(db *gorm.DB) *CardStore {
	return &CardStore{db: db}
}

// Get returns the cached card for key, or nil, nil if it is not cached.
func (s *CardStore) Get(ctx context.Context, key string) (*models.Card, error) {
	var card models.Card
	err := s.db.WithContext(ctx).Where(map[string]any{"key": key}).First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(ctx, "get", err)
	}
	return &card, nil
}

// GetByCardID looks a card up by its remote catalog identifier.
func (s *CardStore) GetByCardID(ctx context.Context, cardID string) (*models.Card, error) {
	var card models.Card
	err := s.db.WithContext(ctx).Where("card_id = ?", cardID).First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(ctx, "get by card id", err)
	}
	return &card, nil
}

// GetMany loads every cached card among keys in one query. Absent keys are
// simply missing from the result.
func (s *CardStore) GetMany(ctx context.Context, keys []string) (map[string]models.Card, error) {
	result := make(map[string]models.Card, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	var cards []models.Card
	if err := s.db.WithContext(ctx).Where(map[string]any{"key": keys}).Find(&cards).Error; err != nil {
		return nil, storeError(ctx, "get many", err)
	}
	for _, c := range cards {
		result[c.Key] = c
	}
	return result, nil
}

// Upsert inserts or replaces the card row for card.Key. The key must be the
// encoding of card.CardID.
func (s *CardStore) Upsert(ctx context.Context, card *models.Card) error {
	if err := VerifyCardKey(card.Key, card.CardID); err != nil {
		return err
	}

	now := time.Now()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"card_id", "name", "image_url", "set_name", "set_code", "card_number", "rarity",
			"artist", "release_date", "market_price", "types", "price_updated_at", "updated_at",
		}),
	}).Create(card).Error
	if err != nil {
		return storeError(ctx, "upsert", err)
	}
	return nil
}

// Count returns the number of cached cards.
func (s *CardStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Card{}).Count(&n).Error; err != nil {
		return 0, storeError(ctx, "count", err)
	}
	return n, nil
}

// StaleCardIDs returns remote ids of cached cards whose price is older than
// the cutoff, oldest first.
func (s *CardStore) StaleCardIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	q := s.db.WithContext(ctx).Model(&models.Card{}).
		Where("price_updated_at IS NULL OR price_updated_at < ?", cutoff).
		Order("price_updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("card_id", &ids).Error; err != nil {
		return nil, storeError(ctx, "stale cards", err)
	}
	return ids, nil
}
