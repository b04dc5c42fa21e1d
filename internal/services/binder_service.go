package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/codyseavey/binder-tracker/backend/internal/models"
)

// Maximum quantity allowed per binder card
const MaxQuantity = 9999

var (
	ErrBinderNotFound     = errors.New("binder not found")
	ErrBinderCardNotFound = errors.New("binder card not found")
	ErrInvalidQuantity    = fmt.Errorf("quantity must be between 1 and %d", MaxQuantity)
	ErrInvalidBinder      = errors.New("binder name and owner are required")
)

// Sort orders for binder cards
const (
	SortByName         = "name"
	SortByPriceHigh    = "price-high"
	SortByPriceLow     = "price-low"
	SortByPurchaseDate = "purchase-date"
	SortByProfit       = "profit"
)

// BinderService manages binders and their card memberships.
type BinderService struct {
	db *gorm.DB
}

func NewBinderService(db *gorm.DB) *BinderService {
	return &BinderService{db: db}
}

func (s *BinderService) CreateBinder(ctx context.Context, req models.CreateBinderRequest) (*models.Binder, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.OwnerID == "" {
		return nil, ErrInvalidBinder
	}

	binder := models.Binder{
		ID:          uuid.NewString(),
		OwnerID:     req.OwnerID,
		Name:        name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	}
	if err := s.db.WithContext(ctx).Create(&binder).Error; err != nil {
		return nil, fmt.Errorf("failed to create binder: %w", err)
	}
	return &binder, nil
}

func (s *BinderService) GetBinder(ctx context.Context, id string) (*models.Binder, error) {
	var binder models.Binder
	err := s.db.WithContext(ctx).First(&binder, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBinderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load binder: %w", err)
	}
	return &binder, nil
}

// ListBinders returns the owner's binders, newest first.
func (s *BinderService) ListBinders(ctx context.Context, ownerID string) ([]models.Binder, error) {
	var binders []models.Binder
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&binders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list binders: %w", err)
	}
	return binders, nil
}

// ListPublicBinders returns community binders, most recently updated first.
func (s *BinderService) ListPublicBinders(ctx context.Context, limit int) ([]models.Binder, error) {
	var binders []models.Binder
	q := s.db.WithContext(ctx).Where("is_public = ?", true).Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&binders).Error; err != nil {
		return nil, fmt.Errorf("failed to list public binders: %w", err)
	}
	return binders, nil
}

// ListAllBinders is used by background jobs.
func (s *BinderService) ListAllBinders(ctx context.Context) ([]models.Binder, error) {
	var binders []models.Binder
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&binders).Error; err != nil {
		return nil, fmt.Errorf("failed to list binders: %w", err)
	}
	return binders, nil
}

func (s *BinderService) UpdateBinder(ctx context.Context, id string, req models.UpdateBinderRequest) (*models.Binder, error) {
	binder, err := s.GetBinder(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrInvalidBinder
		}
		binder.Name = name
	}
	if req.Description != nil {
		binder.Description = *req.Description
	}
	if req.IsPublic != nil {
		binder.IsPublic = *req.IsPublic
	}

	if err := s.db.WithContext(ctx).Save(binder).Error; err != nil {
		return nil, fmt.Errorf("failed to update binder: %w", err)
	}
	return binder, nil
}

// ToggleVisibility flips a binder between private and public.
func (s *BinderService) ToggleVisibility(ctx context.Context, id string) (*models.Binder, error) {
	binder, err := s.GetBinder(ctx, id)
	if err != nil {
		return nil, err
	}

	binder.IsPublic = !binder.IsPublic
	if err := s.db.WithContext(ctx).Model(binder).Update("is_public", binder.IsPublic).Error; err != nil {
		return nil, fmt.Errorf("failed to update binder visibility: %w", err)
	}
	return binder, nil
}

// DeleteBinder removes the binder, its memberships and its value history.
// Cached cards are left alone.
func (s *BinderService) DeleteBinder(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Binder{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete binder: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrBinderNotFound
		}
		if err := tx.Where("binder_id = ?", id).Delete(&models.BinderCard{}).Error; err != nil {
			return fmt.Errorf("failed to delete binder cards: %w", err)
		}
		if err := tx.Where("binder_id = ?", id).Delete(&models.BinderValueSnapshot{}).Error; err != nil {
			return fmt.Errorf("failed to delete binder snapshots: %w", err)
		}
		return nil
	})
}

// DuplicateBinder copies a binder and all of its memberships under a new id.
// The copy is private and named "<name> (Copy)" unless a name is given.
func (s *BinderService) DuplicateBinder(ctx context.Context, id, name string) (*models.Binder, error) {
	source, err := s.GetBinder(ctx, id)
	if err != nil {
		return nil, err
	}
	cards, err := s.ListBinderCards(ctx, id)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = source.Name + " (Copy)"
	}

	dup := models.Binder{
		ID:          uuid.NewString(),
		OwnerID:     source.OwnerID,
		Name:        name,
		Description: source.Description,
		IsPublic:    false,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dup).Error; err != nil {
			return err
		}
		if len(cards) == 0 {
			return nil
		}

		copies := make([]models.BinderCard, len(cards))
		for i, bc := range cards {
			copies[i] = bc
			copies[i].ID = uuid.NewString()
			copies[i].BinderID = dup.ID
			copies[i].CreatedAt = time.Time{}
			copies[i].UpdatedAt = time.Time{}
			copies[i].Card = nil
		}
		return tx.Create(&copies).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate binder: %w", err)
	}

	log.Printf("Binders: duplicated %s into %s with %d cards", source.ID, dup.ID, len(cards))
	return &dup, nil
}

// ListBinderCards returns the raw memberships of a binder in insertion order.
func (s *BinderService) ListBinderCards(ctx context.Context, binderID string) ([]models.BinderCard, error) {
	var cards []models.BinderCard
	err := s.db.WithContext(ctx).Where("binder_id = ?", binderID).Order("created_at ASC").Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list binder cards: %w", err)
	}
	return cards, nil
}

// AddCard adds a card to a binder. Adding a card that is already present is a
// successful no-op returning the existing membership with created=false.
func (s *BinderService) AddCard(ctx context.Context, binderID string, req models.AddBinderCardRequest) (*models.BinderCard, bool, error) {
	if req.CardID == "" {
		return nil, false, fmt.Errorf("card_id is required")
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 || quantity > MaxQuantity {
		return nil, false, ErrInvalidQuantity
	}

	if _, err := s.GetBinder(ctx, binderID); err != nil {
		return nil, false, err
	}

	var existing models.BinderCard
	err := s.db.WithContext(ctx).Where("binder_id = ? AND card_id = ?", binderID, req.CardID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to check binder card: %w", err)
	}

	item := models.BinderCard{
		ID:            uuid.NewString(),
		BinderID:      binderID,
		CardID:        req.CardID,
		Quantity:      quantity,
		PurchasePrice: req.PurchasePrice,
		PurchaseDate:  req.PurchaseDate,
		Condition:     req.Condition,
		Notes:         req.Notes,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, false, fmt.Errorf("failed to add card to binder: %w", err)
	}
	s.touch(ctx, binderID)
	return &item, true, nil
}

func (s *BinderService) UpdateCard(ctx context.Context, binderID, itemID string, req models.UpdateBinderCardRequest) (*models.BinderCard, error) {
	var item models.BinderCard
	err := s.db.WithContext(ctx).Where("id = ? AND binder_id = ?", itemID, binderID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBinderCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load binder card: %w", err)
	}

	if req.Quantity != nil {
		if *req.Quantity < 1 || *req.Quantity > MaxQuantity {
			return nil, ErrInvalidQuantity
		}
		item.Quantity = *req.Quantity
	}
	if req.PurchasePrice != nil {
		item.PurchasePrice = req.PurchasePrice
	}
	if req.PurchaseDate != nil {
		item.PurchaseDate = req.PurchaseDate
	}
	if req.Condition != nil {
		item.Condition = req.Condition
	}
	if req.Notes != nil {
		item.Notes = req.Notes
	}

	if err := s.db.WithContext(ctx).Save(&item).Error; err != nil {
		return nil, fmt.Errorf("failed to update binder card: %w", err)
	}
	s.touch(ctx, binderID)
	return &item, nil
}

// RemoveCard deletes one membership. The cached card is not touched.
func (s *BinderService) RemoveCard(ctx context.Context, binderID, itemID string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND binder_id = ?", itemID, binderID).Delete(&models.BinderCard{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove binder card: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBinderCardNotFound
	}
	s.touch(ctx, binderID)
	return nil
}

// DistinctCardIDs returns every card id referenced by any binder.
func (s *BinderService) DistinctCardIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.BinderCard{}).Distinct("card_id").Order("card_id").Pluck("card_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list binder card ids: %w", err)
	}
	return ids, nil
}

func (s *BinderService) touch(ctx context.Context, binderID string) {
	err := s.db.WithContext(ctx).Model(&models.Binder{}).Where("id = ?", binderID).Update("updated_at", time.Now()).Error
	if err != nil {
		log.Printf("Binders: failed to touch %s: %v", binderID, err)
	}
}

// SortBinderCards orders resolved memberships in place. Unknown orders keep
// the current order.
func SortBinderCards(items []models.BinderCard, sortBy string) {
	var less func(a, b models.BinderCard) bool
	switch sortBy {
	case SortByName:
		less = func(a, b models.BinderCard) bool {
			return strings.ToLower(cardName(a)) < strings.ToLower(cardName(b))
		}
	case SortByPriceHigh:
		less = func(a, b models.BinderCard) bool { return a.Card.Price() > b.Card.Price() }
	case SortByPriceLow:
		less = func(a, b models.BinderCard) bool { return a.Card.Price() < b.Card.Price() }
	case SortByPurchaseDate:
		// newest purchase first, undated last
		less = func(a, b models.BinderCard) bool {
			if a.PurchaseDate == nil || b.PurchaseDate == nil {
				return a.PurchaseDate != nil && b.PurchaseDate == nil
			}
			return a.PurchaseDate.After(*b.PurchaseDate)
		}
	case SortByProfit:
		less = func(a, b models.BinderCard) bool { return a.Profit() > b.Profit() }
	default:
		return
	}

	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

func cardName(bc models.BinderCard) string {
	if bc.Card == nil {
		return ""
	}
	return bc.Card.Name
}
