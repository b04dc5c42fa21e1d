package models

import (
	"time"
)

type Binder struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	OwnerID     string    `json:"owner_id" gorm:"not null;index"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"is_public" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BinderCard is a membership of a catalog card in a binder. Many memberships
// may reference the same card; removing one never touches the cached card.
type BinderCard struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	BinderID      string     `json:"binder_id" gorm:"not null;uniqueIndex:idx_binder_card"`
	CardID        string     `json:"card_id" gorm:"not null;uniqueIndex:idx_binder_card;index"`
	Quantity      int        `json:"quantity" gorm:"default:1"`
	PurchasePrice *float64   `json:"purchase_price"`
	PurchaseDate  *time.Time `json:"purchase_date"`
	Condition     *Condition `json:"condition"`
	Notes         *string    `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Resolved card (or placeholder), filled in on read
	Card *Card `json:"card,omitempty" gorm:"-"`
}

// EffectiveQuantity treats an unset or non-positive quantity as one copy.
func (bc BinderCard) EffectiveQuantity() int {
	if bc.Quantity <= 0 {
		return 1
	}
	return bc.Quantity
}

// Profit is market price minus purchase price, or zero when either is unknown.
func (bc BinderCard) Profit() float64 {
	if bc.Card == nil || !bc.Card.HasPrice() || bc.PurchasePrice == nil {
		return 0
	}
	return bc.Card.Price() - *bc.PurchasePrice
}

type CreateBinderRequest struct {
	OwnerID     string `json:"owner_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

type UpdateBinderRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

type DuplicateBinderRequest struct {
	Name string `json:"name"`
}

type AddBinderCardRequest struct {
	CardID        string     `json:"card_id" binding:"required"`
	Quantity      int        `json:"quantity"`
	PurchasePrice *float64   `json:"purchase_price"`
	PurchaseDate  *time.Time `json:"purchase_date"`
	Condition     *Condition `json:"condition"`
	Notes         *string    `json:"notes"`
}

type UpdateBinderCardRequest struct {
	Quantity      *int       `json:"quantity"`
	PurchasePrice *float64   `json:"purchase_price"`
	PurchaseDate  *time.Time `json:"purchase_date"`
	Condition     *Condition `json:"condition"`
	Notes         *string    `json:"notes"`
}

// Valuation is the derived value of a set of memberships
type Valuation struct {
	TotalValue       float64 `json:"total_value"`
	TotalDisplay     string  `json:"total_display"`
	PurchaseValue    float64 `json:"purchase_value"`
	Profit           float64 `json:"profit"`
	ProfitPercentage float64 `json:"profit_percentage"`
	TotalCards       int     `json:"total_cards"`
	UniqueCards      int     `json:"unique_cards"`
	PricedCards      int     `json:"priced_cards"`
	UnresolvedCards  int     `json:"unresolved_cards"`
}

// BinderDetail is a binder with its resolved memberships and value summary
type BinderDetail struct {
	Binder    Binder       `json:"binder"`
	Cards     []BinderCard `json:"cards"`
	Valuation *Valuation   `json:"valuation"`
}
