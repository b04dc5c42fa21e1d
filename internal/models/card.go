package models

import (
	"net/url"
	"time"
)

// Sentinel values used when the catalog omits a field
const (
	UnknownSetName    = "Unknown Set"
	UnknownRarity     = "Unknown"
	UnknownCardNumber = "?"
	UnknownCardName   = "Unknown Card"

	placeholderImageBase = "https://via.placeholder.com/245x342.png?text="
)

// Card is the normalized catalog item. Key is the store-safe encoding of CardID;
// both are persisted so lookups work in either direction.
type Card struct {
	Key            string     `json:"key" gorm:"primaryKey"`
	CardID         string     `json:"id" gorm:"not null;uniqueIndex"`
	Name           string     `json:"name" gorm:"not null;index"`
	ImageURL       string     `json:"image_url"`
	SetName        string     `json:"set_name"`
	SetCode        string     `json:"set_code"`
	CardNumber     string     `json:"card_number"`
	Rarity         string     `json:"rarity"`
	Artist         string     `json:"artist,omitempty"`
	ReleaseDate    string     `json:"release_date,omitempty"`
	MarketPrice    *float64   `json:"market_price"` // nil means no price known
	Types          []string   `json:"types,omitempty" gorm:"serializer:json"`
	PriceUpdatedAt *time.Time `json:"price_updated_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Price returns the market price, treating an unknown price as zero.
func (c *Card) Price() float64 {
	if c == nil || c.MarketPrice == nil {
		return 0
	}
	return *c.MarketPrice
}

// HasPrice reports whether the catalog knew a market price for the card.
func (c *Card) HasPrice() bool {
	return c != nil && c.MarketPrice != nil
}

// PlaceholderImageURL builds the generated image reference used when the
// catalog has no artwork for a card.
func PlaceholderImageURL(text string) string {
	return placeholderImageBase + url.QueryEscape(text)
}

// PlaceholderCard is the degraded record shown for a card that could not be
// resolved. It carries no price so it contributes nothing to a valuation.
func PlaceholderCard(cardID string) Card {
	if cardID == "" {
		cardID = "unknown"
	}
	return Card{
		CardID:     cardID,
		Name:       UnknownCardName,
		ImageURL:   PlaceholderImageURL("Card Not Found"),
		SetName:    "Unknown",
		CardNumber: UnknownCardNumber + "/" + UnknownCardNumber,
		Rarity:     UnknownRarity,
	}
}

type CardSearchResult struct {
	Cards      []Card `json:"cards"`
	TotalCount int    `json:"total_count"`
	HasMore    bool   `json:"has_more"`
}
