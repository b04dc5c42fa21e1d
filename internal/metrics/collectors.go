package metrics

import (
	"gorm.io/gorm"
)

// UpdateStoreMetrics refreshes the gauges derived from database row counts.
func UpdateStoreMetrics(db *gorm.DB) {
	if db == nil {
		return
	}

	var cards int64
	if err := db.Table("cards").Count(&cards).Error; err == nil {
		CardDatabaseSize.Set(float64(cards))
	}

	var binders int64
	if err := db.Table("binders").Count(&binders).Error; err == nil {
		BindersTotal.Set(float64(binders))
	}

	var copies int64
	if err := db.Table("binder_cards").Select("COALESCE(SUM(quantity), 0)").Scan(&copies).Error; err == nil {
		BinderCardsTotal.Set(float64(copies))
	}
}
