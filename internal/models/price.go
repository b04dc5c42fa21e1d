package models

import (
	"strings"
	"time"
)

// Condition is the grading condition of a physical card
type Condition string

const (
	ConditionMint      Condition = "M"
	ConditionNearMint  Condition = "NM"
	ConditionExcellent Condition = "EX"
	ConditionGood      Condition = "GD"
	ConditionLightPlay Condition = "LP"
	ConditionPlayed    Condition = "PL"
	ConditionPoor      Condition = "PR"
)

// AllConditions returns all valid conditions, best first
func AllConditions() []Condition {
	return []Condition{
		ConditionMint,
		ConditionNearMint,
		ConditionExcellent,
		ConditionGood,
		ConditionLightPlay,
		ConditionPlayed,
		ConditionPoor,
	}
}

// Label returns the long display name used by price sources ("Near Mint").
func (c Condition) Label() string {
	switch c {
	case ConditionMint:
		return "Mint"
	case ConditionNearMint:
		return "Near Mint"
	case ConditionExcellent:
		return "Excellent"
	case ConditionGood:
		return "Good"
	case ConditionLightPlay:
		return "Light Play"
	case ConditionPlayed:
		return "Played"
	case ConditionPoor:
		return "Poor"
	default:
		return string(c)
	}
}

// NormalizeCondition maps short codes and long names to a Condition.
// Returns "" for values it does not recognize.
func NormalizeCondition(condition string) Condition {
	switch strings.ToUpper(strings.TrimSpace(condition)) {
	case "M", "MINT":
		return ConditionMint
	case "NM", "NEAR MINT":
		return ConditionNearMint
	case "EX", "EXCELLENT":
		return ConditionExcellent
	case "GD", "GOOD":
		return ConditionGood
	case "LP", "LIGHT PLAY", "LIGHTLY PLAYED":
		return ConditionLightPlay
	case "PL", "PLAYED":
		return ConditionPlayed
	case "PR", "POOR", "DAMAGED":
		return ConditionPoor
	default:
		return ""
	}
}

// PriceObservation is a single dated price from one source. Observations are
// computed per request and never persisted.
type PriceObservation struct {
	Source    string    `json:"store"`
	Date      time.Time `json:"date"`
	Price     float64   `json:"price"`
	Condition string    `json:"condition,omitempty"`
	Synthetic bool      `json:"synthetic"`
}

// PriceSeriesRow is one chart row: a day and the price per source on that day.
// Sources without a value for the day are absent from Values.
type PriceSeriesRow struct {
	Date      string             `json:"date"`
	Values    map[string]float64 `json:"values"`
	Synthetic bool               `json:"synthetic"`
}

type PriceStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// PriceSeries is the chart-ready price history for one card
type PriceSeries struct {
	CardID   string           `json:"card_id,omitempty"`
	SpanDays int              `json:"span_days"`
	Sources  []string         `json:"sources"`
	Rows     []PriceSeriesRow `json:"rows"`
	Markers  []string         `json:"markers"`
	Stats    *PriceStats      `json:"stats"`
}
