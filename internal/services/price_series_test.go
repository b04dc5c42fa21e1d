package services

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/binder-tracker/backend/internal/models"
)

var seriesNow = time.Date(2025, 3, 15, 18, 30, 0, 0, time.UTC)

// thirtyDays returns one observation per source per day for the last 30 days,
// cycling through prices.
func thirtyDays(sources []string, prices ...float64) []models.PriceObservation {
	var obs []models.PriceObservation
	today := truncateDay(seriesNow)
	n := 0
	for _, source := range sources {
		for i := 0; i < RealHistoryDays; i++ {
			obs = append(obs, models.PriceObservation{
				Source: source,
				Date:   today.AddDate(0, 0, -i),
				Price:  prices[n%len(prices)],
			})
			n++
		}
	}
	return obs
}

func TestParseTimeSpan(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"7D", 7, false},
		{"14d", 14, false},
		{"1Y", 365, false},
		{"10Y", 3650, false},
		{"all", SpanAll, false},
		{"90", 90, false},
		{"1825", 1825, false},
		{"", 14, false},
		{"12", 0, true},
		{"forever", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeSpan(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestBuildPriceSeriesShortSpanHasNoSynthetic(t *testing.T) {
	obs := thirtyDays([]string{"eBay", "TCGPlayer"}, 10, 12)

	series := BuildPriceSeries(obs, PriceSeriesOptions{
		SpanDays: 14,
		Sources:  []string{"eBay", "TCGPlayer"},
		Now:      seriesNow,
		Rand:     rand.New(rand.NewSource(1)),
	})

	cutoff := truncateDay(seriesNow).AddDate(0, 0, -14).Format(seriesDateFormat)
	require.Len(t, series.Rows, 15)
	for _, row := range series.Rows {
		assert.False(t, row.Synthetic, row.Date)
		assert.GreaterOrEqual(t, row.Date, cutoff)
		assert.Len(t, row.Values, 2)
	}
	assert.Equal(t, "2025-03-15", series.Rows[len(series.Rows)-1].Date)
}

func TestBuildPriceSeriesExtendsLongSpan(t *testing.T) {
	obs := thirtyDays([]string{"eBay", "CardMarket"}, 8, 10, 12)
	realStart := truncateDay(seriesNow).AddDate(0, 0, -(RealHistoryDays - 1)).Format(seriesDateFormat)

	series := BuildPriceSeries(obs, PriceSeriesOptions{
		SpanDays: 365,
		Sources:  []string{"eBay", "CardMarket"},
		Now:      seriesNow,
		Rand:     rand.New(rand.NewSource(42)),
	})

	require.Len(t, series.Rows, 366)
	assert.Equal(t, truncateDay(seriesNow).AddDate(0, 0, -365).Format(seriesDateFormat), series.Rows[0].Date)

	// observed band is [8, 12]; synthetic = midpoint * trend[0.5,1) * jitter[0.8,1.2]
	low := 0.7 * 8 * 0.5 * 0.8
	high := 1.3 * 12 * 1.2
	for _, row := range series.Rows {
		if row.Date < realStart {
			assert.True(t, row.Synthetic, row.Date)
			for _, v := range row.Values {
				assert.GreaterOrEqual(t, v, low-0.01)
				assert.LessOrEqual(t, v, high+0.01)
			}
		} else {
			assert.False(t, row.Synthetic, row.Date)
		}
	}
}

func TestBuildPriceSeriesTrendsCheaperWithAge(t *testing.T) {
	obs := thirtyDays([]string{"eBay"}, 100)

	// jitter pinned to 1.0
	series := BuildPriceSeries(obs, PriceSeriesOptions{
		SpanDays: 365,
		Sources:  []string{"eBay"},
		Now:      seriesNow,
		Rand:     constRand(0.5),
	})

	oldest := series.Rows[0].Values["eBay"]
	newestSynthetic := series.Rows[365-RealHistoryDays].Values["eBay"]
	assert.Less(t, oldest, newestSynthetic)
	assert.InDelta(t, 50.0, oldest, 0.01, "oldest synthetic point is half the band midpoint")
}

func TestBuildPriceSeriesSourceSelection(t *testing.T) {
	obs := thirtyDays([]string{"eBay", "TCGPlayer"}, 10)

	series := BuildPriceSeries(obs, PriceSeriesOptions{SpanDays: 7, Sources: []string{"eBay"}, Now: seriesNow})
	for _, row := range series.Rows {
		_, hasOther := row.Values["TCGPlayer"]
		assert.False(t, hasOther)
	}

	empty := BuildPriceSeries(obs, PriceSeriesOptions{SpanDays: 7, Now: seriesNow})
	assert.Empty(t, empty.Rows)
	assert.Empty(t, empty.Markers)
	assert.Nil(t, empty.Stats)
}

func TestBuildPriceSeriesMissingCellsAreAbsent(t *testing.T) {
	today := truncateDay(seriesNow)
	obs := []models.PriceObservation{
		{Source: "eBay", Date: today, Price: 5},
		{Source: "eBay", Date: today.AddDate(0, 0, -1), Price: 10},
		{Source: "TCGPlayer", Date: today, Price: 15},
	}

	series := BuildPriceSeries(obs, PriceSeriesOptions{SpanDays: 7, Sources: []string{"eBay", "TCGPlayer"}, Now: seriesNow})
	require.Len(t, series.Rows, 2)
	assert.Equal(t, map[string]float64{"eBay": 10}, series.Rows[0].Values)
	assert.Equal(t, map[string]float64{"eBay": 5, "TCGPlayer": 15}, series.Rows[1].Values)

	require.NotNil(t, series.Stats)
	assert.Equal(t, 5.0, series.Stats.Min)
	assert.Equal(t, 15.0, series.Stats.Max)
	assert.Equal(t, 10.0, series.Stats.Avg)
}

func TestReferenceMarkers(t *testing.T) {
	rowsFor := func(start time.Time, n int) []models.PriceSeriesRow {
		rows := make([]models.PriceSeriesRow, n)
		for i := range rows {
			rows[i].Date = start.AddDate(0, 0, i).Format(seriesDateFormat)
		}
		return rows
	}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	short := referenceMarkers(rowsFor(start, 8), 7)
	assert.Equal(t, []string{"2025-01-01", "2025-01-04", "2025-01-07", "2025-01-08"}, short)

	weekly := referenceMarkers(rowsFor(start, 15), 90)
	assert.Equal(t, []string{"2025-01-01", "2025-01-08", "2025-01-15"}, weekly)

	monthly := referenceMarkers(rowsFor(time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), 50), 365)
	assert.Equal(t, []string{"2025-01-20", "2025-02-01", "2025-03-01", "2025-03-10"}, monthly)

	assert.Empty(t, referenceMarkers(nil, 30))
}

func TestPriceHistoryObservations(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	catalog.prices["base1-4"] = 100
	catalog.missing["gone-1"] = true
	resolver := newTestResolver(t, catalog, &delayLog{})
	history := NewPriceHistoryService(resolver, 7)

	obs, err := history.Observations(ctx, "base1-4", seriesNow)
	require.NoError(t, err)
	assert.Len(t, obs, len(PriceSources)*RealHistoryDays)
	for _, o := range obs {
		assert.GreaterOrEqual(t, o.Price, 100*0.8*0.9-0.01)
		assert.LessOrEqual(t, o.Price, 100*1.2*1.1+0.01)
		assert.NotEmpty(t, o.Condition)
	}

	none, err := history.Observations(ctx, "gone-1", seriesNow)
	require.NoError(t, err)
	assert.Empty(t, none)

	series, err := history.Series(ctx, "base1-4", 90, nil, seriesNow)
	require.NoError(t, err)
	assert.Equal(t, PriceSources, series.Sources)
	assert.Len(t, series.Rows, 91)
}

func TestPriceHistoryDefaultsUnpricedCards(t *testing.T) {
	history := NewPriceHistoryService(nil, 3)

	obs := history.generate(&models.Card{CardID: "x-1"}, seriesNow)
	for _, o := range obs {
		assert.GreaterOrEqual(t, o.Price, minHistoryPrice)
		assert.LessOrEqual(t, o.Price, defaultHistoryPrice*1.2*1.1+0.01)
	}
}

type constRand float64

func (c constRand) Float64() float64 { return float64(c) }
