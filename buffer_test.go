// FILE: buffer_test.go

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatPeriod(b *TradeStreamBuffer, ts int64, price float32) {
	b.UpdateTradePeriod(ts, 1, 1, price, price, price)
}

func TestBufferWarmupRequiresPeriodsAndOrderBook(t *testing.T) {
	b := NewTradeStreamBuffer(4)

	// Periods before the first order-book update never count.
	for i := 0; i < numBufferPeriods; i++ {
		flatPeriod(b, int64(i)*60000, 10)
	}
	_, _, _, _, ok := b.GetFeaturesWindow()
	assert.False(t, ok)

	b.UpdateOrderBook(1, make([]float32, 4), make([]float32, 4), 0, 0)
	for i := 0; i < numBufferPeriods-1; i++ {
		flatPeriod(b, int64(i)*60000, 10)
		_, _, _, _, ok = b.GetFeaturesWindow()
		assert.False(t, ok)
	}

	flatPeriod(b, 99_999_999, 10)
	ts, feats, bids, asks, ok := b.GetFeaturesWindow()
	require.True(t, ok)
	assert.Equal(t, int64(99_999_999), ts)
	assert.Len(t, feats, numFeatPeriods)
	assert.Len(t, feats[0], 16)
	assert.Len(t, bids, 4)
	assert.Len(t, asks, 4)
}

func TestBufferFirstPeriodFeatures(t *testing.T) {
	b := NewTradeStreamBuffer(4)
	b.UpdateOrderBook(1, make([]float32, 4), make([]float32, 4), 0.5, -2)
	b.UpdateTradePeriod(60000, 2, 3, 10, 9, 11)

	row := b.featsWindow[numFeatPeriods-1]

	assert.Equal(t, float32(10), row[0])
	assert.Equal(t, float32(2), row[1])
	assert.Equal(t, float32(0.5), row[2])
	assert.Equal(t, float32(-2), row[3])

	// Williams %R against an otherwise zero history: (11-10)/(11-0)·-100.
	assert.InDelta(t, -9.0909, float64(row[4]), 1e-3)
	assert.InDelta(t, -9.0909, float64(row[5]), 1e-3)
	assert.InDelta(t, -9.0909, float64(row[6]), 1e-3)

	// Pure up-move: RSI saturates at ~100.
	assert.InDelta(t, 100, float64(row[7]), 1e-2)
	assert.InDelta(t, 100, float64(row[8]), 1e-2)
	assert.InDelta(t, 100, float64(row[9]), 1e-2)

	// Pure +DM: the ADX step is 1, scaled by each horizon's alpha and 100.
	assert.InDelta(t, 100*2.0/10, float64(row[10]), 1e-2)
	assert.InDelta(t, 100*2.0/15, float64(row[11]), 1e-2)
	assert.InDelta(t, 100*2.0/27, float64(row[12]), 1e-2)

	// MACD from single-step EMAs of price 10.
	emaShort := 10 * 2.0 / 10
	emaMed := 10 * 2.0 / 15
	emaLong := 10 * 2.0 / 27
	assert.InDelta(t, emaShort-emaMed, float64(row[13]), 1e-3)
	assert.InDelta(t, emaShort-emaLong, float64(row[14]), 1e-3)
	assert.InDelta(t, emaMed-emaLong, float64(row[15]), 1e-3)
}

func TestBufferFeatureWindowShifts(t *testing.T) {
	b := NewTradeStreamBuffer(4)
	b.UpdateOrderBook(1, make([]float32, 4), make([]float32, 4), 0, 0)
	flatPeriod(b, 60000, 10)
	flatPeriod(b, 120000, 20)

	assert.Equal(t, float32(20), b.featsWindow[numFeatPeriods-1][0])
	assert.Equal(t, float32(10), b.featsWindow[numFeatPeriods-2][0])
	assert.Equal(t, float32(0), b.featsWindow[numFeatPeriods-3][0])
}

func TestBufferDepthWindowsShift(t *testing.T) {
	b := NewTradeStreamBuffer(4)

	first := []float32{1, 2, 3, 4}
	second := []float32{5, 6, 7, 8}
	b.UpdateOrderBook(100, first, []float32{9, 9, 9, 9}, 0, 0)
	b.UpdateOrderBook(200, second, []float32{8, 8, 8, 8}, 0, 0)

	assert.Equal(t, second, b.bidWindow[3])
	assert.Equal(t, first, b.bidWindow[2])
	assert.Equal(t, []float32{0, 0, 0, 0}, b.bidWindow[1])
	assert.Equal(t, []float32{8, 8, 8, 8}, b.askWindow[3])
	assert.Equal(t, int64(200), b.lastOrderBookTimestamp)
}

func TestFeatLabelsShape(t *testing.T) {
	labels := FeatLabels()
	assert.Len(t, labels, 16)
	assert.Equal(t, "price", labels[0])
	assert.Equal(t, "macd_med_long", labels[15])
}
