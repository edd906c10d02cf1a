// FILE: buffer.go
// Package main – Rolling per-pair feature buffer over closed trading periods.
//
// Each closed period shifts a set of float32 ring buffers (price, quantity,
// lows, highs, RSI up/down averages, ±directional movement, true range) and
// steps the EMA recurrences at three horizons (9/14/26 periods, α=2/(n+1)).
// From those it derives one 16-column feature row (price, quantity, the two
// book spreads, Williams %R, RSI, ADX and MACD per horizon) and shifts it
// into a 24-row feature window. Order-book updates shift the two numBins-row
// depth windows independently. The buffer is warm once enough periods have
// been seen with at least one order-book update; until then
// GetFeaturesWindow reports not-ready.
//
// All indicator math is float32 end to end so replayed sessions reproduce
// live feature values bit for bit.

package main

const (
	bufferEpsilon float32 = 1e-6

	daysShort = 9
	daysMed   = 14
	daysLong  = 26

	numFeatPeriods = 24
)

// FeatLabels names the feature window columns in order.
func FeatLabels() []string {
	return []string{
		"price", "quantity", "orderbook_avg_spread", "orderbook_qty_spread",
		"percent_range_short", "percent_range_med", "percent_range_long",
		"rsi_short", "rsi_med", "rsi_long",
		"adx_short", "adx_med", "adx_long",
		"macd_short_med", "macd_short_long", "macd_med_long",
	}
}

// emaSet is one indicator's EMA state across the three horizons.
type emaSet struct {
	short, med, long float32
}

func (e *emaSet) step(v float32) {
	e.short += emaAlphaShort * (v - e.short)
	e.med += emaAlphaMed * (v - e.med)
	e.long += emaAlphaLong * (v - e.long)
}

const (
	emaAlphaShort float32 = 2.0 / (daysShort + 1)
	emaAlphaMed   float32 = 2.0 / (daysMed + 1)
	emaAlphaLong  float32 = 2.0 / (daysLong + 1)
)

// numBufferPeriods is the ring length needed to saturate the longest EMA:
// floor(3.45 * (daysLong + 1)) + 1.
const numBufferPeriods = 94

// TradeStreamBuffer models one pair's stream of trading periods and order
// books, buffered over a window of recent history.
type TradeStreamBuffer struct {
	numBins  int
	numFeats int

	lastOrderBookTimestamp int64
	lastPeriodTimestamp    int64

	lastAvgSpread float32
	lastQtySpread float32

	curBufferedPeriods int

	bidWindow   [][]float32 // numBins rows × numBins cols
	askWindow   [][]float32
	featsWindow [][]float32 // numFeatPeriods rows × numFeats cols

	priceEMA   emaSet
	upAvgEMA   emaSet
	downAvgEMA emaSet
	posDirEMA  emaSet
	negDirEMA  emaSet
	trEMA      emaSet
	adxEMA     emaSet

	priceBuffer    []float32
	quantityBuffer []float32
	lowsBuffer     []float32
	highsBuffer    []float32
	upAvgBuffer    []float32
	downAvgBuffer  []float32
	posDirBuffer   []float32
	negDirBuffer   []float32
	trBuffer       []float32
}

func NewTradeStreamBuffer(numBins int) *TradeStreamBuffer {
	b := &TradeStreamBuffer{
		numBins:  numBins,
		numFeats: len(FeatLabels()),
	}
	b.bidWindow = makeMatrix(numBins, numBins)
	b.askWindow = makeMatrix(numBins, numBins)
	b.featsWindow = makeMatrix(numFeatPeriods, b.numFeats)

	b.priceBuffer = make([]float32, numBufferPeriods)
	b.quantityBuffer = make([]float32, numBufferPeriods)
	b.lowsBuffer = make([]float32, numBufferPeriods)
	b.highsBuffer = make([]float32, numBufferPeriods)
	b.upAvgBuffer = make([]float32, numBufferPeriods)
	b.downAvgBuffer = make([]float32, numBufferPeriods)
	b.posDirBuffer = make([]float32, numBufferPeriods)
	b.negDirBuffer = make([]float32, numBufferPeriods)
	b.trBuffer = make([]float32, numBufferPeriods)
	return b
}

func makeMatrix(rows, cols int) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		m[i] = make([]float32, cols)
	}
	return m
}

// shiftLeft drops the oldest element and appends v at the end.
func shiftLeft(buf []float32, v float32) {
	copy(buf, buf[1:])
	buf[len(buf)-1] = v
}

// shiftRows drops the oldest row and appends row at the end.
func shiftRows(m [][]float32, row []float32) {
	for i := 0; i < len(m)-1; i++ {
		copy(m[i], m[i+1])
	}
	copy(m[len(m)-1], row)
}

// UpdateOrderBook shifts the reduced book histograms into the depth windows
// and records the spread features for the next period row.
func (b *TradeStreamBuffer) UpdateOrderBook(serverTimestamp int64, bids, asks []float32, avgSpread, qtySpread float32) {
	b.lastOrderBookTimestamp = serverTimestamp
	b.lastAvgSpread = avgSpread
	b.lastQtySpread = qtySpread

	shiftRows(b.bidWindow, bids)
	shiftRows(b.askWindow, asks)
}

// UpdateTradePeriod shifts all indicator buffers for one closed trading
// period and appends the derived feature row to the feature window.
func (b *TradeStreamBuffer) UpdateTradePeriod(serverPeriodTimestamp int64, totalQuantity float32, totalNumTrades int, avgPrice, lowPrice, highPrice float32) {
	b.lastPeriodTimestamp = serverPeriodTimestamp

	lastAvg := b.priceBuffer[numBufferPeriods-1]
	lastLow := b.lowsBuffer[numBufferPeriods-1]
	lastHigh := b.highsBuffer[numBufferPeriods-1]

	shiftLeft(b.priceBuffer, avgPrice)
	shiftLeft(b.quantityBuffer, totalQuantity)
	shiftLeft(b.lowsBuffer, lowPrice)
	shiftLeft(b.highsBuffer, highPrice)
	shiftLeft(b.trBuffer, trueRange(highPrice, lowPrice, lastAvg))

	if avgPrice > lastAvg {
		shiftLeft(b.upAvgBuffer, avgPrice-lastAvg)
		shiftLeft(b.downAvgBuffer, 0)
	} else {
		shiftLeft(b.upAvgBuffer, 0)
		shiftLeft(b.downAvgBuffer, lastAvg-avgPrice)
	}

	upMove := highPrice - lastHigh
	downMove := lastLow - lowPrice
	if upMove > downMove && upMove > 0 {
		shiftLeft(b.posDirBuffer, upMove)
	} else {
		shiftLeft(b.posDirBuffer, 0)
	}
	if downMove > upMove && downMove > 0 {
		shiftLeft(b.negDirBuffer, downMove)
	} else {
		shiftLeft(b.negDirBuffer, 0)
	}

	b.priceEMA.step(b.priceBuffer[numBufferPeriods-1])
	b.upAvgEMA.step(b.upAvgBuffer[numBufferPeriods-1])
	b.downAvgEMA.step(b.downAvgBuffer[numBufferPeriods-1])
	b.posDirEMA.step(b.posDirBuffer[numBufferPeriods-1])
	b.negDirEMA.step(b.negDirBuffer[numBufferPeriods-1])
	b.trEMA.step(b.trBuffer[numBufferPeriods-1])

	row := make([]float32, b.numFeats)
	b.computeFeatures(row)
	shiftRows(b.featsWindow, row)

	// Periods only count toward warm-up once at least one book has landed.
	if b.lastOrderBookTimestamp > 0 && b.curBufferedPeriods < numBufferPeriods {
		b.curBufferedPeriods++
	}
}

func trueRange(high, low, lastAvg float32) float32 {
	tr := high - low
	if d := abs32(high - lastAvg); d > tr {
		tr = d
	}
	if d := abs32(low - lastAvg); d > tr {
		tr = d
	}
	return tr
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func tailMax(buf []float32, n int) float32 {
	tail := buf[len(buf)-n:]
	m := tail[0]
	for _, v := range tail[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func tailMin(buf []float32, n int) float32 {
	tail := buf[len(buf)-n:]
	m := tail[0]
	for _, v := range tail[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func (b *TradeStreamBuffer) percentRange(days int) float32 {
	highestHigh := tailMax(b.highsBuffer, days)
	lowestLow := tailMin(b.lowsBuffer, days)
	price := b.priceBuffer[numBufferPeriods-1]
	return (highestHigh - price) / (highestHigh - lowestLow + bufferEpsilon) * -100
}

func rsi(upEMA, downEMA float32) float32 {
	return 100 - 100/(1+upEMA/(downEMA+bufferEpsilon))
}

func adxStep(posDirEMA, negDirEMA, trEMA float32) float32 {
	posDI := 100 * posDirEMA / (trEMA + bufferEpsilon)
	negDI := 100 * negDirEMA / (trEMA + bufferEpsilon)
	return abs32(posDI-negDI) / (posDI + negDI + bufferEpsilon)
}

// computeFeatures fills row with all features derived from the current buffer
// state. It also steps the ADX EMAs, so it must run exactly once per period.
func (b *TradeStreamBuffer) computeFeatures(row []float32) {
	b.adxEMA.short += emaAlphaShort * (adxStep(b.posDirEMA.short, b.negDirEMA.short, b.trEMA.short) - b.adxEMA.short)
	b.adxEMA.med += emaAlphaMed * (adxStep(b.posDirEMA.med, b.negDirEMA.med, b.trEMA.med) - b.adxEMA.med)
	b.adxEMA.long += emaAlphaLong * (adxStep(b.posDirEMA.long, b.negDirEMA.long, b.trEMA.long) - b.adxEMA.long)

	row[0] = b.priceBuffer[numBufferPeriods-1]
	row[1] = b.quantityBuffer[numBufferPeriods-1]
	row[2] = b.lastAvgSpread
	row[3] = b.lastQtySpread

	row[4] = b.percentRange(daysShort)
	row[5] = b.percentRange(daysMed)
	row[6] = b.percentRange(daysLong)

	row[7] = rsi(b.upAvgEMA.short, b.downAvgEMA.short)
	row[8] = rsi(b.upAvgEMA.med, b.downAvgEMA.med)
	row[9] = rsi(b.upAvgEMA.long, b.downAvgEMA.long)

	row[10] = b.adxEMA.short * 100
	row[11] = b.adxEMA.med * 100
	row[12] = b.adxEMA.long * 100

	row[13] = b.priceEMA.short - b.priceEMA.med
	row[14] = b.priceEMA.short - b.priceEMA.long
	row[15] = b.priceEMA.med - b.priceEMA.long
}

// GetFeaturesWindow returns the latest period timestamp plus references to
// the feature and depth windows once the period buffer is full. Callers must
// not mutate the returned slices.
func (b *TradeStreamBuffer) GetFeaturesWindow() (ts int64, feats, bids, asks [][]float32, ok bool) {
	if b.curBufferedPeriods < numBufferPeriods {
		return 0, nil, nil, nil, false
	}
	return b.lastPeriodTimestamp, b.featsWindow, b.bidWindow, b.askWindow, true
}
