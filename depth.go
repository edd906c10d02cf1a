// FILE: depth.go
// Package main – Depth reduction: raw book levels → fixed-width histograms.
//
// A merged book side is a map of price→quantity of arbitrary size; the model
// needs a fixed-width view. Each side is reduced to numBins weights binned
// over μ±3σ of the quantity-weighted price distribution, normalised to [0,1].
// Spread features compare the two sides: avg_spread is the difference of the
// weighted mean prices, qty_spread the difference of the total quantities.
// Feature math downstream is float32; reduction converts at the boundary.

package main

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const depthEpsilon = 1e-6

// reducedSide is the intermediate result for one book side.
type reducedSide struct {
	hist  []float32
	mean  float64
	total float64
	ok    bool
}

func reduceSide(levels map[string]float64, numBins int) reducedSide {
	out := reducedSide{hist: make([]float32, numBins)}
	if len(levels) == 0 {
		return out
	}

	prices := make([]float64, 0, len(levels))
	weights := make([]float64, 0, len(levels))
	for priceStr, qty := range levels {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			continue
		}
		prices = append(prices, price)
		weights = append(weights, qty)
	}
	if len(prices) == 0 {
		return out
	}

	maxW := floats.Max(weights)
	scaled := make([]float64, len(weights))
	for i, w := range weights {
		scaled[i] = w / (maxW + depthEpsilon)
	}

	mean := stat.Mean(prices, scaled)
	std := math.Sqrt(stat.MomentAbout(2, prices, mean, scaled))

	edges := make([]float64, numBins-1)
	if len(edges) == 1 {
		edges[0] = mean - 3*std
	} else {
		floats.Span(edges, mean-3*std, mean+3*std)
	}

	hist := make([]float64, numBins)
	for i, price := range prices {
		hist[digitize(price, edges, numBins)] += weights[i]
	}

	maxH := floats.Max(hist)
	for i, h := range hist {
		out.hist[i] = float32(h / (maxH + depthEpsilon))
	}
	out.mean = mean
	out.total = floats.Sum(weights)
	out.ok = true
	return out
}

// digitize returns the index of the bin x falls into given ascending edges,
// clamped to the last bin.
func digitize(x float64, edges []float64, numBins int) int {
	idx := 0
	for idx < len(edges) && x >= edges[idx] {
		idx++
	}
	if idx > numBins-1 {
		idx = numBins - 1
	}
	return idx
}

// ReduceDepthState reduces a merged book into per-side histograms plus the two
// spread features. An empty side yields a zero histogram and zero spreads.
func ReduceDepthState(state DepthState, numBins int) (bids, asks []float32, avgSpread, qtySpread float32) {
	bidSide := reduceSide(state.Bids, numBins)
	askSide := reduceSide(state.Asks, numBins)

	if bidSide.ok && askSide.ok {
		avgSpread = float32(askSide.mean - bidSide.mean)
		qtySpread = float32(askSide.total - bidSide.total)
	}
	return bidSide.hist, askSide.hist, avgSpread, qtySpread
}
