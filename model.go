// FILE: model.go
// Package main – Prediction model interface and the uniform-prior stub.
//
// A model consumes the feature window plus both depth windows and returns a
// distribution over {hold, act}. The stub returns the uniform prior, which
// keeps the joint-probability math downstream well defined while a trained
// model is plugged in per pair.

package main

// PredictionModel scores a feature window for one pair.
type PredictionModel interface {
	// PredictBuy returns [P(hold), P(buy)].
	PredictBuy(timestamp int64, feats, bids, asks [][]float32) [2]float32
	// PredictSell returns [P(hold), P(sell)].
	PredictSell(timestamp int64, feats, bids, asks [][]float32) [2]float32
	// Unload releases any resources held by the model.
	Unload()
}

// UniformPriorModel is the placeholder model: every window scores 50/50.
type UniformPriorModel struct {
	pair string
}

func NewPredictionModel(pair string) PredictionModel {
	return &UniformPriorModel{pair: pair}
}

func (m *UniformPriorModel) PredictBuy(int64, [][]float32, [][]float32, [][]float32) [2]float32 {
	return [2]float32{0.5, 0.5}
}

func (m *UniformPriorModel) PredictSell(int64, [][]float32, [][]float32, [][]float32) [2]float32 {
	return [2]float32{0.5, 0.5}
}

func (m *UniformPriorModel) Unload() {}
