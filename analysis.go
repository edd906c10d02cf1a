// FILE: analysis.go
// Package main – Analysis worker: periods, features, predictions, signals.
//
// The central consumer of the pipeline. Each tick it
//   1. drains the trade queue, archiving save_pairs and bucketing trade_pairs
//      trades into time bins keyed by floor(trade_timestamp/period)·period,
//   2. drains the order-book queue, archiving save_pairs and reducing
//      trade_pairs states into each pair's stream buffer,
//   3. closes every bin up to the last fully elapsed one (ascending order),
//      emitting a synthetic zero-quantity period when a bin elapsed without
//      trades so the indicator cadence never stalls,
//   4. scores each pair's feature window with its prediction model, rolls the
//      probability histories, and pushes a buy/sell signal to the executor
//      queue when the normalised joint probability crosses its threshold.
// All per-pair caches reset whenever the connection is not CONNECTED.

package main

import (
	"sort"
)

type binStats struct {
	quantities []float64
	prices     []float64
}

// AnalysisWorker turns raw trades and books into model signals.
type AnalysisWorker struct {
	state   *AppState
	cfg     Config
	archive *SessionArchive

	// modelPair, when non-empty, overrides the pair used to construct
	// prediction models (replay of one pair's data through another's model).
	modelPair string

	lastClosedTimeBin  int64
	timeBinStats       map[string]map[int64]*binStats
	streams            map[string]*TradeStreamBuffer
	lastAvgPrices      map[string]float32
	models             map[string]PredictionModel
	buyProbsHistories  map[string][][2]float32
	sellProbsHistories map[string][][2]float32
}

func NewAnalysisWorker(state *AppState, cfg Config, modelPair string) *AnalysisWorker {
	return &AnalysisWorker{
		state:     state,
		cfg:       cfg,
		archive:   NewSessionArchive(cfg.DataStoreDir),
		modelPair: modelPair,
	}
}

func (w *AnalysisWorker) Name() string { return "analysis" }

func (w *AnalysisWorker) OnStart() error {
	w.lastClosedTimeBin = 0
	w.timeBinStats = make(map[string]map[int64]*binStats)
	w.streams = make(map[string]*TradeStreamBuffer)
	w.lastAvgPrices = make(map[string]float32)
	w.models = make(map[string]PredictionModel)
	w.buyProbsHistories = make(map[string][][2]float32)
	w.sellProbsHistories = make(map[string][][2]float32)
	return nil
}

func (w *AnalysisWorker) OnUpdate() error {
	if w.state.ConnectionStatus() != StatusConnected {
		return w.OnStart()
	}

	tradePairs := toSet(w.state.TradePairs())
	savePairs := toSet(w.state.SavePairs())
	connectTime := w.state.ConnectTime()

	if err := w.drainTrades(tradePairs, savePairs, connectTime); err != nil {
		return err
	}
	if err := w.drainOrderbookStates(tradePairs, savePairs, connectTime); err != nil {
		return err
	}

	w.closeElapsedTimeBins()
	w.unloadStaleModels(tradePairs)
	w.scoreAndSignal()

	return nil
}

func (w *AnalysisWorker) drainTrades(tradePairs, savePairs map[string]bool, connectTime int64) error {
	for {
		msg, ok := w.state.TradeQueue.TryGet()
		if !ok {
			return nil
		}

		if savePairs[msg.Pair] {
			if err := w.archive.AppendTrade(connectTime, msg.Pair, msg.Trade); err != nil {
				return err
			}
		}

		if tradePairs[msg.Pair] {
			bins, ok := w.timeBinStats[msg.Pair]
			if !ok {
				bins = make(map[int64]*binStats)
				w.timeBinStats[msg.Pair] = bins
			}
			timeBin := msg.Trade.TradeTimestamp / w.cfg.PeriodTime * w.cfg.PeriodTime
			stats, ok := bins[timeBin]
			if !ok {
				stats = &binStats{}
				bins[timeBin] = stats
			}
			stats.quantities = append(stats.quantities, msg.Trade.Quantity)
			stats.prices = append(stats.prices, msg.Trade.Price)
		}
	}
}

func (w *AnalysisWorker) drainOrderbookStates(tradePairs, savePairs map[string]bool, connectTime int64) error {
	for {
		msg, ok := w.state.OrderbookStateQueue.TryGet()
		if !ok {
			return nil
		}

		if savePairs[msg.Pair] {
			if err := w.archive.AppendDepthState(connectTime, msg.Pair, msg.State); err != nil {
				return err
			}
		}

		if tradePairs[msg.Pair] {
			bids, asks, avgSpread, qtySpread := ReduceDepthState(msg.State, w.cfg.NumDepthBins)
			w.stream(msg.Pair).UpdateOrderBook(msg.State.ServerTimestamp, bids, asks, avgSpread, qtySpread)
		}
	}
}

// closeElapsedTimeBins closes every bin up to the last fully elapsed one. A
// pair whose bins all stayed empty gets one synthetic flat period at its last
// known average price so downstream indicators keep their cadence.
func (w *AnalysisWorker) closeElapsedTimeBins() {
	curTimeBin := w.state.ServerTime() / w.cfg.PeriodTime * w.cfg.PeriodTime
	lastTimeBin := curTimeBin - w.cfg.PeriodTime
	if lastTimeBin <= w.lastClosedTimeBin {
		return
	}
	w.lastClosedTimeBin = lastTimeBin

	for pair, bins := range w.timeBinStats {
		stream := w.stream(pair)

		binKeys := make([]int64, 0, len(bins))
		for k := range bins {
			binKeys = append(binKeys, k)
		}
		sort.Slice(binKeys, func(i, j int) bool { return binKeys[i] < binKeys[j] })

		didClose := false
		for _, timeBin := range binKeys {
			if timeBin > lastTimeBin {
				break
			}
			stats := bins[timeBin]

			totalQuantity := 0.0
			for _, q := range stats.quantities {
				totalQuantity += q
			}
			avgPrice := 0.0
			for i, p := range stats.prices {
				avgPrice += p * (stats.quantities[i] / totalQuantity)
			}
			lowPrice := stats.prices[0]
			highPrice := stats.prices[0]
			for _, p := range stats.prices[1:] {
				if p < lowPrice {
					lowPrice = p
				}
				if p > highPrice {
					highPrice = p
				}
			}

			w.lastAvgPrices[pair] = float32(avgPrice)
			stream.UpdateTradePeriod(timeBin, float32(totalQuantity), len(stats.quantities),
				float32(avgPrice), float32(lowPrice), float32(highPrice))
			mtxPeriodsClosed.WithLabelValues(pair, "trades").Inc()

			delete(bins, timeBin)
			didClose = true
		}

		if !didClose {
			lastAvg := w.lastAvgPrices[pair]
			stream.UpdateTradePeriod(lastTimeBin, 0, 0, lastAvg, lastAvg, lastAvg)
			mtxPeriodsClosed.WithLabelValues(pair, "synthetic").Inc()
		}
	}
}

func (w *AnalysisWorker) unloadStaleModels(tradePairs map[string]bool) {
	for pair, model := range w.models {
		if !tradePairs[pair] {
			model.Unload()
			delete(w.models, pair)
			delete(w.buyProbsHistories, pair)
			delete(w.sellProbsHistories, pair)
		}
	}
}

func (w *AnalysisWorker) scoreAndSignal() {
	for _, pair := range w.state.TradePairs() {
		stream := w.stream(pair)
		model := w.model(pair)

		buyProbs := [2]float32{0.5, 0.5}
		sellProbs := [2]float32{0.5, 0.5}
		if ts, feats, bids, asks, ok := stream.GetFeaturesWindow(); ok {
			buyProbs = model.PredictBuy(ts, feats, bids, asks)
			sellProbs = model.PredictSell(ts, feats, bids, asks)
		}

		w.buyProbsHistories[pair] = rollProbs(w.buyProbsHistories[pair], buyProbs, w.cfg.TradeHistoryLength)
		w.sellProbsHistories[pair] = rollProbs(w.sellProbsHistories[pair], sellProbs, w.cfg.TradeHistoryLength)
	}

	for _, pair := range w.state.TradePairs() {
		if prob, hit := jointAboveThreshold(w.buyProbsHistories[pair], float32(w.cfg.BuyThreshold)); hit {
			w.emitSignal(pair, SignalBuy, prob)
		}
		if prob, hit := jointAboveThreshold(w.sellProbsHistories[pair], float32(w.cfg.SellThreshold)); hit {
			w.emitSignal(pair, SignalSell, prob)
		}
	}
}

func (w *AnalysisWorker) emitSignal(pair string, side SignalSide, prob float32) {
	w.state.ExecutorQueue.PutNowait(TradeSignal{
		Pair:      pair,
		Side:      side,
		Timestamp: w.state.ServerTime(),
		Prob:      prob,
	})
	mtxSignals.WithLabelValues(pair, string(side)).Inc()
}

func (w *AnalysisWorker) stream(pair string) *TradeStreamBuffer {
	s, ok := w.streams[pair]
	if !ok {
		s = NewTradeStreamBuffer(w.cfg.NumDepthBins)
		w.streams[pair] = s
	}
	return s
}

func (w *AnalysisWorker) model(pair string) PredictionModel {
	m, ok := w.models[pair]
	if !ok {
		modelPair := pair
		if w.modelPair != "" {
			modelPair = w.modelPair
		}
		m = NewPredictionModel(modelPair)
		w.models[pair] = m
	}
	return m
}

// rollProbs shifts probs into the history. A missing history is seeded with
// the uniform prior and the current probs are not written until the next
// tick, so one warm window never dominates the joint product.
func rollProbs(history [][2]float32, probs [2]float32, length int) [][2]float32 {
	if history == nil {
		history = make([][2]float32, length)
		for i := range history {
			history[i] = [2]float32{0.5, 0.5}
		}
		return history
	}
	copy(history, history[1:])
	history[len(history)-1] = probs
	return history
}

// jointAboveThreshold multiplies the history column-wise, normalises the
// two-element product to a distribution, and compares P(act) to threshold.
func jointAboveThreshold(history [][2]float32, threshold float32) (float32, bool) {
	joint := [2]float32{1, 1}
	for _, probs := range history {
		joint[0] *= probs[0]
		joint[1] *= probs[1]
	}
	norm := joint[0] + joint[1] + bufferEpsilon
	actProb := joint[1] / norm
	return actProb, actProb >= threshold
}

func toSet(pairs []string) map[string]bool {
	set := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		set[p] = true
	}
	return set
}
