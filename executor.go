// FILE: executor.go
// Package main – Executor worker: consumes trade signals.
//
// Terminal stage of the pipeline. Order placement is intentionally not wired
// up; the worker drains the signal queue, logs each signal, and keeps running
// counts so the rest of the pipeline exercises the full path end to end.

package main

import "log"

// ExecutorWorker drains the executor queue.
type ExecutorWorker struct {
	state *AppState

	buyCount  int64
	sellCount int64
}

func NewExecutorWorker(state *AppState) *ExecutorWorker {
	return &ExecutorWorker{state: state}
}

func (w *ExecutorWorker) Name() string { return "executor" }

func (w *ExecutorWorker) OnStart() error {
	w.buyCount = 0
	w.sellCount = 0
	return nil
}

func (w *ExecutorWorker) OnUpdate() error {
	if w.state.ConnectionStatus() != StatusConnected {
		return w.OnStart()
	}

	for {
		sig, ok := w.state.ExecutorQueue.TryGet()
		if !ok {
			return nil
		}
		switch sig.Side {
		case SignalBuy:
			w.buyCount++
		case SignalSell:
			w.sellCount++
		}
		log.Printf("[EXEC] %s %s p=%.4f ts=%d (buys=%d sells=%d)",
			sig.Side, sig.Pair, sig.Prob, sig.Timestamp, w.buyCount, w.sellCount)
	}
}
