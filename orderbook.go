// FILE: orderbook.go
// Package main – Order-book worker: snapshot + incremental event merge.
//
// Keeps, per side and pair, the most recent 100 depth events and the latest
// REST snapshot. Every orderbook_interval seconds it rebuilds the book: events
// older than the snapshot are discarded, the events that bracket the snapshot
// id are applied on top of it (zero quantity removes the level), and the
// merged {server_timestamp, bids, asks} state is pushed downstream. All local
// caches are dropped whenever the connection is not CONNECTED, so a fresh
// session always starts from a fresh snapshot.

package main

import "time"

const maxCachedDepthEvents = 100

type bookSide struct {
	events    map[string][]DepthEvent
	snapshots map[string]DepthSnapshot
}

func newBookSide() *bookSide {
	return &bookSide{
		events:    make(map[string][]DepthEvent),
		snapshots: make(map[string]DepthSnapshot),
	}
}

func (b *bookSide) addEvent(ev DepthEvent) {
	evs := append(b.events[ev.Pair], ev)
	if len(evs) > maxCachedDepthEvents {
		evs = evs[len(evs)-maxCachedDepthEvents:]
	}
	b.events[ev.Pair] = evs
}

// OrderBookWorker reconstructs per-pair order books from the snapshot and
// depth-event queues.
type OrderBookWorker struct {
	state *AppState
	cfg   Config

	now func() int64

	bids *bookSide
	asks *bookSide

	lastMerge int64
}

func NewOrderBookWorker(state *AppState, cfg Config) *OrderBookWorker {
	return &OrderBookWorker{
		state: state,
		cfg:   cfg,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

func (w *OrderBookWorker) Name() string { return "orderbook" }

func (w *OrderBookWorker) OnStart() error {
	w.reset()
	return nil
}

func (w *OrderBookWorker) reset() {
	w.bids = newBookSide()
	w.asks = newBookSide()
	w.lastMerge = 0
}

func (w *OrderBookWorker) OnUpdate() error {
	if w.state.ConnectionStatus() != StatusConnected {
		w.reset()
		return nil
	}

	for {
		ev, ok := w.state.BidDepthEventQueue.TryGet()
		if !ok {
			break
		}
		w.bids.addEvent(ev)
	}
	for {
		ev, ok := w.state.AskDepthEventQueue.TryGet()
		if !ok {
			break
		}
		w.asks.addEvent(ev)
	}

	for {
		snap, ok := w.state.BidSnapshotQueue.TryGet()
		if !ok {
			break
		}
		w.bids.snapshots[snap.Pair] = snap
	}
	for {
		snap, ok := w.state.AskSnapshotQueue.TryGet()
		if !ok {
			break
		}
		w.asks.snapshots[snap.Pair] = snap
	}

	curTime := w.now()
	if curTime-w.lastMerge < w.cfg.OrderbookInterval*1000 {
		return nil
	}
	w.lastMerge = curTime

	for _, pair := range w.state.AllPairs() {
		bidLevels, ok := w.bids.mergePair(pair)
		if !ok {
			continue
		}
		askLevels, ok := w.asks.mergePair(pair)
		if !ok {
			continue
		}
		w.state.OrderbookStateQueue.PutNowait(DepthStateMessage{
			Pair: pair,
			State: DepthState{
				ServerTimestamp: w.state.ServerTime(),
				Bids:            bidLevels,
				Asks:            askLevels,
			},
		})
		mtxOrderbookStates.WithLabelValues(pair).Inc()
	}
	return nil
}

// mergePair rebuilds one side of the book for pair and prunes events that can
// never apply again. It reports false until a snapshot has arrived.
func (b *bookSide) mergePair(pair string) (map[string]float64, bool) {
	snap, ok := b.snapshots[pair]
	if !ok {
		return nil, false
	}

	events := b.events[pair]
	keep := len(events)
	for i, ev := range events {
		if ev.LastUpdateID >= snap.UpdateID {
			keep = i
			break
		}
	}
	events = events[keep:]
	b.events[pair] = events

	levels := make(map[string]float64, len(snap.Levels))
	for price, qty := range snap.Levels {
		levels[price] = qty
	}
	for _, ev := range events {
		if ev.FirstUpdateID > snap.UpdateID {
			continue
		}
		for price, qty := range ev.Levels {
			if qty == 0 {
				delete(levels, price)
			} else {
				levels[price] = qty
			}
		}
	}
	return levels, true
}
