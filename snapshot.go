// FILE: snapshot.go
// Package main – Snapshot worker: periodic REST depth snapshots.
//
// While CONNECTED, fetches a full top-100 depth snapshot per pair every
// depth_snapshot_interval seconds and feeds the bid/ask snapshot queues. The
// order-book worker anchors its incremental merge on the latest snapshot. A
// 429 latches RATE_LIMITED and aborts the tick; any other per-pair failure is
// logged and skipped so one bad symbol cannot starve the rest.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"
)

type restDepthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// SnapshotWorker polls REST depth snapshots for every configured pair.
type SnapshotWorker struct {
	state *AppState
	cfg   Config
	rest  *restClient
	ctx   context.Context

	now func() int64

	lastFetch map[string]int64
}

func NewSnapshotWorker(ctx context.Context, state *AppState, cfg Config) *SnapshotWorker {
	return &SnapshotWorker{
		state: state,
		cfg:   cfg,
		rest:  newRESTClient(cfg),
		ctx:   ctx,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

func (w *SnapshotWorker) Name() string { return "snapshot" }

func (w *SnapshotWorker) OnStart() error {
	w.lastFetch = make(map[string]int64)
	return nil
}

func (w *SnapshotWorker) OnUpdate() error {
	if w.state.ConnectionStatus() != StatusConnected {
		return nil
	}

	curTime := w.now()
	intervalMS := w.cfg.DepthSnapshotInterval * 1000

	for _, pair := range w.state.AllPairs() {
		if curTime-w.lastFetch[pair] < intervalMS {
			continue
		}
		if err := w.fetchSnapshot(pair); err != nil {
			if errors.Is(err, errRateLimited) {
				_ = w.state.SetConnectionStatus(StatusRateLimited)
				IncRateLimited()
				return nil
			}
			log.Printf("[SNAPSHOT] %s: %v", pair, err)
			continue
		}
		w.lastFetch[pair] = curTime
	}
	return nil
}

func (w *SnapshotWorker) fetchSnapshot(pair string) error {
	body, err := w.rest.GetDepth(w.ctx, pair, 100)
	if err != nil {
		return err
	}

	var res restDepthResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return err
	}

	w.state.BidSnapshotQueue.PutNowait(DepthSnapshot{
		Pair:     pair,
		UpdateID: res.LastUpdateID,
		Levels:   parseLevelList(res.Bids),
	})
	w.state.AskSnapshotQueue.PutNowait(DepthSnapshot{
		Pair:     pair,
		UpdateID: res.LastUpdateID,
		Levels:   parseLevelList(res.Asks),
	})
	mtxSnapshots.WithLabelValues(pair).Inc()
	return nil
}
