// FILE: replay.go
// Package main – Replay driver: re-runs an archived session without delay.
//
// Reads one pair's archived trades and depth logs and drives the analysis
// worker exactly as the live pipeline would, with a virtual clock stepped in
// update_resolution increments instead of wall time. Back-pressure replaces
// pacing: before each push the driver spins until the consumer has drained
// the queue, so analysis sees every message in order and no virtual time is
// skipped. Progress is reported through a callback every 100 clock updates.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
)

const (
	replayBackoff        = 100 * time.Nanosecond
	progressCallbackFreq = 100
)

// ProgressFunc receives the current and final replay dates plus an integer
// percentage of virtual time consumed.
type ProgressFunc func(curDate, finalDate string, percent int)

// ReplayDriver replays one archived session for one pair.
type ReplayDriver struct {
	state            *AppState
	archive          *SessionArchive
	sessionTimestamp int64
	pair             string
	updateResolution int64
	progressFn       ProgressFunc

	pendingDepth    *DepthState
	hasPendingDepth bool

	startSeen      bool
	startTimestamp int64
	finalTimestamp int64
	finalDateStr   string
	curUpdate      int64
}

func NewReplayDriver(state *AppState, cfg Config, sessionTimestamp int64, pair string, updateResolution int64, progressFn ProgressFunc) *ReplayDriver {
	return &ReplayDriver{
		state:            state,
		archive:          NewSessionArchive(cfg.DataStoreDir),
		sessionTimestamp: sessionTimestamp,
		pair:             pair,
		updateResolution: updateResolution,
		progressFn:       progressFn,
	}
}

func replayDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

// Run replays the archived session until its trades log is exhausted or ctx
// is cancelled.
func (d *ReplayDriver) Run(ctx context.Context) error {
	tradesPath := d.archive.TradesLogPath(d.sessionTimestamp, d.pair)
	depthPath := d.archive.DepthLogPath(d.sessionTimestamp, d.pair)

	finalTrade, err := readFinalTrade(tradesPath)
	if err != nil {
		return err
	}
	d.finalTimestamp = finalTrade.ServerTimestamp
	d.finalDateStr = replayDate(d.finalTimestamp)

	// Analysis only consumes while CONNECTED; seed the session identity the
	// connection worker would have provided.
	d.state.SetConnectTime(d.sessionTimestamp)
	if err := d.state.SetConnectionStatus(StatusConnected); err != nil {
		return err
	}

	trades, closeTrades, err := openArchiveLines(tradesPath)
	if err != nil {
		return err
	}
	defer closeTrades()

	depths, closeDepths, err := openArchiveLines(depthPath)
	if err != nil {
		return err
	}
	defer closeDepths()

	lastUpdateTimestamp := int64(0)

	for {
		line, err := trades.ReadBytes('\n')
		if len(line) <= 1 && err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read trades log: %w", err)
		}

		var trade Trade
		if err := json.Unmarshal(line, &trade); err != nil {
			return fmt.Errorf("parse trades log: %w", err)
		}

		serverTimestamp := trade.ServerTimestamp

		// Step the virtual clock up to the trade's timestamp.
		if serverTimestamp-lastUpdateTimestamp >= d.updateResolution {
			if lastUpdateTimestamp == 0 {
				if err := d.update(ctx, serverTimestamp, depths); err != nil {
					return err
				}
			} else {
				t := lastUpdateTimestamp
				for {
					t += d.updateResolution
					if err := d.update(ctx, t, depths); err != nil {
						return err
					}
					if t >= serverTimestamp {
						break
					}
				}
				serverTimestamp = t
			}
			lastUpdateTimestamp = serverTimestamp
		}

		if err := d.awaitEmpty(ctx, func() bool { return d.state.TradeQueue.Empty() }); err != nil {
			return err
		}
		d.state.SetServerTime(serverTimestamp)
		d.state.TradeQueue.PutNowait(TradeMessage{Pair: d.pair, Trade: trade})
	}
}

// update advances the virtual clock to serverTimestamp, releasing every depth
// state recorded before it (one read-ahead line is carried between calls).
func (d *ReplayDriver) update(ctx context.Context, serverTimestamp int64, depths *bufio.Reader) error {
	if d.hasPendingDepth && d.pendingDepth.ServerTimestamp < serverTimestamp {
		if err := d.pushDepth(ctx, serverTimestamp, *d.pendingDepth); err != nil {
			return err
		}
		d.hasPendingDepth = false
	}

	if !d.hasPendingDepth {
		for {
			line, err := depths.ReadBytes('\n')
			if len(line) <= 1 && err != nil {
				break
			}
			var depthState DepthState
			if err := json.Unmarshal(line, &depthState); err != nil {
				return fmt.Errorf("parse depth log: %w", err)
			}

			if depthState.ServerTimestamp < serverTimestamp {
				if err := d.pushDepth(ctx, serverTimestamp, depthState); err != nil {
					return err
				}
			} else {
				d.pendingDepth = &depthState
				d.hasPendingDepth = true
				break
			}
		}
	}

	if !d.startSeen {
		d.startSeen = true
		d.startTimestamp = d.state.ServerTime()
	}

	d.curUpdate++
	if d.curUpdate%progressCallbackFreq == 0 && d.progressFn != nil {
		cur := d.state.ServerTime()
		progress := 1 - float64(d.finalTimestamp-cur)/float64(d.finalTimestamp-d.startTimestamp)
		d.progressFn(replayDate(cur), d.finalDateStr, int(progress*100))
	}
	return nil
}

func (d *ReplayDriver) pushDepth(ctx context.Context, serverTimestamp int64, state DepthState) error {
	if err := d.awaitEmpty(ctx, func() bool { return d.state.OrderbookStateQueue.Empty() }); err != nil {
		return err
	}
	d.state.SetServerTime(serverTimestamp)
	d.state.OrderbookStateQueue.PutNowait(DepthStateMessage{Pair: d.pair, State: state})
	return nil
}

// awaitEmpty spins until the consumer drains its queue; the tiny sleep keeps
// replay as fast as the analysis worker and no faster.
func (d *ReplayDriver) awaitEmpty(ctx context.Context, empty func() bool) error {
	for !empty() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(replayBackoff):
		}
	}
	return nil
}

// readFinalTrade scans the whole trades log and returns its last line, which
// bounds the session's virtual time for progress accounting.
func readFinalTrade(path string) (Trade, error) {
	lines, closeLines, err := openArchiveLines(path)
	if err != nil {
		return Trade{}, err
	}
	defer closeLines()

	var last []byte
	for {
		line, err := lines.ReadBytes('\n')
		if len(line) > 1 {
			last = append(last[:0], line...)
		}
		if err != nil {
			break
		}
	}
	if last == nil {
		return Trade{}, fmt.Errorf("trades log %s is empty", path)
	}

	var trade Trade
	if err := json.Unmarshal(last, &trade); err != nil {
		return Trade{}, fmt.Errorf("parse final trade: %w", err)
	}
	return trade, nil
}

func openArchiveLines(path string) (*bufio.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	closer := func() {
		zr.Close()
		f.Close()
	}
	return bufio.NewReader(zr), closer, nil
}
