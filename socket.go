// FILE: socket.go
// Package main – Socket stream worker: the exchange's multiplexed event feed.
//
// Owns one websocket against the stream URI built by the connection worker.
// The tick loop only opens/closes the socket (open once CONNECTED and the
// session is ≥1 s old); frames are consumed by a dedicated read goroutine and
// dispatched by event kind. A bad frame is dropped in isolation — a single
// malformed message must never kill the stream.

package main

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type wsFrame struct {
	Data json.RawMessage `json:"data"`
}

type wsEventHeader struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
}

type wsTradeEvent struct {
	Symbol       string `json:"s"`
	TradeTime    int64  `json:"T"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	IsBuyerMaker bool   `json:"m"`
	BuyerID      int64  `json:"b"`
	SellerID     int64  `json:"a"`
}

type wsTickerEvent struct {
	Symbol string `json:"s"`
	Low    string `json:"l"`
	High   string `json:"h"`
	Volume string `json:"v"`
}

type wsDepthEvent struct {
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	LastUpdateID  int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// SocketStreamWorker consumes the exchange event stream and fans events out
// to the trade and depth-event queues.
type SocketStreamWorker struct {
	state *AppState
	cfg   Config
	ctx   context.Context

	conn     *websocket.Conn
	readDone chan struct{}

	// 24h ticker caches, written only by the read goroutine.
	tickerLows  map[string]float64
	tickerHighs map[string]float64
	tickerVols  map[string]float64
}

func NewSocketStreamWorker(ctx context.Context, state *AppState, cfg Config) *SocketStreamWorker {
	return &SocketStreamWorker{state: state, cfg: cfg, ctx: ctx}
}

func (w *SocketStreamWorker) Name() string { return "socket_stream" }

func (w *SocketStreamWorker) OnStart() error {
	w.tickerLows = make(map[string]float64)
	w.tickerHighs = make(map[string]float64)
	w.tickerVols = make(map[string]float64)
	return nil
}

func (w *SocketStreamWorker) OnUpdate() error {
	shouldStream := w.state.ConnectionStatus() == StatusConnected &&
		w.state.ServerTime()-w.state.ConnectTime() >= wsStreamSettleMS

	if !shouldStream {
		w.closeConn()
		return nil
	}

	if w.conn != nil {
		select {
		case <-w.readDone:
			// Reader exited (socket dropped); clear so the next tick redials.
			w.closeConn()
		default:
			return nil
		}
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: time.Duration(w.cfg.ConnectTimeout) * time.Second,
	}
	conn, _, err := dialer.DialContext(w.ctx, w.state.WSURI(), nil)
	if err != nil {
		log.Printf("[WS] dial failed: %v", err)
		return nil
	}
	IncWSReconnects()

	w.conn = conn
	w.readDone = make(chan struct{})
	go w.readLoop(conn, w.readDone)
	return nil
}

func (w *SocketStreamWorker) closeConn() {
	if w.conn == nil {
		return
	}
	_ = w.conn.Close()
	<-w.readDone
	w.conn = nil
}

func (w *SocketStreamWorker) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		w.onMessage(msg)
	}
}

func (w *SocketStreamWorker) onMessage(msg []byte) {
	var frame wsFrame
	if err := json.Unmarshal(msg, &frame); err != nil || frame.Data == nil {
		return
	}
	var hdr wsEventHeader
	if err := json.Unmarshal(frame.Data, &hdr); err != nil || hdr.EventTime == 0 {
		return
	}

	w.state.AdvanceServerTime(hdr.EventTime)

	switch hdr.EventType {
	case "trade":
		w.processTradeEvent(frame.Data)
	case "24hrTicker":
		w.processTickerEvent(frame.Data)
	case "depthUpdate":
		w.processDepthEvent(frame.Data)
	case "executionReport":
		// Hook for the executor once it manages real orders.
	case "outboundAccountInfo":
		// Hook for live balance tracking.
	}
}

func (w *SocketStreamWorker) processTradeEvent(data []byte) {
	var ev wsTradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	pair := lowerPair(ev.Symbol)

	price, err := strconv.ParseFloat(ev.Price, 64)
	if err != nil {
		return
	}
	qty, err := strconv.ParseFloat(ev.Quantity, 64)
	if err != nil {
		return
	}

	trade := Trade{
		TradeTimestamp:  ev.TradeTime,
		ServerTimestamp: w.state.ServerTime(),
		Price:           price,
		Quantity:        qty,
		IsBuyerMaker:    ev.IsBuyerMaker,
		BuyerID:         ev.BuyerID,
		SellerID:        ev.SellerID,
		Low24:           w.tickerLows[pair],
		High24:          w.tickerHighs[pair],
		Vol24:           w.tickerVols[pair],
	}

	w.state.TradeQueue.PutNowait(TradeMessage{Pair: pair, Trade: trade})
	mtxTradesIngested.WithLabelValues(pair).Inc()
}

func (w *SocketStreamWorker) processTickerEvent(data []byte) {
	var ev wsTickerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	pair := lowerPair(ev.Symbol)

	if v, err := strconv.ParseFloat(ev.Low, 64); err == nil {
		w.tickerLows[pair] = v
	}
	if v, err := strconv.ParseFloat(ev.High, 64); err == nil {
		w.tickerHighs[pair] = v
	}
	if v, err := strconv.ParseFloat(ev.Volume, 64); err == nil {
		w.tickerVols[pair] = v
	}
}

func (w *SocketStreamWorker) processDepthEvent(data []byte) {
	var ev wsDepthEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	pair := lowerPair(ev.Symbol)

	bidUpdates := parseLevelList(ev.Bids)
	askUpdates := parseLevelList(ev.Asks)

	w.state.BidDepthEventQueue.PutNowait(DepthEvent{
		Pair:          pair,
		FirstUpdateID: ev.FirstUpdateID - 1,
		LastUpdateID:  ev.LastUpdateID - 1,
		Levels:        bidUpdates,
	})
	w.state.AskDepthEventQueue.PutNowait(DepthEvent{
		Pair:          pair,
		FirstUpdateID: ev.FirstUpdateID - 1,
		LastUpdateID:  ev.LastUpdateID - 1,
		Levels:        askUpdates,
	})
	mtxDepthEvents.WithLabelValues("bid").Inc()
	mtxDepthEvents.WithLabelValues("ask").Inc()
}

// lowerPair normalizes a stream symbol to the internal lowercase pair form.
func lowerPair(symbol string) string { return strings.ToLower(symbol) }

// parseLevelList converts [[price, qty, ...], ...] into a level map. A zero
// quantity is kept: it means "remove this level" downstream.
func parseLevelList(levels [][]string) map[string]float64 {
	out := make(map[string]float64, len(levels))
	for _, lvl := range levels {
		if len(lvl) < 2 {
			continue
		}
		qty, err := strconv.ParseFloat(lvl[1], 64)
		if err != nil {
			continue
		}
		out[lvl[0]] = qty
	}
	return out
}
