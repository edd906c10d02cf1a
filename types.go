// FILE: types.go
// Package main – Wire-facing message types shared by the pipeline workers.
//
// Price levels inside depth events, snapshots, and merged states are keyed by
// the exchange's price string so that level identity survives float parsing.
// Trades and depth states marshal to the exact JSON shape used by the session
// archive (and therefore by the replay driver).

package main

// Trade is a single spot-market trade enriched with the latest 24h ticker
// values cached by the socket stream worker.
type Trade struct {
	TradeTimestamp  int64   `json:"trade_timestamp"`
	ServerTimestamp int64   `json:"server_timestamp"`
	Price           float64 `json:"price"`
	Quantity        float64 `json:"quantity"`
	IsBuyerMaker    bool    `json:"is_buyer_maker"`
	BuyerID         int64   `json:"buyer_id"`
	SellerID        int64   `json:"seller_id"`
	Low24           float64 `json:"low24"`
	High24          float64 `json:"high24"`
	Vol24           float64 `json:"vol24"`
}

// TradeMessage pairs a trade with its symbol pair for queue transport.
type TradeMessage struct {
	Pair  string
	Trade Trade
}

// DepthEvent is one side of an incremental depth update. FirstUpdateID and
// LastUpdateID are the exchange's U-1 and u-1; a quantity of zero removes the
// level.
type DepthEvent struct {
	Pair          string
	FirstUpdateID int64
	LastUpdateID  int64
	Levels        map[string]float64
}

// DepthSnapshot is one side of a full REST depth snapshot.
type DepthSnapshot struct {
	Pair     string
	UpdateID int64
	Levels   map[string]float64
}

// DepthState is a merged per-pair order-book state emitted by the order-book
// worker and consumed (and archived) by the analysis worker.
type DepthState struct {
	ServerTimestamp int64              `json:"server_timestamp"`
	Bids            map[string]float64 `json:"bids"`
	Asks            map[string]float64 `json:"asks"`
}

// DepthStateMessage pairs a depth state with its symbol pair.
type DepthStateMessage struct {
	Pair  string
	State DepthState
}

// SignalSide is the direction of an emitted trade signal.
type SignalSide string

const (
	SignalBuy  SignalSide = "BUY"
	SignalSell SignalSide = "SELL"
)

// TradeSignal is a buy/sell event emitted by the analysis worker when the
// joint probability over the history window crosses its threshold.
type TradeSignal struct {
	Pair      string
	Side      SignalSide
	Timestamp int64
	Prob      float32
}
