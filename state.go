// FILE: state.go
// Package main – Shared application state and the UI projection protocol.
//
// AppState is the only state shared between workers. UI-visible scalars carry
// a dirty bit under a single mutex; the two projection operations are:
//   • WriteUpdates(send) – push only dirty scalars, clearing bits atomically
//   • WriteAll(send)     – push the full snapshot (fresh UI client connect)
// Each mutation becomes one push message {"type":"SET_<FIELD>","payload":v}.
//
// The typed queues wiring the workers together also live here so that no
// worker holds a back-reference to another worker.

package main

import (
	"fmt"
	"sync"
)

// ConnectionStatus enumerates the connection state machine states.
type ConnectionStatus string

const (
	StatusNotConnected ConnectionStatus = "NOT_CONNECTED"
	StatusConnecting   ConnectionStatus = "CONNECTING"
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusRateLimited  ConnectionStatus = "RATE_LIMITED"
	StatusError        ConnectionStatus = "ERROR"
)

func validStatus(s ConnectionStatus) bool {
	switch s {
	case StatusNotConnected, StatusConnecting, StatusConnected, StatusRateLimited, StatusError:
		return true
	}
	return false
}

// StateMessage is one UI push message.
type StateMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type dirtyFlags struct {
	latency          bool
	serverTime       bool
	connectTime      bool
	connectionStatus bool
	fatalError       bool
	errorMsg         bool
	tradePairs       bool
	savePairs        bool
}

// AppState encapsulates process-shared state. Scalar writes set a dirty bit
// under the single mutex; reads copy under the same mutex.
type AppState struct {
	mu    sync.Mutex
	dirty dirtyFlags

	latency          int64
	serverTime       int64
	connectTime      int64
	connectionStatus ConnectionStatus
	fatalError       bool
	errorMsg         string
	tradePairs       []string
	savePairs        []string

	// Private fields; never projected to the UI.
	wsURI     string
	pairInfos map[string]PairInfo

	TradeQueue          *Queue[TradeMessage]
	BidDepthEventQueue  *Queue[DepthEvent]
	AskDepthEventQueue  *Queue[DepthEvent]
	BidSnapshotQueue    *Queue[DepthSnapshot]
	AskSnapshotQueue    *Queue[DepthSnapshot]
	OrderbookStateQueue *Queue[DepthStateMessage]
	ExecutorQueue       *Queue[TradeSignal]
}

func NewAppState() *AppState {
	return &AppState{
		connectionStatus:    StatusNotConnected,
		TradeQueue:          NewQueue[TradeMessage]("trade"),
		BidDepthEventQueue:  NewQueue[DepthEvent]("bid_depth_event"),
		AskDepthEventQueue:  NewQueue[DepthEvent]("ask_depth_event"),
		BidSnapshotQueue:    NewQueue[DepthSnapshot]("bid_snapshot"),
		AskSnapshotQueue:    NewQueue[DepthSnapshot]("ask_snapshot"),
		OrderbookStateQueue: NewQueue[DepthStateMessage]("orderbook_state"),
		ExecutorQueue:       NewQueue[TradeSignal]("executor"),
	}
}

// ---- scalar accessors ----

func (s *AppState) Latency() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency
}

func (s *AppState) SetLatency(v int64) {
	s.mu.Lock()
	s.latency = v
	s.dirty.latency = true
	s.mu.Unlock()
}

func (s *AppState) ServerTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverTime
}

func (s *AppState) SetServerTime(v int64) {
	s.mu.Lock()
	s.serverTime = v
	s.dirty.serverTime = true
	s.mu.Unlock()
}

// AdvanceServerTime moves server time forward to v; server time never rewinds.
func (s *AppState) AdvanceServerTime(v int64) {
	s.mu.Lock()
	if v > s.serverTime {
		s.serverTime = v
		s.dirty.serverTime = true
	}
	s.mu.Unlock()
}

func (s *AppState) ConnectTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectTime
}

func (s *AppState) SetConnectTime(v int64) {
	s.mu.Lock()
	s.connectTime = v
	s.dirty.connectTime = true
	s.mu.Unlock()
}

func (s *AppState) ConnectionStatus() ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionStatus
}

// SetConnectionStatus rejects values outside the enumeration.
func (s *AppState) SetConnectionStatus(v ConnectionStatus) error {
	if !validStatus(v) {
		return fmt.Errorf("invalid connection status: %q", v)
	}
	s.mu.Lock()
	s.connectionStatus = v
	s.dirty.connectionStatus = true
	s.mu.Unlock()
	return nil
}

func (s *AppState) FatalError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalError
}

func (s *AppState) SetFatalError(v bool) {
	s.mu.Lock()
	s.fatalError = v
	s.dirty.fatalError = true
	s.mu.Unlock()
}

func (s *AppState) ErrorMsg() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorMsg
}

func (s *AppState) SetErrorMsg(v string) {
	s.mu.Lock()
	s.errorMsg = v
	s.dirty.errorMsg = true
	s.mu.Unlock()
}

func (s *AppState) TradePairs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tradePairs...)
}

func (s *AppState) SetTradePairs(pairs []string) {
	s.mu.Lock()
	s.tradePairs = append([]string(nil), pairs...)
	s.dirty.tradePairs = true
	s.mu.Unlock()
}

func (s *AppState) SavePairs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.savePairs...)
}

func (s *AppState) SetSavePairs(pairs []string) {
	s.mu.Lock()
	s.savePairs = append([]string(nil), pairs...)
	s.dirty.savePairs = true
	s.mu.Unlock()
}

// AllPairs returns trade_pairs ∪ save_pairs, trade pairs first.
func (s *AppState) AllPairs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(s.tradePairs)+len(s.savePairs))
	var out []string
	for _, p := range s.tradePairs {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range s.savePairs {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// ---- private (non-UI) fields ----

func (s *AppState) WSURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wsURI
}

func (s *AppState) SetWSURI(uri string) {
	s.mu.Lock()
	s.wsURI = uri
	s.mu.Unlock()
}

func (s *AppState) PairInfos() map[string]PairInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairInfos
}

func (s *AppState) SetPairInfos(infos map[string]PairInfo) {
	s.mu.Lock()
	s.pairInfos = infos
	s.mu.Unlock()
}

// ---- UI projection ----

func (s *AppState) writeLatency(send func(StateMessage)) {
	send(StateMessage{Type: "SET_LATENCY", Payload: s.latency})
}
func (s *AppState) writeServerTime(send func(StateMessage)) {
	send(StateMessage{Type: "SET_SERVER_TIME", Payload: s.serverTime})
}
func (s *AppState) writeConnectTime(send func(StateMessage)) {
	send(StateMessage{Type: "SET_CONNECT_TIME", Payload: s.connectTime})
}
func (s *AppState) writeConnectionStatus(send func(StateMessage)) {
	send(StateMessage{Type: "SET_CONNECTION_STATUS", Payload: s.connectionStatus})
}
func (s *AppState) writeFatalError(send func(StateMessage)) {
	send(StateMessage{Type: "SET_FATAL_ERROR", Payload: s.fatalError})
}
func (s *AppState) writeErrorMsg(send func(StateMessage)) {
	send(StateMessage{Type: "SET_ERROR_MSG", Payload: s.errorMsg})
}
func (s *AppState) writeTradePairs(send func(StateMessage)) {
	send(StateMessage{Type: "SET_TRADE_PAIRS", Payload: append([]string(nil), s.tradePairs...)})
}
func (s *AppState) writeSavePairs(send func(StateMessage)) {
	send(StateMessage{Type: "SET_SAVE_PAIRS", Payload: append([]string(nil), s.savePairs...)})
}

// WriteUpdates transmits exactly the scalars whose dirty bit is set and clears
// the bits under the lock, so no mutation can slip between send and clear.
func (s *AppState) WriteUpdates(send func(StateMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty.latency {
		s.writeLatency(send)
		s.dirty.latency = false
	}
	if s.dirty.serverTime {
		s.writeServerTime(send)
		s.dirty.serverTime = false
	}
	if s.dirty.connectTime {
		s.writeConnectTime(send)
		s.dirty.connectTime = false
	}
	if s.dirty.connectionStatus {
		s.writeConnectionStatus(send)
		s.dirty.connectionStatus = false
	}
	if s.dirty.fatalError {
		s.writeFatalError(send)
		s.dirty.fatalError = false
	}
	if s.dirty.errorMsg {
		s.writeErrorMsg(send)
		s.dirty.errorMsg = false
	}
	if s.dirty.tradePairs {
		s.writeTradePairs(send)
		s.dirty.tradePairs = false
	}
	if s.dirty.savePairs {
		s.writeSavePairs(send)
		s.dirty.savePairs = false
	}
}

// WriteAll transmits the full snapshot without touching dirty bits.
func (s *AppState) WriteAll(send func(StateMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeLatency(send)
	s.writeServerTime(send)
	s.writeConnectTime(send)
	s.writeConnectionStatus(send)
	s.writeFatalError(send)
	s.writeErrorMsg(send)
	s.writeTradePairs(send)
	s.writeSavePairs(send)
}
