// FILE: orderbook_test.go

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePairRequiresSnapshot(t *testing.T) {
	side := newBookSide()
	side.addEvent(DepthEvent{Pair: "ethbtc", FirstUpdateID: 1, LastUpdateID: 2})
	_, ok := side.mergePair("ethbtc")
	assert.False(t, ok)
}

func TestMergePairAppliesBracketingEvents(t *testing.T) {
	side := newBookSide()
	side.snapshots["ethbtc"] = DepthSnapshot{
		Pair:     "ethbtc",
		UpdateID: 100,
		Levels:   map[string]float64{"1.0": 1, "2.0": 2},
	}

	// Entirely before the snapshot: discarded.
	side.addEvent(DepthEvent{Pair: "ethbtc", FirstUpdateID: 90, LastUpdateID: 95,
		Levels: map[string]float64{"1.0": 5}})
	// Brackets the snapshot id: applied (removes 2.0, adds 3.0).
	side.addEvent(DepthEvent{Pair: "ethbtc", FirstUpdateID: 98, LastUpdateID: 105,
		Levels: map[string]float64{"2.0": 0, "3.0": 7}})
	// Entirely after: retained for a later snapshot but not applied now.
	side.addEvent(DepthEvent{Pair: "ethbtc", FirstUpdateID: 106, LastUpdateID: 110,
		Levels: map[string]float64{"4.0": 9}})

	levels, ok := side.mergePair("ethbtc")
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"1.0": 1, "3.0": 7}, levels)

	// The stale event is pruned; the bracketing and future events remain.
	require.Len(t, side.events["ethbtc"], 2)
	assert.Equal(t, int64(98), side.events["ethbtc"][0].FirstUpdateID)
	assert.Equal(t, int64(106), side.events["ethbtc"][1].FirstUpdateID)
}

func TestMergePairSnapshotOnly(t *testing.T) {
	side := newBookSide()
	side.snapshots["ethbtc"] = DepthSnapshot{
		Pair:     "ethbtc",
		UpdateID: 50,
		Levels:   map[string]float64{"1.0": 4},
	}
	levels, ok := side.mergePair("ethbtc")
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"1.0": 4}, levels)
}

func TestBookSideEventCacheTruncates(t *testing.T) {
	side := newBookSide()
	for i := 0; i < maxCachedDepthEvents+20; i++ {
		side.addEvent(DepthEvent{Pair: "ethbtc", FirstUpdateID: int64(i), LastUpdateID: int64(i)})
	}
	require.Len(t, side.events["ethbtc"], maxCachedDepthEvents)
	assert.Equal(t, int64(20), side.events["ethbtc"][0].FirstUpdateID)
}

func TestOrderBookWorkerEmitsMergedStates(t *testing.T) {
	state := NewAppState()
	state.SetTradePairs([]string{"ethbtc"})
	require.NoError(t, state.SetConnectionStatus(StatusConnected))
	state.SetServerTime(777)

	cfg := defaultConfig()
	w := NewOrderBookWorker(state, cfg)
	require.NoError(t, w.OnStart())
	w.now = func() int64 { return 1_000_000 }

	state.BidSnapshotQueue.PutNowait(DepthSnapshot{Pair: "ethbtc", UpdateID: 10,
		Levels: map[string]float64{"1.0": 1}})
	state.AskSnapshotQueue.PutNowait(DepthSnapshot{Pair: "ethbtc", UpdateID: 10,
		Levels: map[string]float64{"2.0": 2}})
	state.BidDepthEventQueue.PutNowait(DepthEvent{Pair: "ethbtc", FirstUpdateID: 9,
		LastUpdateID: 12, Levels: map[string]float64{"1.5": 3}})

	require.NoError(t, w.OnUpdate())

	msg, ok := state.OrderbookStateQueue.TryGet()
	require.True(t, ok)
	assert.Equal(t, "ethbtc", msg.Pair)
	assert.Equal(t, int64(777), msg.State.ServerTimestamp)
	assert.Equal(t, map[string]float64{"1.0": 1, "1.5": 3}, msg.State.Bids)
	assert.Equal(t, map[string]float64{"2.0": 2}, msg.State.Asks)
}

func TestOrderBookWorkerRequiresBothSideSnapshots(t *testing.T) {
	state := NewAppState()
	state.SetTradePairs([]string{"ethbtc"})
	require.NoError(t, state.SetConnectionStatus(StatusConnected))

	w := NewOrderBookWorker(state, defaultConfig())
	require.NoError(t, w.OnStart())
	w.now = func() int64 { return 1_000_000 }

	state.BidSnapshotQueue.PutNowait(DepthSnapshot{Pair: "ethbtc", UpdateID: 10,
		Levels: map[string]float64{"1.0": 1}})

	require.NoError(t, w.OnUpdate())
	_, ok := state.OrderbookStateQueue.TryGet()
	assert.False(t, ok)
}

func TestOrderBookWorkerResetsWhenDisconnected(t *testing.T) {
	state := NewAppState()
	state.SetTradePairs([]string{"ethbtc"})
	require.NoError(t, state.SetConnectionStatus(StatusConnected))

	w := NewOrderBookWorker(state, defaultConfig())
	require.NoError(t, w.OnStart())
	w.now = func() int64 { return 1_000_000 }

	state.BidDepthEventQueue.PutNowait(DepthEvent{Pair: "ethbtc", FirstUpdateID: 1, LastUpdateID: 2})
	require.NoError(t, w.OnUpdate())
	assert.Len(t, w.bids.events["ethbtc"], 1)

	require.NoError(t, state.SetConnectionStatus(StatusError))
	require.NoError(t, w.OnUpdate())
	assert.Empty(t, w.bids.events)
	assert.Empty(t, w.asks.events)
}

func TestOrderBookWorkerHonoursMergeInterval(t *testing.T) {
	state := NewAppState()
	state.SetTradePairs([]string{"ethbtc"})
	require.NoError(t, state.SetConnectionStatus(StatusConnected))

	cfg := defaultConfig() // orderbook_interval 5s
	w := NewOrderBookWorker(state, cfg)
	require.NoError(t, w.OnStart())

	now := int64(1_000_000)
	w.now = func() int64 { return now }

	state.BidSnapshotQueue.PutNowait(DepthSnapshot{Pair: "ethbtc", UpdateID: 1,
		Levels: map[string]float64{"1.0": 1}})
	state.AskSnapshotQueue.PutNowait(DepthSnapshot{Pair: "ethbtc", UpdateID: 1,
		Levels: map[string]float64{"2.0": 2}})

	require.NoError(t, w.OnUpdate())
	_, ok := state.OrderbookStateQueue.TryGet()
	require.True(t, ok)

	// Within the interval no new state is emitted.
	now += 1000
	require.NoError(t, w.OnUpdate())
	_, ok = state.OrderbookStateQueue.TryGet()
	assert.False(t, ok)

	now += 5000
	require.NoError(t, w.OnUpdate())
	_, ok = state.OrderbookStateQueue.TryGet()
	assert.True(t, ok)
}
