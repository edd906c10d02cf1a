// FILE: replay_test.go

package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeReplayArchive(t *testing.T, dir string, session int64, pair string, trades []Trade, depths []DepthState) {
	t.Helper()
	archive := NewSessionArchive(dir)
	for _, tr := range trades {
		require.NoError(t, archive.AppendTrade(session, pair, tr))
	}
	for _, d := range depths {
		require.NoError(t, archive.AppendDepthState(session, pair, d))
	}
}

func replayTrade(ts int64, price float64) Trade {
	return Trade{TradeTimestamp: ts, ServerTimestamp: ts, Price: price, Quantity: 1}
}

func TestReadFinalTrade(t *testing.T) {
	dir := t.TempDir()
	writeReplayArchive(t, dir, 100, "ethbtc", []Trade{
		replayTrade(1000, 1),
		replayTrade(2000, 2),
		replayTrade(3000, 3),
	}, nil)

	trade, err := readFinalTrade(NewSessionArchive(dir).TradesLogPath(100, "ethbtc"))
	require.NoError(t, err)
	assert.Equal(t, int64(3000), trade.ServerTimestamp)
	assert.Equal(t, 3.0, trade.Price)
}

func TestReadFinalTradeEmptyLog(t *testing.T) {
	_, err := readFinalTrade(t.TempDir() + "/missing.txt.gz")
	assert.Error(t, err)
}

// drainReplayQueues consumes trades and depth states the way the analysis
// worker would, recording arrival order.
func drainReplayQueues(ctx context.Context, state *AppState, mu *sync.Mutex, trades *[]TradeMessage, depths *[]DepthStateMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		got := false
		if msg, ok := state.TradeQueue.TryGet(); ok {
			mu.Lock()
			*trades = append(*trades, msg)
			mu.Unlock()
			got = true
		}
		if msg, ok := state.OrderbookStateQueue.TryGet(); ok {
			mu.Lock()
			*depths = append(*depths, msg)
			mu.Unlock()
			got = true
		}
		if !got {
			time.Sleep(10 * time.Microsecond)
		}
	}
}

func TestReplayDriverDeliversSessionInOrder(t *testing.T) {
	dir := t.TempDir()
	session := int64(555)

	trades := []Trade{
		replayTrade(1000, 1),
		replayTrade(1600, 2),
		replayTrade(2600, 3),
		replayTrade(4000, 4),
	}
	depths := []DepthState{
		{ServerTimestamp: 1200, Bids: map[string]float64{"1.0": 1}},
		{ServerTimestamp: 2700, Bids: map[string]float64{"2.0": 2}},
	}
	writeReplayArchive(t, dir, session, "ethbtc", trades, depths)

	cfg := defaultConfig()
	cfg.DataStoreDir = dir

	state := NewAppState()
	driver := NewReplayDriver(state, cfg, session, "ethbtc", 500, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var mu sync.Mutex
	var gotTrades []TradeMessage
	var gotDepths []DepthStateMessage
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	go drainReplayQueues(consumerCtx, state, &mu, &gotTrades, &gotDepths)

	require.NoError(t, driver.Run(ctx))

	// Let the consumer pick up the final pushes, then stop it.
	require.Eventually(t, func() bool {
		return state.TradeQueue.Empty() && state.OrderbookStateQueue.Empty()
	}, 5*time.Second, time.Millisecond)
	stopConsumer()

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, gotTrades, len(trades))
	for i, msg := range gotTrades {
		assert.Equal(t, "ethbtc", msg.Pair)
		assert.Equal(t, trades[i].ServerTimestamp, msg.Trade.ServerTimestamp)
	}

	require.Len(t, gotDepths, len(depths))
	assert.Equal(t, int64(1200), gotDepths[0].State.ServerTimestamp)
	assert.Equal(t, int64(2700), gotDepths[1].State.ServerTimestamp)

	// The driver seeded the session identity and left the clock at the end.
	assert.Equal(t, StatusConnected, state.ConnectionStatus())
	assert.Equal(t, session, state.ConnectTime())
	assert.GreaterOrEqual(t, state.ServerTime(), int64(4000))
}

func TestReplayDriverReportsProgress(t *testing.T) {
	dir := t.TempDir()
	session := int64(777)

	// Enough virtual-clock updates to cross the callback frequency.
	var trades []Trade
	for ts := int64(1000); ts <= 200_000; ts += 1000 {
		trades = append(trades, replayTrade(ts, 1))
	}
	writeReplayArchive(t, dir, session, "ethbtc", trades,
		[]DepthState{{ServerTimestamp: 1500, Bids: map[string]float64{"1.0": 1}}})

	cfg := defaultConfig()
	cfg.DataStoreDir = dir

	state := NewAppState()

	var mu sync.Mutex
	var percents []int
	var finalDates []string
	driver := NewReplayDriver(state, cfg, session, "ethbtc", 500,
		func(curDate, finalDate string, percent int) {
			mu.Lock()
			percents = append(percents, percent)
			finalDates = append(finalDates, finalDate)
			mu.Unlock()
		})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var gotTrades []TradeMessage
	var gotDepths []DepthStateMessage
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	go drainReplayQueues(consumerCtx, state, &mu, &gotTrades, &gotDepths)
	defer stopConsumer()

	require.NoError(t, driver.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, percents)
	assert.Equal(t, replayDate(200_000), finalDates[0])
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
	assert.LessOrEqual(t, percents[len(percents)-1], 100)
}

func TestReplayDriverMissingArchive(t *testing.T) {
	cfg := defaultConfig()
	cfg.DataStoreDir = t.TempDir()
	driver := NewReplayDriver(NewAppState(), cfg, 1, "ethbtc", 500, nil)
	assert.Error(t, driver.Run(context.Background()))
}
