// FILE: archive_test.go

package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveAppendsReadBackAsLines(t *testing.T) {
	archive := NewSessionArchive(t.TempDir())

	// Each append is its own gzip member; the reader must see one stream.
	for i := 1; i <= 3; i++ {
		require.NoError(t, archive.AppendTrade(42, "ethbtc", Trade{
			TradeTimestamp:  int64(i * 1000),
			ServerTimestamp: int64(i * 1000),
			Price:           float64(i),
			Quantity:        1,
		}))
	}

	f, err := os.Open(archive.TradesLogPath(42, "ethbtc"))
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()

	r := bufio.NewReader(zr)
	var prices []float64
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 1 {
			var trade Trade
			require.NoError(t, json.Unmarshal(line, &trade))
			prices = append(prices, trade.Price)
		}
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, []float64{1, 2, 3}, prices)
}

func TestArchiveTradeJSONShape(t *testing.T) {
	line, err := json.Marshal(Trade{
		TradeTimestamp:  1,
		ServerTimestamp: 2,
		Price:           3.5,
		Quantity:        0.25,
		IsBuyerMaker:    true,
		BuyerID:         7,
		SellerID:        8,
		Low24:           1.1,
		High24:          9.9,
		Vol24:           100,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"trade_timestamp": 1, "server_timestamp": 2,
		"price": 3.5, "quantity": 0.25, "is_buyer_maker": true,
		"buyer_id": 7, "seller_id": 8,
		"low24": 1.1, "high24": 9.9, "vol24": 100
	}`, string(line))
}

func TestArchivePathLayout(t *testing.T) {
	archive := NewSessionArchive("data")
	assert.Equal(t, "data/1500000000000/1500000000000_ethbtc_trades.txt.gz",
		archive.TradesLogPath(1500000000000, "ethbtc"))
	assert.Equal(t, "data/1500000000000/1500000000000_ethbtc_depth.txt.gz",
		archive.DepthLogPath(1500000000000, "ethbtc"))
}
