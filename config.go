// FILE: config.go
// Package main – Runtime configuration model and loader.
//
// The config file is JSON with // line comments stripped before parsing.
// Defaults are applied first so a sparse file stays valid; pair lists are
// lowercased on load. Typical flow (see main.go):
//   cfg, err := ReadConfigFile(path)

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Config holds all runtime knobs for the pipeline.
type Config struct {
	// Worker cadence and period bucketing (milliseconds).
	ProcUpdateRes int64 `json:"proc_update_res"`
	PeriodTime    int64 `json:"period_time"`

	// Analysis shape.
	NumDepthBins       int     `json:"num_depth_bins"`
	TradeHistoryLength int     `json:"trade_history_length"`
	BuyThreshold       float64 `json:"buy_threshold"`
	SellThreshold      float64 `json:"sell_threshold"`

	// Symbol pairs (lowercased on load).
	TradePairs []string `json:"trade_pairs"`
	SavePairs  []string `json:"save_pairs"`

	// Polling intervals (seconds).
	DepthSnapshotInterval int64 `json:"depth_snapshot_interval"`
	OrderbookInterval     int64 `json:"orderbook_interval"`

	// HTTP / websocket timeouts (seconds) and session rotation.
	RequestTimeout    int64 `json:"request_timeout"`
	ConnectTimeout    int64 `json:"connect_timeout"`
	MaxSessionTime    int64 `json:"max_session_time"`
	AccountRecvWindow int64 `json:"account_recv_window"`

	// Exchange credentials for signed endpoints.
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`

	// Session archive root.
	DataStoreDir string `json:"data_store_dir"`

	// UI bind.
	UIHostIP   string `json:"ui_host_ip"`
	UIHostPort int    `json:"ui_host_port"`
}

func defaultConfig() Config {
	return Config{
		ProcUpdateRes:         100,
		PeriodTime:            60000,
		NumDepthBins:          16,
		TradeHistoryLength:    5,
		BuyThreshold:          0.75,
		SellThreshold:         0.75,
		DepthSnapshotInterval: 30,
		OrderbookInterval:     5,
		RequestTimeout:        10,
		ConnectTimeout:        10,
		MaxSessionTime:        43200,
		AccountRecvWindow:     5000,
		DataStoreDir:          "data",
		UIHostIP:              "127.0.0.1",
		UIHostPort:            8080,
	}
}

// stripLineComments removes everything from the first // to the end of each
// line; commented lines lose their trailing newline as well.
func stripLineComments(raw string) string {
	var b strings.Builder
	for _, line := range strings.Split(raw, "\n") {
		if pos := strings.Index(line, "//"); pos >= 0 {
			b.WriteString(line[:pos])
		} else {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ReadConfigFile parses and verifies configuration parameters from the file.
func ReadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if err := json.Unmarshal([]byte(stripLineComments(string(raw))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	for i, p := range cfg.TradePairs {
		cfg.TradePairs[i] = strings.ToLower(p)
	}
	for i, p := range cfg.SavePairs {
		cfg.SavePairs[i] = strings.ToLower(p)
	}

	if cfg.PeriodTime <= 0 {
		return Config{}, fmt.Errorf("period_time must be positive, got %d", cfg.PeriodTime)
	}
	if cfg.NumDepthBins < 2 {
		return Config{}, fmt.Errorf("num_depth_bins must be at least 2, got %d", cfg.NumDepthBins)
	}
	if cfg.TradeHistoryLength <= 0 {
		return Config{}, fmt.Errorf("trade_history_length must be positive, got %d", cfg.TradeHistoryLength)
	}

	return cfg, nil
}
