// FILE: archive.go
// Package main – Session archive: gzipped newline-delimited JSON logs.
//
// Trades and depth states for save_pairs land under
// <data_store_dir>/<connect_time>/<connect_time>_<pair>_{trades,depth}.txt.gz.
// Each append opens, writes one gzip member, and closes, so a crash never
// loses more than the batch in flight and the files stay valid gzip streams.
// The replay driver reads these files back to reproduce a session.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// SessionArchive appends session data below a fixed root directory.
type SessionArchive struct {
	root string
}

func NewSessionArchive(root string) *SessionArchive {
	return &SessionArchive{root: root}
}

// TradesLogPath returns the trades log location for one session and pair.
func (a *SessionArchive) TradesLogPath(connectTime int64, pair string) string {
	return filepath.Join(a.root, fmt.Sprintf("%d", connectTime),
		fmt.Sprintf("%d_%s_trades.txt.gz", connectTime, pair))
}

// DepthLogPath returns the depth log location for one session and pair.
func (a *SessionArchive) DepthLogPath(connectTime int64, pair string) string {
	return filepath.Join(a.root, fmt.Sprintf("%d", connectTime),
		fmt.Sprintf("%d_%s_depth.txt.gz", connectTime, pair))
}

// AppendTrade appends one trade line to the session's trades log.
func (a *SessionArchive) AppendTrade(connectTime int64, pair string, trade Trade) error {
	return a.appendLine(a.TradesLogPath(connectTime, pair), trade)
}

// AppendDepthState appends one depth-state line to the session's depth log.
func (a *SessionArchive) AppendDepthState(connectTime int64, pair string, state DepthState) error {
	return a.appendLine(a.DepthLogPath(connectTime, pair), state)
}

func (a *SessionArchive) appendLine(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("archive dir: %w", err)
	}

	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("archive marshal: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("archive open: %w", err)
	}

	zw := gzip.NewWriter(f)
	if _, err := zw.Write(append(line, '\n')); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("archive write: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("archive flush: %w", err)
	}
	return f.Close()
}
