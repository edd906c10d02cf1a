// FILE: main.go
// Package main – Program entrypoint, worker supervision, HTTP server.
//
// Boot sequence:
//   1) cfg := ReadConfigFile(-config)   – JSON config with // comments
//   2) state := NewAppState()           – shared state + typed queues
//   3) start HTTP server                – /socket UI stream, /metrics, /healthz
//   4) runLive or runReplay based on flags
//
// Flags:
//   -config <path>       Config file path (default config.json)
//   -replay <timestamp>  Replay the archived session with this connect time
//   -pair <pair>         Pair to replay (required with -replay)
//   -model-pair <pair>   Construct prediction models for this pair instead
//
// Example:
//   go run . -config config.json
//   go run . -config config.json -replay 1517500000000 -pair ethbtc
//
// Live mode runs the full pipeline (connection, socket stream, snapshots,
// order book, analysis, executor) on the proc_update_res cadence. Replay mode
// runs only analysis and executor, spinning without tick sleep, while the
// replay driver feeds the queues under back-pressure. Any worker error is
// fatal: the supervisor sees fatal_error and cancels the process context.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// ---- Flags ----
	var configPath string
	var replayTimestamp int64
	var replayPair string
	var modelPair string
	flag.StringVar(&configPath, "config", "config.json", "Path to config file")
	flag.Int64Var(&replayTimestamp, "replay", 0, "Replay the session with this connect-time timestamp")
	flag.StringVar(&replayPair, "pair", "", "Pair to replay (with -replay)")
	flag.StringVar(&modelPair, "model-pair", "", "Pair whose models score the replayed stream")
	flag.Parse()

	cfg, err := ReadConfigFile(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	state := NewAppState()
	state.SetTradePairs(cfg.TradePairs)
	state.SetSavePairs(cfg.SavePairs)

	ui := NewUIServer(state)

	// ---- HTTP: UI stream, metrics, health ----
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	ui.Register(mux)

	srv := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.UIHostIP, cfg.UIHostPort), Handler: mux}
	go func() {
		log.Printf("serving UI socket and metrics on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	// ---- Run selected mode ----
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if replayTimestamp != 0 {
		if replayPair == "" {
			log.Fatalf("-replay requires -pair")
		}
		runReplay(ctx, cancel, state, cfg, ui, replayTimestamp, strings.ToLower(replayPair), strings.ToLower(modelPair))
	} else {
		runLive(ctx, cancel, state, cfg, ui)
	}

	// ---- Graceful shutdown for HTTP server ----
	shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}

// runLive starts the full pipeline and supervises it until shutdown.
func runLive(ctx context.Context, cancel context.CancelFunc, state *AppState, cfg Config, ui *UIServer) {
	workers := []Worker{
		NewConnectionWorker(ctx, state, cfg),
		NewSocketStreamWorker(ctx, state, cfg),
		NewSnapshotWorker(ctx, state, cfg),
		NewOrderBookWorker(state, cfg),
		NewAnalysisWorker(state, cfg, ""),
		NewExecutorWorker(state),
	}
	superviseWorkers(ctx, cancel, state, cfg, ui, workers, cfg.ProcUpdateRes)
}

// runReplay feeds an archived session through analysis and executor. The
// workers spin without tick sleep; proc_update_res becomes the virtual clock
// resolution instead.
func runReplay(ctx context.Context, cancel context.CancelFunc, state *AppState, cfg Config, ui *UIServer, timestamp int64, pair, modelPair string) {
	workers := []Worker{
		NewAnalysisWorker(state, cfg, modelPair),
		NewExecutorWorker(state),
	}

	driver := NewReplayDriver(state, cfg, timestamp, pair, cfg.ProcUpdateRes,
		func(curDate, finalDate string, percent int) {
			log.Printf("[REPLAY] %s of %s (%d%%)", curDate, finalDate, percent)
		})

	go func() {
		defer cancel()
		if err := driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[REPLAY] driver: %v", err)
			state.SetErrorMsg(fmt.Sprintf("replay: %v", err))
			state.SetFatalError(true)
			return
		}
		log.Printf("[REPLAY] session %d %s complete", timestamp, pair)
	}()

	superviseWorkers(ctx, cancel, state, cfg, ui, workers, 0)
}

// superviseWorkers runs each worker on its own goroutine and polls shared
// state each tick: UI updates are flushed, queue depths sampled, and a fatal
// worker error tears the whole process down.
func superviseWorkers(ctx context.Context, cancel context.CancelFunc, state *AppState, cfg Config, ui *UIServer, workers []Worker, tickMS int64) {
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			RunWorker(ctx, state, w, tickMS)
		}(w)
	}

	superviseTick := cfg.ProcUpdateRes
	if superviseTick <= 0 {
		superviseTick = 100
	}
	ticker := time.NewTicker(time.Duration(superviseTick) * time.Millisecond)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			ui.Flush()
			RecordQueueDepths(state)
			if state.FatalError() {
				log.Printf("[MAIN] fatal error: %s", state.ErrorMsg())
				cancel()
				break loop
			}
		}
	}

	waitWithTimeout(&wg, 5*time.Second)
}

// waitWithTimeout waits for the workers to drain, but never hangs shutdown.
func waitWithTimeout(wg *sync.WaitGroup, d time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		log.Printf("[MAIN] workers did not drain within %s", d)
	}
}
