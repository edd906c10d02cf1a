// FILE: worker.go
// Package main – Uniform worker loop for the pipeline stages.
//
// Every stage implements Worker: OnStart initialises local state, then
// OnUpdate is invoked once per tick until the context is cancelled. An error
// (or panic) escaping a tick is fatal for the whole process: the worker
// records it into the shared state and exits, and the supervisor in main.go
// observes fatal_error and tears everything down.

package main

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"
)

// Worker is one asynchronously executed pipeline stage.
type Worker interface {
	Name() string
	OnStart() error
	OnUpdate() error
}

// RunWorker drives w on a tick of tickMS milliseconds until ctx is done.
// A tick of zero spins without sleeping (used by the replay mode so analysis
// keeps pace with the back-pressured driver).
func RunWorker(ctx context.Context, state *AppState, w Worker, tickMS int64) {
	defer func() {
		if r := recover(); r != nil {
			recordFatal(state, w, fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	if err := w.OnStart(); err != nil {
		recordFatal(state, w, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.OnUpdate(); err != nil {
			recordFatal(state, w, err)
			return
		}

		if tickMS > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(tickMS) * time.Millisecond):
			}
		}
	}
}

func recordFatal(state *AppState, w Worker, err error) {
	log.Printf("[FATAL] %s worker: %v", w.Name(), err)
	state.SetErrorMsg(fmt.Sprintf("%s: %v", w.Name(), err))
	state.SetFatalError(true)
}
