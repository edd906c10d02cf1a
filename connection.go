// FILE: connection.go
// Package main – Connection worker: handshake, time sync, session keepalive.
//
// Drives the connection state machine, re-entered on each tick:
//   NOT_CONNECTED → handshake → CONNECTED (or ERROR)
//   ERROR         → back to NOT_CONNECTED after 30 s
//   RATE_LIMITED  → back to NOT_CONNECTED after 60 s
//   CONNECTED     → keepalives, exchange-info refresh, time resync, and a
//                   forced rotation once the session reaches max_session_time.
//
// The handshake builds the multiplexed websocket URI out of the user-data
// listenKey plus the trade/depth/ticker streams for every configured pair.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	errorRetryMS     = 30_000
	rateLimitHoldMS  = 60_000
	accountPingMS    = 1_200_000 // 20 min user-stream keepalive
	exchangeInfoMS   = 600_000   // 10 min metadata refresh
	serverPingMS     = 20_000    // 20 s time resync
	wsStreamSettleMS = 1000
)

// ConnectionWorker owns the REST session with the exchange.
type ConnectionWorker struct {
	state *AppState
	cfg   Config
	rest  *restClient
	ctx   context.Context

	now func() int64 // wall clock in ms; swappable for tests

	rateLimitStart       int64
	errorStart           int64
	lastServerPingTime   int64
	lastExchangeInfoTime int64
	lastAccountPingTime  int64
	timeDrift            int64
	listenKey            string
}

func NewConnectionWorker(ctx context.Context, state *AppState, cfg Config) *ConnectionWorker {
	return &ConnectionWorker{
		state: state,
		cfg:   cfg,
		rest:  newRESTClient(cfg),
		ctx:   ctx,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

func (c *ConnectionWorker) Name() string { return "connection" }

func (c *ConnectionWorker) OnStart() error {
	c.rateLimitStart = 0
	c.errorStart = 0
	c.lastServerPingTime = 0
	c.lastExchangeInfoTime = 0
	c.lastAccountPingTime = 0
	c.timeDrift = 0
	return nil
}

func (c *ConnectionWorker) OnUpdate() error {
	curTime := c.now()

	switch c.state.ConnectionStatus() {
	case StatusNotConnected:
		_ = c.state.SetConnectionStatus(StatusConnecting)
		if err := c.establishConnection(); err != nil {
			if errors.Is(err, errRateLimited) {
				_ = c.state.SetConnectionStatus(StatusRateLimited)
				IncRateLimited()
			} else {
				_ = c.state.SetConnectionStatus(StatusError)
			}
			return nil
		}
		c.lastServerPingTime = curTime
		c.lastExchangeInfoTime = curTime
		c.lastAccountPingTime = curTime
		c.state.SetConnectTime(curTime + c.timeDrift)
		_ = c.state.SetConnectionStatus(StatusConnected)

	case StatusError:
		if c.errorStart == 0 {
			c.errorStart = curTime
		} else if curTime-c.errorStart >= errorRetryMS {
			c.errorStart = 0
			_ = c.state.SetConnectionStatus(StatusNotConnected)
		}

	case StatusRateLimited:
		if c.rateLimitStart == 0 {
			c.rateLimitStart = curTime
		} else if curTime-c.rateLimitStart >= rateLimitHoldMS {
			c.rateLimitStart = 0
			_ = c.state.SetConnectionStatus(StatusNotConnected)
		}

	case StatusConnected:
		if err := c.maintainSession(curTime); err != nil {
			if errors.Is(err, errRateLimited) {
				_ = c.state.SetConnectionStatus(StatusRateLimited)
				IncRateLimited()
			} else {
				_ = c.state.SetConnectionStatus(StatusError)
			}
		}
	}

	return nil
}

func (c *ConnectionWorker) maintainSession(curTime int64) error {
	if curTime-c.lastAccountPingTime >= accountPingMS {
		if err := c.rest.KeepAliveUserDataStream(c.ctx, c.listenKey); err != nil {
			return err
		}
		c.lastAccountPingTime = curTime
	}

	if curTime-c.lastExchangeInfoTime >= exchangeInfoMS {
		if err := c.updateExchangeInfo(); err != nil {
			return err
		}
		c.lastExchangeInfoTime = curTime
		c.lastServerPingTime = curTime
	} else if curTime-c.lastServerPingTime >= serverPingMS {
		if _, err := c.requestTimedInfo(c.rest.GetServerTime); err != nil {
			return err
		}
		c.lastServerPingTime = curTime
	} else {
		c.state.SetServerTime(curTime + c.timeDrift)
	}

	sessionAge := (c.state.ServerTime() - c.state.ConnectTime()) / 1000
	if sessionAge >= c.cfg.MaxSessionTime {
		// Force a connection refresh to rotate the session.
		_ = c.state.SetConnectionStatus(StatusNotConnected)
	}
	return nil
}

// requestTimedInfo issues a GET that returns a serverTime field, measures the
// round trip, and resynchronizes latency, server time, and clock drift.
func (c *ConnectionWorker) requestTimedInfo(fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	t0 := c.now()
	body, err := fetch(c.ctx)
	if err != nil {
		return nil, err
	}
	rtt := c.now() - t0

	var timed struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &timed); err != nil || timed.ServerTime == 0 {
		return nil, fmt.Errorf("response carries no serverTime")
	}

	serverTime := timed.ServerTime + rtt/2
	c.state.SetLatency(rtt/2 + c.state.Latency()/2)
	SetLatencyMetric(c.state.Latency())
	c.state.SetServerTime(serverTime)
	c.timeDrift = serverTime - c.now()

	return body, nil
}

func (c *ConnectionWorker) updateExchangeInfo() error {
	body, err := c.requestTimedInfo(c.rest.GetExchangeInfo)
	if err != nil {
		return err
	}
	infos, err := ParseExchangePairInfos(body)
	if err != nil {
		return err
	}
	c.state.SetPairInfos(infos)
	return nil
}

func (c *ConnectionWorker) establishConnection() error {
	if err := c.updateExchangeInfo(); err != nil {
		return err
	}

	// The response is parsed for validity but not yet stored anywhere; the
	// executor will become its consumer once it places real orders.
	body, err := c.rest.GetAccountInfo(c.ctx, c.cfg.AccountRecvWindow, c.state.ServerTime())
	if err != nil {
		return err
	}
	if _, _, err := ParseAccountBalances(body, 8); err != nil {
		return err
	}

	c.listenKey, err = c.rest.OpenUserDataStream(c.ctx)
	if err != nil {
		return err
	}

	streamNames := []string{c.listenKey}
	for _, pair := range c.state.AllPairs() {
		streamNames = append(streamNames, pair+"@trade", pair+"@depth", pair+"@ticker")
	}
	c.state.SetWSURI(wsURL + "/stream?streams=" + strings.Join(streamNames, "/"))

	return nil
}
