// FILE: rest.go
// Package main – Exchange REST client (direct HTTP/HMAC).
//
// Thin client over the exchange REST API used by the connection and snapshot
// workers. Signed requests carry an HMAC-SHA256 signature of the query string
// and the X-MBX-APIKEY header. An HTTP 429 anywhere is surfaced as
// errRateLimited so the caller can latch the RATE_LIMITED status instead of
// treating it as a hard failure.

package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	restURL = "https://www.binance.com/api"
	wsURL   = "wss://stream.binance.com:9443"
)

// errRateLimited marks an HTTP 429 response.
var errRateLimited = errors.New("rate limited")

type restClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	hc        *http.Client
}

func newRESTClient(cfg Config) *restClient {
	return &restClient{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		baseURL:   restURL,
		hc:        &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second},
	}
}

func (rc *restClient) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(rc.apiSecret))
	_, _ = io.WriteString(mac, query)
	return hex.EncodeToString(mac.Sum(nil))
}

func (rc *restClient) do(ctx context.Context, method, path string, q url.Values, signed bool) ([]byte, error) {
	query := ""
	if q != nil {
		query = q.Encode()
	}
	if signed {
		query += "&signature=" + rc.sign(query)
	}

	u := rc.baseURL + path
	var body io.Reader
	if method == http.MethodGet {
		if query != "" {
			u += "?" + query
		}
	} else {
		body = strings.NewReader(query)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if rc.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", rc.apiKey)
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	res, err := rc.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	bs, _ := io.ReadAll(res.Body)
	if res.StatusCode == http.StatusTooManyRequests {
		return nil, errRateLimited
	}
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, res.StatusCode, string(bs))
	}
	return bs, nil
}

// GetExchangeInfo fetches /v1/exchangeInfo. The body also carries serverTime,
// so callers use it for time resync as well as for pair metadata.
func (rc *restClient) GetExchangeInfo(ctx context.Context) ([]byte, error) {
	return rc.do(ctx, http.MethodGet, "/v1/exchangeInfo", nil, false)
}

// GetServerTime fetches /v1/time.
func (rc *restClient) GetServerTime(ctx context.Context) ([]byte, error) {
	return rc.do(ctx, http.MethodGet, "/v1/time", nil, false)
}

// GetDepth fetches a full depth snapshot for the symbol, top `limit` levels.
func (rc *restClient) GetDepth(ctx context.Context, symbol string, limit int) ([]byte, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("limit", fmt.Sprintf("%d", limit))
	return rc.do(ctx, http.MethodGet, "/v1/depth", q, false)
}

// GetAccountInfo fetches the signed /v3/account endpoint. The timestamp is
// the app's view of server time so the recvWindow check passes despite drift.
func (rc *restClient) GetAccountInfo(ctx context.Context, recvWindow, timestamp int64) ([]byte, error) {
	q := url.Values{}
	q.Set("recvWindow", fmt.Sprintf("%d", recvWindow))
	q.Set("timestamp", fmt.Sprintf("%d", timestamp))
	return rc.do(ctx, http.MethodGet, "/v3/account", q, true)
}

// OpenUserDataStream opens a user-data stream and returns its listenKey.
func (rc *restClient) OpenUserDataStream(ctx context.Context) (string, error) {
	bs, err := rc.do(ctx, http.MethodPost, "/v1/userDataStream", nil, false)
	if err != nil {
		return "", err
	}
	var res struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(bs, &res); err != nil {
		return "", fmt.Errorf("parse listenKey: %w", err)
	}
	return res.ListenKey, nil
}

// KeepAliveUserDataStream pings the user-data stream to keep it open.
func (rc *restClient) KeepAliveUserDataStream(ctx context.Context, listenKey string) error {
	q := url.Values{}
	q.Set("listenKey", listenKey)
	_, err := rc.do(ctx, http.MethodPut, "/v1/userDataStream", q, false)
	return err
}
