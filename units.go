// FILE: units.go
// Package main – Integer unit amounts and exchange metadata parsing.
//
// Prices and quantities crossing a trust/precision boundary are integers at a
// per-asset precision p: "1.2345" with p=8 is 123450000. The conversions are
// lossless round-trips over decimal strings; float math never touches these
// values. Indicator math elsewhere uses float32 and is not a trust boundary.

package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NumStrToIntUnits converts a decimal string to an integer in unit amounts at
// the given precision. The string must carry at most precision fractional
// digits.
func NumStrToIntUnits(numStr string, precision int) (int64, error) {
	intPart, fracPart, _ := strings.Cut(numStr, ".")
	if len(fracPart) > precision {
		return 0, fmt.Errorf("%q has more than %d fractional digits", numStr, precision)
	}
	fracPart += strings.Repeat("0", precision-len(fracPart))

	v, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse unit amount %q: %w", numStr, err)
	}
	return v, nil
}

// IntUnitsToNumStr converts an integer unit amount back to its decimal string
// at the given precision.
func IntUnitsToNumStr(v int64, precision int) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) < precision+1 {
		s = strings.Repeat("0", precision+1-len(s)) + s
	}
	return sign + s[:len(s)-precision] + "." + s[len(s)-precision:]
}

// PairInfo describes the trading parameters of one symbol pair. All sizes and
// prices are integer unit amounts at the pair's own precisions; the notional
// floor is at quote+base precision because it is a price×quantity product.
type PairInfo struct {
	BaseSymbol         string
	QuoteSymbol        string
	BasePrecision      int
	BaseStepSize       int64
	MinBaseQty         int64
	MaxBaseQty         int64
	QuotePrecision     int
	QuoteStepSize      int64
	MinQuotePrice      int64
	MaxQuotePrice      int64
	MinNotionalProduct int64
}

// ParseExchangePairInfos extracts pair parameters for every TRADING symbol
// from an /v1/exchangeInfo response body.
func ParseExchangePairInfos(body []byte) (map[string]PairInfo, error) {
	var info struct {
		Symbols []struct {
			Symbol              string   `json:"symbol"`
			Status              string   `json:"status"`
			OrderTypes          []string `json:"orderTypes"`
			BaseAsset           string   `json:"baseAsset"`
			BaseAssetPrecision  int      `json:"baseAssetPrecision"`
			QuoteAsset          string   `json:"quoteAsset"`
			QuotePrecision      int      `json:"quotePrecision"`
			Filters             []struct {
				FilterType  string `json:"filterType"`
				MinPrice    string `json:"minPrice"`
				MaxPrice    string `json:"maxPrice"`
				TickSize    string `json:"tickSize"`
				MinQty      string `json:"minQty"`
				MaxQty      string `json:"maxQty"`
				StepSize    string `json:"stepSize"`
				MinNotional string `json:"minNotional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse exchange info: %w", err)
	}

	pairInfos := make(map[string]PairInfo)

	for _, sym := range info.Symbols {
		if sym.Status != "TRADING" {
			continue
		}
		hasLimit := false
		for _, ot := range sym.OrderTypes {
			if ot == "LIMIT" {
				hasLimit = true
			}
		}
		if !hasLimit {
			return nil, fmt.Errorf("symbol %s does not support LIMIT orders", sym.Symbol)
		}

		pi := PairInfo{
			BaseSymbol:     strings.ToLower(sym.BaseAsset),
			BasePrecision:  sym.BaseAssetPrecision,
			QuoteSymbol:    strings.ToLower(sym.QuoteAsset),
			QuotePrecision: sym.QuotePrecision,
		}

		var havePrice, haveLot, haveNotional bool
		for _, f := range sym.Filters {
			var err error
			switch f.FilterType {
			case "PRICE_FILTER":
				if pi.MinQuotePrice, err = NumStrToIntUnits(f.MinPrice, pi.QuotePrecision); err != nil {
					return nil, err
				}
				if pi.MaxQuotePrice, err = NumStrToIntUnits(f.MaxPrice, pi.QuotePrecision); err != nil {
					return nil, err
				}
				if pi.QuoteStepSize, err = NumStrToIntUnits(f.TickSize, pi.QuotePrecision); err != nil {
					return nil, err
				}
				havePrice = true
			case "LOT_SIZE":
				if pi.MinBaseQty, err = NumStrToIntUnits(f.MinQty, pi.BasePrecision); err != nil {
					return nil, err
				}
				if pi.MaxBaseQty, err = NumStrToIntUnits(f.MaxQty, pi.BasePrecision); err != nil {
					return nil, err
				}
				if pi.BaseStepSize, err = NumStrToIntUnits(f.StepSize, pi.BasePrecision); err != nil {
					return nil, err
				}
				haveLot = true
			case "MIN_NOTIONAL":
				pi.MinNotionalProduct, err = NumStrToIntUnits(f.MinNotional, pi.QuotePrecision+pi.BasePrecision)
				if err != nil {
					return nil, err
				}
				haveNotional = true
			}
		}
		if !havePrice || !haveLot || !haveNotional {
			return nil, fmt.Errorf("symbol %s missing required filters", sym.Symbol)
		}

		pairInfos[strings.ToLower(sym.Symbol)] = pi
	}

	return pairInfos, nil
}

// ParseAccountBalances extracts free and locked balances (integer unit
// amounts at balancePrecision) from a signed /v3/account response body.
func ParseAccountBalances(body []byte, balancePrecision int) (free, locked map[string]int64, err error) {
	var info struct {
		CanTrade bool `json:"canTrade"`
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, nil, fmt.Errorf("parse account info: %w", err)
	}
	if !info.CanTrade {
		return nil, nil, fmt.Errorf("account is not enabled for trading")
	}

	free = make(map[string]int64, len(info.Balances))
	locked = make(map[string]int64, len(info.Balances))
	for _, b := range info.Balances {
		asset := strings.ToLower(b.Asset)
		if free[asset], err = NumStrToIntUnits(b.Free, balancePrecision); err != nil {
			return nil, nil, err
		}
		if locked[asset], err = NumStrToIntUnits(b.Locked, balancePrecision); err != nil {
			return nil, nil, err
		}
	}
	return free, locked, nil
}
