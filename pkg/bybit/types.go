package bybit

import "encoding/json"

// BybitResponse represents a generic response from Bybit's V5 REST API.
// This structure covers the standard response envelope used across all endpoints.
type BybitResponse struct {
	RetCode int             `json:"retCode"` // 0 means success; non-zero indicates an error code
	RetMsg  string          `json:"retMsg"`  // Human-readable message describing the result or error
	Result  json.RawMessage `json:"result"`  // Decoded per endpoint once RetCode is checked
}

type TickersResponse struct {
	Category string `json:"category"` // e.g., "linear", "spot"
	List     []struct {
		Symbol       string `json:"symbol"`       // e.g., "BTCUSDT"
		LastPrice    string `json:"lastPrice"`    // Last traded price
		PrevPrice24h string `json:"prevPrice24h"` // Price 24 hours ago
		HighPrice24h string `json:"highPrice24h"`
		LowPrice24h  string `json:"lowPrice24h"`
	} `json:"list"`
}

type KlinesResponse struct {
	Category string     `json:"category"` // e.g., "linear", "spot"
	Symbol   string     `json:"symbol"`
	List     [][]string `json:"list"` // Newest first: [start, open, high, low, close, volume, turnover]
}
