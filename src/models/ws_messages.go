package models

import "time"

// -----------------------------------------------------------------------------
// Downstream client protocol (matches the FastAPI endpoint exactly)
// -----------------------------------------------------------------------------

// MClientRequest is what a connected client sends:
//   - {"type": "subscribe",   "data": {"symbol": "005930", "data_type": "price"}}
//   - {"type": "unsubscribe", "data": {"symbol": "005930"}}
//   - {"type": "ping",        "data": {}}
type MClientRequest struct {
	Type string             `json:"type"`
	Data MClientRequestData `json:"data"`
}

type MClientRequestData struct {
	Symbol   string `json:"symbol"`
	DataType string `json:"data_type"`
}

// -----------------------------------------------------------------------------

// MClientResponse is every frame sent back to a client. Type is one of
// subscribe_confirm, unsubscribe_confirm, pong, error, stock_price,
// asking_price.
type MClientResponse struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// NewClientResponse stamps the frame with an ISO8601 timestamp.
func NewClientResponse(kind string, data interface{}) MClientResponse {
	return MClientResponse{
		Type:      kind,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// ErrorResponse builds the error frame sent for malformed or unknown
// requests. The connection stays open.
func ErrorResponse(message string) MClientResponse {
	return NewClientResponse("error", map[string]string{"message": message})
}
