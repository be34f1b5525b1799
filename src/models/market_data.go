package models

import (
	"fmt"
	"sort"
	"strconv"
)

// -----------------------------------------------------------------------------
// Upstream feed frames (KIS realtime WebSocket)
// -----------------------------------------------------------------------------

// MFeedHeader is the header portion of every upstream frame.
type MFeedHeader struct {
	TrID       string `json:"tr_id,omitempty"`
	TrKey      string `json:"tr_key,omitempty"`
	TrType     string `json:"tr_type,omitempty"`
	ResultCode string `json:"result_code,omitempty"`
}

// MFeedFrame is a decoded upstream frame. Body values arrive as strings.
type MFeedFrame struct {
	Header MFeedHeader       `json:"header"`
	Body   map[string]string `json:"body"`
}

// MControlFrame is the subscribe/unsubscribe frame sent upstream.
// tr_type "1" subscribes, "0" unsubscribes.
type MControlFrame struct {
	Header MFeedHeader `json:"header"`
}

// MHandshakeFrame is sent once per connection before any control frame.
type MHandshakeFrame struct {
	Header MHandshakeHeader `json:"header"`
	Body   MHandshakeBody   `json:"body"`
}

type MHandshakeHeader struct {
	AppKey      string `json:"appkey"`
	AppSecret   string `json:"appsecret"`
	CustType    string `json:"custtype"`
	TrType      string `json:"tr_type"`
	ContentType string `json:"content-type"`
}

type MHandshakeBody struct {
	TrID  string `json:"tr_id"`
	TrKey string `json:"tr_key"`
}

// -----------------------------------------------------------------------------
// Decoded payloads fanned out to listeners
// -----------------------------------------------------------------------------

// MRealtimePrice is one decoded trade tick.
type MRealtimePrice struct {
	Symbol     string  `json:"symbol"`
	Time       string  `json:"time"`
	Price      float64 `json:"price"`
	Change     float64 `json:"change"`
	ChangeRate float64 `json:"change_rate"`
	Volume     int64   `json:"volume"`
	TradeValue int64   `json:"trade_value"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	AskPrice   float64 `json:"ask_price"`
	BidPrice   float64 `json:"bid_price"`
}

// MAskingLevel is a single price level in the order book.
type MAskingLevel struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// MRealtimeOrderBook is one decoded order book snapshot, up to ten
// levels per side.
type MRealtimeOrderBook struct {
	Symbol           string         `json:"symbol"`
	Time             string         `json:"time"`
	Asks             []MAskingLevel `json:"asks"`
	Bids             []MAskingLevel `json:"bids"`
	TotalAskQuantity int64          `json:"total_ask_quantity"`
	TotalBidQuantity int64          `json:"total_bid_quantity"`
	ExpectedPrice    float64        `json:"expected_price"`
	ExpectedQuantity int64          `json:"expected_quantity"`
}

// MFeedMessage is what the registry hands to every listener of a topic.
// Exactly one of Price/OrderBook is set, depending on FeedKind.
type MFeedMessage struct {
	FeedKind  string
	Symbol    string
	Price     *MRealtimePrice
	OrderBook *MRealtimeOrderBook
}

// -----------------------------------------------------------------------------
// Body field helpers
// -----------------------------------------------------------------------------

func bodyString(body map[string]string, key string) string {
	return body[key]
}

func bodyFloat(body map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(body[key], 64)
	if err != nil {
		return 0
	}
	return v
}

func bodyInt(body map[string]string, key string) int64 {
	v, err := strconv.ParseInt(body[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// -----------------------------------------------------------------------------

// PriceFromBody decodes a trade tick body (tr_id H0STCNT0).
func PriceFromBody(body map[string]string) (*MRealtimePrice, error) {
	symbol := bodyString(body, "mksc_shrn_iscd")
	if symbol == "" {
		return nil, fmt.Errorf("trade tick body has no symbol")
	}

	return &MRealtimePrice{
		Symbol:     symbol,
		Time:       bodyString(body, "stck_cntg_hour"),
		Price:      bodyFloat(body, "stck_prpr"),
		Change:     bodyFloat(body, "prdy_vrss"),
		ChangeRate: bodyFloat(body, "prdy_ctrt"),
		Volume:     bodyInt(body, "cntg_vol"),
		TradeValue: bodyInt(body, "acml_tr_pbmn"),
		Open:       bodyFloat(body, "stck_oprc"),
		High:       bodyFloat(body, "stck_hgpr"),
		Low:        bodyFloat(body, "stck_lwpr"),
		AskPrice:   bodyFloat(body, "askp1"),
		BidPrice:   bodyFloat(body, "bidp1"),
	}, nil
}

// -----------------------------------------------------------------------------

// OrderBookFromBody decodes an order book body (tr_id H0STASP0).
// Zero-priced levels are dropped; asks sort ascending, bids descending.
func OrderBookFromBody(body map[string]string) (*MRealtimeOrderBook, error) {
	symbol := bodyString(body, "mksc_shrn_iscd")
	if symbol == "" {
		return nil, fmt.Errorf("order book body has no symbol")
	}

	var asks, bids []MAskingLevel
	for i := 1; i <= 10; i++ {
		askPrice := bodyFloat(body, fmt.Sprintf("askp%d", i))
		if askPrice > 0 {
			asks = append(asks, MAskingLevel{
				Price:    askPrice,
				Quantity: bodyInt(body, fmt.Sprintf("askp_rsqn%d", i)),
			})
		}

		bidPrice := bodyFloat(body, fmt.Sprintf("bidp%d", i))
		if bidPrice > 0 {
			bids = append(bids, MAskingLevel{
				Price:    bidPrice,
				Quantity: bodyInt(body, fmt.Sprintf("bidp_rsqn%d", i)),
			})
		}
	}

	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })

	return &MRealtimeOrderBook{
		Symbol:           symbol,
		Time:             bodyString(body, "bsop_hour"),
		Asks:             asks,
		Bids:             bids,
		TotalAskQuantity: bodyInt(body, "total_askp_rsqn"),
		TotalBidQuantity: bodyInt(body, "total_bidp_rsqn"),
		ExpectedPrice:    bodyFloat(body, "antc_cnpr"),
		ExpectedQuantity: bodyInt(body, "antc_cnqn"),
	}, nil
}
