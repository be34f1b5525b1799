package broker

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"stock-trader/src/helpers"
	"stock-trader/src/interfaces"
	"stock-trader/src/logger"
	"stock-trader/src/models"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Transaction IDs (KIS OpenAPI)
// -----------------------------------------------------------------------------

const (
	trQuote     = "FHKST01010100"
	trOrderBook = "FHKST01010200"

	trBuyProd   = "TTTC0012U"
	trSellProd  = "TTTC0011U"
	trBuyPaper  = "VTTC0012U"
	trSellPaper = "VTTC0011U"
)

// Token lifetime is 24h; refresh slightly early to avoid using an
// expired token mid-request.
const tokenSafetyMargin = 10 * time.Minute

// -----------------------------------------------------------------------------

// KISClient talks to the Korea Investment & Securities OpenAPI, both the
// REST surface and the realtime WebSocket endpoint.
type KISClient struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	approvalKey string
}

// -----------------------------------------------------------------------------

func NewKISClient(cfg *models.MConfig, nm interfaces.INetworkManager, log *logger.Logger) *KISClient {
	return &KISClient{
		Config:  cfg,
		Network: nm,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------
// Environment helpers
// -----------------------------------------------------------------------------

func (c *KISClient) isPaper() bool {
	return c.Config.Broker.Env == "vps"
}

func (c *KISClient) appKey() string {
	if c.isPaper() {
		return c.Config.Broker.PaperAppKey
	}
	return c.Config.Broker.AppKey
}

func (c *KISClient) appSecret() string {
	if c.isPaper() {
		return c.Config.Broker.PaperAppSecret
	}
	return c.Config.Broker.AppSecret
}

func (c *KISClient) account() string {
	if c.isPaper() {
		return c.Config.Broker.PaperAccount
	}
	return c.Config.Broker.Account
}

func (c *KISClient) restURL() string {
	if c.isPaper() {
		return c.Config.Broker.PaperRestURL
	}
	return c.Config.Broker.RestURL
}

func (c *KISClient) wsURL() string {
	if c.isPaper() {
		return c.Config.Broker.PaperWsURL
	}
	return c.Config.Broker.WsURL
}

// -----------------------------------------------------------------------------
// Authentication
// -----------------------------------------------------------------------------

// Authenticate obtains a REST access token, reusing the cached one while
// it is still valid.
func (c *KISClient) Authenticate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureTokenLocked()
}

// -----------------------------------------------------------------------------

func (c *KISClient) ensureTokenLocked() error {
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	payload := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey(),
		"appsecret":  c.appSecret(),
	}

	body, err := c.Network.Post(c.restURL()+"/oauth2/tokenP", payload, nil)
	if err != nil {
		return helpers.NewConnectionError("token request failed", err)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return helpers.NewProtocolError("token response malformed", err)
	}
	if resp.AccessToken == "" {
		return helpers.NewConnectionError("token response has no access_token", nil)
	}

	expiresIn := time.Duration(resp.ExpiresIn) * time.Second
	if expiresIn == 0 {
		expiresIn = 24 * time.Hour
	}

	c.accessToken = resp.AccessToken
	c.tokenExpiry = time.Now().Add(expiresIn - tokenSafetyMargin)
	c.Logger.Info("Broker access token refreshed (valid until %s)", c.tokenExpiry.Format(time.RFC3339))
	return nil
}

// -----------------------------------------------------------------------------

func (c *KISClient) restHeaders(trID string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureTokenLocked(); err != nil {
		return nil, err
	}

	return map[string]string{
		"authorization": "Bearer " + c.accessToken,
		"appkey":        c.appKey(),
		"appsecret":     c.appSecret(),
		"tr_id":         trID,
		"custtype":      "P",
	}, nil
}

// -----------------------------------------------------------------------------

// hashKey signs an order payload so the broker can detect tampering.
func (c *KISClient) hashKey(data []byte) string {
	stamp := time.Now().Format("20060102150405")
	sum := sha256.Sum256(append(append([]byte{}, data...), []byte(stamp+c.appSecret())...))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

// GetQuote fetches the current price for one symbol.
func (c *KISClient) GetQuote(symbol string) (*models.MQuote, error) {
	headers, err := c.restHeaders(trQuote)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"fid_cond_mrkt_div_code": "J",
		"fid_input_iscd":         symbol,
	}

	body, err := c.Network.Get(c.restURL()+"/uapi/domestic-stock/v1/quotations/inquire-price", params, headers)
	if err != nil {
		return nil, helpers.NewQuoteError(fmt.Sprintf("quote request for %s failed", symbol), err)
	}

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg1   string `json:"msg1"`
		Output struct {
			Price      string `json:"stck_prpr"`
			Change     string `json:"prdy_vrss"`
			ChangeRate string `json:"prdy_ctrt"`
			Volume     string `json:"acml_vol"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewProtocolError("quote response malformed", err)
	}
	if resp.RtCd != "0" {
		return nil, helpers.NewQuoteError(fmt.Sprintf("quote for %s rejected: %s", symbol, resp.Msg1), nil)
	}

	price, err := decimal.NewFromString(resp.Output.Price)
	if err != nil {
		return nil, helpers.NewProtocolError(fmt.Sprintf("quote price '%s' not numeric", resp.Output.Price), err)
	}
	change, _ := decimal.NewFromString(resp.Output.Change)
	changeRate, _ := decimal.NewFromString(resp.Output.ChangeRate)
	volume, _ := strconv.ParseInt(resp.Output.Volume, 10, 64)

	return &models.MQuote{
		Symbol:     symbol,
		Price:      price,
		Change:     change,
		ChangeRate: changeRate,
		Volume:     volume,
	}, nil
}

// -----------------------------------------------------------------------------

// GetOrderBook fetches the current order book snapshot for one symbol.
func (c *KISClient) GetOrderBook(symbol string) (*models.MRealtimeOrderBook, error) {
	headers, err := c.restHeaders(trOrderBook)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"fid_cond_mrkt_div_code": "J",
		"fid_input_iscd":         symbol,
	}

	body, err := c.Network.Get(c.restURL()+"/uapi/domestic-stock/v1/quotations/inquire-asking-price-exp-ccn", params, headers)
	if err != nil {
		return nil, helpers.NewQuoteError(fmt.Sprintf("order book request for %s failed", symbol), err)
	}

	var resp struct {
		RtCd    string            `json:"rt_cd"`
		Msg1    string            `json:"msg1"`
		Output1 map[string]string `json:"output1"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewProtocolError("order book response malformed", err)
	}
	if resp.RtCd != "0" {
		return nil, helpers.NewQuoteError(fmt.Sprintf("order book for %s rejected: %s", symbol, resp.Msg1), nil)
	}

	// The REST body carries the same field names as the realtime feed,
	// minus the symbol.
	resp.Output1["mksc_shrn_iscd"] = symbol
	return models.OrderBookFromBody(resp.Output1)
}

// -----------------------------------------------------------------------------
// Orders
// -----------------------------------------------------------------------------

// PlaceOrder submits a cash order. A zero price means a market order.
func (c *KISClient) PlaceOrder(symbol string, side string, quantity int64, price decimal.Decimal) (*models.MOrderResult, error) {
	var trID string
	switch {
	case side == "buy" && c.isPaper():
		trID = trBuyPaper
	case side == "buy":
		trID = trBuyProd
	case side == "sell" && c.isPaper():
		trID = trSellPaper
	case side == "sell":
		trID = trSellProd
	default:
		return nil, helpers.NewExecutionError(fmt.Sprintf("unknown order side '%s'", side), nil)
	}

	// Division 01 is a market order, 00 a limit order.
	division := "01"
	orderPrice := "0"
	if price.IsPositive() {
		division = "00"
		orderPrice = price.StringFixed(0)
	}

	payload := map[string]string{
		"CANO":         c.account(),
		"ACNT_PRDT_CD": c.Config.Broker.ProductCode,
		"PDNO":         symbol,
		"ORD_DVSN":     division,
		"ORD_QTY":      strconv.FormatInt(quantity, 10),
		"ORD_UNPR":     orderPrice,
	}

	headers, err := c.restHeaders(trID)
	if err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(payload)
	headers["hashkey"] = c.hashKey(raw)

	body, err := c.Network.Post(c.restURL()+"/uapi/domestic-stock/v1/trading/order-cash", payload, headers)
	if err != nil {
		return nil, helpers.NewExecutionError(fmt.Sprintf("%s order for %s failed", side, symbol), err)
	}

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg1   string `json:"msg1"`
		Output struct {
			OrderNo string `json:"ODNO"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, helpers.NewProtocolError("order response malformed", err)
	}
	if resp.RtCd != "0" {
		return nil, helpers.NewExecutionError(fmt.Sprintf("%s order for %s rejected: %s", side, symbol, resp.Msg1), nil)
	}

	c.Logger.Info("Order accepted: %s %d %s (order no %s)", side, quantity, symbol, resp.Output.OrderNo)
	return &models.MOrderResult{
		Code:    resp.RtCd,
		Message: resp.Msg1,
		OrderNo: resp.Output.OrderNo,
	}, nil
}

// -----------------------------------------------------------------------------
// Realtime feed
// -----------------------------------------------------------------------------

// OpenFeedConnection dials the realtime endpoint for one feed kind.
func (c *KISClient) OpenFeedConnection(feedKind string) (interfaces.IFeedTransport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(c.wsURL()+"/tryitout/"+feedKind, nil)
	if err != nil {
		return nil, helpers.NewConnectionError(fmt.Sprintf("dial realtime endpoint for %s failed", feedKind), err)
	}
	return conn, nil
}

// -----------------------------------------------------------------------------

// HandshakeFrame builds the authentication frame sent first on a fresh
// feed connection. The appsecret field stays empty on the wire.
func (c *KISClient) HandshakeFrame(feedKind string) models.MHandshakeFrame {
	return models.MHandshakeFrame{
		Header: models.MHandshakeHeader{
			AppKey:      c.appKey(),
			AppSecret:   "",
			CustType:    "P",
			TrType:      "1",
			ContentType: "utf-8",
		},
		Body: models.MHandshakeBody{
			TrID:  feedKind,
			TrKey: "",
		},
	}
}
