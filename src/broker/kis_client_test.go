package broker

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"stock-trader/src/logger"
	"stock-trader/src/models"
	"stock-trader/src/network"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

type brokerFixture struct {
	client     *KISClient
	tokenCalls int64
	lastTrID   atomic.Value
	quoteRtCd  string
	orderRtCd  string
}

func newBrokerFixture(t *testing.T) *brokerFixture {
	t.Helper()

	fx := &brokerFixture{quoteRtCd: "0", orderRtCd: "0"}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/tokenP":
			atomic.AddInt64(&fx.tokenCalls, 1)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "test-token",
				"expires_in":   86400,
			})

		case "/uapi/domestic-stock/v1/quotations/inquire-price":
			fx.lastTrID.Store(r.Header.Get("tr_id"))
			if r.Header.Get("authorization") != "Bearer test-token" {
				w.WriteHeader(401)
				return
			}
			fmt.Fprintf(w, `{"rt_cd":"%s","msg1":"ok","output":{"stck_prpr":"71200","prdy_vrss":"-300","prdy_ctrt":"-0.42","acml_vol":"123456"}}`, fx.quoteRtCd)

		case "/uapi/domestic-stock/v1/trading/order-cash":
			fx.lastTrID.Store(r.Header.Get("tr_id"))
			if r.Header.Get("hashkey") == "" {
				w.WriteHeader(400)
				return
			}
			fmt.Fprintf(w, `{"rt_cd":"%s","msg1":"done","output":{"ODNO":"0000117057"}}`, fx.orderRtCd)

		default:
			w.WriteHeader(404)
		}
	}))
	t.Cleanup(ts.Close)

	cfg := &models.MConfig{
		Network: models.MNetworkConfig{RequestTimeout: 5, MaxRetries: 0, UserAgent: "test"},
		Broker: models.MBrokerConfig{
			Env:            "vps",
			PaperAppKey:    "paper-key",
			PaperAppSecret: "paper-secret",
			PaperAccount:   "50000000",
			ProductCode:    "01",
			PaperRestURL:   ts.URL,
			PaperWsURL:     "ws://unused",
		},
	}

	log := logger.NewLogger("error", "test")
	fx.client = NewKISClient(cfg, network.NewAsyncNetworkManager(cfg, log), log)
	return fx
}

// -----------------------------------------------------------------------------

func TestAuthenticateCachesToken(t *testing.T) {
	fx := newBrokerFixture(t)

	require.NoError(t, fx.client.Authenticate())
	require.NoError(t, fx.client.Authenticate())

	assert.Equal(t, int64(1), atomic.LoadInt64(&fx.tokenCalls))
}

// -----------------------------------------------------------------------------

func TestGetQuote(t *testing.T) {
	fx := newBrokerFixture(t)

	quote, err := fx.client.GetQuote("005930")
	require.NoError(t, err)

	assert.Equal(t, "005930", quote.Symbol)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(71200)))
	assert.Equal(t, int64(123456), quote.Volume)
	assert.Equal(t, trQuote, fx.lastTrID.Load())

	// The quote call reused the token obtained on demand.
	assert.Equal(t, int64(1), atomic.LoadInt64(&fx.tokenCalls))
}

// -----------------------------------------------------------------------------

func TestGetQuoteRejectedByBroker(t *testing.T) {
	fx := newBrokerFixture(t)
	fx.quoteRtCd = "1"

	_, err := fx.client.GetQuote("005930")
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestPlaceOrderUsesPaperTrIDs(t *testing.T) {
	fx := newBrokerFixture(t)

	result, err := fx.client.PlaceOrder("005930", "sell", 10, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "0000117057", result.OrderNo)
	assert.Equal(t, trSellPaper, fx.lastTrID.Load())

	_, err = fx.client.PlaceOrder("005930", "buy", 10, decimal.NewFromInt(70000))
	require.NoError(t, err)
	assert.Equal(t, trBuyPaper, fx.lastTrID.Load())
}

// -----------------------------------------------------------------------------

func TestPlaceOrderRejectsUnknownSide(t *testing.T) {
	fx := newBrokerFixture(t)
	_, err := fx.client.PlaceOrder("005930", "short", 10, decimal.Zero)
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestPlaceOrderBrokerRejection(t *testing.T) {
	fx := newBrokerFixture(t)
	fx.orderRtCd = "1"

	_, err := fx.client.PlaceOrder("005930", "sell", 10, decimal.Zero)
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestHandshakeFrameShape(t *testing.T) {
	fx := newBrokerFixture(t)

	frame := fx.client.HandshakeFrame("H0STCNT0")
	assert.Equal(t, "paper-key", frame.Header.AppKey)
	assert.Equal(t, "", frame.Header.AppSecret)
	assert.Equal(t, "P", frame.Header.CustType)
	assert.Equal(t, "1", frame.Header.TrType)
	assert.Equal(t, "utf-8", frame.Header.ContentType)
	assert.Equal(t, "H0STCNT0", frame.Body.TrID)
	assert.Equal(t, "", frame.Body.TrKey)
}
