package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func TestPriceFromBody(t *testing.T) {
	body := map[string]string{
		"mksc_shrn_iscd": "005930",
		"stck_cntg_hour": "093015",
		"stck_prpr":      "71200",
		"prdy_vrss":      "-300",
		"prdy_ctrt":      "-0.42",
		"cntg_vol":       "120",
		"acml_tr_pbmn":   "853211000000",
		"stck_oprc":      "71500",
		"stck_hgpr":      "71800",
		"stck_lwpr":      "71000",
		"askp1":          "71300",
		"bidp1":          "71200",
	}

	price, err := PriceFromBody(body)
	require.NoError(t, err)

	assert.Equal(t, "005930", price.Symbol)
	assert.Equal(t, "093015", price.Time)
	assert.Equal(t, 71200.0, price.Price)
	assert.Equal(t, -300.0, price.Change)
	assert.Equal(t, -0.42, price.ChangeRate)
	assert.Equal(t, int64(120), price.Volume)
	assert.Equal(t, 71300.0, price.AskPrice)
}

// -----------------------------------------------------------------------------

func TestPriceFromBodyMissingSymbol(t *testing.T) {
	_, err := PriceFromBody(map[string]string{"stck_prpr": "71200"})
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestPriceFromBodyGarbageNumbers(t *testing.T) {
	price, err := PriceFromBody(map[string]string{
		"mksc_shrn_iscd": "005930",
		"stck_prpr":      "not-a-number",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, price.Price)
}

// -----------------------------------------------------------------------------

func TestOrderBookFromBody(t *testing.T) {
	body := map[string]string{
		"mksc_shrn_iscd":  "005930",
		"bsop_hour":       "101530",
		"askp1":           "71300",
		"askp_rsqn1":      "500",
		"askp2":           "71400",
		"askp_rsqn2":      "900",
		"bidp1":           "71200",
		"bidp_rsqn1":      "650",
		"bidp2":           "71100",
		"bidp_rsqn2":      "1200",
		"total_askp_rsqn": "1400",
		"total_bidp_rsqn": "1850",
		"antc_cnpr":       "71250",
		"antc_cnqn":       "30",
	}

	book, err := OrderBookFromBody(body)
	require.NoError(t, err)

	require.Len(t, book.Asks, 2)
	require.Len(t, book.Bids, 2)

	// Asks ascend, bids descend.
	assert.Equal(t, 71300.0, book.Asks[0].Price)
	assert.Equal(t, 71400.0, book.Asks[1].Price)
	assert.Equal(t, 71200.0, book.Bids[0].Price)
	assert.Equal(t, 71100.0, book.Bids[1].Price)

	assert.Equal(t, int64(1400), book.TotalAskQuantity)
	assert.Equal(t, 71250.0, book.ExpectedPrice)
}

// -----------------------------------------------------------------------------

func TestOrderBookFromBodyDropsEmptyLevels(t *testing.T) {
	body := map[string]string{
		"mksc_shrn_iscd": "000660",
		"askp1":          "183000",
		"askp_rsqn1":     "40",
		"askp2":          "0",
		"bidp1":          "0",
	}

	book, err := OrderBookFromBody(body)
	require.NoError(t, err)
	assert.Len(t, book.Asks, 1)
	assert.Empty(t, book.Bids)
}
