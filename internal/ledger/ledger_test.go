package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func freshAccount() Account {
	return NewAccount("jane@example.com", StartingBalance())
}

func TestBuy_NewHolding(t *testing.T) {
	acc := freshAccount()

	next, res, err := Buy(acc, TradeRequest{Symbol: "AAPL", Shares: 10, Price: d("100")})
	require.NoError(t, err)

	assertDecimal(t, d("9000"), next.Balance)
	assertDecimal(t, d("9000"), res.NewBalance)
	assertDecimal(t, d("100"), res.CurrentPrice)
	require.Contains(t, next.Holdings, "AAPL")
	assert.Equal(t, int64(10), next.Holdings["AAPL"].Shares)
	assertDecimal(t, d("100"), next.Holdings["AAPL"].BuyPrice)

	// input snapshot untouched
	assertDecimal(t, d("10000"), acc.Balance)
	assert.Empty(t, acc.Holdings)
}

func TestBuy_AveragesCostBasis(t *testing.T) {
	acc, _, err := Buy(freshAccount(), TradeRequest{Symbol: "AAPL", Shares: 10, Price: d("100")})
	require.NoError(t, err)

	next, res, err := Buy(acc, TradeRequest{Symbol: "AAPL", Shares: 5, Price: d("200")})
	require.NoError(t, err)

	h := next.Holdings["AAPL"]
	assert.Equal(t, int64(15), h.Shares)
	assertDecimal(t, decimal.NewFromInt(2000).Div(decimal.NewFromInt(15)), h.BuyPrice)
	assert.Equal(t, "133.33", h.BuyPrice.StringFixed(2))
	assertDecimal(t, d("8000"), res.NewBalance)

	assert.Equal(t, int64(10), acc.Holdings["AAPL"].Shares)
}

func TestBuy_BalanceIsExact(t *testing.T) {
	prices := []float64{0.1, 0.2, 19.99, 123.456, 333.33, 1e-3}
	for _, p := range prices {
		price, err := PriceFromFloat(p)
		require.NoError(t, err)

		acc := freshAccount()
		next, res, err := Buy(acc, TradeRequest{Symbol: "MSFT", Shares: 7, Price: price})
		require.NoError(t, err)
		assertDecimal(t, acc.Balance, next.Balance.Add(res.TotalCost))
	}
}

func TestBuy_InsufficientBalance(t *testing.T) {
	acc := freshAccount()

	next, _, err := Buy(acc, TradeRequest{Symbol: "AAPL", Shares: 101, Price: d("100")})
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, Account{}, next)
	assertDecimal(t, d("10000"), acc.Balance)
	assert.Empty(t, acc.Holdings)
}

func TestBuy_ExactBalanceIsAllowed(t *testing.T) {
	next, _, err := Buy(freshAccount(), TradeRequest{Symbol: "AAPL", Shares: 100, Price: d("100")})
	require.NoError(t, err)
	assert.True(t, next.Balance.IsZero())
}

func TestTrade_InvalidRequests(t *testing.T) {
	acc := freshAccount()
	acc.Holdings["AAPL"] = Holding{Symbol: "AAPL", Shares: 3, BuyPrice: d("10")}

	cases := map[string]TradeRequest{
		"zero shares":     {Symbol: "AAPL", Shares: 0, Price: d("10")},
		"negative shares": {Symbol: "AAPL", Shares: -2, Price: d("10")},
		"zero price":      {Symbol: "AAPL", Shares: 1, Price: decimal.Zero},
		"negative price":  {Symbol: "AAPL", Shares: 1, Price: d("-1")},
		"empty symbol":    {Symbol: "", Shares: 1, Price: d("10")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Buy(acc, req)
			assert.True(t, errors.Is(err, ErrInvalidTrade), "buy: %v", err)
			_, _, err = Sell(acc, req)
			assert.True(t, errors.Is(err, ErrInvalidTrade), "sell: %v", err)
		})
	}
	assert.Equal(t, int64(3), acc.Holdings["AAPL"].Shares)
}

func TestPriceFromFloat(t *testing.T) {
	for _, f := range []float64{0, -5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := PriceFromFloat(f)
		assert.True(t, errors.Is(err, ErrInvalidTrade), "price %v", f)
	}
	p, err := PriceFromFloat(187.44)
	require.NoError(t, err)
	assert.Equal(t, "187.44", p.String())
}

func TestSell_All(t *testing.T) {
	acc := Account{
		Identity: "jane@example.com",
		Balance:  d("8000"),
		Holdings: Holdings{"AAPL": {Symbol: "AAPL", Shares: 15, BuyPrice: d("133.33")}},
	}

	next, res, err := Sell(acc, TradeRequest{Symbol: "AAPL", Shares: 15, Price: d("150")})
	require.NoError(t, err)

	assert.NotContains(t, next.Holdings, "AAPL")
	assertDecimal(t, d("10250"), next.Balance)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, int64(15), res.SharesSold)
	assert.Equal(t, int64(0), res.RemainingShares)
	assertDecimal(t, d("2250"), res.TotalSale)
	assertDecimal(t, d("1999.95"), res.NetOfBuyingShares)
	assertDecimal(t, d("10250"), res.NewBalance)

	assert.Contains(t, acc.Holdings, "AAPL")
}

func TestSell_PartialKeepsCostBasis(t *testing.T) {
	acc := Account{
		Balance:  d("500"),
		Holdings: Holdings{"TSLA": {Symbol: "TSLA", Shares: 8, BuyPrice: d("212.5")}},
	}

	next, res, err := Sell(acc, TradeRequest{Symbol: "TSLA", Shares: 3, Price: d("250")})
	require.NoError(t, err)

	h := next.Holdings["TSLA"]
	assert.Equal(t, int64(5), h.Shares)
	assertDecimal(t, d("212.5"), h.BuyPrice)
	assert.Equal(t, int64(5), res.RemainingShares)
	assertDecimal(t, d("1250"), res.NewBalance)
	assertDecimal(t, d("637.5"), res.NetOfBuyingShares)
	assert.Equal(t, int64(8), acc.Holdings["TSLA"].Shares)
}

func TestSell_NotHeld(t *testing.T) {
	acc := freshAccount()
	_, _, err := Sell(acc, TradeRequest{Symbol: "NFLX", Shares: 1, Price: d("10")})
	assert.True(t, errors.Is(err, ErrHoldingNotFound))
}

func TestBuy_ShareCountOverflow(t *testing.T) {
	acc := Account{
		Balance:  d("1"),
		Holdings: Holdings{"PENNY": {Symbol: "PENNY", Shares: math.MaxInt64 - 1, BuyPrice: d("0.000000000000000001")}},
	}

	next, _, err := Buy(acc, TradeRequest{Symbol: "PENNY", Shares: 2, Price: d("0.000000000000000001")})
	assert.True(t, errors.Is(err, ErrInvalidTrade), "got %v", err)
	assert.Equal(t, Account{}, next)
	assert.Equal(t, int64(math.MaxInt64-1), acc.Holdings["PENNY"].Shares)
	assertDecimal(t, d("1"), acc.Balance)
}

func TestSell_InsufficientShares(t *testing.T) {
	acc := Account{
		Balance:  d("100"),
		Holdings: Holdings{"AAPL": {Symbol: "AAPL", Shares: 2, BuyPrice: d("50")}},
	}

	next, _, err := Sell(acc, TradeRequest{Symbol: "AAPL", Shares: 3, Price: d("60")})
	assert.True(t, errors.Is(err, ErrInsufficientShares))
	assert.Equal(t, Account{}, next)
	assert.Equal(t, int64(2), acc.Holdings["AAPL"].Shares)
	assertDecimal(t, d("100"), acc.Balance)
}

func TestSellThenBuy_RestoresBalance(t *testing.T) {
	price, err := PriceFromFloat(187.31)
	require.NoError(t, err)
	acc := Account{
		Balance:  d("1234.56"),
		Holdings: Holdings{"AAPL": {Symbol: "AAPL", Shares: 12, BuyPrice: d("150.1")}},
	}

	sold, _, err := Sell(acc, TradeRequest{Symbol: "AAPL", Shares: 4, Price: price})
	require.NoError(t, err)
	bought, _, err := Buy(sold, TradeRequest{Symbol: "AAPL", Shares: 4, Price: price})
	require.NoError(t, err)

	assertDecimal(t, acc.Balance, bought.Balance)
	assert.Equal(t, int64(12), bought.Holdings["AAPL"].Shares)
}

func TestVersionCarriedThrough(t *testing.T) {
	acc := freshAccount()
	acc.Version = 7

	next, _, err := Buy(acc, TradeRequest{Symbol: "AAPL", Shares: 1, Price: d("1")})
	require.NoError(t, err)
	assert.Equal(t, int64(7), next.Version)
	next, _, err = Sell(next, TradeRequest{Symbol: "AAPL", Shares: 1, Price: d("1")})
	require.NoError(t, err)
	assert.Equal(t, int64(7), next.Version)
}

func TestValuate(t *testing.T) {
	acc := Account{
		Identity: "jane@example.com",
		Balance:  d("8000"),
		Holdings: Holdings{
			"AAPL": {Symbol: "AAPL", Shares: 15, BuyPrice: decimal.NewFromInt(2000).Div(decimal.NewFromInt(15))},
			"ZERO": {Symbol: "ZERO", Shares: 1, BuyPrice: decimal.Zero},
		},
	}
	quotes := map[string]Quote{
		"AAPL": {Current: 150, PreviousClose: 148.5},
		"ZERO": {Current: 3, PreviousClose: 2},
	}
	lookup := func(_ context.Context, symbol string) (Quote, error) { return quotes[symbol], nil }

	view, err := Valuate(context.Background(), acc, lookup)
	require.NoError(t, err)

	assertDecimal(t, d("8000"), view.Balance)
	aapl := view.Holdings["AAPL"]
	assert.Equal(t, int64(15), aapl.Shares)
	assertDecimal(t, d("150"), aapl.CurrentPrice)
	assertDecimal(t, d("148.5"), aapl.PreviousClose)
	assert.Equal(t, "250.00", aapl.ProfitNumber.StringFixed(2))
	require.NotNil(t, aapl.ProfitPercentage)
	assert.Equal(t, "12.50", aapl.ProfitPercentage.StringFixed(2))

	assert.Nil(t, view.Holdings["ZERO"].ProfitPercentage)
	assertDecimal(t, d("3"), view.Holdings["ZERO"].ProfitNumber)
}

func TestValuate_LookupFailure(t *testing.T) {
	acc := freshAccount()
	acc.Holdings["AAPL"] = Holding{Symbol: "AAPL", Shares: 1, BuyPrice: d("1")}

	_, err := Valuate(context.Background(), acc, func(context.Context, string) (Quote, error) {
		return Quote{}, errors.New("timeout")
	})
	assert.True(t, errors.Is(err, ErrQuoteUnavailable))

	_, err = Valuate(context.Background(), acc, func(context.Context, string) (Quote, error) {
		return Quote{Current: math.NaN()}, nil
	})
	assert.True(t, errors.Is(err, ErrQuoteUnavailable))
}

func TestValuate_Empty(t *testing.T) {
	view, err := Valuate(context.Background(), freshAccount(), nil)
	require.NoError(t, err)
	assert.Empty(t, view.Holdings)
}
