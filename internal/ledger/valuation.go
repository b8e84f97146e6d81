package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Quote is the pair of prices a valuation needs for one symbol.
type Quote struct {
	Current       float64
	PreviousClose float64
}

// PriceLookup fetches the current quote for a symbol.
type PriceLookup func(ctx context.Context, symbol string) (Quote, error)

type HoldingView struct {
	Shares        int64
	BuyPrice      decimal.Decimal
	CurrentPrice  decimal.Decimal
	PreviousClose decimal.Decimal
	ProfitNumber  decimal.Decimal
	// nil when the cost basis is zero and the percentage is undefined
	ProfitPercentage *decimal.Decimal
}

type PortfolioView struct {
	Identity string
	Balance  decimal.Decimal
	Holdings map[string]HoldingView
}

var hundred = decimal.NewFromInt(100)

// Valuate prices every holding at its current quote. Values are kept at
// full precision; rounding is left to presentation.
func Valuate(ctx context.Context, acc Account, lookup PriceLookup) (PortfolioView, error) {
	view := PortfolioView{
		Identity: acc.Identity,
		Balance:  acc.Balance,
		Holdings: make(map[string]HoldingView, len(acc.Holdings)),
	}
	for symbol, h := range acc.Holdings {
		q, err := lookup(ctx, symbol)
		if err != nil {
			return PortfolioView{}, fmt.Errorf("%w: %s: %v", ErrQuoteUnavailable, symbol, err)
		}
		current, err := PriceFromFloat(q.Current)
		if err != nil {
			return PortfolioView{}, fmt.Errorf("%w: %s: %v", ErrQuoteUnavailable, symbol, err)
		}
		prevClose := decimal.Zero
		if !math.IsNaN(q.PreviousClose) && !math.IsInf(q.PreviousClose, 0) {
			prevClose = decimal.NewFromFloat(q.PreviousClose)
		}
		diff := current.Sub(h.BuyPrice)

		hv := HoldingView{
			Shares:        h.Shares,
			BuyPrice:      h.BuyPrice,
			CurrentPrice:  current,
			PreviousClose: prevClose,
			ProfitNumber:  diff.Mul(decimal.NewFromInt(h.Shares)),
		}
		if !h.BuyPrice.IsZero() {
			pct := hundred.Mul(diff).Div(h.BuyPrice)
			hv.ProfitPercentage = &pct
		}
		view.Holdings[symbol] = hv
	}
	return view, nil
}
