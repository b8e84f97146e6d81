// Package ledger applies buy and sell trades to a paper-trading account.
//
// Every operation is a pure transform: it takes an Account snapshot and
// returns a new one, or an error and leaves the input untouched. Loading
// and saving accounts is the caller's job.
package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTrade        = errors.New("invalid stock data or number of shares")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientShares  = errors.New("insufficient shares to sell")
	ErrHoldingNotFound     = errors.New("stock not found in portfolio")
	ErrQuoteUnavailable    = errors.New("quote unavailable")
)

// StartingBalance is the cash every new account is seeded with unless
// configured otherwise.
func StartingBalance() decimal.Decimal { return decimal.NewFromInt(10000) }

// Holding is the position in one symbol. Shares is always positive.
type Holding struct {
	Symbol   string
	Shares   int64
	BuyPrice decimal.Decimal // average cost per share
}

type Holdings map[string]Holding

func (h Holdings) clone() Holdings {
	out := make(Holdings, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Account is a user's cash and holdings. Version is carried through
// untouched so the store can detect concurrent writes.
type Account struct {
	Identity string
	Balance  decimal.Decimal
	Holdings Holdings
	Version  int64
}

func NewAccount(identity string, balance decimal.Decimal) Account {
	return Account{Identity: identity, Balance: balance, Holdings: Holdings{}}
}

type TradeRequest struct {
	Symbol string
	Shares int64
	Price  decimal.Decimal
}

func (r TradeRequest) validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidTrade)
	}
	if r.Shares <= 0 {
		return fmt.Errorf("%w: shares must be positive, got %d", ErrInvalidTrade, r.Shares)
	}
	if !r.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidTrade, r.Price)
	}
	return nil
}

// PriceFromFloat converts a quoted price into a decimal, rejecting
// values no trade can execute at.
func PriceFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return decimal.Zero, fmt.Errorf("%w: unusable price %v", ErrInvalidTrade, f)
	}
	return decimal.NewFromFloat(f), nil
}

type BuyResult struct {
	NewBalance   decimal.Decimal
	CurrentPrice decimal.Decimal
	TotalCost    decimal.Decimal
}

// Buy debits price*shares from the balance and folds the purchase into
// the holding's average cost basis.
func Buy(acc Account, req TradeRequest) (Account, BuyResult, error) {
	if err := req.validate(); err != nil {
		return Account{}, BuyResult{}, err
	}

	shares := decimal.NewFromInt(req.Shares)
	totalCost := req.Price.Mul(shares)
	if acc.Balance.LessThan(totalCost) {
		return Account{}, BuyResult{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance, totalCost, acc.Balance)
	}

	holdings := acc.Holdings.clone()
	if h, ok := holdings[req.Symbol]; ok {
		held := decimal.NewFromInt(h.Shares)
		total := h.Shares + req.Shares
		if total < h.Shares {
			return Account{}, BuyResult{}, fmt.Errorf("%w: position in %s overflows", ErrInvalidTrade, req.Symbol)
		}
		avg := held.Mul(h.BuyPrice).Add(totalCost).Div(decimal.NewFromInt(total))
		holdings[req.Symbol] = Holding{Symbol: req.Symbol, Shares: total, BuyPrice: avg}
	} else {
		holdings[req.Symbol] = Holding{Symbol: req.Symbol, Shares: req.Shares, BuyPrice: req.Price}
	}

	next := Account{
		Identity: acc.Identity,
		Balance:  acc.Balance.Sub(totalCost),
		Holdings: holdings,
		Version:  acc.Version,
	}
	return next, BuyResult{NewBalance: next.Balance, CurrentPrice: req.Price, TotalCost: totalCost}, nil
}

type SellResult struct {
	Symbol            string
	SharesSold        int64
	TotalSale         decimal.Decimal
	NetOfBuyingShares decimal.Decimal // cost basis of the shares sold
	NewBalance        decimal.Decimal
	RemainingShares   int64
}

// Sell credits price*shares to the balance. The average cost basis of what
// remains is not recalculated.
func Sell(acc Account, req TradeRequest) (Account, SellResult, error) {
	if err := req.validate(); err != nil {
		return Account{}, SellResult{}, err
	}

	h, ok := acc.Holdings[req.Symbol]
	if !ok {
		return Account{}, SellResult{}, fmt.Errorf("%w: %s", ErrHoldingNotFound, req.Symbol)
	}
	if h.Shares < req.Shares {
		return Account{}, SellResult{}, fmt.Errorf("%w: hold %d %s, asked %d", ErrInsufficientShares, h.Shares, req.Symbol, req.Shares)
	}

	shares := decimal.NewFromInt(req.Shares)
	proceeds := req.Price.Mul(shares)
	costBasis := h.BuyPrice.Mul(shares)
	remaining := h.Shares - req.Shares

	holdings := acc.Holdings.clone()
	if remaining == 0 {
		delete(holdings, req.Symbol)
	} else {
		h.Shares = remaining
		holdings[req.Symbol] = h
	}

	next := Account{
		Identity: acc.Identity,
		Balance:  acc.Balance.Add(proceeds),
		Holdings: holdings,
		Version:  acc.Version,
	}
	return next, SellResult{
		Symbol:            req.Symbol,
		SharesSold:        req.Shares,
		TotalSale:         proceeds,
		NetOfBuyingShares: costBasis,
		NewBalance:        next.Balance,
		RemainingShares:   remaining,
	}, nil
}
