package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Roy-Barak/Mystock-Backend/cmd"
	"github.com/Roy-Barak/Mystock-Backend/internal/auth"
	"github.com/Roy-Barak/Mystock-Backend/internal/ledger"
	"github.com/Roy-Barak/Mystock-Backend/internal/quote"
	"github.com/Roy-Barak/Mystock-Backend/internal/store"
)

const msgInvalidTrade = "Invalid stock data or number of shares"

type buyResponse struct {
	Message      string  `json:"message"`
	NewBalance   float64 `json:"new_balance"`
	CurrentPrice float64 `json:"current_price"`
}

type sellResponse struct {
	Message           string  `json:"message"`
	Symbol            string  `json:"symbol"`
	SharesSold        int64   `json:"shares_sold"`
	TotalSale         float64 `json:"total_sale"`
	NetOfBuyingShares float64 `json:"net_of_buying_shares"`
	NewBalance        float64 `json:"new_balance"`
	RemainingShares   int64   `json:"remaining_shares"`
	Status            int     `json:"status"`
}

type stockView struct {
	Shares           int64    `json:"shares"`
	BuyPrice         float64  `json:"buy_price"`
	CurrentPrice     float64  `json:"current_price"`
	PreviousPrice    float64  `json:"previous_price"`
	ProfitNumber     float64  `json:"profit_number"`
	ProfitPercentage *float64 `json:"profit_percentage"`
}

type portfolioResponse struct {
	Email   string               `json:"email"`
	Balance float64              `json:"balance"`
	Stocks  map[string]stockView `json:"stocks"`
}

type tradesResponse struct {
	Rows []store.Trade `json:"rows"`
}

func money(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }

// tradeInput decodes and validates a buy/sell body and prices it at the
// current quote. It writes the failure response itself and reports false.
func (s *server) tradeInput(w http.ResponseWriter, r *http.Request) (ledger.TradeRequest, bool) {
	var req cmd.TradeRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "Invalid request body"})
		return ledger.TradeRequest{}, false
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Message: msgInvalidTrade})
		return ledger.TradeRequest{}, false
	}

	q, err := s.quotes.Quote(r.Context(), req.Symbol)
	if err != nil {
		s.log.Warn("quote failed", zap.String("symbol", req.Symbol), zap.Error(err))
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Message: msgInvalidTrade})
		return ledger.TradeRequest{}, false
	}
	price, err := ledger.PriceFromFloat(q.Current)
	if err != nil {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Message: msgInvalidTrade})
		return ledger.TradeRequest{}, false
	}
	return ledger.TradeRequest{Symbol: req.Symbol, Shares: int64(req.Shares), Price: price}, true
}

func (s *server) loadAccount(w http.ResponseWriter, r *http.Request) (ledger.Account, bool) {
	identity, _ := auth.IdentityFrom(r.Context())
	acc, err := s.store.LoadAccount(r.Context(), identity)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiError{Message: "Portfolio not found"})
		return ledger.Account{}, false
	} else if err != nil {
		s.internalError(w, "LoadAccount", err)
		return ledger.Account{}, false
	}
	return acc, true
}

// save persists a trade and writes the response for a store failure.
func (s *server) save(w http.ResponseWriter, r *http.Request, acc ledger.Account, t store.Trade) bool {
	saved, err := s.store.SaveTrade(r.Context(), acc, t)
	if errors.Is(err, store.ErrConflict) {
		writeJSON(w, http.StatusConflict, apiError{Message: "Portfolio changed during the trade, please retry"})
		return false
	} else if err != nil {
		s.internalError(w, "SaveTrade", err)
		return false
	}
	s.log.Info("trade saved",
		zap.String("id", saved.ID),
		zap.String("account", saved.Account),
		zap.String("side", string(saved.Side)),
		zap.String("symbol", saved.Symbol),
		zap.Int64("shares", saved.Shares),
		zap.Stringer("price", saved.Price),
	)
	return true
}

// POST /user/buy-stock
func (s *server) buyStock(w http.ResponseWriter, r *http.Request) {
	req, ok := s.tradeInput(w, r)
	if !ok {
		return
	}
	acc, ok := s.loadAccount(w, r)
	if !ok {
		return
	}

	next, res, err := ledger.Buy(acc, req)
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		writeJSON(w, http.StatusNotAcceptable, apiError{Message: "Insufficient balance"})
		return
	case errors.Is(err, ledger.ErrInvalidTrade):
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Message: msgInvalidTrade})
		return
	case err != nil:
		s.internalError(w, "Buy", err)
		return
	}

	t := store.Trade{Symbol: req.Symbol, Side: store.SideBuy, Shares: req.Shares, Price: req.Price, Total: res.TotalCost}
	if !s.save(w, r, next, t) {
		return
	}
	writeJSON(w, http.StatusOK, buyResponse{
		Message:      "Stock purchased successfully",
		NewBalance:   res.NewBalance.InexactFloat64(),
		CurrentPrice: res.CurrentPrice.InexactFloat64(),
	})
}

// POST /user/sell-stock
func (s *server) sellStock(w http.ResponseWriter, r *http.Request) {
	req, ok := s.tradeInput(w, r)
	if !ok {
		return
	}
	acc, ok := s.loadAccount(w, r)
	if !ok {
		return
	}

	next, res, err := ledger.Sell(acc, req)
	switch {
	case errors.Is(err, ledger.ErrHoldingNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Message: msgInvalidTrade})
		return
	case errors.Is(err, ledger.ErrInsufficientShares):
		writeJSON(w, http.StatusNotAcceptable, apiError{Message: msgInvalidTrade})
		return
	case errors.Is(err, ledger.ErrInvalidTrade):
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Message: msgInvalidTrade})
		return
	case err != nil:
		s.internalError(w, "Sell", err)
		return
	}

	t := store.Trade{
		Symbol:    req.Symbol,
		Side:      store.SideSell,
		Shares:    req.Shares,
		Price:     req.Price,
		Total:     res.TotalSale,
		CostBasis: res.NetOfBuyingShares,
	}
	if !s.save(w, r, next, t) {
		return
	}
	writeJSON(w, http.StatusOK, sellResponse{
		Message:           "Stock sold successfully",
		Symbol:            res.Symbol,
		SharesSold:        res.SharesSold,
		TotalSale:         res.TotalSale.InexactFloat64(),
		NetOfBuyingShares: res.NetOfBuyingShares.InexactFloat64(),
		NewBalance:        res.NewBalance.InexactFloat64(),
		RemainingShares:   res.RemainingShares,
		Status:            http.StatusOK,
	})
}

// GET /user/data
func (s *server) portfolio(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.loadAccount(w, r)
	if !ok {
		return
	}

	lookup := func(ctx context.Context, symbol string) (ledger.Quote, error) {
		q, err := s.quotes.Quote(ctx, symbol)
		if err != nil {
			return ledger.Quote{}, err
		}
		return ledger.Quote{Current: q.Current, PreviousClose: q.PreviousClose}, nil
	}
	view, err := ledger.Valuate(r.Context(), acc, lookup)
	if errors.Is(err, ledger.ErrQuoteUnavailable) {
		s.log.Warn("valuation failed", zap.String("account", acc.Identity), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, apiError{Message: "Market data unavailable"})
		return
	} else if err != nil {
		s.internalError(w, "Valuate", err)
		return
	}

	resp := portfolioResponse{
		Email:   view.Identity,
		Balance: view.Balance.InexactFloat64(),
		Stocks:  make(map[string]stockView, len(view.Holdings)),
	}
	for sym, h := range view.Holdings {
		sv := stockView{
			Shares:        h.Shares,
			BuyPrice:      money(h.BuyPrice),
			CurrentPrice:  money(h.CurrentPrice),
			PreviousPrice: money(h.PreviousClose),
			ProfitNumber:  money(h.ProfitNumber),
		}
		if h.ProfitPercentage != nil {
			pct := money(*h.ProfitPercentage)
			sv.ProfitPercentage = &pct
		}
		resp.Stocks[sym] = sv
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /user/trades
func (s *server) trades(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	limit := parseLimit(r.URL.Query().Get("limit"), 100, 1, 1000)

	rows, err := s.store.Trades(r.Context(), identity, limit)
	if err != nil {
		s.internalError(w, "Trades", err)
		return
	}
	writeJSON(w, http.StatusOK, tradesResponse{Rows: rows})
}

// GET /user/stats
func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	st, err := s.store.Stats(r.Context(), identity)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiError{Message: "No processed trades yet"})
		return
	} else if err != nil {
		s.internalError(w, "Stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /get/stock/{symbol}
// Responds with a one element list; the provider's raw payload is not exposed.
func (s *server) getStock(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	q, err := s.quotes.Quote(r.Context(), symbol)
	if errors.Is(err, quote.ErrUnavailable) {
		writeJSON(w, http.StatusBadGateway, apiError{Message: "Market data unavailable"})
		return
	} else if err != nil {
		s.internalError(w, "Quote", err)
		return
	}
	writeJSON(w, http.StatusOK, []quote.Quote{q})
}
