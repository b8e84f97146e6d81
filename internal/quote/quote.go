// Package quote fetches market quotes for stock symbols.
package quote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

var ErrUnavailable = errors.New("quote unavailable")

// Quote is a point-in-time view of one symbol. Zero means the provider did
// not report the field.
type Quote struct {
	Symbol        string  `json:"-"`
	Name          string  `json:"name"`
	PreviousClose float64 `json:"previous_close"`
	Current       float64 `json:"current_price"`
	Open          float64 `json:"market_open"`
	MarketClose   float64 `json:"market_close"`
}

type Source interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// Static serves quotes from memory.
type Static struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStatic(quotes map[string]Quote) *Static {
	s := &Static{quotes: make(map[string]Quote, len(quotes))}
	for sym, q := range quotes {
		s.Set(sym, q)
	}
	return s
}

func (s *Static) Set(symbol string, q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.Symbol = symbol
	if q.Name == "" {
		q.Name = symbol
	}
	s.quotes[symbol] = q
}

func (s *Static) Quote(_ context.Context, symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok || q.Current <= 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnavailable, symbol)
	}
	return q, nil
}

// ParseStatic reads a comma separated list of SYMBOL=current[:previous]
// entries, e.g. "AAPL=190.5:188,MSFT=410".
func ParseStatic(list string) (map[string]Quote, error) {
	out := map[string]Quote{}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		sym, prices, ok := strings.Cut(entry, "=")
		if !ok || sym == "" {
			return nil, fmt.Errorf("static quote %q: want SYMBOL=price", entry)
		}
		cur, prev, _ := strings.Cut(prices, ":")
		current, err := strconv.ParseFloat(cur, 64)
		if err != nil {
			return nil, fmt.Errorf("static quote %q: %w", entry, err)
		}
		q := Quote{Current: current, PreviousClose: current}
		if prev != "" {
			if q.PreviousClose, err = strconv.ParseFloat(prev, 64); err != nil {
				return nil, fmt.Errorf("static quote %q: %w", entry, err)
			}
		}
		q.MarketClose = q.PreviousClose
		out[strings.ToUpper(strings.TrimSpace(sym))] = q
	}
	return out, nil
}
