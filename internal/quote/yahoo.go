package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const DefaultYahooURL = "https://query1.finance.yahoo.com"

// Yahoo reads quotes from the Yahoo Finance chart endpoint.
type Yahoo struct {
	BaseURL string
	Client  *http.Client
}

func NewYahoo(baseURL string, timeout time.Duration) *Yahoo {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	return &Yahoo{BaseURL: baseURL, Client: &http.Client{Timeout: timeout}}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Open []*float64 `json:"open"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (y *Yahoo) Quote(ctx context.Context, symbol string) (Quote, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=1d", y.BaseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.Client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Quote{}, fmt.Errorf("%w: %s: decode: %v", ErrUnavailable, symbol, err)
	}
	if e := body.Chart.Error; e != nil {
		return Quote{}, fmt.Errorf("%w: %s: %s", ErrUnavailable, symbol, e.Description)
	}
	if resp.StatusCode != http.StatusOK || len(body.Chart.Result) == 0 {
		return Quote{}, fmt.Errorf("%w: %s: status %d", ErrUnavailable, symbol, resp.StatusCode)
	}

	r := body.Chart.Result[0]
	m := r.Meta
	if m.RegularMarketPrice <= 0 {
		return Quote{}, fmt.Errorf("%w: %s: no market price", ErrUnavailable, symbol)
	}

	q := Quote{
		Symbol:        symbol,
		Name:          m.LongName,
		Current:       m.RegularMarketPrice,
		PreviousClose: m.PreviousClose,
		MarketClose:   m.ChartPreviousClose,
	}
	if q.Name == "" {
		q.Name = m.ShortName
	}
	if q.Name == "" {
		q.Name = "Unknown"
	}
	if q.PreviousClose == 0 {
		q.PreviousClose = m.ChartPreviousClose
	}
	if len(r.Indicators.Quote) > 0 && len(r.Indicators.Quote[0].Open) > 0 && r.Indicators.Quote[0].Open[0] != nil {
		q.Open = *r.Indicators.Quote[0].Open[0]
	}
	return q, nil
}
