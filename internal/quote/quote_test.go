package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aaplChart = `{"chart":{"result":[{"meta":{"symbol":"AAPL","longName":"Apple Inc.","shortName":"Apple","regularMarketPrice":189.84,"previousClose":187.5,"chartPreviousClose":187.44},"indicators":{"quote":[{"open":[188.1]}]}}],"error":null}}`

func TestYahoo_Quote(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(aaplChart))
	}))
	defer ts.Close()

	q, err := NewYahoo(ts.URL, time.Second).Quote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "Apple Inc.", q.Name)
	assert.Equal(t, 189.84, q.Current)
	assert.Equal(t, 187.5, q.PreviousClose)
	assert.Equal(t, 187.44, q.MarketClose)
	assert.Equal(t, 188.1, q.Open)
}

func TestYahoo_UnknownSymbol(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer ts.Close()

	_, err := NewYahoo(ts.URL, time.Second).Quote(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestYahoo_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(aaplChart))
	}))
	defer ts.Close()

	_, err := NewYahoo(ts.URL, 20*time.Millisecond).Quote(context.Background(), "AAPL")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestStatic(t *testing.T) {
	s := NewStatic(map[string]Quote{"AAPL": {Current: 100, PreviousClose: 99}})

	q, err := s.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Name)
	assert.Equal(t, 100.0, q.Current)

	_, err = s.Quote(context.Background(), "MSFT")
	assert.True(t, errors.Is(err, ErrUnavailable))

	s.Set("MSFT", Quote{Current: 0})
	_, err = s.Quote(context.Background(), "MSFT")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestParseStatic(t *testing.T) {
	quotes, err := ParseStatic("AAPL=190.5:188, msft=410,")
	require.NoError(t, err)
	assert.Equal(t, Quote{Current: 190.5, PreviousClose: 188, MarketClose: 188}, quotes["AAPL"])
	assert.Equal(t, Quote{Current: 410, PreviousClose: 410, MarketClose: 410}, quotes["MSFT"])

	_, err = ParseStatic("AAPL")
	assert.Error(t, err)
	_, err = ParseStatic("AAPL=abc")
	assert.Error(t, err)
}
