package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShares_Unmarshal(t *testing.T) {
	var req TradeRequest
	require.NoError(t, json.Unmarshal([]byte(`{"symbol":"AAPL","shares":12}`), &req))
	assert.Equal(t, Shares(12), req.Shares)

	require.NoError(t, json.Unmarshal([]byte(`{"symbol":"AAPL","shares":" 7 "}`), &req))
	assert.Equal(t, Shares(7), req.Shares)

	assert.Error(t, json.Unmarshal([]byte(`{"shares":1.5}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"shares":"many"}`), &req))
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Struct(TradeRequest{Symbol: "AAPL", Shares: 1}))
	assert.NoError(t, v.Struct(TradeRequest{Symbol: "^OEX", Shares: 1}))
	assert.NoError(t, v.Struct(TradeRequest{Symbol: "BRK-B", Shares: 1}))
	assert.Error(t, v.Struct(TradeRequest{Symbol: "aapl", Shares: 1}))
	assert.Error(t, v.Struct(TradeRequest{Symbol: "AAPL", Shares: 0}))
	assert.Error(t, v.Struct(TradeRequest{Symbol: "", Shares: 3}))

	assert.NoError(t, v.Struct(Trade{ID: "1", Account: "a@b.c", Symbol: "AAPL", Side: "sell", Shares: 1, Total: 10, CostBasis: 8}))
	assert.Error(t, v.Struct(Trade{ID: "1", Account: "a@b.c", Symbol: "AAPL", Side: "short", Shares: 1, Total: 10}))

	assert.Error(t, v.Struct(RegisterRequest{Name: "Jane", Email: "not-an-email", Password: "x"}))
}
