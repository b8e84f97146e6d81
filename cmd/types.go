package cmd

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Shares accepts both 5 and "5" in request bodies.
type Shares int64

func (s *Shares) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return fmt.Errorf("shares: %w", err)
		}
		n = json.Number(strings.TrimSpace(str))
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("shares: %w", err)
	}
	*s = Shares(v)
	return nil
}

type TradeRequest struct {
	Symbol string `json:"symbol" validate:"required,ticker"`
	Shares Shares `json:"shares" validate:"gt=0"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Trade is a journal row as the stats worker reads it.
type Trade struct {
	ID        string  `json:"-" validate:"required"`
	Account   string  `json:"account" validate:"required"`
	Symbol    string  `json:"symbol" validate:"ticker"`
	Side      string  `json:"side" validate:"oneof=buy sell"`
	Shares    int64   `json:"shares" validate:"gt=0"`
	Total     float64 `json:"total" validate:"gt=0"`
	CostBasis float64 `json:"cost_basis" validate:"gte=0"`
}

var tickerRE = regexp.MustCompile(`^[A-Z0-9.^=-]{1,12}$`)

// NewValidator returns a validator with the ticker rule registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return tickerRE.MatchString(fl.Field().String())
	})
	return v
}
