package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Roy-Barak/Mystock-Backend/internal/auth"
	"github.com/Roy-Barak/Mystock-Backend/internal/ledger"
	"github.com/Roy-Barak/Mystock-Backend/internal/quote"
	"github.com/Roy-Barak/Mystock-Backend/internal/store"
)

type accountStore interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, u store.User, balance decimal.Decimal) error
	UserByEmail(ctx context.Context, email string) (store.User, error)
	LoadAccount(ctx context.Context, identity string) (ledger.Account, error)
	SaveTrade(ctx context.Context, acc ledger.Account, t store.Trade) (store.Trade, error)
	Trades(ctx context.Context, identity string, limit int) ([]store.Trade, error)
	Stats(ctx context.Context, identity string) (store.Stats, error)
}

type server struct {
	store           accountStore
	quotes          quote.Source
	issuer          *auth.Issuer
	validate        *validator.Validate
	log             *zap.Logger
	startingBalance decimal.Decimal
}

type apiError struct {
	Message string `json:"message"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("It works!"))
	})
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /get/stock/{symbol}", s.getStock)
	mux.HandleFunc("POST /user-register", s.register)
	mux.HandleFunc("POST /user-login", s.login)

	protect := func(h http.HandlerFunc) http.Handler {
		return s.issuer.Middleware(http.HandlerFunc(s.unauthorized), h)
	}
	mux.Handle("POST /user/buy-stock", protect(s.buyStock))
	mux.Handle("POST /user/sell-stock", protect(s.sellStock))
	mux.Handle("GET /user/data", protect(s.portfolio))
	mux.Handle("GET /user/trades", protect(s.trades))
	mux.Handle("GET /user/stats", protect(s.stats))

	return s.recoverer(s.requestLog(cors(mux)))
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Error("database health check failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Write([]byte("OK\n"))
}

func (s *server) unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, apiError{Message: "Missing or invalid token"})
}

func (s *server) internalError(w http.ResponseWriter, where string, err error) {
	s.log.Error("internal_error", zap.String("where", where), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal server error"})
}

func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("ip", r.RemoteAddr),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

func (s *server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.log.Error("panic", zap.Any("recovered", p), zap.String("path", r.URL.Path))
				writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// cors allows the browser frontend on any origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseLimit(v string, def, min, max int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}
