package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Roy-Barak/Mystock-Backend/cmd"
	"github.com/Roy-Barak/Mystock-Backend/internal/auth"
	"github.com/Roy-Barak/Mystock-Backend/internal/config"
	"github.com/Roy-Barak/Mystock-Backend/internal/logging"
	"github.com/Roy-Barak/Mystock-Backend/internal/quote"
	"github.com/Roy-Barak/Mystock-Backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Command line flags
	dbPath := flag.String("db", cfg.DBPath, "path to SQLite database")
	listenAddr := flag.String("listen", cfg.ListenAddr, "HTTP server listen address")
	flag.Parse()

	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connection
	st, err := store.Open(*dbPath)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer st.Close()
	if err := st.Migrate(context.Background()); err != nil {
		logger.Fatal("database", zap.Error(err))
	}

	quotes, err := newQuoteSource(cfg)
	if err != nil {
		logger.Fatal("quotes", zap.Error(err))
	}

	s := &server{
		store:           st,
		quotes:          quotes,
		issuer:          auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		validate:        cmd.NewValidator(),
		log:             logger,
		startingBalance: cfg.StartingBalance,
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", *listenAddr),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("quotes", cfg.QuoteProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info("shutdown complete")
}

func newQuoteSource(cfg config.Config) (quote.Source, error) {
	if cfg.QuoteProvider == "static" {
		quotes, err := quote.ParseStatic(cfg.QuoteStatic)
		if err != nil {
			return nil, err
		}
		return quote.NewStatic(quotes), nil
	}
	return quote.NewYahoo(cfg.QuoteBaseURL, cfg.QuoteTimeout), nil
}
