package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Roy-Barak/Mystock-Backend/cmd"
	"github.com/Roy-Barak/Mystock-Backend/internal/config"
	"github.com/Roy-Barak/Mystock-Backend/internal/logging"
	"github.com/Roy-Barak/Mystock-Backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Command line flags
	dbPath := flag.String("db", cfg.DBPath, "path to SQLite database")
	pollInterval := flag.Duration("poll", cfg.PollInterval, "polling interval")
	flag.Parse()

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := st.Migrate(ctx); err != nil {
		logger.Fatal("database", zap.Error(err))
	}

	logger.Info("worker started", zap.Duration("poll", *pollInterval))

	validate := cmd.NewValidator()
	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	// Main worker loop
	for {
		n, err := processTrades(ctx, st.DB(), validate, logger)
		if err != nil {
			logger.Error("failed to process trades", zap.Error(err))
		} else if n > 0 {
			logger.Debug("trades folded", zap.Int("count", n))
		}

		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// processTrades folds unprocessed journal rows into account_stats and marks
// them processed, all in one transaction. Rows that fail validation are
// left unprocessed.
func processTrades(ctx context.Context, db *sql.DB, validate *validator.Validate, logger *zap.Logger) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
        SELECT id, account, symbol, side, shares, total, cost_basis
        FROM trades
        WHERE processed = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("failed to query unprocessed trades: %w", err)
	}

	var trades []cmd.Trade
	for rows.Next() {
		var t cmd.Trade
		var total, costBasis decimal.Decimal
		if err := rows.Scan(&t.ID, &t.Account, &t.Symbol, &t.Side, &t.Shares, &total, &costBasis); err != nil {
			logger.Warn("error scanning trade row", zap.Error(err))
			continue
		}
		t.Total = total.InexactFloat64()
		t.CostBasis = costBasis.InexactFloat64()
		trades = append(trades, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read unprocessed trades: %w", err)
	}

	processed := 0
	for _, t := range trades {
		if err := validate.Struct(t); err != nil {
			logger.Warn("invalid trade", zap.String("id", t.ID), zap.Error(err))
			continue
		}

		_, err = tx.ExecContext(ctx, `
            INSERT INTO account_stats (account, trades, profit)
            VALUES (?, 1, ?)
            ON CONFLICT(account) DO UPDATE SET
                trades = trades + 1,
                profit = profit + ?
            WHERE account = ?`,
			t.Account, realizedProfit(t), realizedProfit(t), t.Account)
		if err != nil {
			return 0, fmt.Errorf("failed to update stats for account %s: %w", t.Account, err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE trades SET processed = TRUE WHERE id = ?`, t.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to mark trade as processed: %w", err)
		}
		processed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return processed, nil
}

// realizedProfit is what a trade adds to the account's realized P&L.
// Buys realize nothing.
func realizedProfit(t cmd.Trade) float64 {
	if t.Side != string(store.SideSell) {
		return 0
	}
	return t.Total - t.CostBasis
}
