// Package main sends seat-confirmation emails to everyone accepted but
// not yet confirmed. Run it from a shell after each acceptance round:
//
//	sendconfirmations -days 14
//	sendconfirmations -expires 2026-02-20T12:00:00Z
//
// Delivery is fail-fast: the run stops at the first address that cannot
// be reached, reports who got mail, and exits nonzero so the operator
// fixes the problem before rerunning.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jorgeteixe/hackackathon/config"
	"github.com/jorgeteixe/hackackathon/internal/mailer"
	"github.com/jorgeteixe/hackackathon/internal/registration"
	"github.com/jorgeteixe/hackackathon/internal/tokens"
	"github.com/jorgeteixe/hackackathon/pkg/database"
)

func main() {
	days := flag.Int("days", 0, "token lifetime in days from now")
	expires := flag.String("expires", "", "absolute token expiry (RFC 3339); mutually exclusive with -days")
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	opts := registration.BatchOptions{TTLDays: *days}
	if *expires != "" {
		t, err := time.Parse(time.RFC3339, *expires)
		if err != nil {
			logger.Fatal("parse -expires", zap.Error(err))
		}
		opts.ExpiresAt = t
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	emailLogs := mailer.NewLogRepository(pool)
	notifier := mailer.NewSMTP(cfg.Email, emailLogs, logger)
	tokenRepo := tokens.NewRepository(pool)
	repo := registration.NewRepository(pool, tokenRepo)
	svc := registration.NewService(repo, notifier, nil, cfg.Registration, logger)

	result, err := svc.RequestSeatConfirmation(ctx, opts)
	if err != nil && !errors.Is(err, registration.ErrMailFailed) {
		logger.Fatal("send confirmations", zap.Error(err))
	}

	for _, email := range result.Sent {
		fmt.Println("sent:", email)
	}
	if result.ExistingTokens > 0 {
		fmt.Printf("warning: %d recipients already had a live confirmation token\n", result.ExistingTokens)
	}
	fmt.Printf("%d sent, tokens expire %s\n", len(result.Sent), result.ExpiresAt.Format(time.RFC3339))

	if err != nil {
		fmt.Fprintf(os.Stderr, "stopped at %s: %v\n", result.Failed, err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
