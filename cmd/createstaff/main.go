// Package main creates a staff account. There is no signup endpoint on
// purpose; accounts are provisioned from a shell by whoever runs the
// deployment:
//
//	createstaff -email desk@gpul.org -name "Desk One" -role staff
//
// The password is read from the STAFF_PASSWORD environment variable so
// it never lands in shell history.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jorgeteixe/hackackathon/config"
	"github.com/jorgeteixe/hackackathon/internal/auth"
	"github.com/jorgeteixe/hackackathon/internal/models"
	"github.com/jorgeteixe/hackackathon/pkg/database"
	"github.com/jorgeteixe/hackackathon/pkg/utils"
)

func main() {
	email := flag.String("email", "", "staff email")
	name := flag.String("name", "", "full name")
	role := flag.String("role", string(models.StaffRoleStaff), "staff or admin")
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()

	if *email == "" || *name == "" {
		logger.Fatal("both -email and -name are required")
	}
	if *role != string(models.StaffRoleStaff) && *role != string(models.StaffRoleAdmin) {
		logger.Fatal("role must be staff or admin", zap.String("role", *role))
	}
	password := os.Getenv("STAFF_PASSWORD")
	if password == "" {
		logger.Fatal("set STAFF_PASSWORD in the environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	hash, err := utils.HashPassword(password)
	if err != nil {
		logger.Fatal("hash password", zap.Error(err))
	}

	repo := auth.NewRepository(pool)
	user, err := repo.Create(ctx, *email, hash, *name, models.StaffRole(*role))
	if err != nil {
		logger.Fatal("create staff user", zap.Error(err))
	}
	fmt.Printf("created %s (%s) id=%s\n", user.Email, user.Role, user.ID)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
