package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/giftvouchers-backend/internal/auth"
	"github.com/angelmondragon/giftvouchers-backend/internal/users"
	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db"
	"github.com/angelmondragon/giftvouchers-backend/pkg/enums"
	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
	"github.com/angelmondragon/giftvouchers-backend/pkg/security"
)

// create-admin provisions admin panel accounts. With -hash-pin it instead
// prints the argon2id hash to put in GIFTVOUCHERS_STAFF_PIN_HASH.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "create-admin"})

	_ = godotenv.Load()

	email := flag.String("email", "", "admin email")
	password := flag.String("password", "", "admin password (min 8 characters)")
	fullName := flag.String("name", "", "admin full name")
	role := flag.String("role", string(enums.AdminRoleOperator), "admin role: admin|operator")
	hashPIN := flag.String("hash-pin", "", "print the hash of a staff PIN and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	if pin := strings.TrimSpace(*hashPIN); pin != "" {
		hash, err := security.HashPassword(pin, cfg.Password)
		if err != nil {
			logg.Error(ctx, "failed to hash pin", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	if strings.TrimSpace(*email) == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: create-admin -email <email> -password <password> [-name <name>] [-role admin|operator]")
		os.Exit(2)
	}

	logg = logger.New(logger.Options{
		ServiceName: "create-admin",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	registrar, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
		Admins:         users.NewRepository(dbClient.DB()),
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(ctx, "failed to create admin register service", err)
		os.Exit(1)
	}

	admin, err := registrar.Register(ctx, auth.AdminRegisterRequest{
		Email:    *email,
		Password: *password,
		FullName: *fullName,
		Role:     enums.AdminRole(strings.ToLower(strings.TrimSpace(*role))),
	})
	if err != nil {
		logg.Error(ctx, "failed to create admin", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"admin_id": admin.ID.String(),
		"email":    admin.Email,
		"role":     string(admin.Role),
	})
	logg.Info(ctx, "admin created")
}
