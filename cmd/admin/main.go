package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/auctions"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const usage = `usage: admin <command> [flags]

commands:
  create-user    -username NAME -email EMAIL -password PASS [-admin] [-seller]
  grant-admin    -login USERNAME_OR_EMAIL [-revoke]
  convert-boats  turn every fixed-price boat listing into a 7 day auction`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "admin"})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "admin",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": os.Args[1],
	})
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	args := os.Args[2:]
	switch os.Args[1] {
	case "create-user":
		err = createUser(ctx, cfg, dbClient, args)
	case "grant-admin":
		err = grantAdmin(ctx, dbClient, args)
	case "convert-boats":
		err = convertBoats(ctx, cfg, logg, dbClient)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", strings.Join(pkgerrors.UserMessages(err), "; "))
		logg.Error(ctx, "admin command failed", err)
		os.Exit(1)
	}
}

func createUser(ctx context.Context, cfg *config.Config, dbClient *db.Client, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	isAdmin := fs.Bool("admin", false, "grant admin")
	isSeller := fs.Bool("seller", false, "grant seller")
	_ = fs.Parse(args)

	svc, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return err
	}
	user, err := svc.Provision(ctx, auth.RegisterRequest{
		Username: *username,
		Email:    *email,
		Password: *password,
	}, auth.Roles{Admin: *isAdmin, Seller: *isSeller})
	if err != nil {
		return err
	}
	fmt.Printf("created user %s (%s) admin=%t seller=%t\n", user.Username, user.ID, user.IsAdmin, user.IsSeller)
	return nil
}

func grantAdmin(ctx context.Context, dbClient *db.Client, args []string) error {
	fs := flag.NewFlagSet("grant-admin", flag.ExitOnError)
	login := fs.String("login", "", "username or email")
	revoke := fs.Bool("revoke", false, "remove admin instead of granting it")
	_ = fs.Parse(args)

	if strings.TrimSpace(*login) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "-login is required")
	}
	repo := users.NewRepository(dbClient.DB())
	user, err := repo.FindByLogin(ctx, strings.TrimSpace(*login))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "User not found.")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if err := repo.Updates(ctx, user.ID, map[string]any{"is_admin": !*revoke}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	fmt.Printf("%s admin=%t\n", user.Username, !*revoke)
	return nil
}

func convertBoats(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) error {
	notificationSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}
	svc, err := auctions.NewService(auctions.ServiceParams{
		DB:             dbClient,
		Notifications:  notificationSvc,
		Logger:         logg,
		IncrementCents: cfg.Auction.BidIncrementCents,
	})
	if err != nil {
		return err
	}
	result, err := svc.ConvertBoats(ctx)
	if err != nil {
		return err
	}
	fmt.Println(result.Message)
	return nil
}
