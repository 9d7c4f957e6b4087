package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/biznespilot/payme-merchant/internal/accounts"
	"github.com/biznespilot/payme-merchant/internal/billing"
	"github.com/biznespilot/payme-merchant/internal/payme"
	"github.com/biznespilot/payme-merchant/pkg/config"
	"github.com/biznespilot/payme-merchant/pkg/db"
	"github.com/biznespilot/payme-merchant/pkg/db/models"
	"github.com/biznespilot/payme-merchant/pkg/enums"
	"github.com/biznespilot/payme-merchant/pkg/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "payme-link"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "link", "command: link|register")
	business := flag.String("business", "", "business id (uuid)")

	amount := flag.Int64("amount", 0, "order amount in tiyin (for link)")
	returnURL := flag.String("return", "", "URL the payer returns to after checkout (for link)")
	lang := flag.String("lang", "", "checkout language: ru|uz|en (for link)")

	name := flag.String("name", "Payme", "account display name (for register)")
	merchantID := flag.String("merchant-id", "", "Payme merchant id (for register)")
	merchantKey := flag.String("merchant-key", "", "Payme merchant key (for register)")
	testMode := flag.Bool("test", false, "register a sandbox account (for register)")

	flag.Parse()

	businessID, err := uuid.Parse(*business)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid -business: expected a uuid")
		os.Exit(1)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "payme-link",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"cmd":         *cmd,
		"business_id": businessID.String(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	accountRepo := accounts.NewRepository(dbClient.DB())

	switch *cmd {
	case "register":
		if *merchantID == "" || *merchantKey == "" {
			fmt.Fprintln(os.Stderr, "register needs -merchant-id and -merchant-key")
			os.Exit(1)
		}
		account := &models.PaymentAccount{
			BusinessID:  businessID,
			Provider:    enums.PaymentProviderPayme,
			Name:        *name,
			MerchantID:  *merchantID,
			MerchantKey: *merchantKey,
			IsActive:    true,
			IsTestMode:  *testMode,
		}
		if err := accountRepo.Create(ctx, account); err != nil {
			fmt.Fprintf(os.Stderr, "failed to register account: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("registered payme account:", account.ID)

	case "link":
		svc, err := billing.NewService(billing.ServiceParams{
			Repo:     billing.NewRepository(dbClient.DB()),
			Accounts: accountRepo,
			Linker:   payme.NewCheckoutLinker(cfg.Payme),
		})
		requireResource(ctx, logg, "billing service", err)

		result, err := svc.StartPayment(ctx, billing.StartPaymentParams{
			BusinessID: businessID,
			Amount:     *amount,
			ReturnURL:  *returnURL,
			Language:   *lang,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start payment: %v\n", err)
			os.Exit(1)
		}
		logg.Info(logg.WithField(ctx, "order_id", result.Order.OrderID), "payment link created")
		fmt.Println("order:", result.Order.OrderID)
		fmt.Println("url:  ", result.PaymentURL)

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
