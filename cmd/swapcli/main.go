package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lnbridge/swap-gateway/internal/admission"
	"github.com/lnbridge/swap-gateway/internal/config"
	"github.com/lnbridge/swap-gateway/internal/executor"
	"github.com/lnbridge/swap-gateway/internal/ledger"
	"github.com/lnbridge/swap-gateway/internal/routes"
	"github.com/lnbridge/swap-gateway/internal/swap"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

// swapcli runs one swap end to end from the command line, including the
// refund path the HTTP surface leaves to the operator.
func main() {
	loadEnv()

	token := flag.String("token", "", "ledger token address (0x + 64 hex chars)")
	amount := flag.Uint64("amount", 0, "amount in satoshis")
	dest := flag.String("dest", "", "lightning destination (invoice, address or LNURL)")
	exactIn := flag.Bool("exact-in", false, "amount is the side being sent")
	refund := flag.Bool("refund-on-timeout", false, "reclaim the commitment if the counterparty never pays")
	flag.Parse()

	if *token == "" || *dest == "" || *amount == 0 {
		fmt.Println("missing -token, -dest or -amount")
		os.Exit(2)
	}
	if !admission.ValidTokenAddress(*token) {
		fmt.Println("invalid -token: expected 0x followed by 64 hex characters")
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid configuration:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	exec := executor.NewClient(cfg.ExecutorBaseURL, cfg.ExecutorAPIKey, cfg.RequestTimeout, logger)
	assets, err := exec.Assets(ctx)
	if err != nil {
		fmt.Println("failed to load asset catalog:", err)
		os.Exit(1)
	}

	account, err := ledger.NewAccount(ledger.AccountConfig{
		RPCURL:     cfg.LedgerRPCURL,
		Address:    cfg.LedgerAccount,
		PrivateKey: cfg.LedgerPrivateKey,
		Timeout:    cfg.RequestTimeout,
	}, logger)
	if err != nil {
		fmt.Println("failed to create ledger account:", err)
		os.Exit(1)
	}

	resolver := routes.NewResolver(routes.NewCatalog(assets), true)
	pair, fault := resolver.Resolve(*token, swap.DirectionLedgerToLightning)
	if fault != nil {
		fmt.Println("cannot resolve pair:", fault.Code)
		os.Exit(1)
	}

	orch := swap.NewOrchestrator(exec, account, swap.OrchestratorConfig{
		AwaitTimeout: cfg.AwaitTimeout,
		MaxFeePPM:    cfg.MaxPriceDeviationPPM,
	}, logger)

	session, fault := orch.Execute(ctx, *pair, swap.Intent{
		Amount:      *amount,
		Direction:   swap.DirectionLedgerToLightning,
		Source:      account.Address(),
		Destination: *dest,
		ExactIn:     *exactIn,
	})

	switch {
	case fault == nil:
		fmt.Printf("settled swap=%s in=%d out=%d hash=%s\n",
			session.ID, session.InputAmount, session.OutputAmount, session.PaymentHash)

	case session.State() == swap.StateRefundable && *refund:
		fmt.Printf("counterparty timed out, refunding swap=%s\n", session.ID)
		if err := orch.Refund(ctx, session); err != nil {
			fmt.Println("refund failed:", err)
			os.Exit(1)
		}
		fmt.Printf("refunded swap=%s state=%s\n", session.ID, session.State())

	case session.State() == swap.StateRefundable:
		fmt.Printf("counterparty timed out, swap=%s is refundable (rerun with -refund-on-timeout)\n", session.ID)
		os.Exit(1)

	default:
		fmt.Printf("swap failed: code=%s retryable=%v: %s\n", fault.Code, fault.Retryable, fault.Message)
		os.Exit(1)
	}
}
