// Command integration is a manual probe against a running terminal
// gateway: it logs in, enumerates symbols, and prints a gold tick. Useful
// when bringing up a new account before pointing the bot at it.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hamidju/teletrader/internal/broker"
	"github.com/hamidju/teletrader/internal/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to settings file (default: by ENV)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gateway := broker.NewGatewayClient(cfg.MetaTrader.Gateway, broker.Credentials{
		Server:   cfg.MetaTrader.Server,
		Username: cfg.MetaTrader.Username,
		Password: cfg.MetaTrader.Password,
		Path:     cfg.MetaTrader.Path,
	})

	if err := gateway.Login(); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	fmt.Println("login: ok")

	account, err := gateway.AccountInfo()
	if err != nil {
		log.Fatalf("Account read failed: %v", err)
	}
	fmt.Printf("account: %d balance=%.2f equity=%.2f\n", account.Login, account.Balance, account.Equity)

	symbols, err := gateway.Symbols()
	if err != nil {
		log.Fatalf("Symbol enumeration failed: %v", err)
	}
	fmt.Printf("symbols: %d\n", len(symbols))

	tick, err := gateway.Tick("XAUUSD")
	if err != nil {
		fmt.Printf("gold tick unavailable: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("XAUUSD bid=%.2f ask=%.2f at %s\n", tick.Bid, tick.Ask, tick.Time)
}
