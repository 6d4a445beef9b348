// Command close_all closes every open position and cancels every pending
// order carrying the bot's magic number. Requires -confirm; this is the
// emergency flatten switch.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/sirupsen/logrus"

	"github.com/hamidju/teletrader/internal/broker"
	"github.com/hamidju/teletrader/internal/config"
	"github.com/hamidju/teletrader/internal/orders"
)

func main() {
	var (
		configPath string
		confirm    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to settings file (default: by ENV)")
	flag.BoolVar(&confirm, "confirm", false, "Actually close everything")
	flag.Parse()

	if !confirm {
		fmt.Println("Refusing to run without -confirm. This closes every bot-opened ticket.")
		return
	}

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

	manager := orders.NewManager(gateway, logrus.StandardLogger())

	positions, err := gateway.Positions()
	if err != nil {
		log.Fatalf("Listing positions failed: %v", err)
	}
	for _, p := range positions {
		if p.Magic != broker.Magic {
			continue
		}
		if err := manager.Close(p.Ticket, 0); err != nil {
			log.Printf("close %d: %v", p.Ticket, err)
			continue
		}
		fmt.Printf("closed position %d (%s)\n", p.Ticket, p.Symbol)
	}

	pendings, err := gateway.PendingOrders()
	if err != nil {
		log.Fatalf("Listing pending orders failed: %v", err)
	}
	for _, o := range pendings {
		if o.Magic != broker.Magic {
			continue
		}
		if err := manager.CancelPending(o.Ticket); err != nil {
			log.Printf("cancel %d: %v", o.Ticket, err)
			continue
		}
		fmt.Printf("cancelled pending %d (%s)\n", o.Ticket, o.Symbol)
	}
}
