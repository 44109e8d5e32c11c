// cmd/tools/chat-sim/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"barbearia-twowell/internal/calendar"
	"barbearia-twowell/internal/common/config"
	"barbearia-twowell/internal/common/logger"
	"barbearia-twowell/internal/datetime"
	"barbearia-twowell/internal/models"
	"barbearia-twowell/internal/router"
	"barbearia-twowell/internal/session"
	"barbearia-twowell/internal/transport"
	"barbearia-twowell/internal/transport/console"
)

func main() {
	name := flag.String("name", "João Silva", "contact display name (empty uses the fallback)")
	phone := flag.String("phone", "5511999999999", "simulated customer phone")
	typing := flag.Duration("typing", transport.DefaultTypingDelay, "pause between typing indicator and reply")
	google := flag.Bool("google", false, "book on Google Calendar using the calendar section of the config")
	configPath := flag.String("config", "", "config file for -google (default: configs/config.yaml lookup)")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	log := logger.NewStructured(*logLevel, "console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var gateway calendar.Gateway
	local := calendar.NewLocalGateway("")
	gateway = local
	if *google {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		g, err := calendar.NewGoogleGateway(ctx, cfg.Calendar, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "calendar: %v\n", err)
			os.Exit(1)
		}
		gateway = g
	}

	parser, err := datetime.NewParser()
	if err != nil {
		fmt.Fprintf(os.Stderr, "timezone: %v\n", err)
		os.Exit(1)
	}

	out := console.New(os.Stdout, *name)
	bot := router.New(router.Config{}, parser, session.NewMemoryStore(0), gateway,
		transport.NewReplier(out, *typing, log), log)

	fmt.Println("Barbearia TwoWell chat simulator. Type a message (Ctrl+D to quit).")
	sender := models.DirectSenderID(*phone)
	err = console.ReadMessages(ctx, os.Stdin, sender, func(msg models.InboundMessage) error {
		bot.Handle(ctx, msg)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "input: %v\n", err)
		os.Exit(1)
	}

	if !*google {
		for _, b := range local.Bookings() {
			fmt.Printf("booked: %s -> %s\n", b.Start.Format(time.RFC3339), b.End.Format(time.RFC3339))
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
