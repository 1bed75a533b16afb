package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"Crypset/internal/cli"
	"Crypset/internal/config"
	"Crypset/internal/kv"
	"Crypset/internal/market"
	"Crypset/internal/notifier"
	"Crypset/internal/recorder"
	"Crypset/internal/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	configFlag := flag.String("config", cfgPath, "path to the YAML config file")
	verbose := flag.Bool("v", false, "log to stderr")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	var store *kv.Store
	var history recorder.Recorder
	app := cli.NewApp(func(a *cli.App) error {
		cfg, err := config.Load(*configFlag)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
		store, err = kv.OpenOrMemory(cfg.Storage.Backend, cfg.StoragePath(), cfg.Quota())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: storage unavailable, changes will not be saved: %v\n", err)
		}
		gw := market.NewCoinGecko(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Proxy, cfg.Gateway.Timeout)
		a.Store = store
		a.Session = session.Open(store)
		a.Market = market.NewService(gw, store, cfg.Gateway.Currency)
		a.Currency = cfg.Gateway.Currency
		if rec, err := recorder.NewSQLiteRecorder(cfg.Storage.HistoryPath); err == nil {
			history = rec
			a.History = rec
		} else {
			log.Printf("[WARN] history unavailable: %v", err)
		}
		if cfg.TelegramEnabled() {
			tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
			a.Session.OnPersistError = func(err error) {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := tn.Send(ctx, notifier.FormatStorageAlert(err)); err != nil {
					log.Printf("[WARN] storage alert not delivered: %v", err)
				}
			}
		}
		return nil
	})
	cli.Register(commander, app)

	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	if history != nil {
		history.Close()
	}
	if store != nil {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing storage: %v\n", err)
		}
	}
	os.Exit(int(status))
}
