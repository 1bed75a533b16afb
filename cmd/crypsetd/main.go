package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"Crypset/internal/config"
	"Crypset/internal/kv"
	"Crypset/internal/market"
	"Crypset/internal/notifier"
	"Crypset/internal/recorder"
	"Crypset/internal/scheduler"
	"Crypset/internal/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] crypsetd starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	if err := cfg.ValidateSchedule(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init storage
	store, err := kv.OpenOrMemory(cfg.Storage.Backend, cfg.StoragePath(), cfg.Quota())
	if err != nil {
		log.Println("[WARN] running on memory storage, changes are lost on exit")
	}
	defer store.Close()

	// Init market data
	gw := market.NewCoinGecko(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Proxy, cfg.Gateway.Timeout)
	svc := market.NewService(gw, store, cfg.Gateway.Currency)
	log.Printf("[INFO] data source: %s", gw.Name())

	sess := session.Open(store)

	// Init history recorder
	var rec recorder.Recorder
	sqliteRec, err := recorder.NewSQLiteRecorder(cfg.Storage.HistoryPath)
	if err != nil {
		log.Printf("[WARN] init sqlite recorder failed, history disabled: %v", err)
		rec = recorder.NewNoopRecorder()
	} else {
		rec = sqliteRec
		log.Printf("[INFO] history: %s", cfg.Storage.HistoryPath)
	}
	defer rec.Close()

	// Init notifier
	var n notifier.Notifier = notifier.LogNotifier{}
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = tn
	} else {
		log.Println("[WARN] telegram not configured, notifications go to the log")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, svc, sess, n, rec, cfg.Gateway.Currency)
	sess.OnPersistError = sched.PersistAlert
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.ReportCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, refreshing market data now")
		go sched.RunRefreshNow()
	}

	log.Println("[INFO] crypsetd is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] crypsetd stopped")
}
