// Command trader runs the alert-to-order pipeline against one configured
// account profile: poll the alert feed, classify, translate, trade.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"alerttrader/internal/alert"
	"alerttrader/internal/broker"
	"alerttrader/internal/config"
	"alerttrader/internal/notify"
	"alerttrader/internal/observ"
	"alerttrader/internal/outbox"
	"alerttrader/internal/signal"
	"alerttrader/internal/translate"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	profileName := flag.String("profile", "sim", "account profile to trade")
	flag.Parse()

	// Credentials come from the environment; .env is a convenience for dev.
	_ = godotenv.Load()

	if err := run(*configPath, *profileName); err != nil {
		observ.Error("trader_exit", err, nil)
		os.Exit(1)
	}
}

func run(configPath, profileName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observ.Init(cfg.Logging.Level, cfg.Logging.Format)

	profile, ok := cfg.Profiles[profileName]
	if !ok {
		return fmt.Errorf("unknown profile %q", profileName)
	}
	env, ok := cfg.Environments[profile.Environment]
	if !ok {
		return fmt.Errorf("profile %q references unknown environment %q", profileName, profile.Environment)
	}
	if secret := os.Getenv("VENUE_APP_SECRET"); secret != "" {
		env.AppSecret = secret
	}
	creds := broker.Credentials{
		Username: os.Getenv("VENUE_USERNAME"),
		Password: os.Getenv("VENUE_PASSWORD"),
	}
	if creds.Username == "" || creds.Password == "" {
		return errors.New("VENUE_USERNAME and VENUE_PASSWORD must be set")
	}

	var notifier signal.Notifier = notify.Nop{}
	if cfg.Notify.Enabled {
		if key := os.Getenv("PROWL_API_KEY"); key != "" {
			cfg.Notify.APIKey = key
		}
		notifier = notify.NewProwl(cfg.Notify)
	}

	registry := signal.Registry{}
	for sym, inst := range cfg.Instruments {
		registry[sym] = signal.Instrument{
			StoplossPoints: inst.StoplossPoints,
			ReferencePrice: inst.ReferencePrice,
		}
	}
	classifier := signal.NewClassifier(registry, cfg.TieBreak, cfg.DenyList, notifier)

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := broker.NewSession(env, creds, profile.SessionFile)
	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("connect session: %w", err)
	}
	client := broker.NewClient(env.APIBaseURL, profile.AccountKey, session, broker.DefaultRetryPolicy())

	translator := translate.New(client, translate.Config{
		TradeSize:       profile.TradeSize,
		OrderPreference: profile.OrderPreference,
		Instruments:     cfg.Instruments,
		CloseMaxAge:     time.Duration(cfg.Trading.CloseMaxAgeMinutes) * time.Minute,
		ProfitOnlyFlat:  profile.ProfitOnlyFlat,
	})

	ob, err := outbox.New(cfg.OutboxPath)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}

	executor := translate.NewExecutor(classifier, translator, ob, translate.ExecutorConfig{
		MaxAlertAge:    time.Duration(cfg.Trading.MaxAlertAgeMinutes) * time.Minute,
		PostOrderPause: time.Duration(cfg.Trading.PostOrderPauseSec) * time.Second,
		PostAlertPause: time.Duration(cfg.Trading.PostAlertPauseSec) * time.Second,
		ErrorPause:     time.Minute,
	})

	feed, err := alert.NewHTTPFeed(alert.FeedConfig{
		BaseURL:      cfg.Feed.BaseURL,
		PollInterval: time.Duration(cfg.Feed.PollIntervalMs) * time.Millisecond,
		Timeout:      time.Duration(cfg.Feed.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("create feed: %w", err)
	}
	defer feed.Close()

	observ.Log("trader_started", map[string]any{
		"profile":     profileName,
		"environment": profile.Environment,
		"symbols":     len(cfg.Instruments),
	})

	ch, err := feed.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch feed: %w", err)
	}
	err = executor.Run(ctx, ch)
	if errors.Is(err, context.Canceled) {
		observ.Log("trader_stopped", nil)
		return nil
	}
	if err != nil && broker.IsFatal(err) {
		// Halted: an operator has to re-authenticate or inspect the venue.
		if nerr := notifier.Send(context.Background(), "trading halted: "+err.Error(), 2); nerr != nil {
			observ.Error("notify_failed", nerr, nil)
		}
	}
	return err
}
