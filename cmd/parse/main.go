// Command parse classifies a file of alerts offline and prints the signals
// each would produce. Useful for vetting the deny-list and new alert formats
// without touching the venue.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"alerttrader/internal/alert"
	"alerttrader/internal/config"
	"alerttrader/internal/observ"
	"alerttrader/internal/signal"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	alertsPath := flag.String("alerts", "", "path to a JSON array of alerts")
	flag.Parse()

	if err := run(*configPath, *alertsPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath, alertsPath string) error {
	if alertsPath == "" {
		return fmt.Errorf("-alerts is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observ.Init("error", "console")

	b, err := os.ReadFile(alertsPath)
	if err != nil {
		return err
	}
	var alerts []alert.Alert
	if err := json.Unmarshal(b, &alerts); err != nil {
		return fmt.Errorf("parse alerts file: %w", err)
	}

	registry := signal.Registry{}
	for sym, inst := range cfg.Instruments {
		registry[sym] = signal.Instrument{
			StoplossPoints: inst.StoplossPoints,
			ReferencePrice: inst.ReferencePrice,
		}
	}
	classifier := signal.NewClassifier(registry, cfg.TieBreak, cfg.DenyList, nil)

	ctx := context.Background()
	for _, a := range alerts {
		fmt.Printf("%s  %s\n", a.ID, signal.Normalize(a.Text))
		sigs, err := classifier.Classify(ctx, a)
		if err != nil {
			fmt.Printf("    error: %v\n", err)
		}
		if len(sigs) == 0 && err == nil {
			fmt.Println("    (no signals)")
		}
		for _, s := range sigs {
			fmt.Printf("    %s\n", s)
		}
	}
	return nil
}
