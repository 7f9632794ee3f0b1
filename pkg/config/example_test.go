package config_test

import (
	"fmt"

	"github.com/wonny/eln-backtest/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	// Access configuration values
	fmt.Printf("Price source: %s (%s)\n", cfg.PriceSource, cfg.PriceDir)
	fmt.Printf("Default terms: KO %g / Strike %g / KI %g / %g months\n",
		cfg.Backtest.KnockOutPct, cfg.Backtest.StrikePct, cfg.Backtest.KnockInPct, cfg.Backtest.HorizonMonths)
	fmt.Printf("Workers: %d\n", cfg.Backtest.Workers)
}
