package infra

import (
	"fmt"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset = "\033[0m"
	ColorRed   = "\033[31m"
	ColorCyan  = "\033[36m"
)

// PrintBanner displays the startup banner with mode-specific warnings
func PrintBanner(cfg *Config) {
	mode := strings.ToUpper(cfg.Trading.Mode)
	bidFee, askFee := cfg.Fees()

	color, modeDesc := ColorCyan, "HEDGES LOGGED ONLY"
	if mode == "REAL" {
		color, modeDesc = ColorRed, "REAL MONEY HEDGING"
	}

	line := func(format string, args ...any) {
		fmt.Printf("%s"+format+"%s\n", append(append([]any{color}, args...), ColorReset)...)
	}

	fmt.Println()
	line("###########################################################")
	line("#             BlinkTrade <-> Bitstamp arbitrator          #")
	line("#                                                         #")
	line("#   MODE:    %-44s #", mode+" ("+modeDesc+")")
	line("#   SYMBOL:  %-44s #", cfg.Trading.Symbol)
	line("#   FEES:    %-44s #", "bid "+bidFee.String()+" / ask "+askFee.String())
	line("#   VERSION: %-44s #", cfg.App.Version)
	if mode == "REAL" {
		line("#   ⚠️  WARNING: FILLS ARE HEDGED WITH REAL MONEY  ⚠️     #")
	}
	line("###########################################################")
	fmt.Println()
}
