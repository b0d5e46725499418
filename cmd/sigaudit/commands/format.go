package commands

import (
	"fmt"

	"github.com/wonny/sigaudit/internal/contracts"
)

// printStatistics renders a statistics snapshot as a per-signal table
func printStatistics(stats *contracts.StatisticsSnapshot) {
	fmt.Println("\n📊 Signal Statistics")
	fmt.Printf("Evaluations: %d (passed %d / failed %d / near-miss %d)\n",
		stats.TotalEvaluations, stats.TotalPassed, stats.TotalFailed, stats.TotalNearMisses)

	for _, sig := range stats.Signals {
		passRate := 0.0
		if sig.Evaluations > 0 {
			passRate = float64(sig.Passed) / float64(sig.Evaluations)
		}

		fmt.Printf("\n%s: %d evaluations, pass rate %.1f%%, near-misses %d\n",
			sig.Signal, sig.Evaluations, passRate*100, sig.NearMisses)

		for _, cond := range sig.Conditions {
			fmt.Printf("  %-20s trigger %5.1f%%  block %5.1f%%\n",
				cond.Name, cond.TriggerRate*100, cond.BlockRate*100)
		}
	}
}
