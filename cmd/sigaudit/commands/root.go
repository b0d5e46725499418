package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sigaudit",
	Short: "Sigaudit - 복합 시그널 평가 및 감사 엔진",
	Long: `Sigaudit Unified CLI

트레이딩 시뮬레이션의 모든 시그널 평가를 기록하고 감사합니다.
조건별 값/발동 여부, 합성 결과, 주문/체결 연결까지 빠짐없이 남깁니다.

Usage:
  go run ./cmd/sigaudit [command]

Examples:
  go run ./cmd/sigaudit backtest run --signals config/signals.yaml
  go run ./cmd/sigaudit signals validate --signals config/signals.yaml
  go run ./cmd/sigaudit audit replay --file export/long_entry_evaluations.csv`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
