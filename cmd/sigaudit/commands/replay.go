package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/sigaudit/internal/audit"
	"github.com/wonny/sigaudit/internal/collector"
	"github.com/wonny/sigaudit/internal/contracts"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "감사 트레일 분석",
	Long: `내보낸 감사 트레일을 다시 읽어 분석합니다.

명령어:
  replay  export CSV에서 통계를 재계산`,
}

var (
	// replay 플래그
	replayFiles    []string
	replayNearMiss float64
)

var auditReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "export CSV에서 통계 재계산",
	Long: `내보낸 평가 CSV를 다시 읽어 run-level 통계를 재계산합니다.

export가 손실 없이 이루어졌다면 런 당시의 통계와 정확히 일치합니다.
여러 시그널 파일을 함께 넘기면 합산 통계를 출력합니다.

Example:
  go run ./cmd/sigaudit audit replay --file export/long_entry_evaluations.csv
  go run ./cmd/sigaudit audit replay \
    --file export/long_entry_evaluations.csv \
    --file export/long_exit_evaluations.csv`,
	RunE: runAuditReplay,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditReplayCmd)

	// replay 플래그
	auditReplayCmd.Flags().StringSliceVar(&replayFiles, "file", nil, "평가 CSV 파일 (반복 가능, 필수)")
	auditReplayCmd.Flags().Float64Var(&replayNearMiss, "near-miss", 0.75, "near-miss 판정 strength 하한")

	auditReplayCmd.MarkFlagRequired("file")
}

func runAuditReplay(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Sigaudit Replay ===")

	var trail []*contracts.Evaluation
	for _, path := range replayFiles {
		evals, err := audit.ReadEvaluations(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		fmt.Printf("📂 %s: %d evaluations\n", path, len(evals))
		trail = append(trail, evals...)
	}

	if len(trail) == 0 {
		return fmt.Errorf("no evaluations found in %d file(s)", len(replayFiles))
	}

	stats := collector.ComputeFromTrail(trail, replayNearMiss)
	printStatistics(stats)

	return nil
}
