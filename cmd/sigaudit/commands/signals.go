package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/sigaudit/internal/signal"
	"github.com/wonny/sigaudit/internal/signalconfig"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "시그널 설정 관리",
	Long: `시그널 설정 문서를 검증하고 조회합니다.

명령어:
  validate  설정 문서 검증
  types     사용 가능한 조건 타입 목록`,
}

var (
	// validate 플래그
	validateSignals string
)

var signalsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "설정 문서 검증",
	Long: `시그널 설정 YAML을 읽어 구조/파라미터를 검증합니다.

런 시작 전에 실패할 모든 설정 오류를 여기서 미리 잡을 수 있습니다:
- 알 수 없는 필드 (오타)
- 잘못된 logic/role/연산자
- 조건 0개, 이름 중복
- 조건 타입별 파라미터 타입 불일치

Example:
  go run ./cmd/sigaudit signals validate --signals config/signals.yaml`,
	RunE: runSignalsValidate,
}

var signalsTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "사용 가능한 조건 타입 목록",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, typ := range signal.NewRegistry().Types() {
			fmt.Println(typ)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.AddCommand(signalsValidateCmd)
	signalsCmd.AddCommand(signalsTypesCmd)

	// validate 플래그
	signalsValidateCmd.Flags().StringVar(&validateSignals, "signals", "", "시그널 설정 YAML (필수)")
	signalsValidateCmd.MarkFlagRequired("signals")
}

func runSignalsValidate(cmd *cobra.Command, args []string) error {
	registry := signal.NewRegistry()

	doc, _, err := signalconfig.Load(validateSignals, registry)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}

	// Build까지 통과해야 런타임에 쓸 수 있는 문서다
	generators, err := signalconfig.Build(doc, registry)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}

	hash, err := signalconfig.Hash(doc)
	if err != nil {
		return err
	}

	fmt.Println("✅ Valid signal configuration")
	fmt.Printf("Strategy: %s (v%s)\n", doc.Meta.StrategyID, doc.Meta.Version)
	fmt.Printf("Hash:     %s\n", hash)
	fmt.Println()

	for i, gen := range generators {
		sig := doc.Signals[i]
		fmt.Printf("%s (%s, %s)\n", gen.Name(), sig.Logic, sig.Role)
		for _, name := range gen.ConditionNames() {
			fmt.Printf("  - %s\n", name)
		}
	}

	return nil
}
