package commands

import (
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/sigaudit/internal/adapter"
	"github.com/wonny/sigaudit/internal/audit"
	"github.com/wonny/sigaudit/internal/backtest"
	"github.com/wonny/sigaudit/internal/collector"
	"github.com/wonny/sigaudit/internal/contracts"
	"github.com/wonny/sigaudit/internal/execution"
	"github.com/wonny/sigaudit/internal/signal"
	"github.com/wonny/sigaudit/internal/signalconfig"
	"github.com/wonny/sigaudit/pkg/config"
	"github.com/wonny/sigaudit/pkg/database"
	"github.com/wonny/sigaudit/pkg/logger"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "감사 백테스트 실행",
	Long: `시그널 설정 문서를 불러와 캔들 시리즈 위에서 평가 엔진을 구동합니다.

모든 평가가 감사 트레일로 내보내집니다:
- 조건별 값/발동 여부/사유
- 합성 결과, strength, blocking condition
- 주문/체결 식별자 연결

Example:
  go run ./cmd/sigaudit backtest run --signals config/signals.yaml
  go run ./cmd/sigaudit backtest run --data candles.csv --code 005930`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		Long: `지정된 시그널 설정으로 백테스트를 실행합니다.

Flags:
  --signals     시그널 설정 YAML (필수)
  --data        캔들 CSV 파일 (생략 시 합성 시세)
  --code        종목 코드 (기본: 005930)
  --bars        합성 시세 바 수 (기본: 2000)
  --seed        합성 시세 시드 (기본: 42)
  --qty         진입 주문 수량 (기본: 10)
  --commission  수수료율 (기본: 0.0015 = 0.15%)
  --slippage    슬리피지율 (기본: 0.001 = 0.1%)
  --postgres    CSV 대신 Postgres 감사 sink 사용 (DATABASE_URL 필요)

Example:
  go run ./cmd/sigaudit backtest run --signals config/signals.yaml
  go run ./cmd/sigaudit backtest run --signals config/signals.yaml --bars 5000
  go run ./cmd/sigaudit backtest run --signals config/signals.yaml --postgres`,
		RunE: runBacktest,
	}

	// Flags
	backtestSignals    string
	backtestData       string
	backtestCode       string
	backtestBars       int
	backtestSeed       int64
	backtestQty        int64
	backtestCommission float64
	backtestSlippage   float64
	backtestPostgres   bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	// Flags
	backtestRunCmd.Flags().StringVar(&backtestSignals, "signals", "", "시그널 설정 YAML (필수)")
	backtestRunCmd.Flags().StringVar(&backtestData, "data", "", "캔들 CSV 파일 (생략 시 합성 시세)")
	backtestRunCmd.Flags().StringVar(&backtestCode, "code", "005930", "종목 코드")
	backtestRunCmd.Flags().IntVar(&backtestBars, "bars", 2000, "합성 시세 바 수")
	backtestRunCmd.Flags().Int64Var(&backtestSeed, "seed", 42, "합성 시세 시드")
	backtestRunCmd.Flags().Int64Var(&backtestQty, "qty", 10, "진입 주문 수량")
	backtestRunCmd.Flags().Float64Var(&backtestCommission, "commission", 0.0015, "수수료율")
	backtestRunCmd.Flags().Float64Var(&backtestSlippage, "slippage", 0.001, "슬리피지율")
	backtestRunCmd.Flags().BoolVar(&backtestPostgres, "postgres", false, "Postgres 감사 sink 사용")

	backtestRunCmd.MarkFlagRequired("signals")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Sigaudit Backtest ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	// 시그널 설정 로드/검증
	registry := signal.NewRegistry()
	doc, _, err := signalconfig.Load(backtestSignals, registry)
	if err != nil {
		return fmt.Errorf("load signal config: %w", err)
	}

	generators, err := signalconfig.Build(doc, registry)
	if err != nil {
		return fmt.Errorf("build signals: %w", err)
	}

	hash, err := signalconfig.Hash(doc)
	if err != nil {
		return fmt.Errorf("hash signal config: %w", err)
	}

	fmt.Printf("\n📋 Strategy: %s (v%s)\n", doc.Meta.StrategyID, doc.Meta.Version)
	fmt.Printf("🔑 Config hash: %s\n", hash[:12])
	fmt.Printf("📡 Signals: %d\n", len(generators))

	// 감사 sink 준비
	sink, sinkDesc, err := newSink(cfg, log)
	if err != nil {
		return err
	}
	fmt.Printf("🗃  Audit sink: %s\n", sinkDesc)

	col := collector.New(collector.Config{
		MaxBuffered:       cfg.Audit.FlushMaxRecords,
		MaxAge:            cfg.Audit.FlushMaxAge,
		NearMissThreshold: cfg.Audit.NearMissThreshold,
		MaxRetries:        cfg.Audit.ExportMaxRetries,
		RetryDelay:        cfg.Audit.ExportRetryDelay,
		FlushPerSec:       cfg.Audit.FlushPerSec,
	}, sink, log)

	broker := execution.NewSimBroker(backtestCommission, backtestSlippage, log)
	a := adapter.New(col, broker, log)
	engine := backtest.NewEngine(a, col, broker, log)

	for i, gen := range generators {
		role := contracts.SignalRole(doc.Signals[i].Role)
		if err := engine.AddSignal(gen, role); err != nil {
			return fmt.Errorf("register signal %q: %w", gen.Name(), err)
		}
	}

	// 캔들 시리즈 준비
	var candles []contracts.DataPoint
	if backtestData != "" {
		candles, err = backtest.LoadCandlesCSV(backtestData, backtestCode)
		if err != nil {
			return err
		}
		fmt.Printf("📈 Candles: %d bars from %s\n\n", len(candles), backtestData)
	} else {
		candles = backtest.SyntheticCandles(backtestCode, backtestBars, backtestSeed)
		fmt.Printf("📈 Candles: %d synthetic bars (seed %d)\n\n", len(candles), backtestSeed)
	}

	// Ctrl+C 중단 시에도 감사 기록은 내보낸다
	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("🚀 Starting backtest...")
	result, err := engine.Run(ctx, backtest.Config{
		Code: backtestCode,
		Qty:  backtestQty,
	}, candles)

	closeErr := col.Close(ctx)

	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close audit trail: %w", closeErr)
	}

	printBacktestResult(result)
	return nil
}

// newSink selects the audit sink implementation from flags and config
func newSink(cfg *config.Config, log *logger.Logger) (audit.Sink, string, error) {
	if backtestPostgres || cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			return nil, "", fmt.Errorf("connect to database: %w", err)
		}
		return audit.NewRepository(db.Pool), "postgres", nil
	}

	sink, err := audit.NewCSVSink(cfg.Audit.ExportDir)
	if err != nil {
		return nil, "", fmt.Errorf("open export dir: %w", err)
	}
	return sink, fmt.Sprintf("csv (%s)", cfg.Audit.ExportDir), nil
}

// newLogger builds the process logger, honoring --verbose
func newLogger(cfg *config.Config) *logger.Logger {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logger.New(logger.Options{
		Level:  level,
		Format: cfg.LogFormat,
		Env:    cfg.Env,
	})
}

func printBacktestResult(result *backtest.Result) {
	fmt.Println("\n✅ Backtest Completed")

	fmt.Println("\n📊 Summary")
	fmt.Printf("Bars:        %d\n", result.Bars)
	fmt.Printf("Evaluations: %d\n", result.Evaluations)
	fmt.Printf("Duration:    %.2f seconds\n", result.Duration.Seconds())

	fmt.Println("\n💹 Execution")
	fmt.Printf("Orders:     %d\n", result.Broker.TotalOrders)
	fmt.Printf("Fills:      %d\n", result.Broker.TotalFills)
	fmt.Printf("Commission: %.0f원\n", result.Broker.TotalCommission)

	if result.Statistics != nil {
		printStatistics(result.Statistics)
	}
}
