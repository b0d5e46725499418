package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sigaudit/internal/adapter"
	"github.com/wonny/sigaudit/internal/collector"
	"github.com/wonny/sigaudit/internal/contracts"
	"github.com/wonny/sigaudit/internal/execution"
	"github.com/wonny/sigaudit/internal/signal"
	"github.com/wonny/sigaudit/pkg/logger"
)

// Engine drives the evaluation engine over a candle series: it owns the
// indicator state, evaluates every registered composite signal once per
// bar through the adapter, and turns triggering entries/exits into
// simulated orders.
// ⭐ SSOT: 백테스트 호스트 루프는 여기서만
type Engine struct {
	adapter   *adapter.Adapter
	collector *collector.Collector
	broker    *execution.SimBroker
	logger    *logger.Logger

	entries []adapter.Handle
	exits   []adapter.Handle

	smaFast *SMA
	smaSlow *SMA
	rsi     *RSI

	qty       int64                          // 진입 주문 1건당 수량
	sideByOID map[string]contracts.OrderSide // 체결 시 포지션 부호 판별용
	position  int64                          // 현재 보유 수량 (체결 기준)
}

// Config holds backtest run parameters
type Config struct {
	Code     string
	Qty      int64 // 주문 1건당 수량
	LogEvery int   // progress 로그 간격 (bars)
}

// Result holds backtest run results
type Result struct {
	Bars        int
	Evaluations int64
	Duration    time.Duration

	Broker     execution.SimStats
	Statistics *contracts.StatisticsSnapshot
}

// NewEngine creates a backtest engine around an already-wired adapter
func NewEngine(
	a *adapter.Adapter,
	col *collector.Collector,
	broker *execution.SimBroker,
	log *logger.Logger,
) *Engine {
	e := &Engine{
		adapter:   a,
		collector: col,
		broker:    broker,
		logger:    log,
		smaFast:   NewSMA(10),
		smaSlow:   NewSMA(30),
		rsi:       NewRSI(14),
		sideByOID: make(map[string]contracts.OrderSide),
	}

	// 포지션은 주문 접수가 아니라 체결 시점에 갱신된다
	broker.OnFill(func(fill contracts.Fill) {
		if e.sideByOID[fill.OrderID] == contracts.OrderSideSell {
			e.position -= fill.Qty
		} else {
			e.position += fill.Qty
		}
		delete(e.sideByOID, fill.OrderID)
	})

	return e
}

// AddSignal registers a composite signal and routes it by role
func (e *Engine) AddSignal(gen *signal.Generator, role contracts.SignalRole) error {
	h := e.adapter.RegisterGenerator(gen)
	switch role {
	case contracts.RoleEntry:
		e.entries = append(e.entries, h)
	case contracts.RoleExit:
		e.exits = append(e.exits, h)
	default:
		return fmt.Errorf("unknown signal role %q", role)
	}
	return nil
}

// Run executes the backtest over the given candles. Cancellation stops
// the loop at the next bar boundary; buffered evaluations are exported
// best-effort before returning.
func (e *Engine) Run(ctx context.Context, cfg Config, candles []contracts.DataPoint) (*Result, error) {
	if len(e.entries)+len(e.exits) == 0 {
		return nil, fmt.Errorf("no signals registered")
	}
	if cfg.Qty <= 0 {
		cfg.Qty = 1
	}
	e.qty = cfg.Qty
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 500
	}

	e.logger.WithFields(map[string]interface{}{
		"code":    cfg.Code,
		"bars":    len(candles),
		"entries": len(e.entries),
		"exits":   len(e.exits),
	}).Info("Starting backtest")

	startTime := time.Now()
	result := &Result{Bars: len(candles)}

	for i := range candles {
		if err := ctx.Err(); err != nil {
			// 중단 시에도 지금까지의 감사 기록은 남긴다
			if exportErr := e.collector.ExportAll(context.Background()); exportErr != nil {
				e.logger.WithError(exportErr).Error("Export on interruption failed")
			}
			return result, err
		}

		dp := &candles[i]

		// 이전 스텝에 접수된 주문을 이번 바 종가로 체결
		e.broker.Step(dp)

		e.smaFast.Update(dp.Close)
		e.smaSlow.Update(dp.Close)
		e.rsi.Update(dp.Close)
		ind := e.indicatorView()

		if err := e.step(ctx, dp, ind, result); err != nil {
			return result, err
		}

		if (i+1)%cfg.LogEvery == 0 {
			e.logger.WithFields(map[string]interface{}{
				"bar":      i + 1,
				"buffered": e.collector.Buffered(),
				"position": e.position,
			}).Debug("Backtest progress")
		}
	}

	if err := e.collector.ExportAll(ctx); err != nil {
		return result, fmt.Errorf("final export: %w", err)
	}

	result.Duration = time.Since(startTime)
	result.Broker = e.broker.Stats()
	result.Statistics = e.collector.Statistics()
	result.Evaluations = result.Statistics.TotalEvaluations

	e.logger.WithFields(map[string]interface{}{
		"duration_ms": result.Duration.Milliseconds(),
		"evaluations": result.Evaluations,
		"passed":      result.Statistics.TotalPassed,
		"near_misses": result.Statistics.TotalNearMisses,
		"orders":      result.Broker.TotalOrders,
		"fills":       result.Broker.TotalFills,
	}).Info("Backtest completed")

	return result, nil
}

// step evaluates every signal for one bar and submits resulting orders
func (e *Engine) step(ctx context.Context, dp *contracts.DataPoint, ind contracts.IndicatorView, result *Result) error {
	for _, h := range e.entries {
		eval, err := e.adapter.EvaluateSignal(ctx, h, dp, ind, contracts.RoleEntry)
		if err != nil {
			return fmt.Errorf("bar %d entry evaluation: %w", dp.Seq, err)
		}

		if eval.FinalResult && e.position == 0 {
			if err := e.submit(ctx, dp, contracts.OrderSideBuy, e.qty); err != nil {
				return err
			}
		}
	}

	for _, h := range e.exits {
		eval, err := e.adapter.EvaluateSignal(ctx, h, dp, ind, contracts.RoleExit)
		if err != nil {
			return fmt.Errorf("bar %d exit evaluation: %w", dp.Seq, err)
		}

		if eval.FinalResult && e.position > 0 {
			if err := e.submit(ctx, dp, contracts.OrderSideSell, -e.position); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Engine) submit(ctx context.Context, dp *contracts.DataPoint, side contracts.OrderSide, qty int64) error {
	order := &contracts.Order{
		Code:      dp.Code,
		Side:      side,
		Qty:       abs64(qty),
		CreatedAt: dp.Time,
	}

	result, err := e.adapter.SubmitOrder(ctx, order)
	if err != nil {
		return fmt.Errorf("submit %s order at bar %d: %w", side, dp.Seq, err)
	}
	e.sideByOID[result.OrderID] = side

	e.logger.WithFields(map[string]interface{}{
		"order_id": result.OrderID,
		"side":     side,
		"qty":      order.Qty,
		"bar":      dp.Seq,
	}).Debug("Order submitted")

	return nil
}

// indicatorView snapshots the current indicator values. 워밍업이 끝나지
// 않은 지표는 맵에서 빠지고, 해당 조건은 insufficient data로 평가된다.
func (e *Engine) indicatorView() contracts.IndicatorView {
	m := contracts.IndicatorMap{}
	if v, ok := e.smaFast.Value(); ok {
		m["sma_fast"] = v
	}
	if v, ok := e.smaSlow.Value(); ok {
		m["sma_slow"] = v
	}
	if v, ok := e.rsi.Value(); ok {
		m["rsi14"] = v
	}
	return m
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
