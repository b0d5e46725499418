// Package adapter is the integration seam composed into a host strategy.
// It hands out composite signal handles, routes every evaluation into the
// collector, and transparently wraps order submission so resulting orders
// and fills are linked back to the evaluation that caused them.
//
// 명시적 위임 구조: 호스트 전략이 상속 대신 이 객체를 합성해 쓴다.
package adapter

import (
	"context"
	"fmt"

	"github.com/wonny/sigaudit/internal/collector"
	"github.com/wonny/sigaudit/internal/contracts"
	"github.com/wonny/sigaudit/internal/execution"
	"github.com/wonny/sigaudit/internal/signal"
	"github.com/wonny/sigaudit/pkg/logger"
)

// Handle identifies a composite signal registered with the adapter
type Handle int

// Adapter wires composite generators, the collector and the broker
// ⭐ SSOT: 전략 ↔ 평가 엔진 ↔ 실행 연동은 여기서만
type Adapter struct {
	collector *collector.Collector
	broker    execution.Broker
	logger    *logger.Logger

	generators []*signal.Generator

	// 직전 평가. 바로 뒤따르는 주문 제출을 이 평가에 연결한다
	lastEval *contracts.Evaluation
}

// New creates an adapter and subscribes to the broker's fill notifications
func New(col *collector.Collector, broker execution.Broker, log *logger.Logger) *Adapter {
	a := &Adapter{
		collector: col,
		broker:    broker,
		logger:    log,
	}

	if broker != nil {
		broker.OnFill(a.handleFill)
	}

	return a
}

// CreateCompositeSignal builds a composite generator and returns its handle.
// 조건 0개 등 설정 오류는 여기서, 런 시작 전에 실패한다.
func (a *Adapter) CreateCompositeSignal(name string, logic signal.Logic, conditions []signal.Condition) (Handle, error) {
	gen, err := signal.NewGenerator(name, logic, conditions)
	if err != nil {
		return -1, err
	}
	return a.RegisterGenerator(gen), nil
}

// RegisterGenerator adds a pre-built generator (설정 문서에서 생성된 경우)
func (a *Adapter) RegisterGenerator(gen *signal.Generator) Handle {
	a.generators = append(a.generators, gen)
	return Handle(len(a.generators) - 1)
}

// Generator returns the generator behind a handle
func (a *Adapter) Generator(h Handle) (*signal.Generator, error) {
	if h < 0 || int(h) >= len(a.generators) {
		return nil, fmt.Errorf("invalid signal handle %d", h)
	}
	return a.generators[h], nil
}

// EvaluateSignal evaluates one composite signal for the current data point
// and appends the record to the collector, which owns it from then on.
func (a *Adapter) EvaluateSignal(ctx context.Context, h Handle, dp *contracts.DataPoint, ind contracts.IndicatorView, role contracts.SignalRole) (*contracts.Evaluation, error) {
	gen, err := a.Generator(h)
	if err != nil {
		return nil, err
	}

	eval, err := gen.Evaluate(dp, ind, role)
	if err != nil {
		// 평가자 결함은 런 전체를 중단시킨다 (삼키지 않음)
		return nil, err
	}

	if err := a.collector.Append(ctx, eval); err != nil {
		return nil, fmt.Errorf("append evaluation: %w", err)
	}

	a.lastEval = eval
	return eval, nil
}

// SubmitOrder delegates to the broker and records the returned order id
// onto the evaluation that immediately preceded the submission. 평가가
// triggering이 아니었다면 연결 없이 그대로 위임한다.
func (a *Adapter) SubmitOrder(ctx context.Context, order *contracts.Order) (*contracts.OrderResult, error) {
	result, err := a.broker.SubmitOrder(ctx, order)
	if err != nil {
		return result, err
	}

	if !result.Accepted {
		return result, nil
	}

	if a.lastEval == nil || !a.lastEval.FinalResult {
		a.logger.WithField("order_id", result.OrderID).
			Debug("Order submitted without a triggering evaluation, no correlation")
		return result, nil
	}

	if err := a.collector.CorrelateOrder(ctx, a.lastEval.Seq, result.OrderID); err != nil {
		return result, fmt.Errorf("correlate order %s: %w", result.OrderID, err)
	}

	// 평가 하나에 주문 하나. 같은 평가로 두 번 연결하지 않는다
	a.lastEval = nil

	return result, nil
}

// handleFill correlates a fill's trade id to the originating evaluation
func (a *Adapter) handleFill(fill contracts.Fill) {
	if err := a.collector.CorrelateTrade(context.Background(), fill.OrderID, fill.TradeID); err != nil {
		a.logger.WithFields(map[string]interface{}{
			"order_id": fill.OrderID,
			"trade_id": fill.TradeID,
			"error":    err.Error(),
		}).Warn("Trade correlation failed")
	}
}
