package signal

import (
	"fmt"

	"github.com/wonny/sigaudit/internal/contracts"
)

// ThresholdCondition compares a single source value against a threshold
// ⭐ SSOT: 임계값 비교 조건은 여기서만
type ThresholdCondition struct {
	name      string
	source    string // 지표명 또는 가격 필드명
	op        Op
	threshold float64
}

// NewThresholdCondition creates a threshold comparison condition
func NewThresholdCondition(name, source string, op Op, threshold float64) *ThresholdCondition {
	return &ThresholdCondition{name: name, source: source, op: op, threshold: threshold}
}

// Name implements Condition
func (c *ThresholdCondition) Name() string { return c.name }

// Evaluate implements Condition
func (c *ThresholdCondition) Evaluate(dp *contracts.DataPoint, ind contracts.IndicatorView) (contracts.ConditionState, error) {
	v, ok := resolve(c.source, dp, ind)
	if !ok {
		return insufficient(c.name, c.source), nil
	}

	triggered := c.op.Compare(v, c.threshold)
	state := contracts.ConditionState{
		Name:      c.name,
		Value:     &v,
		Triggered: triggered,
	}
	if !triggered {
		state.Reason = fmt.Sprintf("%s=%.6g not %s %.6g", c.source, v, c.op, c.threshold)
	}

	return state, nil
}

// SpreadCondition compares the difference of two sources against a threshold.
// 예: (ma_fast - ma_slow) > 0 → 골든크로스 상태
type SpreadCondition struct {
	name      string
	left      string
	right     string
	op        Op
	threshold float64
}

// NewSpreadCondition creates a two-source spread condition
func NewSpreadCondition(name, left, right string, op Op, threshold float64) *SpreadCondition {
	return &SpreadCondition{name: name, left: left, right: right, op: op, threshold: threshold}
}

// Name implements Condition
func (c *SpreadCondition) Name() string { return c.name }

// Evaluate implements Condition
func (c *SpreadCondition) Evaluate(dp *contracts.DataPoint, ind contracts.IndicatorView) (contracts.ConditionState, error) {
	lv, ok := resolve(c.left, dp, ind)
	if !ok {
		return insufficient(c.name, c.left), nil
	}
	rv, ok := resolve(c.right, dp, ind)
	if !ok {
		return insufficient(c.name, c.right), nil
	}

	spread := lv - rv
	triggered := c.op.Compare(spread, c.threshold)
	state := contracts.ConditionState{
		Name:      c.name,
		Value:     &spread,
		Triggered: triggered,
	}
	if !triggered {
		state.Reason = fmt.Sprintf("%s-%s=%.6g not %s %.6g", c.left, c.right, spread, c.op, c.threshold)
	}

	return state, nil
}

// RangeCondition passes while a source value stays inside [min, max]
type RangeCondition struct {
	name   string
	source string
	min    float64
	max    float64
}

// NewRangeCondition creates a bounded range condition. min > max는
// 생성 시점에 거부된다 (설정 오류).
func NewRangeCondition(name, source string, min, max float64) (*RangeCondition, error) {
	if min > max {
		return nil, fmt.Errorf("range condition %q: min=%.6g > max=%.6g", name, min, max)
	}
	return &RangeCondition{name: name, source: source, min: min, max: max}, nil
}

// Name implements Condition
func (c *RangeCondition) Name() string { return c.name }

// Evaluate implements Condition
func (c *RangeCondition) Evaluate(dp *contracts.DataPoint, ind contracts.IndicatorView) (contracts.ConditionState, error) {
	v, ok := resolve(c.source, dp, ind)
	if !ok {
		return insufficient(c.name, c.source), nil
	}

	triggered := v >= c.min && v <= c.max
	state := contracts.ConditionState{
		Name:      c.name,
		Value:     &v,
		Triggered: triggered,
	}
	if !triggered {
		state.Reason = fmt.Sprintf("%s=%.6g outside [%.6g, %.6g]", c.source, v, c.min, c.max)
	}

	return state, nil
}

// CrossCondition passes while source A is above (or below) source B.
// 레벨 관계 판정이다: 교차가 일어난 그 바가 아니라, A가 B 위(아래)에
// 머무는 동안 매 스텝 true다. 무상태 조건이라 이전 바를 기억하지 않는다.
type CrossCondition struct {
	name  string
	left  string
	right string
	above bool
}

// NewCrossCondition creates an above/below relation condition
func NewCrossCondition(name, left, right string, above bool) *CrossCondition {
	return &CrossCondition{name: name, left: left, right: right, above: above}
}

// Name implements Condition
func (c *CrossCondition) Name() string { return c.name }

// Evaluate implements Condition
func (c *CrossCondition) Evaluate(dp *contracts.DataPoint, ind contracts.IndicatorView) (contracts.ConditionState, error) {
	lv, ok := resolve(c.left, dp, ind)
	if !ok {
		return insufficient(c.name, c.left), nil
	}
	rv, ok := resolve(c.right, dp, ind)
	if !ok {
		return insufficient(c.name, c.right), nil
	}

	diff := lv - rv
	triggered := diff > 0
	rel := "above"
	if !c.above {
		triggered = diff < 0
		rel = "below"
	}

	state := contracts.ConditionState{
		Name:      c.name,
		Value:     &diff,
		Triggered: triggered,
	}
	if !triggered {
		state.Reason = fmt.Sprintf("%s=%.6g not %s %s=%.6g", c.left, lv, rel, c.right, rv)
	}

	return state, nil
}
