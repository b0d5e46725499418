package signal

import (
	"fmt"

	"github.com/wonny/sigaudit/internal/contracts"
)

// Condition is a single named, independently evaluable trading rule.
// ⭐ SSOT: 조건 평가 인터페이스는 여기서만 정의
//
// Evaluate must be side-effect-free: it may read the data point and the
// host-owned indicator view but never mutates shared state. A condition
// that cannot be computed yet (지표 히스토리 부족 등) returns a state with
// Triggered=false, Value=nil and an "insufficient data" reason together
// with a nil error. That is a normal outcome. A non-nil error means the
// evaluator itself malfunctioned and aborts the whole run.
type Condition interface {
	Name() string
	Evaluate(dp *contracts.DataPoint, ind contracts.IndicatorView) (contracts.ConditionState, error)
}

// Op is a numeric comparison operator configured at construction time
type Op string

const (
	OpLT Op = "<"
	OpGT Op = ">"
	OpLE Op = "<="
	OpGE Op = ">="
	OpEQ Op = "=="
)

// eqEpsilon: ==는 부동소수 비교이므로 절대 오차 허용
const eqEpsilon = 1e-9

// Compare applies the operator to value and threshold
func (op Op) Compare(value, threshold float64) bool {
	switch op {
	case OpLT:
		return value < threshold
	case OpGT:
		return value > threshold
	case OpLE:
		return value <= threshold
	case OpGE:
		return value >= threshold
	case OpEQ:
		return value-threshold < eqEpsilon && threshold-value < eqEpsilon
	default:
		return false
	}
}

// ParseOp validates an operator string from configuration
func ParseOp(s string) (Op, error) {
	switch Op(s) {
	case OpLT, OpGT, OpLE, OpGE, OpEQ:
		return Op(s), nil
	default:
		return "", fmt.Errorf("unknown comparison operator %q", s)
	}
}

// resolve looks up a source name first among indicators, then among the
// data point's price fields. ok=false는 "아직 값 없음"을 의미한다.
func resolve(source string, dp *contracts.DataPoint, ind contracts.IndicatorView) (float64, bool) {
	if ind != nil {
		if v, ok := ind.Value(source); ok {
			return v, true
		}
	}
	if v, ok := dp.Field(source); ok {
		return v, true
	}
	return 0, false
}

// insufficient builds the canonical non-result state for a missing source
func insufficient(name, source string) contracts.ConditionState {
	return contracts.ConditionState{
		Name:      name,
		Value:     nil,
		Triggered: false,
		Reason:    fmt.Sprintf("insufficient data: %s has no value yet", source),
	}
}
