package signal

import (
	"fmt"
	"time"

	"github.com/wonny/sigaudit/internal/contracts"
)

// Logic is the combination mode for a composite signal
type Logic string

const (
	LogicAND Logic = "AND"
	LogicOR  Logic = "OR"
)

// ParseLogic validates a logic string from configuration
func ParseLogic(s string) (Logic, error) {
	switch Logic(s) {
	case LogicAND, LogicOR:
		return Logic(s), nil
	default:
		return "", fmt.Errorf("logic must be AND|OR, got %q", s)
	}
}

// Generator evaluates an ordered set of conditions every step and combines
// them into one directional decision
// ⭐ SSOT: 복합 시그널 평가는 여기서만
type Generator struct {
	name       string
	logic      Logic
	conditions []Condition
}

// NewGenerator creates a composite signal generator. 조건이 하나도 없으면
// 설정 오류로 즉시 실패한다. 런 시작 전에 잡는다.
func NewGenerator(name string, logic Logic, conditions []Condition) (*Generator, error) {
	if name == "" {
		return nil, fmt.Errorf("composite signal: name is required")
	}
	if logic != LogicAND && logic != LogicOR {
		return nil, fmt.Errorf("composite signal %q: logic must be AND|OR, got %q", name, logic)
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("composite signal %q: at least one condition is required", name)
	}

	seen := make(map[string]struct{}, len(conditions))
	for _, c := range conditions {
		if _, dup := seen[c.Name()]; dup {
			return nil, fmt.Errorf("composite signal %q: duplicate condition name %q", name, c.Name())
		}
		seen[c.Name()] = struct{}{}
	}

	return &Generator{name: name, logic: logic, conditions: conditions}, nil
}

// Name returns the composite signal name
func (g *Generator) Name() string { return g.name }

// Logic returns the combination mode
func (g *Generator) Logic() Logic { return g.logic }

// ConditionNames returns the condition names in registration order.
// export sink의 컬럼 헤더 구성에 사용된다.
func (g *Generator) ConditionNames() []string {
	names := make([]string, len(g.conditions))
	for i, c := range g.conditions {
		names[i] = c.Name()
	}
	return names
}

// Evaluate runs every condition in registration order and builds one
// immutable evaluation record. No short-circuiting: 결과가 이미 정해져도
// 감사 추적을 위해 모든 조건의 상태를 기록한다.
//
// A condition returning an error aborts the run. That is a programming or
// configuration defect, distinct from the expected insufficient-data
// non-result which is recorded per-condition.
func (g *Generator) Evaluate(dp *contracts.DataPoint, ind contracts.IndicatorView, role contracts.SignalRole) (*contracts.Evaluation, error) {
	states := make([]contracts.ConditionState, 0, len(g.conditions))
	triggered := 0

	for step, cond := range g.conditions {
		state, err := cond.Evaluate(dp, ind)
		if err != nil {
			return nil, fmt.Errorf("signal %q condition %q at step %d: %w", g.name, cond.Name(), step, err)
		}
		if state.Triggered {
			triggered++
		}
		states = append(states, state)
	}

	var final bool
	switch g.logic {
	case LogicAND:
		final = triggered == len(g.conditions)
	case LogicOR:
		final = triggered > 0
	}

	// blocking condition: 등록 순서상 처음 실패한 조건 (결과가 false일 때만).
	// OR에서 false면 전 조건 실패이므로 "첫 실패"는 항상 정의된다.
	blocking := ""
	if !final {
		for _, s := range states {
			if !s.Triggered {
				blocking = s.Name
				break
			}
		}
	}

	return &contracts.Evaluation{
		Timestamp:         time.Now(),
		DataRef:           dp.Seq,
		Signal:            g.name,
		Role:              role,
		Conditions:        states,
		FinalResult:       final,
		Strength:          float64(triggered) / float64(len(g.conditions)),
		BlockingCondition: blocking,
	}, nil
}
