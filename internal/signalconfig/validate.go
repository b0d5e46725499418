package signalconfig

import (
	"fmt"

	"github.com/wonny/sigaudit/internal/signal"
)

// ValidationError 검증 실패 (런 시작 전 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the document before any run starts. Every failure names
// the offending field so the configuration can be fixed without guessing.
// 조건 0개, 알 수 없는 타입, 파라미터 타입 불일치는 모두 여기서 잡는다.
func Validate(doc *Document, registry *signal.Registry) error {
	if doc.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if len(doc.Signals) == 0 {
		return ValidationError{"signals", "at least one composite signal is required"}
	}

	seenSignals := make(map[string]struct{}, len(doc.Signals))
	for i, sig := range doc.Signals {
		field := fmt.Sprintf("signals[%d]", i)

		if sig.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if _, dup := seenSignals[sig.Name]; dup {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate signal name %q", sig.Name)}
		}
		seenSignals[sig.Name] = struct{}{}

		if _, err := signal.ParseLogic(sig.Logic); err != nil {
			return ValidationError{field + ".logic", err.Error()}
		}
		if sig.Role != "ENTRY" && sig.Role != "EXIT" {
			return ValidationError{field + ".role", fmt.Sprintf("must be ENTRY|EXIT, got %q", sig.Role)}
		}
		if len(sig.Conditions) == 0 {
			return ValidationError{field + ".conditions", fmt.Sprintf("signal %q: at least one condition is required", sig.Name)}
		}

		seenConds := make(map[string]struct{}, len(sig.Conditions))
		for j, spec := range sig.Conditions {
			condField := fmt.Sprintf("%s.conditions[%d]", field, j)

			if spec.Name == "" {
				return ValidationError{condField + ".name", "required"}
			}
			if _, dup := seenConds[spec.Name]; dup {
				return ValidationError{condField + ".name", fmt.Sprintf("duplicate condition name %q in signal %q", spec.Name, sig.Name)}
			}
			seenConds[spec.Name] = struct{}{}

			// 생성자를 실제 호출해 파라미터까지 검증 (결과는 버림)
			if _, err := registry.Build(spec.Type, spec.Name, spec.Params); err != nil {
				return ValidationError{condField, err.Error()}
			}
		}
	}

	return nil
}

// Build constructs composite generators from a validated document.
// Validate를 통과한 문서만 넘길 것. 여기서의 실패는 프로그램 결함이다.
func Build(doc *Document, registry *signal.Registry) ([]*signal.Generator, error) {
	generators := make([]*signal.Generator, 0, len(doc.Signals))

	for _, sig := range doc.Signals {
		conditions := make([]signal.Condition, 0, len(sig.Conditions))
		for _, spec := range sig.Conditions {
			cond, err := registry.Build(spec.Type, spec.Name, spec.Params)
			if err != nil {
				return nil, fmt.Errorf("signal %q condition %q: %w", sig.Name, spec.Name, err)
			}
			conditions = append(conditions, cond)
		}

		logic, err := signal.ParseLogic(sig.Logic)
		if err != nil {
			return nil, fmt.Errorf("signal %q: %w", sig.Name, err)
		}

		gen, err := signal.NewGenerator(sig.Name, logic, conditions)
		if err != nil {
			return nil, err
		}
		generators = append(generators, gen)
	}

	return generators, nil
}
