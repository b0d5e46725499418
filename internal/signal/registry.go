package signal

import (
	"fmt"
	"sort"
)

// Constructor builds a condition from its configured parameters.
// 파라미터 타입 오류는 여기서(설정 검증 시점) 잡는다. 런타임 실패 금지.
type Constructor func(name string, params map[string]any) (Condition, error)

// Registry maps evaluator type names to constructors, resolved at
// configuration-validation time. Replaces dynamic module loading.
// ⭐ SSOT: 평가자 타입 등록은 여기서만
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates a registry pre-populated with the built-in evaluators
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register("threshold", buildThreshold)
	r.Register("spread", buildSpread)
	r.Register("range", buildRange)
	r.Register("cross", buildCross)
	return r
}

// Register adds or replaces a constructor for a type name
func (r *Registry) Register(typeName string, ctor Constructor) {
	r.constructors[typeName] = ctor
}

// Build constructs a condition of the given type
func (r *Registry) Build(typeName, name string, params map[string]any) (Condition, error) {
	ctor, ok := r.constructors[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown condition type %q (known: %v)", typeName, r.Types())
	}
	return ctor(name, params)
}

// Types returns the registered type names, sorted
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func buildThreshold(name string, params map[string]any) (Condition, error) {
	source, err := paramString(params, "source")
	if err != nil {
		return nil, err
	}
	opStr, err := paramString(params, "op")
	if err != nil {
		return nil, err
	}
	op, err := ParseOp(opStr)
	if err != nil {
		return nil, err
	}
	threshold, err := paramFloat(params, "threshold")
	if err != nil {
		return nil, err
	}
	return NewThresholdCondition(name, source, op, threshold), nil
}

func buildSpread(name string, params map[string]any) (Condition, error) {
	left, err := paramString(params, "left")
	if err != nil {
		return nil, err
	}
	right, err := paramString(params, "right")
	if err != nil {
		return nil, err
	}
	opStr, err := paramString(params, "op")
	if err != nil {
		return nil, err
	}
	op, err := ParseOp(opStr)
	if err != nil {
		return nil, err
	}
	threshold, err := paramFloat(params, "threshold")
	if err != nil {
		return nil, err
	}
	return NewSpreadCondition(name, left, right, op, threshold), nil
}

func buildRange(name string, params map[string]any) (Condition, error) {
	source, err := paramString(params, "source")
	if err != nil {
		return nil, err
	}
	min, err := paramFloat(params, "min")
	if err != nil {
		return nil, err
	}
	max, err := paramFloat(params, "max")
	if err != nil {
		return nil, err
	}
	return NewRangeCondition(name, source, min, max)
}

func buildCross(name string, params map[string]any) (Condition, error) {
	left, err := paramString(params, "left")
	if err != nil {
		return nil, err
	}
	right, err := paramString(params, "right")
	if err != nil {
		return nil, err
	}
	direction, err := paramString(params, "direction")
	if err != nil {
		return nil, err
	}
	switch direction {
	case "above":
		return NewCrossCondition(name, left, right, true), nil
	case "below":
		return NewCrossCondition(name, left, right, false), nil
	default:
		return nil, fmt.Errorf("cross condition %q: direction must be above|below, got %q", name, direction)
	}
}

// paramString extracts a required string parameter.
// 타입 불일치는 설정 오류로 즉시 실패. 묵시적 변환 금지.
func paramString(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q: expected string, got %T", key, raw)
	}
	if s == "" {
		return "", fmt.Errorf("parameter %q: must not be empty", key)
	}
	return s, nil
}

// paramFloat extracts a required numeric parameter. YAML은 정수를 int로
// 디코드하므로 int → float64 변환만 허용한다 (정밀도 손실 없음).
func paramFloat(params map[string]any, key string) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("parameter %q: expected number, got %T", key, raw)
	}
}
