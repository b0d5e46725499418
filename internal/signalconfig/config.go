package signalconfig

// Document는 한 전략 인스턴스의 복합 시그널 설정 전체
type Document struct {
	Meta    Meta              `yaml:"meta" json:"meta"`
	Signals []CompositeSignal `yaml:"signals" json:"signals"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// CompositeSignal describes one named composite signal: its combination
// logic and the ordered list of condition specifications
type CompositeSignal struct {
	Name       string          `yaml:"name" json:"name"`
	Logic      string          `yaml:"logic" json:"logic"` // AND | OR
	Role       string          `yaml:"role" json:"role"`   // ENTRY | EXIT
	Conditions []ConditionSpec `yaml:"conditions" json:"conditions"`
}

// ConditionSpec describes one condition: evaluator type, unique name and
// evaluator-specific parameters. 파라미터 검증은 레지스트리 생성자에서.
type ConditionSpec struct {
	Type   string         `yaml:"type" json:"type"`
	Name   string         `yaml:"name" json:"name"`
	Params map[string]any `yaml:"params" json:"params"`
}

// Signal returns the composite signal with the given name
func (d *Document) Signal(name string) (*CompositeSignal, bool) {
	for i := range d.Signals {
		if d.Signals[i].Name == name {
			return &d.Signals[i], true
		}
	}
	return nil, false
}
