package contracts

// ConditionStats holds per-condition aggregate counters for one signal
type ConditionStats struct {
	Name        string  `json:"name"`
	Appeared    int64   `json:"appeared"`     // 조건이 포함된 평가 수
	Triggered   int64   `json:"triggered"`    // Triggered=true 횟수
	Blocked     int64   `json:"blocked"`      // blocking condition으로 지목된 횟수
	TriggerRate float64 `json:"trigger_rate"` // Triggered / Appeared
	BlockRate   float64 `json:"block_rate"`   // Blocked / (해당 시그널의 false 평가 수)
}

// SignalStats holds aggregate counters for one composite signal
type SignalStats struct {
	Signal      string           `json:"signal"`
	Evaluations int64            `json:"evaluations"`
	Passed      int64            `json:"passed"`
	Failed      int64            `json:"failed"`
	NearMisses  int64            `json:"near_misses"` // 실패했지만 strength ≥ 임계값
	Conditions  []ConditionStats `json:"conditions"`  // 등록 순서 유지
}

// StatisticsSnapshot is the derived post-run analysis view. Recomputed on
// demand from the collector's running counters; always reflects the full
// run including already-exported segments.
type StatisticsSnapshot struct {
	TotalEvaluations int64         `json:"total_evaluations"`
	TotalPassed      int64         `json:"total_passed"`
	TotalFailed      int64         `json:"total_failed"`
	TotalNearMisses  int64         `json:"total_near_misses"`
	Signals          []SignalStats `json:"signals"`
}

// Signal returns stats for a named signal
func (s *StatisticsSnapshot) Signal(name string) (*SignalStats, bool) {
	for i := range s.Signals {
		if s.Signals[i].Signal == name {
			return &s.Signals[i], true
		}
	}
	return nil, false
}
