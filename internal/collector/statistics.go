package collector

import (
	"sort"

	"github.com/wonny/sigaudit/internal/contracts"
)

// Statistics computes the derived analysis snapshot from the running
// counters. Pure read: 어떤 상태도 변경하지 않으며, 평가 0건이면 0으로
// 채워진 스냅샷을 반환한다. flush와 무관하게 런 전체를 반영한다.
func (c *Collector) Statistics() *contracts.StatisticsSnapshot {
	snap := &contracts.StatisticsSnapshot{}

	names := make([]string, 0, len(c.signals))
	for name := range c.signals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := c.signals[name]

		stats := contracts.SignalStats{
			Signal:      name,
			Evaluations: sc.evaluations,
			Passed:      sc.passed,
			Failed:      sc.failed,
			NearMisses:  sc.nearMisses,
		}

		for _, condName := range sc.condOrder {
			cc := sc.conds[condName]
			cs := contracts.ConditionStats{
				Name:      condName,
				Appeared:  cc.appeared,
				Triggered: cc.triggered,
				Blocked:   cc.blocked,
			}
			if cc.appeared > 0 {
				cs.TriggerRate = float64(cc.triggered) / float64(cc.appeared)
			}
			if sc.failed > 0 {
				cs.BlockRate = float64(cc.blocked) / float64(sc.failed)
			}
			stats.Conditions = append(stats.Conditions, cs)
		}

		snap.TotalEvaluations += sc.evaluations
		snap.TotalPassed += sc.passed
		snap.TotalFailed += sc.failed
		snap.TotalNearMisses += sc.nearMisses
		snap.Signals = append(snap.Signals, stats)
	}

	return snap
}

// ComputeFromTrail derives the same statistics snapshot from a complete
// (re-ingested) audit trail. 포스트런 분석 도구가 내보낸 기록만으로 통계를
// 재구성할 때 사용한다. 입력은 변경하지 않는다.
func ComputeFromTrail(evals []*contracts.Evaluation, nearMissThreshold float64) *contracts.StatisticsSnapshot {
	if nearMissThreshold <= 0 {
		nearMissThreshold = DefaultConfig().NearMissThreshold
	}

	// Collector의 증분 집계 경로를 그대로 재사용해 두 경로의 결과가
	// 정의상 일치하도록 한다.
	c := &Collector{
		cfg:     Config{NearMissThreshold: nearMissThreshold},
		signals: make(map[string]*signalCounters),
	}
	for _, e := range evals {
		c.count(e)
	}

	return c.Statistics()
}
