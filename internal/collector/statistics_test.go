package collector

import (
	"context"
	"reflect"
	"testing"

	"github.com/wonny/sigaudit/internal/audit"
	"github.com/wonny/sigaudit/pkg/logger"
)

func TestComputeFromTrail_MatchesRunningCounters(t *testing.T) {
	sink := audit.NewMemorySink()
	c := New(fastConfig(32), sink, logger.Nop())
	ctx := context.Background()

	conds := []string{"x", "y"}
	for i := 0; i < 200; i++ {
		pattern := []bool{i%2 == 0, i%5 != 0}
		if err := c.Append(ctx, makeEval("entry", conds, pattern)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := c.ExportAll(ctx); err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}

	// 내보낸 기록만으로 재계산한 통계는 실행 중 집계와 일치해야 한다
	live := c.Statistics()
	replayed := ComputeFromTrail(sink.Evaluations("entry"), c.cfg.NearMissThreshold)

	if !reflect.DeepEqual(live, replayed) {
		t.Errorf("replayed statistics differ:\nlive:     %+v\nreplayed: %+v", live, replayed)
	}
}

func TestComputeFromTrail_Empty(t *testing.T) {
	snap := ComputeFromTrail(nil, 0)
	if snap.TotalEvaluations != 0 || len(snap.Signals) != 0 {
		t.Errorf("expected zeroed snapshot, got %+v", snap)
	}
}
