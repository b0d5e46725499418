package collector

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/wonny/sigaudit/internal/audit"
	"github.com/wonny/sigaudit/internal/contracts"
	"github.com/wonny/sigaudit/pkg/logger"
)

// makeEval builds one evaluation for an AND composite from a pass pattern
func makeEval(signal string, condNames []string, pattern []bool) *contracts.Evaluation {
	eval := &contracts.Evaluation{
		Timestamp: time.Now(),
		Signal:    signal,
		Role:      contracts.RoleEntry,
	}

	passed := 0
	for i, name := range condNames {
		v := float64(i)
		state := contracts.ConditionState{Name: name, Value: &v, Triggered: pattern[i]}
		if !pattern[i] {
			state.Reason = "below threshold"
		} else {
			passed++
		}
		eval.Conditions = append(eval.Conditions, state)
	}

	eval.FinalResult = passed == len(condNames)
	eval.Strength = float64(passed) / float64(len(condNames))
	if !eval.FinalResult {
		for _, s := range eval.Conditions {
			if !s.Triggered {
				eval.BlockingCondition = s.Name
				break
			}
		}
	}

	return eval
}

// fastConfig: limiter가 테스트를 방해하지 않도록 여유 있게
func fastConfig(maxBuffered int) Config {
	return Config{
		MaxBuffered: maxBuffered,
		MaxAge:      time.Hour,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
		FlushPerSec: 1e6,
	}
}

func TestCollector_BoundedMemoryAndLosslessExport(t *testing.T) {
	sink := audit.NewMemorySink()
	c := New(fastConfig(100), sink, logger.Nop())
	ctx := context.Background()

	conds := []string{"a", "b", "c"}
	const total = 1000

	for i := 0; i < total; i++ {
		// 일부는 실패 패턴으로 섞는다
		pattern := []bool{true, i%3 != 0, true}
		if err := c.Append(ctx, makeEval("entry", conds, pattern)); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}

		// 메모리 불변식: 버퍼는 임계값을 넘지 않는다
		if c.Buffered() > 100 {
			t.Fatalf("buffer grew past threshold: %d", c.Buffered())
		}
	}

	if err := c.ExportAll(ctx); err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}

	// 손실도 중복도 없이 전부, 원래 순서대로
	exported := sink.Evaluations("entry")
	if len(exported) != total {
		t.Fatalf("expected %d exported, got %d", total, len(exported))
	}
	for i, e := range exported {
		if e.Seq != int64(i+1) {
			t.Fatalf("row %d: seq got %d, want %d (order/loss violation)", i, e.Seq, i+1)
		}
	}

	if c.LastExportedSeq() != total {
		t.Errorf("last exported seq: got %d, want %d", c.LastExportedSeq(), total)
	}
}

func TestCollector_StatisticsAccuracy(t *testing.T) {
	sink := audit.NewMemorySink()
	c := New(fastConfig(64), sink, logger.Nop())
	ctx := context.Background()

	// 1000회 합성 패턴: a는 4회 중 3회, b는 2회 중 1회, c는 항상 통과.
	// AND이므로 false 평가에서 첫 실패 조건이 blocker가 된다.
	conds := []string{"a", "b", "c"}
	const total = 1000

	var aTrig, bTrig, failed, aBlocked, bBlocked int
	for i := 0; i < total; i++ {
		a := i%4 != 0
		b := i%2 != 0
		pattern := []bool{a, b, true}
		if a {
			aTrig++
		}
		if b {
			bTrig++
		}
		if !(a && b) {
			failed++
			if !a {
				aBlocked++
			} else {
				bBlocked++
			}
		}
		if err := c.Append(ctx, makeEval("entry", conds, pattern)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	snap := c.Statistics()
	if snap.TotalEvaluations != total {
		t.Fatalf("total: got %d, want %d", snap.TotalEvaluations, total)
	}

	stats, ok := snap.Signal("entry")
	if !ok {
		t.Fatal("entry signal stats missing")
	}
	if stats.Failed != int64(failed) {
		t.Errorf("failed: got %d, want %d", stats.Failed, failed)
	}

	// 수작업 계산 대비 0.1% 이내
	const tol = 0.001
	checks := []struct {
		name      string
		idx       int
		wantTrig  float64
		wantBlock float64
	}{
		{"a", 0, float64(aTrig) / total, float64(aBlocked) / float64(failed)},
		{"b", 1, float64(bTrig) / total, float64(bBlocked) / float64(failed)},
		{"c", 2, 1.0, 0.0},
	}
	for _, chk := range checks {
		cs := stats.Conditions[chk.idx]
		if cs.Name != chk.name {
			t.Fatalf("condition order broken: got %q at %d", cs.Name, chk.idx)
		}
		if math.Abs(cs.TriggerRate-chk.wantTrig) > tol {
			t.Errorf("%s trigger rate: got %v, want %v", chk.name, cs.TriggerRate, chk.wantTrig)
		}
		if math.Abs(cs.BlockRate-chk.wantBlock) > tol {
			t.Errorf("%s block rate: got %v, want %v", chk.name, cs.BlockRate, chk.wantBlock)
		}
	}
}

func TestCollector_NearMissCount(t *testing.T) {
	sink := audit.NewMemorySink()
	cfg := fastConfig(64)
	cfg.NearMissThreshold = 0.75
	c := New(cfg, sink, logger.Nop())
	ctx := context.Background()

	conds := []string{"a", "b", "c", "d"}
	patterns := [][]bool{
		{true, true, false, true},   // strength 0.75 → near miss
		{true, false, false, false}, // strength 0.25 → no
		{true, true, true, false},   // strength 0.75 → near miss
		{true, true, true, true},    // passed → no
	}
	for _, p := range patterns {
		if err := c.Append(ctx, makeEval("entry", conds, p)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	snap := c.Statistics()
	if snap.TotalNearMisses != 2 {
		t.Errorf("near misses: got %d, want 2", snap.TotalNearMisses)
	}
}

func TestCollector_EmptyStatistics(t *testing.T) {
	c := New(fastConfig(10), audit.NewMemorySink(), logger.Nop())

	// 평가 0건 → 에러가 아니라 0으로 채워진 스냅샷
	snap := c.Statistics()
	if snap.TotalEvaluations != 0 || len(snap.Signals) != 0 {
		t.Errorf("expected zeroed snapshot, got %+v", snap)
	}
}

func TestCollector_ExportRetry(t *testing.T) {
	ctx := context.Background()

	// 2회 실패 후 성공 → 재시도로 복구
	sink := audit.NewMemorySink()
	sink.FailWrites = 2
	sink.FailErr = errors.New("disk full")

	cfg := fastConfig(4)
	c := New(cfg, sink, logger.Nop())
	for i := 0; i < 4; i++ {
		if err := c.Append(ctx, makeEval("entry", []string{"a"}, []bool{true})); err != nil {
			t.Fatalf("Append failed despite retry budget: %v", err)
		}
	}
	if got := sink.Total(); got != 4 {
		t.Errorf("exported: got %d, want 4", got)
	}

	// 재시도 예산 초과 → 치명 오류로 전파
	sink2 := audit.NewMemorySink()
	sink2.FailWrites = 10
	sink2.FailErr = errors.New("disk full")

	c2 := New(cfg, sink2, logger.Nop())
	var lastErr error
	for i := 0; i < 4; i++ {
		if err := c2.Append(ctx, makeEval("entry", []string{"a"}, []bool{true})); err != nil {
			lastErr = err
		}
	}
	if lastErr == nil {
		t.Fatal("expected export failure to propagate")
	}
	if !errors.Is(lastErr, sink2.FailErr) {
		t.Errorf("expected wrapped sink error, got: %v", lastErr)
	}
}

// failSignalSink는 지정한 시그널의 write만 실패시킨다 (부분 실패 재현용)
type failSignalSink struct {
	*audit.MemorySink
	signal string
	fails  int
}

func (s *failSignalSink) WriteEvaluations(ctx context.Context, signal string, conds []string, evals []*contracts.Evaluation) error {
	if signal == s.signal && s.fails > 0 {
		s.fails--
		return errors.New("sink unavailable")
	}
	return s.MemorySink.WriteEvaluations(ctx, signal, conds, evals)
}

func TestCollector_PartialFlushFailureNoDuplication(t *testing.T) {
	ctx := context.Background()

	// 시그널 "exit" 세그먼트만 재시도 예산을 소진할 만큼 실패시킨다
	cfg := fastConfig(100)
	sink := &failSignalSink{
		MemorySink: audit.NewMemorySink(),
		signal:     "exit",
		fails:      cfg.MaxRetries,
	}
	c := New(cfg, sink, logger.Nop())

	for i := 0; i < 2; i++ {
		if err := c.Append(ctx, makeEval("entry", []string{"a"}, []bool{true})); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if err := c.Append(ctx, makeEval("exit", []string{"b"}, []bool{true})); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// entry 세그먼트는 성공, exit 세그먼트는 실패 → 에러 전파
	if err := c.ExportAll(ctx); err == nil {
		t.Fatal("expected partial export failure to propagate")
	}

	// 성공한 세그먼트는 버퍼에서 빠져야 한다
	if got := c.Buffered(); got != 2 {
		t.Fatalf("buffered after partial failure: got %d, want 2 (failed segment only)", got)
	}

	// sink 복구 후 재시도: 이미 내보낸 entry가 다시 전송되면 안 된다
	if err := c.ExportAll(ctx); err != nil {
		t.Fatalf("ExportAll after recovery failed: %v", err)
	}
	if got := len(sink.Evaluations("entry")); got != 2 {
		t.Errorf("entry exported %d rows, want 2 (no duplication)", got)
	}
	if got := len(sink.Evaluations("exit")); got != 2 {
		t.Errorf("exit exported %d rows, want 2", got)
	}
	if c.Buffered() != 0 {
		t.Errorf("buffer not drained after recovery: %d", c.Buffered())
	}
}

func TestCollector_OrderAndTradeCorrelation(t *testing.T) {
	sink := audit.NewMemorySink()
	c := New(fastConfig(100), sink, logger.Nop())
	ctx := context.Background()

	eval := makeEval("entry", []string{"a"}, []bool{true})
	if err := c.Append(ctx, eval); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// 주문 연결 (1회성)
	if err := c.CorrelateOrder(ctx, eval.Seq, "ORD-1"); err != nil {
		t.Fatalf("CorrelateOrder failed: %v", err)
	}
	if eval.OrderID != "ORD-1" {
		t.Errorf("order id: got %q", eval.OrderID)
	}
	if err := c.CorrelateOrder(ctx, eval.Seq, "ORD-2"); err == nil {
		t.Error("second order correlation must fail")
	}

	// 체결 연결
	if err := c.CorrelateTrade(ctx, "ORD-1", "TRD-1"); err != nil {
		t.Fatalf("CorrelateTrade failed: %v", err)
	}
	if eval.TradeID != "TRD-1" {
		t.Errorf("trade id: got %q", eval.TradeID)
	}

	// 모르는 주문의 체결 통보는 무시 (best effort)
	if err := c.CorrelateTrade(ctx, "ORD-UNKNOWN", "TRD-X"); err != nil {
		t.Errorf("unknown order fill must not error: %v", err)
	}
}

func TestCollector_LateTradeCorrelationAfterFlush(t *testing.T) {
	sink := audit.NewMemorySink()
	c := New(fastConfig(100), sink, logger.Nop())
	ctx := context.Background()

	eval := makeEval("entry", []string{"a"}, []bool{true})
	if err := c.Append(ctx, eval); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := c.CorrelateOrder(ctx, eval.Seq, "ORD-9"); err != nil {
		t.Fatalf("CorrelateOrder failed: %v", err)
	}

	// 평가를 버퍼에서 내보낸 뒤 늦은 체결 통보 도착
	if err := c.ExportAll(ctx); err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}
	if err := c.CorrelateTrade(ctx, "ORD-9", "TRD-9"); err != nil {
		t.Fatalf("late CorrelateTrade failed: %v", err)
	}

	// 이미 내보낸 행은 다시 쓰지 않고 보정 기록으로
	corrs := sink.Corrections()
	if len(corrs) != 1 {
		t.Fatalf("expected 1 correction, got %d", len(corrs))
	}
	if corrs[0].OrderID != "ORD-9" || corrs[0].TradeID != "TRD-9" || corrs[0].EvalSeq != eval.Seq {
		t.Errorf("unexpected correction: %+v", corrs[0])
	}

	// 내보낸 원본 행의 trade_id는 비어 있어야 함 (append-only)
	exported := sink.Evaluations("entry")
	if len(exported) != 1 || exported[0].TradeID != "" {
		t.Errorf("exported row must not be rewritten: %+v", exported[0])
	}
}

func TestCollector_DeferredFlushKeepsBound(t *testing.T) {
	sink := audit.NewMemorySink()
	cfg := Config{
		MaxBuffered: 10,
		MaxAge:      time.Millisecond, // 나이 기준은 매 스텝 due
		MaxRetries:  1,
		RetryDelay:  time.Millisecond,
		FlushPerSec: 0.001, // limiter는 초기 burst 1회만 허용
	}
	c := New(cfg, sink, logger.Nop())
	ctx := context.Background()

	time.Sleep(2 * time.Millisecond)
	for i := 0; i < 100; i++ {
		if err := c.Append(ctx, makeEval("entry", []string{"a"}, []bool{true})); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		// limiter가 flush를 미루더라도 버퍼 상한은 지켜진다
		if c.Buffered() > cfg.MaxBuffered {
			t.Fatalf("buffer exceeded bound under deferred flush: %d", c.Buffered())
		}
	}

	if err := c.ExportAll(ctx); err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}
	if sink.Total() != 100 {
		t.Errorf("exported: got %d, want 100", sink.Total())
	}
}
