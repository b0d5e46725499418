package audit

import (
	"context"
	"sync"

	"github.com/wonny/sigaudit/internal/contracts"
)

// Sink is the append-only export destination for the audit trail.
// ⭐ SSOT: 감사 기록 내보내기 인터페이스는 여기서만 정의
//
// WriteEvaluations receives one flushed segment for one composite signal;
// conditions carries the signal's condition names in registration order so
// tabular sinks can build a stable flattened schema. Writes are additive:
// a sink must never drop or double-count an evaluation (re-delivery of the
// same Seq must be idempotent).
type Sink interface {
	WriteEvaluations(ctx context.Context, signal string, conditions []string, evals []*contracts.Evaluation) error
	WriteCorrection(ctx context.Context, corr contracts.Correction) error
	Close() error
}

// MemorySink buffers exported records in memory. 테스트와 통계 재계산용.
type MemorySink struct {
	mu          sync.Mutex
	evals       map[string][]*contracts.Evaluation // signal → exported records
	corrections []contracts.Correction

	// FailWrites: 남은 횟수만큼 WriteEvaluations를 실패시킴 (재시도 테스트)
	FailWrites int
	FailErr    error
}

// NewMemorySink creates an in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{evals: make(map[string][]*contracts.Evaluation)}
}

// WriteEvaluations implements Sink
func (s *MemorySink) WriteEvaluations(ctx context.Context, signal string, conditions []string, evals []*contracts.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites > 0 {
		s.FailWrites--
		return s.FailErr
	}

	for _, e := range evals {
		// 복사해 저장. collector 버퍼는 flush 후 재사용된다
		cp := *e
		cp.Conditions = append([]contracts.ConditionState(nil), e.Conditions...)
		s.evals[signal] = append(s.evals[signal], &cp)
	}
	return nil
}

// WriteCorrection implements Sink
func (s *MemorySink) WriteCorrection(ctx context.Context, corr contracts.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrections = append(s.corrections, corr)
	return nil
}

// Close implements Sink
func (s *MemorySink) Close() error { return nil }

// Evaluations returns exported records for a signal, in export order
func (s *MemorySink) Evaluations(signal string) []*contracts.Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*contracts.Evaluation(nil), s.evals[signal]...)
}

// Corrections returns all exported correction records
func (s *MemorySink) Corrections() []contracts.Correction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]contracts.Correction(nil), s.corrections...)
}

// Total returns the total number of exported evaluations
func (s *MemorySink) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, evals := range s.evals {
		n += len(evals)
	}
	return n
}
