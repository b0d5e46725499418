package contracts

import "time"

// SignalRole distinguishes entry signals from exit signals
type SignalRole string

const (
	RoleEntry SignalRole = "ENTRY"
	RoleExit  SignalRole = "EXIT"
)

// ConditionState is the outcome of a single condition at one step
// ⭐ SSOT: 조건별 평가 결과는 이 타입으로만 전달
type ConditionState struct {
	Name      string   `json:"name"`
	Value     *float64 `json:"value"` // nil = 계산 불가 (예: 지표 히스토리 부족)
	Triggered bool     `json:"triggered"`
	Reason    string   `json:"reason"` // !Triggered 또는 Value==nil이면 반드시 비어있지 않음
}

// Evaluation is the immutable audit record of one composite evaluation.
// Constructed exactly once per step by the composite generator; owned by
// the collector after Append. OrderID/TradeID are set through the
// collector's one-time correlation methods, never rewritten afterwards.
type Evaluation struct {
	Seq               int64            `json:"seq"`      // collector가 부여하는 단조 증가 번호
	Timestamp         time.Time        `json:"timestamp"`
	DataRef           int64            `json:"data_ref"` // 데이터 스트림 내 인덱스 (opaque)
	Signal            string           `json:"signal"`
	Role              SignalRole       `json:"role"`
	Conditions        []ConditionState `json:"conditions"` // 등록 순서 유지
	FinalResult       bool             `json:"final_result"`
	Strength          float64          `json:"strength"`           // 통과 조건 수 / 전체 조건 수, [0,1]
	BlockingCondition string           `json:"blocking_condition"` // "" = 없음 (FinalResult=true)
	OrderID           string           `json:"order_id"`           // "" = 미연결
	TradeID           string           `json:"trade_id"`           // "" = 미체결
}

// TriggeredCount returns the number of passed conditions
func (e *Evaluation) TriggeredCount() int {
	n := 0
	for _, c := range e.Conditions {
		if c.Triggered {
			n++
		}
	}
	return n
}

// IsNearMiss reports whether the evaluation failed while meeting the
// given strength threshold
func (e *Evaluation) IsNearMiss(threshold float64) bool {
	return !e.FinalResult && e.Strength >= threshold
}

// Correction records a late trade correlation for an evaluation that was
// already flushed out of the in-memory buffer. Exported data is append-only,
// so the correction is emitted as a separate record instead of rewriting
// the original row.
type Correction struct {
	Timestamp time.Time `json:"timestamp"`
	OrderID   string    `json:"order_id"`
	TradeID   string    `json:"trade_id"`
	EvalSeq   int64     `json:"eval_seq"`
}
