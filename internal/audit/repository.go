package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/sigaudit/internal/contracts"
)

// Repository is the PostgreSQL audit sink
// ⭐ SSOT: 감사 기록 DB 저장은 여기서만
//
// Schema:
//
//	audit.evaluations(seq bigint PK, ts timestamptz, data_ref bigint,
//	  signal text, role text, conditions jsonb, final_result bool,
//	  strength float8, blocking_condition text, order_id text, trade_id text)
//	audit.corrections(id bigserial PK, ts timestamptz, order_id text,
//	  trade_id text, eval_seq bigint)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository sink
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WriteEvaluations implements Sink. 같은 seq 재전달은 무시된다. 재시도
// 경로에서 중복 집계가 생기지 않도록 멱등으로 처리.
func (r *Repository) WriteEvaluations(ctx context.Context, signal string, conditions []string, evals []*contracts.Evaluation) error {
	query := `
		INSERT INTO audit.evaluations (
			seq, ts, data_ref, signal, role, conditions,
			final_result, strength, blocking_condition, order_id, trade_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (seq) DO NOTHING
	`

	for _, e := range evals {
		condJSON, err := json.Marshal(e.Conditions)
		if err != nil {
			return fmt.Errorf("marshal conditions seq=%d: %w", e.Seq, err)
		}

		_, err = r.pool.Exec(ctx, query,
			e.Seq, e.Timestamp, e.DataRef, e.Signal, string(e.Role), condJSON,
			e.FinalResult, e.Strength, e.BlockingCondition, e.OrderID, e.TradeID,
		)
		if err != nil {
			return fmt.Errorf("failed to save evaluation seq=%d: %w", e.Seq, err)
		}
	}

	return nil
}

// WriteCorrection implements Sink
func (r *Repository) WriteCorrection(ctx context.Context, corr contracts.Correction) error {
	query := `
		INSERT INTO audit.corrections (ts, order_id, trade_id, eval_seq)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query, corr.Timestamp, corr.OrderID, corr.TradeID, corr.EvalSeq)
	if err != nil {
		return fmt.Errorf("failed to save correction order_id=%s: %w", corr.OrderID, err)
	}

	return nil
}

// Close implements Sink. 풀 생명주기는 pkg/database가 소유하므로 여기서는
// 닫지 않는다.
func (r *Repository) Close() error { return nil }

// GetEvaluations retrieves exported evaluations for a signal, in order
func (r *Repository) GetEvaluations(ctx context.Context, signal string) ([]*contracts.Evaluation, error) {
	query := `
		SELECT seq, ts, data_ref, signal, role, conditions,
		       final_result, strength, blocking_condition, order_id, trade_id
		FROM audit.evaluations
		WHERE signal = $1
		ORDER BY seq
	`

	rows, err := r.pool.Query(ctx, query, signal)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	evals := make([]*contracts.Evaluation, 0)
	for rows.Next() {
		var e contracts.Evaluation
		var role string
		var condJSON []byte

		err := rows.Scan(&e.Seq, &e.Timestamp, &e.DataRef, &e.Signal, &role, &condJSON,
			&e.FinalResult, &e.Strength, &e.BlockingCondition, &e.OrderID, &e.TradeID)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}

		e.Role = contracts.SignalRole(role)
		if err := json.Unmarshal(condJSON, &e.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal conditions seq=%d: %w", e.Seq, err)
		}

		evals = append(evals, &e)
	}

	return evals, rows.Err()
}
