package collector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/sigaudit/internal/audit"
	"github.com/wonny/sigaudit/internal/contracts"
	"github.com/wonny/sigaudit/pkg/logger"
)

// Config holds collector tuning parameters
type Config struct {
	MaxBuffered       int           // flush 크기 임계값 (버퍼 상한)
	MaxAge            time.Duration // flush 시간 임계값 (가장 오래된 레코드 기준)
	NearMissThreshold float64       // near-miss 판정 strength 하한
	MaxRetries        int           // export 실패 시 재시도 횟수
	RetryDelay        time.Duration // 재시도 간격
	FlushPerSec       float64       // flush I/O 빈도 상한 (스텝 오버헤드 예산)
}

// DefaultConfig returns the default collector configuration
func DefaultConfig() Config {
	return Config{
		MaxBuffered:       500,
		MaxAge:            time.Minute,
		NearMissThreshold: 0.75,
		MaxRetries:        3,
		RetryDelay:        100 * time.Millisecond,
		FlushPerSec:       4,
	}
}

// Collector accumulates evaluation records during a run, bounds memory by
// flushing segments to the export sink, and keeps incremental aggregate
// counters so statistics stay correct across flushes.
// ⭐ SSOT: 평가 기록 수집/집계는 여기서만
//
// Single-threaded by contract: the host loop drives evaluation and Append
// from one goroutine at a time.
type Collector struct {
	cfg     Config
	sink    audit.Sink
	logger  *logger.Logger
	limiter *rate.Limiter

	nextSeq int64

	// In-memory tail. 피크 메모리는 MaxBuffered로 제한된다. flush가
	// 지연된 스텝에서도 다음 Append가 반드시 재시도한다.
	buffer      []*contracts.Evaluation
	bySeq       map[int64]*contracts.Evaluation
	oldestAdded time.Time
	deferred    bool // limiter 거부로 flush가 미뤄진 상태

	// Correlation indexes. orderIndex는 버퍼 내 평가만, flushedOrders는
	// 이미 내보낸 평가의 주문 연결만 담는다 (late correction 경로).
	orderIndex    map[string]*contracts.Evaluation
	flushedOrders map[string]int64 // orderID → eval seq

	// Incremental counters, updated on Append. 실행 전체를 반영하므로
	// flush 이후에도 통계는 정확하다.
	signals map[string]*signalCounters

	lastExportedSeq int64
}

type signalCounters struct {
	condOrder []string // 등록 순서 (첫 평가에서 고정)
	conds     map[string]*condCounter

	evaluations int64
	passed      int64
	failed      int64
	nearMisses  int64
}

type condCounter struct {
	appeared  int64
	triggered int64
	blocked   int64
}

// New creates a collector writing flushed segments to sink
func New(cfg Config, sink audit.Sink, log *logger.Logger) *Collector {
	def := DefaultConfig()
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = def.MaxBuffered
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.NearMissThreshold <= 0 {
		cfg.NearMissThreshold = def.NearMissThreshold
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.FlushPerSec <= 0 {
		cfg.FlushPerSec = def.FlushPerSec
	}

	return &Collector{
		cfg:           cfg,
		sink:          sink,
		logger:        log,
		limiter:       rate.NewLimiter(rate.Limit(cfg.FlushPerSec), 1),
		buffer:        make([]*contracts.Evaluation, 0, cfg.MaxBuffered),
		bySeq:         make(map[int64]*contracts.Evaluation),
		orderIndex:    make(map[string]*contracts.Evaluation),
		flushedOrders: make(map[string]int64),
		signals:       make(map[string]*signalCounters),
	}
}

// Append takes ownership of an evaluation record, assigns its sequence
// number, updates the running counters and flushes if a threshold is hit.
// O(1) amortized per call.
func (c *Collector) Append(ctx context.Context, eval *contracts.Evaluation) error {
	c.nextSeq++
	eval.Seq = c.nextSeq

	c.count(eval)

	if len(c.buffer) == 0 {
		c.oldestAdded = time.Now()
	}
	c.buffer = append(c.buffer, eval)
	c.bySeq[eval.Seq] = eval

	return c.maybeFlush(ctx)
}

// count updates the incremental aggregate counters for one evaluation
func (c *Collector) count(eval *contracts.Evaluation) {
	sc, ok := c.signals[eval.Signal]
	if !ok {
		sc = &signalCounters{conds: make(map[string]*condCounter)}
		for _, s := range eval.Conditions {
			sc.condOrder = append(sc.condOrder, s.Name)
			sc.conds[s.Name] = &condCounter{}
		}
		c.signals[eval.Signal] = sc
	}

	sc.evaluations++
	if eval.FinalResult {
		sc.passed++
	} else {
		sc.failed++
		if eval.IsNearMiss(c.cfg.NearMissThreshold) {
			sc.nearMisses++
		}
	}

	for _, s := range eval.Conditions {
		cc, ok := sc.conds[s.Name]
		if !ok {
			// 같은 시그널 이름이면 조건 구성도 같아야 한다
			cc = &condCounter{}
			sc.conds[s.Name] = cc
			sc.condOrder = append(sc.condOrder, s.Name)
		}
		cc.appeared++
		if s.Triggered {
			cc.triggered++
		}
	}
	if eval.BlockingCondition != "" {
		if cc, ok := sc.conds[eval.BlockingCondition]; ok {
			cc.blocked++
		}
	}
}

// maybeFlush flushes the buffer when it has grown past the configured size
// or age threshold. Flush I/O is rate-limited so the per-step overhead
// stays bounded; a denied flush is deferred to a later append instead of
// blocking the evaluation step.
func (c *Collector) maybeFlush(ctx context.Context) error {
	if len(c.buffer) == 0 {
		return nil
	}

	due := c.deferred ||
		len(c.buffer) >= c.cfg.MaxBuffered ||
		time.Since(c.oldestAdded) >= c.cfg.MaxAge

	if !due {
		return nil
	}

	// 버퍼가 상한을 넘기 전까지는 limiter가 거부하면 미룬다.
	// 상한 도달 시에는 메모리 불변식이 우선이므로 무조건 flush.
	if len(c.buffer) < c.cfg.MaxBuffered && !c.limiter.Allow() {
		c.deferred = true
		return nil
	}

	return c.flush(ctx)
}

// flush exports the buffered segment and clears the in-memory buffer.
// 실패 시 제한된 횟수만큼 재시도하고, 반복 실패는 치명 오류로 올린다.
// 감사 기록을 조용히 버리는 것은 완전성 계약 위반이다.
func (c *Collector) flush(ctx context.Context) error {
	segments := c.groupBuffer()

	// 세그먼트 단위로 내보내고, 성공한 세그먼트는 즉시 버퍼 소유권을
	// 넘긴다. 일부 실패 시 성공분을 다시 보내면 append-only sink에
	// 중복 행이 생기므로 실패한 세그먼트만 버퍼에 남긴다.
	exported := make(map[int64]struct{})
	var writeErr error
	for _, seg := range segments {
		condNames := c.signals[seg.signal].condOrder
		if err := c.writeWithRetry(ctx, seg.signal, condNames, seg.evals); err != nil {
			writeErr = fmt.Errorf("audit export failed after %d attempts (last exported seq=%d): %w",
				c.cfg.MaxRetries, c.lastExportedSeq, err)
			break
		}
		for _, e := range seg.evals {
			exported[e.Seq] = struct{}{}
			if e.Seq > c.lastExportedSeq {
				c.lastExportedSeq = e.Seq
			}
		}
	}

	// 주문이 연결된 내보낸 평가는 seq만 남겨 late correction을 가능하게 한다
	for orderID, eval := range c.orderIndex {
		if _, ok := exported[eval.Seq]; ok {
			c.flushedOrders[orderID] = eval.Seq
			delete(c.orderIndex, orderID)
		}
	}

	if writeErr != nil {
		kept := c.buffer[:0]
		for _, e := range c.buffer {
			if _, ok := exported[e.Seq]; ok {
				delete(c.bySeq, e.Seq)
			} else {
				kept = append(kept, e)
			}
		}
		c.buffer = kept
		return writeErr
	}

	flushed := len(c.buffer)
	c.buffer = c.buffer[:0]
	c.bySeq = make(map[int64]*contracts.Evaluation)
	c.deferred = false

	c.logger.WithFields(map[string]interface{}{
		"flushed":           flushed,
		"last_exported_seq": c.lastExportedSeq,
	}).Debug("Audit buffer flushed")

	return nil
}

type segment struct {
	signal string
	evals  []*contracts.Evaluation
}

// groupBuffer splits the buffer into per-signal segments, preserving the
// append order inside each signal
func (c *Collector) groupBuffer() []segment {
	index := make(map[string]int)
	segments := make([]segment, 0, 2)

	for _, e := range c.buffer {
		i, ok := index[e.Signal]
		if !ok {
			i = len(segments)
			index[e.Signal] = i
			segments = append(segments, segment{signal: e.Signal})
		}
		segments[i].evals = append(segments[i].evals, e)
	}

	return segments
}

func (c *Collector) writeWithRetry(ctx context.Context, signal string, conds []string, evals []*contracts.Evaluation) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		lastErr = c.sink.WriteEvaluations(ctx, signal, conds, evals)
		if lastErr == nil {
			return nil
		}

		c.logger.WithFields(map[string]interface{}{
			"signal":  signal,
			"attempt": attempt,
			"error":   lastErr.Error(),
		}).Warn("Audit export attempt failed")

		if attempt < c.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}
	return lastErr
}

// ExportAll forces a final flush regardless of thresholds or the I/O
// budget. 런 종료/중단 시 teardown 경로에서 호출된다.
func (c *Collector) ExportAll(ctx context.Context) error {
	if len(c.buffer) == 0 {
		return nil
	}
	return c.flush(ctx)
}

// Close performs a best-effort final export and closes the sink
func (c *Collector) Close(ctx context.Context) error {
	exportErr := c.ExportAll(ctx)
	if exportErr != nil {
		c.logger.WithError(exportErr).Error("Final audit export failed")
	}
	if err := c.sink.Close(); err != nil && exportErr == nil {
		exportErr = err
	}
	return exportErr
}

// Buffered returns the number of evaluations currently held in memory
func (c *Collector) Buffered() int {
	return len(c.buffer)
}

// LastExportedSeq returns the highest sequence number confirmed exported
func (c *Collector) LastExportedSeq() int64 {
	return c.lastExportedSeq
}

// CorrelateOrder records the order identifier onto the evaluation that
// triggered the submission. One-time set: 이미 연결된 평가에 다시 쓰는
// 것은 프로그램 결함이다.
func (c *Collector) CorrelateOrder(ctx context.Context, seq int64, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("correlate order: empty order id")
	}

	eval, ok := c.bySeq[seq]
	if !ok {
		// 평가가 이미 flush된 경우: append-only 보정 기록으로 남긴다
		c.flushedOrders[orderID] = seq
		corr := contracts.Correction{
			Timestamp: time.Now(),
			OrderID:   orderID,
			EvalSeq:   seq,
		}
		if err := c.sink.WriteCorrection(ctx, corr); err != nil {
			return fmt.Errorf("write order correction: %w", err)
		}
		return nil
	}

	if eval.OrderID != "" {
		return fmt.Errorf("evaluation seq=%d already correlated to order %s", seq, eval.OrderID)
	}
	eval.OrderID = orderID
	c.orderIndex[orderID] = eval
	return nil
}

// CorrelateTrade links a fill's trade identifier to the evaluation that
// produced the order. If the evaluation was already flushed, the late
// correlation is exported as a correction record instead of rewriting
// the exported row. Unknown order ids are ignored (best effort). 체결
// 통보가 이 엔진 밖의 주문에서 올 수도 있다.
func (c *Collector) CorrelateTrade(ctx context.Context, orderID, tradeID string) error {
	if eval, ok := c.orderIndex[orderID]; ok {
		if eval.TradeID != "" {
			return fmt.Errorf("order %s already correlated to trade %s", orderID, eval.TradeID)
		}
		eval.TradeID = tradeID
		return nil
	}

	if seq, ok := c.flushedOrders[orderID]; ok {
		corr := contracts.Correction{
			Timestamp: time.Now(),
			OrderID:   orderID,
			TradeID:   tradeID,
			EvalSeq:   seq,
		}
		if err := c.sink.WriteCorrection(ctx, corr); err != nil {
			return fmt.Errorf("write trade correction: %w", err)
		}
		return nil
	}

	c.logger.WithFields(map[string]interface{}{
		"order_id": orderID,
		"trade_id": tradeID,
	}).Warn("Fill for unknown order, correlation skipped")
	return nil
}
