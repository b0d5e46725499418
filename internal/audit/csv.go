package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/sigaudit/internal/contracts"
)

// 고정 컬럼: 조건 삼중열 앞뒤로 배치된다
var (
	csvHeadCols = []string{"seq", "timestamp", "data_ref", "signal", "role"}
	csvTailCols = []string{"final_result", "strength", "blocking_condition", "order_id", "trade_id"}
)

const correctionsFile = "corrections.csv"

// CSVSink exports the audit trail as one CSV file per composite signal.
// 파일 스키마는 시그널의 조건 목록으로 고정되므로 조건별 value/triggered/
// reason이 평탄화된 컬럼으로 들어간다. Corrections는 별도 파일에 append.
// ⭐ SSOT: CSV 내보내기는 여기서만
type CSVSink struct {
	dir         string
	files       map[string]*csvFile
	corrections *csvFile
}

type csvFile struct {
	f          *os.File
	w          *csv.Writer
	conditions []string
}

// NewCSVSink creates a CSV sink writing under dir (created if missing)
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &CSVSink{dir: dir, files: make(map[string]*csvFile)}, nil
}

// WriteEvaluations implements Sink
func (s *CSVSink) WriteEvaluations(ctx context.Context, signal string, conditions []string, evals []*contracts.Evaluation) error {
	cf, err := s.file(signal, conditions)
	if err != nil {
		return err
	}

	for _, e := range evals {
		if len(e.Conditions) != len(cf.conditions) {
			return fmt.Errorf("signal %q: evaluation has %d conditions, file schema has %d",
				signal, len(e.Conditions), len(cf.conditions))
		}

		row := make([]string, 0, len(csvHeadCols)+3*len(cf.conditions)+len(csvTailCols))
		row = append(row,
			strconv.FormatInt(e.Seq, 10),
			e.Timestamp.Format(time.RFC3339Nano),
			strconv.FormatInt(e.DataRef, 10),
			e.Signal,
			string(e.Role),
		)
		for _, c := range e.Conditions {
			value := ""
			if c.Value != nil {
				value = strconv.FormatFloat(*c.Value, 'g', -1, 64)
			}
			row = append(row, value, strconv.FormatBool(c.Triggered), c.Reason)
		}
		row = append(row,
			strconv.FormatBool(e.FinalResult),
			strconv.FormatFloat(e.Strength, 'g', -1, 64),
			e.BlockingCondition,
			e.OrderID,
			e.TradeID,
		)

		if err := cf.w.Write(row); err != nil {
			return fmt.Errorf("write evaluation seq=%d: %w", e.Seq, err)
		}
	}

	cf.w.Flush()
	if err := cf.w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", signal, err)
	}
	return nil
}

// WriteCorrection implements Sink
func (s *CSVSink) WriteCorrection(ctx context.Context, corr contracts.Correction) error {
	if s.corrections == nil {
		path := filepath.Join(s.dir, correctionsFile)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open corrections file: %w", err)
		}
		w := csv.NewWriter(f)

		info, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}
		if info.Size() == 0 {
			if err := w.Write([]string{"timestamp", "order_id", "trade_id", "eval_seq"}); err != nil {
				f.Close()
				return err
			}
		}
		s.corrections = &csvFile{f: f, w: w}
	}

	err := s.corrections.w.Write([]string{
		corr.Timestamp.Format(time.RFC3339Nano),
		corr.OrderID,
		corr.TradeID,
		strconv.FormatInt(corr.EvalSeq, 10),
	})
	if err != nil {
		return fmt.Errorf("write correction: %w", err)
	}

	s.corrections.w.Flush()
	return s.corrections.w.Error()
}

// Close flushes and closes every open file
func (s *CSVSink) Close() error {
	var firstErr error
	for signal, cf := range s.files {
		cf.w.Flush()
		if err := cf.w.Error(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush %s: %w", signal, err)
		}
		if err := cf.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.corrections != nil {
		s.corrections.w.Flush()
		if err := s.corrections.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Path returns the export file path for a signal
func (s *CSVSink) Path(signal string) string {
	return filepath.Join(s.dir, signal+"_evaluations.csv")
}

// file lazily opens the per-signal file, writing the flattened header once
func (s *CSVSink) file(signal string, conditions []string) (*csvFile, error) {
	if cf, ok := s.files[signal]; ok {
		return cf, nil
	}

	path := s.Path(signal)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open export file %s: %w", path, err)
	}
	w := csv.NewWriter(f)

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	header := append([]string(nil), csvHeadCols...)
	for _, c := range conditions {
		header = append(header, c+"_value", c+"_triggered", c+"_reason")
	}
	header = append(header, csvTailCols...)

	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header %s: %w", path, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		// 이전 런의 파일에 이어 쓸 때는 스키마가 같아야만 한다.
		// 조건 구성이 달라졌다면 조용히 섞어 쓰는 대신 즉시 실패.
		existing, err := readHeader(path)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("read header %s: %w", path, err)
		}
		if !equalHeader(existing, header) {
			f.Close()
			return nil, fmt.Errorf("export file %s: existing header does not match signal %q condition set",
				path, signal)
		}
	}

	cf := &csvFile{f: f, w: w, conditions: append([]string(nil), conditions...)}
	s.files[signal] = cf
	return cf, nil
}

// readHeader reads the first record of an existing export file
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.Read()
}

func equalHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ReadEvaluations re-ingests an exported per-signal CSV file and
// reconstructs the exact evaluation sequence, field for field.
// 내보낸 감사 기록은 이 함수로 손실 없이 복원 가능해야 한다 (round-trip 계약).
func ReadEvaluations(path string) ([]*contracts.Evaluation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read export file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("export file %s: missing header", path)
	}

	conditions, err := conditionNamesFromHeader(records[0])
	if err != nil {
		return nil, fmt.Errorf("export file %s: %w", path, err)
	}

	evals := make([]*contracts.Evaluation, 0, len(records)-1)
	for i, row := range records[1:] {
		eval, err := parseRow(row, conditions)
		if err != nil {
			return nil, fmt.Errorf("export file %s row %d: %w", path, i+2, err)
		}
		evals = append(evals, eval)
	}

	return evals, nil
}

// conditionNamesFromHeader recovers condition names from the triplet columns
func conditionNamesFromHeader(header []string) ([]string, error) {
	nCond := len(header) - len(csvHeadCols) - len(csvTailCols)
	if nCond < 3 || nCond%3 != 0 {
		return nil, fmt.Errorf("malformed header: %d columns", len(header))
	}

	names := make([]string, 0, nCond/3)
	for i := len(csvHeadCols); i < len(csvHeadCols)+nCond; i += 3 {
		name, ok := strings.CutSuffix(header[i], "_value")
		if !ok {
			return nil, fmt.Errorf("malformed condition column %q", header[i])
		}
		names = append(names, name)
	}
	return names, nil
}

func parseRow(row, conditions []string) (*contracts.Evaluation, error) {
	want := len(csvHeadCols) + 3*len(conditions) + len(csvTailCols)
	if len(row) != want {
		return nil, fmt.Errorf("expected %d columns, got %d", want, len(row))
	}

	seq, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("seq: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, row[1])
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	dataRef, err := strconv.ParseInt(row[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("data_ref: %w", err)
	}

	eval := &contracts.Evaluation{
		Seq:       seq,
		Timestamp: ts,
		DataRef:   dataRef,
		Signal:    row[3],
		Role:      contracts.SignalRole(row[4]),
	}

	col := len(csvHeadCols)
	for _, name := range conditions {
		state := contracts.ConditionState{Name: name, Reason: row[col+2]}
		if row[col] != "" {
			v, err := strconv.ParseFloat(row[col], 64)
			if err != nil {
				return nil, fmt.Errorf("condition %s value: %w", name, err)
			}
			state.Value = &v
		}
		state.Triggered, err = strconv.ParseBool(row[col+1])
		if err != nil {
			return nil, fmt.Errorf("condition %s triggered: %w", name, err)
		}
		eval.Conditions = append(eval.Conditions, state)
		col += 3
	}

	eval.FinalResult, err = strconv.ParseBool(row[col])
	if err != nil {
		return nil, fmt.Errorf("final_result: %w", err)
	}
	eval.Strength, err = strconv.ParseFloat(row[col+1], 64)
	if err != nil {
		return nil, fmt.Errorf("strength: %w", err)
	}
	eval.BlockingCondition = row[col+2]
	eval.OrderID = row[col+3]
	eval.TradeID = row[col+4]

	return eval, nil
}
