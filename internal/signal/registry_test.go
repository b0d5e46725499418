package signal

import (
	"strings"
	"testing"

	"github.com/wonny/sigaudit/internal/contracts"
)

func TestRegistry_BuildThreshold(t *testing.T) {
	r := NewRegistry()

	cond, err := r.Build("threshold", "rsi_oversold", map[string]any{
		"source":    "rsi14",
		"op":        "<",
		"threshold": 30,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if cond.Name() != "rsi_oversold" {
		t.Errorf("name: got %q", cond.Name())
	}

	state, err := cond.Evaluate(&contracts.DataPoint{}, contracts.IndicatorMap{"rsi14": 25})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !state.Triggered {
		t.Errorf("25 < 30 should trigger, reason: %q", state.Reason)
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build("fibonacci", "f1", map[string]any{})
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	// 에러 메시지에 알려진 타입 목록 포함
	if !strings.Contains(err.Error(), "threshold") {
		t.Errorf("error should list known types, got: %v", err)
	}
}

func TestRegistry_ParamTypeMismatch(t *testing.T) {
	r := NewRegistry()

	// threshold에 문자열 → 묵시적 변환 없이 설정 오류
	_, err := r.Build("threshold", "bad", map[string]any{
		"source":    "rsi14",
		"op":        "<",
		"threshold": "thirty",
	})
	if err == nil {
		t.Fatal("expected type mismatch error")
	}

	// source에 숫자
	_, err = r.Build("threshold", "bad2", map[string]any{
		"source":    14,
		"op":        "<",
		"threshold": 30,
	})
	if err == nil {
		t.Fatal("expected type mismatch error for source")
	}

	// 필수 파라미터 누락
	_, err = r.Build("threshold", "bad3", map[string]any{"source": "rsi14"})
	if err == nil {
		t.Fatal("expected missing parameter error")
	}
}

func TestRegistry_BuildCross(t *testing.T) {
	r := NewRegistry()

	_, err := r.Build("cross", "golden", map[string]any{
		"left":      "sma_fast",
		"right":     "sma_slow",
		"direction": "above",
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	_, err = r.Build("cross", "bad", map[string]any{
		"left":      "a",
		"right":     "b",
		"direction": "sideways",
	})
	if err == nil {
		t.Fatal("expected error for invalid direction")
	}
}

func TestRegistry_CustomType(t *testing.T) {
	r := NewRegistry()
	r.Register("always", func(name string, params map[string]any) (Condition, error) {
		return &fixedCondition{name: name, triggered: true}, nil
	})

	cond, err := r.Build("always", "a1", nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	state, _ := cond.Evaluate(&contracts.DataPoint{}, nil)
	if !state.Triggered {
		t.Error("custom condition should trigger")
	}
}
