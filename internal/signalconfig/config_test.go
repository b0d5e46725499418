package signalconfig

import (
	"errors"
	"strings"
	"testing"

	"github.com/wonny/sigaudit/internal/signal"
)

const validYAML = `
meta:
  strategy_id: trend_follow_v1
  version: "1.0.0"
signals:
  - name: long_entry
    logic: AND
    role: ENTRY
    conditions:
      - type: cross
        name: golden_cross
        params:
          left: sma_fast
          right: sma_slow
          direction: above
      - type: threshold
        name: rsi_not_hot
        params:
          source: rsi14
          op: "<"
          threshold: 70
  - name: long_exit
    logic: OR
    role: EXIT
    conditions:
      - type: cross
        name: dead_cross
        params:
          left: sma_fast
          right: sma_slow
          direction: below
      - type: threshold
        name: rsi_overheat
        params:
          source: rsi14
          op: ">="
          threshold: 80
`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(validYAML), signal.NewRegistry())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if doc.Meta.StrategyID != "trend_follow_v1" {
		t.Errorf("strategy_id: got %q", doc.Meta.StrategyID)
	}
	if len(doc.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(doc.Signals))
	}

	entry, ok := doc.Signal("long_entry")
	if !ok {
		t.Fatal("long_entry not found")
	}
	if entry.Logic != "AND" || len(entry.Conditions) != 2 {
		t.Errorf("unexpected entry signal: %+v", entry)
	}

	// 해시 결정성
	h1, err := Hash(doc)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	h2, _ := Hash(doc)
	if h1 != h2 {
		t.Error("hash not deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(h1))
	}
}

func TestParse_UnknownField(t *testing.T) {
	// KnownFields(true): 오타 필드는 즉시 실패
	bad := strings.Replace(validYAML, "logic: AND", "ligic: AND", 1)
	if _, err := Parse([]byte(bad), signal.NewRegistry()); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(doc *Document)
		wantField string
	}{
		{
			"missing strategy id",
			func(doc *Document) { doc.Meta.StrategyID = "" },
			"meta.strategy_id",
		},
		{
			"no signals",
			func(doc *Document) { doc.Signals = nil },
			"signals",
		},
		{
			"empty condition list",
			func(doc *Document) { doc.Signals[0].Conditions = nil },
			"signals[0].conditions",
		},
		{
			"bad logic",
			func(doc *Document) { doc.Signals[0].Logic = "XOR" },
			"signals[0].logic",
		},
		{
			"bad role",
			func(doc *Document) { doc.Signals[1].Role = "HOLD" },
			"signals[1].role",
		},
		{
			"duplicate signal name",
			func(doc *Document) { doc.Signals[1].Name = doc.Signals[0].Name },
			"signals[1].name",
		},
		{
			"unknown condition type",
			func(doc *Document) { doc.Signals[0].Conditions[0].Type = "astrology" },
			"signals[0].conditions[0]",
		},
		{
			"param type mismatch",
			func(doc *Document) {
				doc.Signals[0].Conditions[1].Params["threshold"] = "seventy"
			},
			"signals[0].conditions[1]",
		},
	}

	registry := signal.NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(validYAML), registry)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			tt.mutate(doc)

			err = Validate(doc, registry)
			if err == nil {
				t.Fatal("expected validation error")
			}

			var vErr ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("field: got %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	registry := signal.NewRegistry()
	doc, err := Parse([]byte(validYAML), registry)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	gens, err := Build(doc, registry)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(gens) != 2 {
		t.Fatalf("expected 2 generators, got %d", len(gens))
	}
	if gens[0].Name() != "long_entry" || gens[0].Logic() != signal.LogicAND {
		t.Errorf("unexpected generator: %s/%s", gens[0].Name(), gens[0].Logic())
	}

	// 조건 등록 순서 보존. blocking condition 판정의 기준이 됨
	names := gens[0].ConditionNames()
	if len(names) != 2 || names[0] != "golden_cross" || names[1] != "rsi_not_hot" {
		t.Errorf("condition order not preserved: %v", names)
	}
}
