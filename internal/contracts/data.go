package contracts

import "time"

// DataPoint represents one step's market observation supplied by the host
// loop. The engine treats it as opaque beyond what conditions read from it.
// ⭐ SSOT: 호스트 루프 → 평가 엔진 데이터 전달
type DataPoint struct {
	Time   time.Time `json:"time"`
	Seq    int64     `json:"seq"` // 데이터 스트림 내 인덱스
	Code   string    `json:"code"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// IndicatorView is the read-only view of host-owned indicator state that
// conditions may consult during evaluation. The second return value is
// false while the indicator has not accumulated enough history yet:
// a normal outcome, not an error.
type IndicatorView interface {
	Value(name string) (float64, bool)
}

// IndicatorMap is a map-backed IndicatorView for hosts and tests
type IndicatorMap map[string]float64

// Value implements IndicatorView
func (m IndicatorMap) Value(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// Field returns a named price field from the data point. 조건 설정에서
// source가 지표명이 아닌 가격 필드를 가리킬 때 사용한다.
func (d *DataPoint) Field(name string) (float64, bool) {
	switch name {
	case "open":
		return d.Open, true
	case "high":
		return d.High, true
	case "low":
		return d.Low, true
	case "close":
		return d.Close, true
	case "volume":
		return float64(d.Volume), true
	default:
		return 0, false
	}
}
