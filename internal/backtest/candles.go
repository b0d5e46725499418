package backtest

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/wonny/sigaudit/internal/contracts"
)

// SyntheticCandles generates a deterministic random-walk candle series.
// 데이터 파일 없이 바로 돌려볼 수 있는 기본 시나리오용이다.
func SyntheticCandles(code string, bars int, seed int64) []contracts.DataPoint {
	rng := rand.New(rand.NewSource(seed))
	candles := make([]contracts.DataPoint, 0, bars)

	price := 10000.0
	start := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

	for i := 0; i < bars; i++ {
		// 약한 추세 + 노이즈
		drift := 0.0002 * math.Sin(float64(i)/40)
		noise := rng.NormFloat64() * 0.008
		open := price
		price = price * (1 + drift + noise)

		high := math.Max(open, price) * (1 + rng.Float64()*0.003)
		low := math.Min(open, price) * (1 - rng.Float64()*0.003)

		candles = append(candles, contracts.DataPoint{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Seq:    int64(i),
			Code:   code,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: 1000 + rng.Int63n(9000),
		})
	}

	return candles
}

// LoadCandlesCSV reads a candle series from a CSV file with the header
// time,open,high,low,close,volume. Timestamps are RFC3339.
func LoadCandlesCSV(path, code string) ([]contracts.DataPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read candle file: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("candle file %s has no data rows", path)
	}

	candles := make([]contracts.DataPoint, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != 6 {
			return nil, fmt.Errorf("candle row %d: want 6 fields, got %d", i+1, len(row))
		}

		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("candle row %d: parse time: %w", i+1, err)
		}

		vals := make([]float64, 4)
		for j := 0; j < 4; j++ {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("candle row %d: parse %q: %w", i+1, row[j+1], err)
			}
			vals[j] = v
		}

		volume, err := strconv.ParseInt(row[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("candle row %d: parse volume: %w", i+1, err)
		}

		candles = append(candles, contracts.DataPoint{
			Time:   ts,
			Seq:    int64(i),
			Code:   code,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: volume,
		})
	}

	return candles, nil
}
