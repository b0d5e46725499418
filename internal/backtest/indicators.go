package backtest

// Host-owned indicator state. The evaluation engine only ever sees the
// per-bar snapshot handed to it through contracts.IndicatorView. 지표
// 계산과 워밍업 관리는 전적으로 호스트 책임이다.

// SMA is a simple moving average over a fixed window
type SMA struct {
	period int
	window []float64
	sum    float64
}

// NewSMA creates a moving average with the given period
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		window: make([]float64, 0, period),
	}
}

// Update feeds the next value into the window
func (s *SMA) Update(v float64) {
	s.window = append(s.window, v)
	s.sum += v
	if len(s.window) > s.period {
		s.sum -= s.window[0]
		s.window = s.window[1:]
	}
}

// Value returns the current average. Returns false during warmup.
func (s *SMA) Value() (float64, bool) {
	if len(s.window) < s.period {
		return 0, false
	}
	return s.sum / float64(s.period), true
}

// RSI computes the relative strength index with Wilder smoothing
type RSI struct {
	period  int
	seen    int
	prev    float64
	avgGain float64
	avgLoss float64
}

// NewRSI creates an RSI indicator with the given period
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Update feeds the next close price
func (r *RSI) Update(close float64) {
	if r.seen == 0 {
		r.prev = close
		r.seen++
		return
	}

	change := close - r.prev
	r.prev = close

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if r.seen <= r.period {
		// 워밍업 구간은 단순 평균 누적
		r.avgGain += gain / float64(r.period)
		r.avgLoss += loss / float64(r.period)
	} else {
		p := float64(r.period)
		r.avgGain = (r.avgGain*(p-1) + gain) / p
		r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	}
	r.seen++
}

// Value returns the current RSI in [0, 100]. Returns false during warmup.
func (r *RSI) Value() (float64, bool) {
	if r.seen <= r.period {
		return 0, false
	}
	if r.avgLoss == 0 {
		return 100, true
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs), true
}
