// Package features derives rolling momentum columns from daily price series.
package features

// RollingReturn computes the trailing return over period observations.
//
//	return[i] = (price[i] - price[i-period]) / price[i-period], NULL if i < period
//
// The window spans period+1 observations. A zero base price yields NULL.
func RollingReturn(series []float64, period int) []*float64 {
	out := make([]*float64, len(series))
	if period < 1 {
		return out
	}
	for i := period; i < len(series); i++ {
		base := series[i-period]
		if base == 0 {
			continue
		}
		r := (series[i] - base) / base
		out[i] = &r
	}
	return out
}

// RollingHigh computes the maximum over the trailing window of period
// observations, inclusive of i. NULL if i < period-1.
func RollingHigh(series []float64, period int) []*float64 {
	out := make([]*float64, len(series))
	if period < 1 {
		return out
	}
	// monotonic deque of indices with decreasing prices
	deque := make([]int, 0, period)
	for i, price := range series {
		for len(deque) > 0 && series[deque[len(deque)-1]] <= price {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)
		if deque[0] <= i-period {
			deque = deque[1:]
		}
		if i >= period-1 {
			h := series[deque[0]]
			out[i] = &h
		}
	}
	return out
}

// RollingMean computes the simple moving average over the trailing window of
// period observations, inclusive of i. NULL if i < period-1.
func RollingMean(series []float64, period int) []*float64 {
	out := make([]*float64, len(series))
	if period < 1 {
		return out
	}
	for i := period - 1; i < len(series); i++ {
		// summed per window so values do not depend on accumulated drift
		sum := 0.0
		for _, price := range series[i-period+1 : i+1] {
			sum += price
		}
		m := sum / float64(period)
		out[i] = &m
	}
	return out
}
