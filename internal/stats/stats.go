package stats

import "math"

// FieldSummary holds descriptive statistics for one sensor field over a
// sequence of samples.
type FieldSummary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of values around mean.
func StdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}

// Min returns the smallest value, or 0 for an empty slice.
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the largest value, or 0 for an empty slice.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// MovingAverage returns the mean of the last n values.
func MovingAverage(values []float64, n int) float64 {
	if n <= 0 || len(values) == 0 {
		return 0
	}
	if n > len(values) {
		n = len(values)
	}
	return Mean(values[len(values)-n:])
}

// Slope returns the ordinary least-squares slope of values against their
// index position. Fewer than two points have no trend.
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := float64(n)*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (float64(n)*sumXY - sumX*sumY) / denom
}

// Summarize computes the full descriptive summary of values.
func Summarize(values []float64) FieldSummary {
	if len(values) == 0 {
		return FieldSummary{}
	}

	mean := Mean(values)
	return FieldSummary{
		Mean:   mean,
		StdDev: StdDev(values, mean),
		Min:    Min(values),
		Max:    Max(values),
		Count:  len(values),
	}
}
