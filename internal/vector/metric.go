package vector

import (
	"fmt"
	"math"
)

// Metric identifies the similarity metric used to rank query results.
type Metric string

const (
	// MetricCosine ranks by cosine similarity.
	MetricCosine Metric = "cosine"
	// MetricDot ranks by inner product. Equals cosine for normalized vectors.
	MetricDot Metric = "dot"
	// MetricEuclidean ranks by L2 distance, mapped to 1/(1+d) so that higher
	// scores are always better regardless of metric.
	MetricEuclidean Metric = "euclidean"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, "":
		return MetricCosine, nil
	case MetricDot:
		return MetricDot, nil
	case MetricEuclidean:
		return MetricEuclidean, nil
	default:
		return "", fmt.Errorf("unknown similarity metric: %s (supported: cosine, dot, euclidean)", s)
	}
}

// Score returns the similarity of two equal-length vectors under m.
// Higher is better for every metric.
func (m Metric) Score(a, b []float32) float64 {
	switch m {
	case MetricDot:
		return dot(a, b)
	case MetricEuclidean:
		var sum float64
		for i := range a {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return 1.0 / (1.0 + math.Sqrt(sum))
	default: // cosine
		na, nb := l2Norm(a), l2Norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i] * b[i])
	}
	return sum
}

func l2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v * v)
	}
	return math.Sqrt(sum)
}
