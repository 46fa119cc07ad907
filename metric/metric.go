// Package metric provides the pairwise distance functions used to index and traverse a table.
package metric

import (
	"fmt"
	"math"

	"github.com/go-sif/disttable/types"
	"gonum.org/v1/gonum/floats"
)

// LMetric is the Minkowski distance of order P
type LMetric struct {
	P float64
}

// Euclidean returns the L2 Metric
func Euclidean() types.Metric {
	return &LMetric{P: 2}
}

// Manhattan returns the L1 Metric
func Manhattan() types.Metric {
	return &LMetric{P: 1}
}

// Chebyshev returns the L-infinity Metric
func Chebyshev() types.Metric {
	return &LMetric{P: math.Inf(1)}
}

// Distance returns the Minkowski distance between a and b
func (m *LMetric) Distance(a, b types.Point) float64 {
	return floats.Distance(a, b, m.P)
}

// Name returns the name of this Metric
func (m *LMetric) Name() string {
	switch {
	case m.P == 1:
		return "manhattan"
	case m.P == 2:
		return "euclidean"
	case math.IsInf(m.P, 1):
		return "chebyshev"
	default:
		return fmt.Sprintf("minkowski(%g)", m.P)
	}
}

// squaredEuclidean is the squared L2 distance, cheaper when only comparisons matter
type squaredEuclidean struct{}

// SquaredEuclidean returns the squared L2 Metric. It does not satisfy the triangle
// inequality, so it should not be used to build ball bounds.
func SquaredEuclidean() types.Metric {
	return squaredEuclidean{}
}

func (squaredEuclidean) Distance(a, b types.Point) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (squaredEuclidean) Name() string {
	return "squared-euclidean"
}

// FromName looks up a Metric by the name it reports
func FromName(name string) (types.Metric, error) {
	switch name {
	case "euclidean", "l2":
		return Euclidean(), nil
	case "manhattan", "l1":
		return Manhattan(), nil
	case "chebyshev", "linf":
		return Chebyshev(), nil
	case "squared-euclidean":
		return SquaredEuclidean(), nil
	default:
		return nil, fmt.Errorf("Unknown metric %q", name)
	}
}
