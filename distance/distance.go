package distance

import (
	"errors"
	"fmt"
)

// Float is the set of supported coordinate types.
type Float interface {
	~float32 | ~float64
}

// ErrUnknownMetric is returned for metric tags or values outside L1, L2 and Linf.
var ErrUnknownMetric = errors.New("unknown metric")

// Metric represents the distance metric used for radius search.
type Metric int

const (
	MetricL2 Metric = iota
	MetricL1
	MetricLinf
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricL1:
		return "L1"
	case MetricLinf:
		return "Linf"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	return m == MetricL2 || m == MetricL1 || m == MetricLinf
}

// ParseMetric resolves a metric tag. Only "L1", "L2" and "Linf" are accepted;
// matching is case-sensitive.
func ParseMetric(tag string) (Metric, error) {
	switch tag {
	case "L2":
		return MetricL2, nil
	case "L1":
		return MetricL1, nil
	case "Linf":
		return MetricLinf, nil
	default:
		return 0, fmt.Errorf("%w %q: must be one of (L1, L2, Linf)", ErrUnknownMetric, tag)
	}
}

// Func computes the distance between two 3-D points given as slices of at
// least three coordinates.
type Func[T Float] func(a, b []T) T

// L1 returns the Manhattan distance between a and b.
func L1[T Float](a, b []T) T {
	return abs(a[0]-b[0]) + abs(a[1]-b[1]) + abs(a[2]-b[2])
}

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2[T Float](a, b []T) T {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dx*dx + dy*dy + dz*dz
}

// Linf returns the Chebyshev distance between a and b.
func Linf[T Float](a, b []T) T {
	return max(abs(a[0]-b[0]), abs(a[1]-b[1]), abs(a[2]-b[2]))
}

// Provider returns the distance function for the given metric. MetricL2
// resolves to SquaredL2; compare its result against Threshold.
func Provider[T Float](m Metric) (Func[T], error) {
	switch m {
	case MetricL2:
		return SquaredL2[T], nil
	case MetricL1:
		return L1[T], nil
	case MetricLinf:
		return Linf[T], nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMetric, m)
	}
}

// Threshold returns the value a Provider distance is compared against for
// the given radius: radius squared for MetricL2, radius otherwise.
func Threshold(m Metric, radius float64) float64 {
	if m == MetricL2 {
		return radius * radius
	}
	return radius
}

func abs[T Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
