package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricFuncs(t *testing.T) {
	tests := []struct {
		name           string
		a, b           []float64
		l1, sqL2, linf float64
	}{
		{"Identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 0, 0, 0},
		{"AxisAligned", []float64{0, 0, 0}, []float64{0, 0, 2}, 2, 4, 2},
		{"Pythagorean", []float64{0, 0, 0}, []float64{3, 4, 0}, 7, 25, 4},
		{"Negative", []float64{-1, -1, -1}, []float64{1, 1, 1}, 6, 12, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.l1, L1(tt.a, tt.b), 1e-6)
			assert.InDelta(t, tt.sqL2, SquaredL2(tt.a, tt.b), 1e-6)
			assert.InDelta(t, tt.linf, Linf(tt.a, tt.b), 1e-6)
		})
	}
}

func TestMetricFuncsFloat32(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{5, 5, 5}

	assert.InDelta(t, float32(15), L1(a, b), 1e-5)
	assert.InDelta(t, float32(75), SquaredL2(a, b), 1e-5)
	assert.Equal(t, float32(5), Linf(a, b))
}

func TestMetric(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "L2", MetricL2.String())
		assert.Equal(t, "L1", MetricL1.String())
		assert.Equal(t, "Linf", MetricLinf.String())
		assert.Equal(t, "Unknown(99)", Metric(99).String())
	})

	t.Run("Parse", func(t *testing.T) {
		for _, m := range []Metric{MetricL1, MetricL2, MetricLinf} {
			got, err := ParseMetric(m.String())
			require.NoError(t, err)
			assert.Equal(t, m, got)
		}

		for _, tag := range []string{"", "l2", "L3", "Cosine", "LINF"} {
			_, err := ParseMetric(tag)
			assert.ErrorIs(t, err, ErrUnknownMetric, "tag %q", tag)
		}
	})

	t.Run("Provider", func(t *testing.T) {
		f, err := Provider[float32](MetricL2)
		require.NoError(t, err)
		assert.InDelta(t, float32(25), f([]float32{0, 0, 0}, []float32{3, 4, 0}), 1e-5)

		f, err = Provider[float32](MetricL1)
		require.NoError(t, err)
		assert.InDelta(t, float32(7), f([]float32{0, 0, 0}, []float32{3, 4, 0}), 1e-5)

		g, err := Provider[float64](MetricLinf)
		require.NoError(t, err)
		assert.Equal(t, 4.0, g([]float64{0, 0, 0}, []float64{3, 4, 0}))

		_, err = Provider[float64](Metric(99))
		assert.ErrorIs(t, err, ErrUnknownMetric)
		assert.False(t, Metric(99).Valid())
	})
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		metric Metric
		radius float64
		want   float64
	}{
		{MetricL2, 1.5, 2.25},
		{MetricL2, 2, 4},
		{MetricL1, 1.5, 1.5},
		{MetricLinf, 0.25, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.metric.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Threshold(tt.metric, tt.radius))
		})
	}
}
