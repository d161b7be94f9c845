package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// gaussianTruncate is the kernel half-width in standard deviations.
const gaussianTruncate = 4.0

// GaussianSmooth returns y convolved with a normalized Gaussian kernel of
// standard deviation sigma (in samples). Edges use half-sample symmetric
// reflection. A non-positive sigma returns an exact copy of y.
func GaussianSmooth(y []float64, sigma float64) []float64 {
	out := make([]float64, len(y))
	if sigma <= 0 || math.IsNaN(sigma) || len(y) == 0 {
		copy(out, y)
		return out
	}

	kernel := gaussianKernel(sigma)
	radius := (len(kernel) - 1) / 2

	for i := range y {
		var acc float64
		for k, w := range kernel {
			acc += w * y[reflectIndex(i+k-radius, len(y))]
		}
		out[i] = acc
	}
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(gaussianTruncate*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-0.5 * d * d / (sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// reflectIndex maps i into [0, n) as d c b a | a b c d | d c b a.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
