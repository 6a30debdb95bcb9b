// Package assoc computes association scores from a 2x2 contingency table.
// Every function is pure and takes the four observed cells.
package assoc

import "math"

// LogLikelihoodRatio calculates Dunning's log-likelihood ratio (G²)
//
// LLR = 2 * (H(rows) + H(cols) - H(matrix))
//
// Where H is the unnormalized entropy Σx·log(Σx) - Σ x·log(x). When
// round-off makes the sum negative the result is clamped to 0.
func LogLikelihoodRatio(k11, k12, k21, k22 int64) float64 {
	rowEntropy := entropy(k11+k12, k21+k22)
	columnEntropy := entropy(k11+k21, k12+k22)
	matrixEntropy := entropy(k11, k12, k21, k22)
	if rowEntropy+columnEntropy < matrixEntropy {
		return 0
	}
	return 2.0 * (rowEntropy + columnEntropy - matrixEntropy)
}

// PMI calculates pointwise mutual information in the expected-value form
//
// PMI = log2(e11 / (e12 * e21))
//
// Where:
//   - e11 = (k11+k12)(k11+k21) / N
//   - e12 = (k11+k12)(k12+k22) / N
//   - e21 = (k21+k22)(k11+k21) / N
//
// This is not log2(O/E); see MutualInformation for that form.
func PMI(k11, k12, k21, k22 int64) float64 {
	e := Table{k11, k12, k21, k22}.expected()
	return math.Log2(e.e11 / (e.e12 * e.e21))
}

// ChiSquared calculates Pearson's chi-squared statistic
//
// X² = N(k11·k22 - k21·k12)² / ((k11+k21)(k12+k22)(k11+k12)(k21+k22))
func ChiSquared(k11, k12, k21, k22 int64) float64 {
	n := float64(k11 + k12 + k21 + k22)
	d := float64(k11)*float64(k22) - float64(k21)*float64(k12)
	den := float64(k11+k21) * float64(k12+k22) * float64(k11+k12) * float64(k21+k22)
	return n * d * d / den
}

// Dice calculates the Dice coefficient 2·k11 / (2·k11 + k12 + k21), in [0, 1].
func Dice(k11, k12, k21, k22 int64) float64 {
	return 2.0 * float64(k11) / float64(2*k11+k12+k21)
}

// MutualInformation calculates ln(o11 / e11).
func MutualInformation(k11, k12, k21, k22 int64) float64 {
	e := Table{k11, k12, k21, k22}.expected()
	return math.Log(float64(k11) / e.e11)
}

// GeometricMean calculates o11 / sqrt(N · e11).
func GeometricMean(k11, k12, k21, k22 int64) float64 {
	e := Table{k11, k12, k21, k22}.expected()
	return float64(k11) / math.Sqrt(e.n*e.e11)
}

// MinimumSensitivity calculates min(o11/r1, o11/c1).
func MinimumSensitivity(k11, k12, k21, k22 int64) float64 {
	e := Table{k11, k12, k21, k22}.expected()
	o11 := float64(k11)
	return math.Min(o11/e.r1, o11/e.c1)
}

// OddsRatio calculates the discounted odds ratio
// ((o11+.5)(o22+.5)) / ((o12+.5)(o21+.5)).
func OddsRatio(k11, k12, k21, k22 int64) float64 {
	return ((float64(k11) + 0.5) * (float64(k22) + 0.5)) /
		((float64(k12) + 0.5) * (float64(k21) + 0.5))
}

func xLogX(x int64) float64 {
	if x == 0 {
		return 0
	}
	f := float64(x)
	return f * math.Log(f)
}

func entropy(elements ...int64) float64 {
	var sum int64
	var result float64
	for _, e := range elements {
		result += xLogX(e)
		sum += e
	}
	return xLogX(sum) - result
}
