package assoc

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrCalculation is returned when a metric yields NaN or ±Inf, typically
// because of zero marginals.
var ErrCalculation = errors.New("association metric calculation failed")

// Metric selects an association measure.
type Metric int

const (
	LLR Metric = iota
	PMIMetric
	Chi
	DiceMetric
	MI
	GMean
	MS
	Odds
)

// Core is the default set of emitted metrics.
var Core = []Metric{LLR, PMIMetric, Chi, DiceMetric}

type metricDef struct {
	name string
	fn   func(k11, k12, k21, k22 int64) float64
}

var metrics = [...]metricDef{
	LLR:        {"llr", LogLikelihoodRatio},
	PMIMetric:  {"pmi", PMI},
	Chi:        {"chi", ChiSquared},
	DiceMetric: {"dice", Dice},
	MI:         {"mi", MutualInformation},
	GMean:      {"gmean", GeometricMean},
	MS:         {"ms", MinimumSensitivity},
	Odds:       {"odds", OddsRatio},
}

// String returns the metric's stream name.
func (m Metric) String() string {
	if !m.Valid() {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metrics[m].name
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m >= 0 && int(m) < len(metrics)
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown association metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(b []byte) error {
	v, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMetric resolves a stream name (case-insensitive) to a Metric.
func ParseMetric(s string) (Metric, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, def := range metrics {
		if def.name == name {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("unknown association metric %q", s)
}

// ParseMetrics resolves a list of names, dropping duplicates.
func ParseMetrics(names []string) ([]Metric, error) {
	seen := make(map[Metric]bool, len(names))
	out := make([]Metric, 0, len(names))
	for _, n := range names {
		m, err := ParseMetric(n)
		if err != nil {
			return nil, err
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out, nil
}

// Compute scores the table. Tables with a negative cell and results that
// are not finite are reported as errors.
func (m Metric) Compute(t Table) (float64, error) {
	if !m.Valid() {
		return 0, fmt.Errorf("%w: unknown metric %d", ErrCalculation, int(m))
	}
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %s: %v", ErrCalculation, m, ErrNegativeCell)
	}
	v := metrics[m].fn(t.K11, t.K12, t.K21, t.K22)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s = %v for %s", ErrCalculation, m, v, t)
	}
	return v, nil
}
