package assoc

import (
	"errors"
	"math"
	"testing"
)

func TestLogLikelihoodRatioReferenceValues(t *testing.T) {
	cases := []struct {
		k11, k12, k21, k22 int64
		want               float64
	}{
		{1, 0, 0, 1, 2.772589},
		{10, 0, 0, 10, 27.72589},
		{5, 1995, 0, 100000, 39.33052},
		{1000, 1995, 1000, 100000, 4730.737},
		{1000, 1000, 1000, 100000, 5734.343},
		{1000, 1000, 1000, 99000, 5714.932},
	}
	for _, c := range cases {
		got := LogLikelihoodRatio(c.k11, c.k12, c.k21, c.k22)
		if math.Abs(got-c.want) > 0.001 {
			t.Errorf("LLR(%d,%d,%d,%d) = %f, want %f", c.k11, c.k12, c.k21, c.k22, got, c.want)
		}
	}
}

func TestLogLikelihoodRatioIndependent(t *testing.T) {
	// Perfectly independent table
	if got := LogLikelihoodRatio(1, 1, 1, 1); got != 0 {
		t.Errorf("LLR of independent table should be 0, got %f", got)
	}
	if got := LogLikelihoodRatio(25, 25, 25, 25); math.Abs(got) > 1e-9 {
		t.Errorf("LLR of independent table should be ~0, got %f", got)
	}
}

func TestDiceIwoJima(t *testing.T) {
	// two occurrences of "iwo jima", head=2, tail=2, N=100
	table, err := NewTable(2, 2, 2, 100)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if table != (Table{K11: 2, K12: 0, K21: 0, K22: 98}) {
		t.Fatalf("table = %+v, want 2/0/0/98", table)
	}

	dice, err := DiceMetric.Compute(table)
	if err != nil {
		t.Fatalf("Dice: %v", err)
	}
	if dice != 1.0 {
		t.Errorf("Dice = %f, want 1.0", dice)
	}
}

func TestDiceBounds(t *testing.T) {
	for k11 := int64(0); k11 <= 6; k11++ {
		for k12 := int64(0); k12 <= 6; k12++ {
			for k21 := int64(0); k21 <= 6; k21++ {
				if k11+k12+k21 == 0 {
					continue
				}
				d := Dice(k11, k12, k21, 10)
				if d < 0 || d > 1 {
					t.Errorf("Dice(%d,%d,%d) = %f outside [0,1]", k11, k12, k21, d)
				}
			}
		}
	}
}

func TestChiSquared(t *testing.T) {
	if got := ChiSquared(2, 0, 0, 98); math.Abs(got-100) > 1e-9 {
		t.Errorf("Chi(2,0,0,98) = %f, want 100", got)
	}
	if got := ChiSquared(10, 5, 5, 80); math.Abs(got-36.947328) > 1e-5 {
		t.Errorf("Chi(10,5,5,80) = %f, want 36.947328", got)
	}
	// Independent: zero
	if got := ChiSquared(10, 10, 10, 10); got != 0 {
		t.Errorf("Chi of independent table should be 0, got %f", got)
	}
}

func TestPMIExpectedValueForm(t *testing.T) {
	if got := PMI(2, 0, 0, 98); math.Abs(got-(-6.585563)) > 1e-5 {
		t.Errorf("PMI(2,0,0,98) = %f, want -6.585563", got)
	}
	if got := PMI(10, 5, 5, 80); math.Abs(got-(-6.174926)) > 1e-5 {
		t.Errorf("PMI(10,5,5,80) = %f, want -6.174926", got)
	}
}

func TestMutualInformation(t *testing.T) {
	// o11 = 2, e11 = 2*2/100
	want := math.Log(2 / 0.04)
	if got := MutualInformation(2, 0, 0, 98); math.Abs(got-want) > 1e-9 {
		t.Errorf("MI = %f, want %f", got, want)
	}
}

func TestComputeRejectsDegenerate(t *testing.T) {
	// Zero marginals: Dice 0/0 and PMI log of Inf/NaN
	zero := Table{}
	for _, m := range []Metric{DiceMetric, PMIMetric, Chi} {
		if _, err := m.Compute(zero); !errors.Is(err, ErrCalculation) {
			t.Errorf("%s on empty table: expected ErrCalculation, got %v", m, err)
		}
	}

	// Negative cell
	if _, err := LLR.Compute(Table{K11: 3, K12: -1, K21: 0, K22: 10}); !errors.Is(err, ErrCalculation) {
		t.Errorf("expected ErrCalculation for negative cell, got %v", err)
	}
}

func TestNewTableNegative(t *testing.T) {
	// head smaller than joint frequency
	if _, err := NewTable(5, 3, 10, 100); !errors.Is(err, ErrNegativeCell) {
		t.Errorf("expected ErrNegativeCell, got %v", err)
	}
	// total smaller than head+tail-joint
	if _, err := NewTable(1, 10, 10, 5); !errors.Is(err, ErrNegativeCell) {
		t.Errorf("expected ErrNegativeCell, got %v", err)
	}
}

func TestContingencyNonNegativity(t *testing.T) {
	for joint := int64(0); joint <= 5; joint++ {
		for head := joint; head <= joint+5; head++ {
			for tail := joint; tail <= joint+5; tail++ {
				total := head + tail - joint
				for extra := int64(0); extra <= 3; extra++ {
					table, err := NewTable(joint, head, tail, total+extra)
					if err != nil {
						t.Fatalf("NewTable(%d,%d,%d,%d): %v", joint, head, tail, total+extra, err)
					}
					if !table.Valid() {
						t.Errorf("table %s has a negative cell", table)
					}
				}
			}
		}
	}
}

func TestTableString(t *testing.T) {
	table := Table{K11: 2, K12: 0, K21: 0, K22: 98}
	if got := table.String(); got != "2\t0\t0\t98" {
		t.Errorf("String() = %q", got)
	}
	if table.N() != 100 {
		t.Errorf("N() = %d, want 100", table.N())
	}
}

func TestParseMetric(t *testing.T) {
	for _, m := range []Metric{LLR, PMIMetric, Chi, DiceMetric, MI, GMean, MS, Odds} {
		got, err := ParseMetric(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMetric(%q) = %v, %v", m.String(), got, err)
		}
	}
	if m, err := ParseMetric(" LLR "); err != nil || m != LLR {
		t.Errorf("ParseMetric should be case-insensitive, got %v, %v", m, err)
	}
	if _, err := ParseMetric("fisher"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestParseMetricsDedup(t *testing.T) {
	ms, err := ParseMetrics([]string{"llr", "dice", "LLR"})
	if err != nil {
		t.Fatalf("ParseMetrics: %v", err)
	}
	if len(ms) != 2 || ms[0] != LLR || ms[1] != DiceMetric {
		t.Errorf("got %v, want [llr dice]", ms)
	}
}
