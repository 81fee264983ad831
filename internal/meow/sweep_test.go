package meow

import "testing"

func TestAxisValues_PositiveJump(t *testing.T) {
	got := axisValues(SweepAxis{Start: 0, Stop: 1, Jump: 0.5})
	want := []float64{0, 0.5, 1}
	if len(got) != len(want) {
		t.Fatalf("axisValues() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("axisValues()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAxisValues_NegativeJump(t *testing.T) {
	got := axisValues(SweepAxis{Start: 1, Stop: 0, Jump: -0.5})
	want := []float64{1, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("axisValues() = %v, want %v", got, want)
	}
}

func TestAxisLength(t *testing.T) {
	if n := AxisLength(SweepAxis{Start: 0, Stop: 10, Jump: 2}); n != 6 {
		t.Errorf("AxisLength() = %d, want 6", n)
	}
}

func TestExpandSweeps_NoAxes(t *testing.T) {
	p := &Pattern{}
	got := ExpandSweeps(p)
	if len(got) != 1 || len(got[0]) != 0 {
		t.Fatalf("ExpandSweeps() with no sweep = %v, want single empty assignment", got)
	}
}

func TestExpandSweeps_SingleAxis(t *testing.T) {
	p := &Pattern{Sweep: map[string]SweepAxis{"x": {Start: 0, Stop: 2, Jump: 1}}}
	got := ExpandSweeps(p)
	if len(got) != 3 {
		t.Fatalf("ExpandSweeps() = %d assignments, want 3", len(got))
	}
	if got[0]["x"] != 0 || got[1]["x"] != 1 || got[2]["x"] != 2 {
		t.Errorf("ExpandSweeps() = %v, want ordered 0,1,2", got)
	}
}

func TestExpandSweeps_CartesianProduct(t *testing.T) {
	p := &Pattern{Sweep: map[string]SweepAxis{
		"x": {Start: 0, Stop: 1, Jump: 1},
		"y": {Start: 0, Stop: 1, Jump: 1},
	}}
	got := ExpandSweeps(p)
	if len(got) != 4 {
		t.Fatalf("ExpandSweeps() = %d assignments, want 4 (2x2)", len(got))
	}
}

func TestExpandSweeps_DeterministicOrdering(t *testing.T) {
	p := &Pattern{Sweep: map[string]SweepAxis{
		"x": {Start: 0, Stop: 1, Jump: 1},
		"y": {Start: 0, Stop: 1, Jump: 1},
	}}
	first := ExpandSweeps(p)
	second := ExpandSweeps(p)
	for i := range first {
		if first[i]["x"] != second[i]["x"] || first[i]["y"] != second[i]["y"] {
			t.Fatalf("ExpandSweeps() not deterministic across calls")
		}
	}
}
