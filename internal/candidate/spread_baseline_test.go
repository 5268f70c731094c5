package candidate

import "testing"

func TestSpreadBaselineNoSamples(t *testing.T) {
	b := NewSpreadBaseline(60)
	if _, ok := b.Median(); ok {
		t.Error("Median() with no samples should report false")
	}
}

func TestSpreadBaselineOddCountMedian(t *testing.T) {
	b := NewSpreadBaseline(60)
	b.Push(0, 0.01, true)
	b.Push(1000, 0.03, true)
	b.Push(2000, 0.02, true)
	got, ok := b.Median()
	if !ok {
		t.Fatal("Median() should report true")
	}
	if got != 0.02 {
		t.Errorf("Median() = %v, want 0.02", got)
	}
}

func TestSpreadBaselineEvenCountMedian(t *testing.T) {
	b := NewSpreadBaseline(60)
	b.Push(0, 0.01, true)
	b.Push(1000, 0.03, true)
	got, ok := b.Median()
	if !ok {
		t.Fatal("Median() should report true")
	}
	if got != 0.02 {
		t.Errorf("Median() = %v, want 0.02", got)
	}
}

func TestSpreadBaselinePrunesOutsideWindow(t *testing.T) {
	b := NewSpreadBaseline(5)
	b.Push(0, 0.01, true)
	b.Push(10000, 0.05, true) // 10s later, outside a 5s window
	got, ok := b.Median()
	if !ok {
		t.Fatal("Median() should report true")
	}
	if got != 0.05 {
		t.Errorf("Median() = %v, want only the surviving sample 0.05", got)
	}
}

func TestSpreadBaselineSkipsUndefinedSamples(t *testing.T) {
	b := NewSpreadBaseline(60)
	b.Push(0, 0, false)
	if _, ok := b.Median(); ok {
		t.Error("Median() should report false when no defined sample was ever pushed")
	}
}
