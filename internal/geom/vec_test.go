package geom

import (
	"math"
	"testing"
)

func TestVecArithmetic(t *testing.T) {
	a := Vec2{X: 3, Y: 4}
	b := Vec2{X: 1, Y: -2}

	if got := a.Add(b); got != (Vec2{X: 4, Y: 2}) {
		t.Fatalf("Add: got %+v", got)
	}
	if got := a.Sub(b); got != (Vec2{X: 2, Y: 6}) {
		t.Fatalf("Sub: got %+v", got)
	}
	if got := a.Scale(2); got != (Vec2{X: 6, Y: 8}) {
		t.Fatalf("Scale: got %+v", got)
	}
	if got := a.Length(); got != 5 {
		t.Fatalf("Length: got %v", got)
	}
	if got := Dist(a, b); math.Abs(got-math.Hypot(2, 6)) > 1e-12 {
		t.Fatalf("Dist: got %v", got)
	}
}

func TestNormalized(t *testing.T) {
	v := Vec2{X: 3, Y: 4}.Normalized()
	if math.Abs(v.Length()-1) > 1e-12 {
		t.Fatalf("expected unit length, got %v", v.Length())
	}
	if got := (Vec2{}).Normalized(); got != (Vec2{}) {
		t.Fatalf("zero vector must stay zero, got %+v", got)
	}
}
