package integrators

import (
	"testing"

	"github.com/san-kum/turretctl/internal/kinematics"
)

func TestEuler_Step(t *testing.T) {
	e, err := NewEuler(10)
	if err != nil {
		t.Fatalf("NewEuler: %v", err)
	}

	q := kinematics.Joints{0, 0, 0.45}
	dq := kinematics.Joints{1, -2, 0.5}

	got := e.Step(q, dq)
	want := kinematics.Joints{0 + 1.0/10, 0 - 2.0/10, 0.45 + 0.5/10}
	if got != want {
		t.Errorf("Step() = %v, want %v", got, want)
	}
}

func TestEuler_ZeroVelocityHolds(t *testing.T) {
	e, _ := NewEuler(25)
	q := kinematics.Joints{0.3, -0.1, 0.2}
	if got := e.Step(q, kinematics.Joints{}); got != q {
		t.Errorf("Step() = %v, want %v", got, q)
	}
}

func TestEuler_ConvergesToLinearMotion(t *testing.T) {
	const rate = 50.0
	e, _ := NewEuler(rate)

	q := kinematics.Joints{}
	dq := kinematics.Joints{0.5, 0, -0.25}
	for i := 0; i < int(rate); i++ {
		q = e.Step(q, dq)
	}

	if d := q[0] - 0.5; d > 1e-12 || d < -1e-12 {
		t.Errorf("pan after 1s = %v, want 0.5", q[0])
	}
	if d := q[2] + 0.25; d > 1e-12 || d < -1e-12 {
		t.Errorf("aim after 1s = %v, want -0.25", q[2])
	}
}

func TestNewEuler_InvalidRate(t *testing.T) {
	if _, err := NewEuler(0); err == nil {
		t.Error("expected error for zero rate")
	}
}
