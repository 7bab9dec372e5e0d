package kinematics

// DefaultAimFloor is the lowest position the aim joint may be driven to.
const DefaultAimFloor = 0.05

// Limiter keeps the projected aim position at or above Floor. There is no
// upper bound.
type Limiter struct {
	Floor float64
}

func NewLimiter(floor float64) Limiter {
	return Limiter{Floor: floor}
}

// Apply returns dq with the aim rate overridden when q[Aim]+dq[Aim] would
// fall below the floor, so that the projection lands exactly on it.
func (l Limiter) Apply(q, dq Joints) (Joints, bool) {
	if q[Aim]+dq[Aim] < l.Floor {
		dq[Aim] = l.Floor - q[Aim]
		return dq, true
	}
	return dq, false
}
