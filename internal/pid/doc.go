// Package pid estimates a Cartesian correction velocity from a sliding
// window of position errors.
//
// The window is a fixed-capacity FIFO of 3-vectors ([ErrorHistory]). The
// derivative is the average rate of change across the whole window and the
// integral is the window mean scaled by one period:
//
//	derivative = (newest - oldest) / (dt * (N - 1))
//	integral   = sum * dt / N
//
// [Estimator] combines them as kp*e + kd*derivative - ki*integral. The
// integral term is subtracted.
package pid
