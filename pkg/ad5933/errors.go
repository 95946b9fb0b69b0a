package ad5933

// Error is a constant sentinel error.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrInvalidRange       = Error("parameter outside device range")
	ErrSessionBusy        = Error("sweep session already active")
	ErrMeasurementTimeout = Error("measurement not ready within retry limit")
	ErrInvalidState       = Error("operation not allowed in current state")
	ErrSweepComplete      = Error("sweep complete")
)
