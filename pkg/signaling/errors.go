package signaling

import "errors"

var (
	// ErrEngineNotStarted is returned when the manager is used before Start
	ErrEngineNotStarted = errors.New("signaling engine not started")

	// ErrEngineStopped is returned when the manager has been stopped
	ErrEngineStopped = errors.New("signaling engine stopped")
)
