package tide

import "errors"

var (
	// Engine errors.
	ErrEngineStopped   = errors.New("tide: engine stopped")
	ErrEngineRunning   = errors.New("tide: engine already running")
	ErrNoRuntime       = errors.New("tide: no runtime configured")
	ErrRetriesExceeded = errors.New("tide: max retries exceeded")

	// Cache errors.
	ErrArtifactNotFound = errors.New("tide: artifact not found")
	ErrCacheClosed      = errors.New("tide: cache closed")

	// Runtime errors.
	ErrNotCompiled = errors.New("tide: function has no installed artifact")
)
