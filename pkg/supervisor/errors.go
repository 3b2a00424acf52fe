package supervisor

import "errors"

var (
	// ErrConfiguration means the cache directory could not be configured.
	// No application exists yet, so nothing is torn down.
	ErrConfiguration = errors.New("configuration error")

	// ErrConstruction means the application could not be constructed.
	ErrConstruction = errors.New("construction error")

	// ErrTeardown means the application's teardown failed or panicked.
	ErrTeardown = errors.New("teardown error")

	// ErrTeardownTimeout means teardown did not settle before the shutdown deadline.
	ErrTeardownTimeout = errors.New("teardown timed out")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("supervisor already running")
)
