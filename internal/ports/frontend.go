package ports

// Frontend is an intake surface that feeds submissions to the review
// service
type Frontend interface {
	// Name identifies the frontend in logs
	Name() string

	// Start starts serving. It returns once the listener is up.
	Start() error

	// Stop stops the frontend
	Stop() error
}
