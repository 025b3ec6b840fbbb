package signal

// Signal presents the session to the user.
type Signal interface {
	// Ensure is called whenever the status of the session changed.
	Ensure(Context) error

	// Update is called periodically while the application runs.
	Update(Context) error

	Dispose() error

	GetType() Type
}
