package training

import "errors"

// Sentinel errors for lifecycle operations. Callers check them with
// errors.Is(); the engine never coerces an illegal transition silently.
var (
	// ErrInitFailed indicates both the history fetch and the create call
	// failed, so no training session could be established.
	ErrInitFailed = errors.New("failed to initialize training session")

	// ErrNotInitialized indicates the session has no chat id yet.
	ErrNotInitialized = errors.New("session not initialized")

	// ErrEmptyMessage indicates the trainee message is empty after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrSessionClosed indicates the current version is closed; reopen it
	// before sending.
	ErrSessionClosed = errors.New("session is closed")

	// ErrSessionCompleted indicates the current version is completed, which
	// no operation can exit.
	ErrSessionCompleted = errors.New("session is completed")

	// ErrSendInFlight indicates another send for the same chat has not
	// resolved yet.
	ErrSendInFlight = errors.New("another message is still being sent")

	// ErrInvalidTransition indicates the requested status change is not
	// permitted from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidScore indicates a completion score outside the 0-10 scale.
	ErrInvalidScore = errors.New("score must be between 0 and 10")
)
