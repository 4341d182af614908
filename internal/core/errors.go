package core

// Error codes surfaced to clients.
const (
	ErrCodeDuplicateConnection = "duplicate_connection"
	ErrCodeNotFound            = "not_found"
	ErrCodeInvalidMessage      = "invalid_message"
	ErrCodeNotAMember          = "not_a_member"
	ErrCodePersistence         = "persistence_error"
	ErrCodeUnauthorized        = "unauthorized"
	ErrCodeRateLimited         = "rate_limited"
	ErrCodeBadRequest          = "bad_request"
)

var (
	// ErrDuplicateConnection is returned when registering an id that is already live.
	ErrDuplicateConnection = &CoreError{Code: ErrCodeDuplicateConnection, Message: "connection id already registered"}
	// ErrNotFound is returned for lookups of unknown connections or rooms.
	ErrNotFound = &CoreError{Code: ErrCodeNotFound, Message: "not found"}
	// ErrInvalidMessage is returned for empty or oversized message bodies.
	ErrInvalidMessage = &CoreError{Code: ErrCodeInvalidMessage, Message: "message body is empty or too long"}
	// ErrNotAMember is returned when posting into a room the sender has not joined.
	ErrNotAMember = &CoreError{Code: ErrCodeNotAMember, Message: "sender is not a member of the room"}
)

// CoreError wraps a wire-visible code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a store failure so the submitter learns the
// message was not sent.
func PersistenceError(err error) *CoreError {
	return &CoreError{Code: ErrCodePersistence, Message: "message could not be persisted", Err: err}
}
