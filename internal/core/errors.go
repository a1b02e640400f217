package core

// Error codes for domain errors. State errors reach the offending session
// as a system frame carrying the message text; the code itself is
// server-side only (logging, tests) and never appears on the wire.
const (
	ErrCodeRoomNotFound  = "room_not_found"
	ErrCodeAlreadyJoined = "already_joined"
	ErrCodeNotInRoom     = "not_in_room"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeRateLimited   = "rate_limited"
)

// CoreError wraps a code and human-readable message describing a state
// error: logged, replied to the offending session, no state mutation.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
