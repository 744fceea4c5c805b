package core

// Error codes for domain errors surfaced to clients.
const (
	ErrCodeEmptyMessage    = "empty_message"
	ErrCodeNotInRoom       = "not_in_room"
	ErrCodeMessageNotFound = "message_not_found"
	ErrCodeNotAuthor       = "not_author"
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeInternal        = "internal_error"
)

// CoreError wraps a code and human-readable message.
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
