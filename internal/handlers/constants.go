package handlers

// Common error message constants shared across handlers
const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgInvalidPostID      = "Invalid post ID"
	ErrMsgInternal           = "Internal server error"
	ErrMsgLLMUnavailable     = "Language model unavailable"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20
