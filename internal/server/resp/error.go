package resp

const (
	ErrBadRequest       = "Invalid request parameters"
	ErrInvalidJSON      = "Invalid JSON format"
	ErrInvalidParam     = "Invalid parameter"
	ErrResourceNotFound = "Resource not found"
	ErrInternalServer   = "An unexpected error occurred"
	ErrUnauthorized     = "Authentication failed"
)
