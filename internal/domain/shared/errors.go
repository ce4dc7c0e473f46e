package shared

// DomainError is an error with a stable machine-readable code. The interface
// layer maps codes to HTTP statuses; messages are safe to show to clients.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a domain error with the given code and message
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Sentinel errors shared across the domain
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	ErrIdentityUnavailable = NewDomainError("IDENTITY_UNAVAILABLE", "No usable identity for this request")
	ErrQuotaExceeded       = NewDomainError("QUOTA_EXCEEDED", "Daily usage limit reached")
	ErrStoreUnavailable    = NewDomainError("STORE_UNAVAILABLE", "Usage store is unavailable")
)
