package domain

// ErrorKind classifies a failure for the HTTP layer.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindAuth       ErrorKind = "auth"
	KindInternal   ErrorKind = "internal"
)

// Error is the single error type returned by the session core. Message is
// client-visible; Err is the underlying cause and is only logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and message, so wrapped
// copies of a sentinel still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func ValidationError(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func ConflictError(msg string) *Error   { return &Error{Kind: KindConflict, Message: msg} }
func NotFoundError(msg string) *Error   { return &Error{Kind: KindNotFound, Message: msg} }
func AuthError(msg string) *Error       { return &Error{Kind: KindAuth, Message: msg} }

// InternalError wraps cause under a generic client-facing message.
func InternalError(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

var (
	ErrFieldsRequired      = ValidationError("all fields are required")
	ErrAvatarRequired      = ValidationError("avatar is required")
	ErrIdentifierRequired  = ValidationError("username or email is required")
	ErrPasswordRequired    = ValidationError("password is required")
	ErrPasswordTooLong     = ValidationError("password must be at most 72 bytes")
	ErrUserExists          = ConflictError("user already exists")
	ErrRegistrationPending = ConflictError("registration already in progress")
	ErrUserNotFound        = NotFoundError("user does not exist")
	ErrInvalidCredentials  = AuthError("invalid credentials")
	ErrRefreshRequired     = AuthError("refresh token is required")
	ErrInvalidRefreshToken = AuthError("invalid refresh token")
	ErrRefreshTokenReused  = AuthError("refresh token is expired or used")
	ErrTokenIssuance       = InternalError("token issuance failed", nil)
	ErrRegistrationFailed  = InternalError("something went wrong while registering the user", nil)

	// ErrRefreshTokenConflict is returned by the store when a conditional
	// refresh-token swap finds a different current value.
	ErrRefreshTokenConflict = ConflictError("refresh token changed concurrently")
)
