package errors

import "errors"

// Sentinel errors crossing service boundaries. Handlers translate these
// into OAuth2Error responses; the coarse categories are deliberate so no
// error path discloses whether a username or client exists.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidClient        = errors.New("invalid client credentials")
	ErrClientNotFound       = errors.New("client not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrAuthCodeNotFound     = errors.New("authorization code not found")
	ErrAuthCodeUsed         = errors.New("authorization code already used")
	ErrAuthCodeExists       = errors.New("authorization code value collision")
	ErrTokenNotFound        = errors.New("token not found")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrInvalidRedirectURI   = errors.New("redirect uri not registered for client")
	ErrInvalidScope         = errors.New("requested scope exceeds client allowance")
	ErrUnauthorized         = errors.New("caller is not authenticated")
	ErrDelegatedAuthFailed  = errors.New("delegated authentication failed")
	ErrUpstreamUnavailable  = errors.New("upstream provider or store unavailable")
	ErrUnsupportedGrantType = errors.New("grant type not allowed for this client")

	ErrUnsupportedResponseType = errors.New("response type not supported")
)

// Is reports whether any error in err's chain matches target.
// Re-exported so callers need a single errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }
