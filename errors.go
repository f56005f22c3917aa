package identity

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(http.StatusNotFound)

// ErrDuplicateIdentity is returned when a username or email is already taken
var ErrDuplicateIdentity = errors.New("username or email already registered", errors.CategoryConflict).
	WithTextCode("DUPLICATE_IDENTITY").
	WithCode(http.StatusConflict)

// ErrInvalidCredentials unifies unknown email and wrong password so a login
// response never reveals whether an account exists
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(http.StatusUnauthorized)

// ErrAccountUnverified means the credential is valid but verification is pending
var ErrAccountUnverified = errors.New("account pending verification", errors.CategoryAuth).
	WithTextCode("ACCOUNT_UNVERIFIED").
	WithCode(http.StatusForbidden)

// ErrChallengeNotFound means no live challenge exists for the identity
var ErrChallengeNotFound = errors.New("no active verification code", errors.CategoryNotFound).
	WithTextCode("CHALLENGE_NOT_FOUND").
	WithCode(http.StatusNotFound)

// ErrChallengeExpired means the challenge TTL elapsed before a correct match
var ErrChallengeExpired = errors.New("verification code expired", errors.CategoryAuth).
	WithTextCode("CHALLENGE_EXPIRED").
	WithCode(http.StatusUnauthorized)

// ErrChallengeMismatch means a live challenge exists but the code differs
var ErrChallengeMismatch = errors.New("verification code does not match", errors.CategoryAuth).
	WithTextCode("CHALLENGE_MISMATCH").
	WithCode(http.StatusUnauthorized)

// ErrAlreadyVerified rejects resend requests for verified accounts
var ErrAlreadyVerified = errors.New("account already verified", errors.CategoryConflict).
	WithTextCode("ALREADY_VERIFIED").
	WithCode(http.StatusConflict)

// ErrTokenExpired is returned when a session token is past its encoded expiry
var ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(http.StatusUnauthorized)

// ErrTokenMalformed is returned for tokens that cannot be parsed
var ErrTokenMalformed = errors.New("session token malformed", errors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(http.StatusUnauthorized)

// ErrSignatureInvalid is returned for tampered tokens or a wrong signing secret
var ErrSignatureInvalid = errors.New("session token signature invalid", errors.CategoryAuth).
	WithTextCode("TOKEN_SIGNATURE_INVALID").
	WithCode(http.StatusUnauthorized)

// ErrForbidden is an authorization failure, distinct from authentication
var ErrForbidden = errors.New("insufficient role for this operation", errors.CategoryAuthz).
	WithTextCode("FORBIDDEN").
	WithCode(http.StatusForbidden)

// ErrTooManyLoginAttempts enforces the login cooldown window
var ErrTooManyLoginAttempts = errors.New("too many login attempts, try again later", errors.CategoryRateLimit).
	WithTextCode("TOO_MANY_ATTEMPTS").
	WithCode(http.StatusTooManyRequests)

// ErrNoEmptyString rejects empty required inputs before hashing
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryValidation).
	WithTextCode("EMPTY_VALUE").
	WithCode(http.StatusBadRequest)

// ErrMismatchedHashAndPassword is the internal bcrypt mismatch; callers map it
// to ErrInvalidCredentials before it crosses the API boundary
var ErrMismatchedHashAndPassword = errors.New("hashed password mismatch", errors.CategoryAuth).
	WithTextCode("PASSWORD_MISMATCH").
	WithCode(http.StatusUnauthorized)

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode("SESSION_NOT_FOUND").
	WithCode(http.StatusUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode("SESSION_DECODE").
	WithCode(http.StatusUnauthorized)

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data", errors.CategoryBadInput).
	WithTextCode("PARSE_ERROR").
	WithCode(http.StatusBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsDuplicateIdentityError reports uniqueness violations from any store layer
func IsDuplicateIdentityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateIdentity) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
