package identity

import "github.com/google/uuid"

// HasUserUUID reports whether the session's user identifier parses as a UUID.
// Sessions minted from externally issued tokens may carry opaque subjects.
func HasUserUUID(session Session) bool {
	if session == nil {
		return false
	}
	_, err := uuid.Parse(session.GetUserID())
	return err == nil
}
