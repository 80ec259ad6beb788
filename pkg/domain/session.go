package domain

import "github.com/google/uuid"

// SessionState is the issued state of a Session.
type SessionState int

const (
	Anonymous SessionState = iota
	Authenticated
)

func (s SessionState) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Session is the authenticated identity + credential pair held by the client.
// The zero value is an anonymous session.
type Session struct {
	User  User
	Token string
	State SessionState
	// Generation changes every time a session is established or restored.
	// In-flight work stamped with an older generation is stale.
	Generation uuid.UUID
}

// Authenticated reports whether the session carries a credential.
func (s Session) Authenticated() bool {
	return s.State == Authenticated && s.Token != ""
}
