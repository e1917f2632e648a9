package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GuestKey identifies the unauthenticated session in places keyed by session
// identity, such as the migration controller.
const GuestKey = "guest"

// Session is the client's view of who is shopping. It is derived from the
// bearer token the storefront handed out at login; the client never verifies
// the signature (that is the server's job on every request), it only needs the
// identity key and whether the token is still live.
type Session struct {
	Token   string
	Subject string
	Expiry  time.Time
}

// Guest returns the unauthenticated session.
func Guest() Session {
	return Session{}
}

// FromToken derives a Session from a bearer token. An empty, malformed, or
// expired token yields the guest session.
func FromToken(token string) Session {
	if token == "" {
		return Guest()
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Guest()
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return Guest()
	}

	var expiry time.Time
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		expiry = exp.Time
		if expiry.Before(time.Now()) {
			return Guest()
		}
	}

	return Session{Token: token, Subject: sub, Expiry: expiry}
}

// Authenticated reports whether the session carries a server identity.
func (s Session) Authenticated() bool {
	return s.Subject != ""
}

// Key returns the identity the migration controller keys transitions on.
func (s Session) Key() string {
	if !s.Authenticated() {
		return GuestKey
	}
	return s.Subject
}
