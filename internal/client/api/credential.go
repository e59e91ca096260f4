package api

import "encoding/base64"

// Credential is the HTTP Basic credential: base64("username:password").
// It is computed once at login and reused verbatim for every request.
type Credential string

// NewCredential encodes a username/password pair.
func NewCredential(username, password string) Credential {
	return Credential(base64.StdEncoding.EncodeToString([]byte(username + ":" + password)))
}

// Header returns the Authorization header value.
func (c Credential) Header() string {
	return "Basic " + string(c)
}

// String hides the secret in logs and %v output.
func (c Credential) String() string {
	if c == "" {
		return ""
	}
	return "Basic ****"
}
