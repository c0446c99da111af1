package remote

import "net/http"

// Credentials authenticate one call against the store. Either field may be
// empty; the backend accepts a bearer token, its session cookie, or both.
type Credentials struct {
	Token  string
	Cookie string
}

// Empty reports whether no credential is set.
func (c Credentials) Empty() bool {
	return c.Token == "" && c.Cookie == ""
}

func (c Credentials) apply(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.Cookie != "" {
		req.Header.Set("Cookie", c.Cookie)
	}
}

// CredentialSource yields the credentials to use for the next call.
type CredentialSource interface {
	Credentials() Credentials
}

// StaticCredentials is a CredentialSource that never changes.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials() Credentials { return Credentials(s) }
