package chat

import (
	"TransitChat/tools/errs"
	"TransitChat/tools/security"
	"net/http"
	"strings"
)

const (
	accessTokenCookie = "access_token"
	tokenQueryParam   = "token"
)

// Authenticator validates the handshake request before the websocket
// upgrade. A rejected handshake never produces a connection.
type Authenticator struct {
	verifier Verifier
}

func NewAuthenticator(v Verifier) *Authenticator {
	return &Authenticator{verifier: v}
}

// Authenticate extracts the bearer credential, trying in order the
// access-token cookie, the token query parameter, and the Authorization
// header the handshake carries its auth payload in.
func (a *Authenticator) Authenticate(r *http.Request) (*security.Claims, error) {
	token := extractToken(r)
	if token == "" {
		return nil, errs.ErrAuthentication.WithDetail("no credential presented")
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return nil, errs.ErrAuthentication.WithDetail(err.Error())
	}
	return claims, nil
}

func extractToken(r *http.Request) string {
	if c, err := r.Cookie(accessTokenCookie); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get(tokenQueryParam)); v != "" {
		return v
	}
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return strings.TrimSpace(authz[len("bearer "):])
		}
	}
	return ""
}
