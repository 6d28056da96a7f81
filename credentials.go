package eiostore

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Credentials selects how a request is authorized.
// Token, when set, is sent verbatim. Otherwise Claims are signed with the
// client's secret; a nil Claims map signs an empty claim set.
type Credentials struct {
	Claims map[string]any
	Token  string
}

// Claims returns credentials that mint a token from the given claims.
func Claims(claims map[string]any) Credentials {
	return Credentials{Claims: claims}
}

// Token returns credentials carrying an already signed token.
func Token(token string) Credentials {
	return Credentials{Token: token}
}

// CredentialProvider produces Authorization headers.
type CredentialProvider struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewCredentialProvider returns a provider signing with secret using HS256.
// An empty secret is allowed; such a provider only accepts pre-signed tokens.
func NewCredentialProvider(secret string) *CredentialProvider {
	return &CredentialProvider{
		secret: []byte(secret),
		method: jwt.SigningMethodHS256,
		now:    time.Now,
	}
}

// HasSecret reports whether the provider can mint tokens.
func (p *CredentialProvider) HasSecret() bool {
	return len(p.secret) > 0
}

// AuthHeader returns the "Bearer <token>" value for cred.
func (p *CredentialProvider) AuthHeader(cred Credentials) (string, error) {
	if cred.Token != "" {
		return "Bearer " + cred.Token, nil
	}
	if !p.HasSecret() {
		return "", ErrCredentialsMissing
	}

	token, err := p.Sign(cred.Claims)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// Sign mints a token from claims. An "iat" claim is added when absent.
func (p *CredentialProvider) Sign(claims map[string]any) (string, error) {
	if !p.HasSecret() {
		return "", ErrCredentialsMissing
	}

	mc := make(jwt.MapClaims, len(claims)+1)
	for k, v := range claims {
		mc[k] = v
	}
	if _, ok := mc["iat"]; !ok {
		mc["iat"] = p.now().Unix()
	}

	signed, err := jwt.NewWithClaims(p.method, mc).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Headers merges overrides with the Authorization header derived from cred.
// Overrides never replace Authorization.
func (p *CredentialProvider) Headers(cred Credentials, overrides http.Header) (http.Header, error) {
	auth, err := p.AuthHeader(cred)
	if err != nil {
		return nil, err
	}

	h := make(http.Header, len(overrides)+1)
	for k, v := range overrides {
		h[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
	h.Set("Authorization", auth)
	return h, nil
}
