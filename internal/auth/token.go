// Package auth verifies bearer tokens issued by the hosted auth service.
//
// Tokens are HS256 JWTs signed with a shared secret. Verification happens
// locally: signature first (constant time), then expiry and not-before
// with a small clock-skew allowance. The principal is the `sub` claim and
// must be a UUID, matching the user_id columns in storage.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for token verification. All of them map to HTTP 401.
var (
	ErrTokenRequired  = errors.New("bearer token required")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenNotYet    = errors.New("token not yet valid")
	ErrSubjectInvalid = errors.New("token subject invalid")
)

// clockSkew tolerates small drift between the auth service and us.
const clockSkew = 2 * time.Minute

// Principal is the authenticated caller extracted from a verified token.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

// Verifier validates HS256 JWTs with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a Verifier. The secret must match the auth
// service's signing key.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret, now: time.Now}
}

// claims is the subset of registered claims we care about.
type claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Exp   int64  `json:"exp"`
	Nbf   int64  `json:"nbf"`
}

type header struct {
	Alg string `json:"alg"`
}

// Verify checks the token and returns the principal it identifies.
func (v *Verifier) Verify(token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrTokenRequired
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Principal{}, ErrTokenMalformed
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: header: %v", ErrTokenMalformed, err)
	}
	var h header
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return Principal{}, fmt.Errorf("%w: header: %v", ErrTokenMalformed, err)
	}
	// Only HS256 is accepted; in particular alg=none is rejected.
	if h.Alg != "HS256" {
		return Principal{}, fmt.Errorf("%w: alg %q", ErrTokenSignature, h.Alg)
	}

	// Verify the signature BEFORE inspecting claims so invalid tokens are
	// indistinguishable regardless of their payload (timing oracle, CWE-208).
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	expected := mac.Sum(nil)

	actual, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: signature: %v", ErrTokenMalformed, err)
	}
	if subtle.ConstantTimeCompare(actual, expected) != 1 {
		return Principal{}, ErrTokenSignature
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: payload: %v", ErrTokenMalformed, err)
	}
	var c claims
	if err := json.Unmarshal(payloadJSON, &c); err != nil {
		return Principal{}, fmt.Errorf("%w: payload: %v", ErrTokenMalformed, err)
	}

	now := v.now()
	if c.Exp != 0 && now.After(time.Unix(c.Exp, 0).Add(clockSkew)) {
		return Principal{}, ErrTokenExpired
	}
	if c.Nbf != 0 && now.Before(time.Unix(c.Nbf, 0).Add(-clockSkew)) {
		return Principal{}, ErrTokenNotYet
	}

	userID, err := uuid.Parse(c.Sub)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %q", ErrSubjectInvalid, c.Sub)
	}

	return Principal{UserID: userID, Email: c.Email}, nil
}

// FromAuthorizationHeader extracts the bearer token from an Authorization
// header value. Returns ErrTokenRequired when the header is absent or not
// a bearer credential.
func FromAuthorizationHeader(value string) (string, error) {
	const prefix = "Bearer "
	if len(value) <= len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return "", ErrTokenRequired
	}
	return strings.TrimSpace(value[len(prefix):]), nil
}
