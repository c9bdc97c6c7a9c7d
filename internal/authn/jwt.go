// Package authn implements the minimal JWT bearer-token verification the
// control plane needs. Identity issuance (login, refresh, the frontend's
// auth provider) lives elsewhere; this package only validates a token
// already issued and extracts the user id carried in its "sub" claim.
// HS256 only, since the control plane and its issuer share JWT_SECRET as
// a symmetric key.
package authn

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMalformed      = errors.New("authn: malformed token")
	ErrUnsupportedAlg = errors.New("authn: unsupported algorithm")
	ErrBadSignature   = errors.New("authn: signature verification failed")
	ErrExpired        = errors.New("authn: token expired")
	ErrMissingSubject = errors.New("authn: missing or invalid sub claim")
)

type header struct {
	Alg string `json:"alg"`
}

type claims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
}

// VerifyToken validates an HS256 JWT against secret and returns the user
// id carried in its "sub" claim. now is injected so callers can test
// expiry handling deterministically.
func VerifyToken(secret string, token string, now time.Time) (uuid.UUID, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return uuid.Nil, ErrMalformed
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return uuid.Nil, ErrMalformed
	}
	var h header
	if err := json.Unmarshal(headerJSON, &h); err != nil {
		return uuid.Nil, ErrMalformed
	}
	if h.Alg != "HS256" {
		return uuid.Nil, ErrUnsupportedAlg
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(parts[0] + "." + parts[1]))
	expected := mac.Sum(nil)

	gotSig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return uuid.Nil, ErrMalformed
	}
	if subtle.ConstantTimeCompare(expected, gotSig) != 1 {
		return uuid.Nil, ErrBadSignature
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return uuid.Nil, ErrMalformed
	}
	var c claims
	if err := json.Unmarshal(payloadJSON, &c); err != nil {
		return uuid.Nil, ErrMalformed
	}
	if c.Exp != 0 && now.After(time.Unix(c.Exp, 0)) {
		return uuid.Nil, ErrExpired
	}

	userID, err := uuid.Parse(c.Sub)
	if err != nil {
		return uuid.Nil, ErrMissingSubject
	}
	return userID, nil
}
