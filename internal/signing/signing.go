// Package signing provides the keyed signed-payload primitive shared by
// the hosted API and the origin notification webhook. Payloads are HS256
// tokens carrying a purpose claim; distinct purposes act as salts so a
// token issued for one surface can never be replayed against another.
package signing

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainErrors "github.com/weblate/wlweb-payments/internal/domain/errors"
)

// Purposes of signed payloads issued by this service.
const (
	PurposeHosted = "payments.hosted"
	PurposeNotify = "payments.notify"
)

const purposeClaim = "purpose"

// Signer signs and verifies purpose-salted payloads with a shared
// secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign wraps payload into a signed token for the given purpose. A zero
// ttl issues a token without expiry.
func (s *Signer) Sign(purpose string, payload map[string]interface{}, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		purposeClaim: purpose,
		"iat":        jwt.NewNumericDate(time.Now()),
	}
	if ttl != 0 {
		claims["exp"] = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	for key, value := range payload {
		if key == purposeClaim || key == "exp" || key == "iat" {
			return "", fmt.Errorf("payload key %q is reserved", key)
		}
		claims[key] = value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and purpose, returning the embedded
// payload. Any failure yields ErrInvalidPayload; a forged or
// cross-purpose token is never accepted.
func (s *Signer) Verify(purpose, payload string) (map[string]interface{}, error) {
	token, err := jwt.Parse(payload, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidPayload, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domainErrors.ErrInvalidPayload
	}
	if got, _ := claims[purposeClaim].(string); got != purpose {
		return nil, fmt.Errorf("%w: purpose mismatch", domainErrors.ErrInvalidPayload)
	}

	data := make(map[string]interface{}, len(claims))
	for key, value := range claims {
		switch key {
		case purposeClaim, "exp", "iat":
		default:
			data[key] = value
		}
	}
	return data, nil
}

// IsInvalidPayload reports whether err stems from payload verification,
// a client error rather than a server one.
func IsInvalidPayload(err error) bool {
	return errors.Is(err, domainErrors.ErrInvalidPayload)
}
